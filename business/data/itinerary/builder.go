package itinerary

import (
	"sort"
)

// BuildItineraries groups records by subject id and orders each subject's visits by enter time.
// Records with a duration below minDuration seconds are discarded first, subjects left without records
// are omitted. Results are ordered by subject id.
func BuildItineraries(records []VisitRecord, minDuration float64) []*Itinerary {
	bySubject := make(map[string][]VisitRecord)
	subjectIds := make([]string, 0)
	for _, record := range records {
		if record.Duration < minDuration {
			continue
		}
		if _, present := bySubject[record.SubjectId]; !present {
			subjectIds = append(subjectIds, record.SubjectId)
		}
		bySubject[record.SubjectId] = append(bySubject[record.SubjectId], record)
	}
	sort.Strings(subjectIds)

	results := make([]*Itinerary, 0, len(subjectIds))
	for _, subjectId := range subjectIds {
		visits := bySubject[subjectId]
		sort.SliceStable(visits, func(i, j int) bool {
			return visits[i].EnterTime.Before(visits[j].EnterTime)
		})
		it := Itinerary{
			SubjectId: subjectId,
			Slots:     make([]Slot, 0, len(visits)),
		}
		for _, visit := range visits {
			it.Slots = append(it.Slots, slotFromVisit(visit))
		}
		results = append(results, &it)
	}
	return results
}

func slotFromVisit(visit VisitRecord) Slot {
	return Slot{
		Location:  visit.Location,
		EnterTime: timePtr(visit.EnterTime),
		ExitTime:  timePtr(visit.ExitTime),
		Duration:  float64Ptr(visit.Duration),
	}
}
