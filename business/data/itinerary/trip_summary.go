package itinerary

import (
	"sort"
	"strings"
	"time"
)

// TripSummary describes the trip a subject made through the locations of an Itinerary
type TripSummary struct {
	SubjectId       string     `json:"subject_id"`
	TripOrder       []string   `json:"trip_order"`
	UniqueLocations []string   `json:"unique_locations"`
	TotalDuration   float64    `json:"total_duration_poi"`
	StartTime       *time.Time `json:"trip_start_time"`
	EndTime         *time.Time `json:"trip_end_time"`
	// SpanMinutes is the minutes between StartTime and EndTime, nil if either is unknown
	SpanMinutes *float64 `json:"total_trip_duration"`
	DayType     string   `json:"day_type"`
}

// Summarize builds a TripSummary from it. Blank slots are skipped, unknown durations count as 0 and unknown times
// are ignored when finding the trip start and end.
func Summarize(it *Itinerary, calendar *DayTypeCalendar) TripSummary {
	summary := TripSummary{
		SubjectId: it.SubjectId,
		TripOrder: make([]string, 0, len(it.Slots)),
	}
	for _, slot := range it.Slots {
		if slot.IsBlank() {
			continue
		}
		summary.TripOrder = append(summary.TripOrder, slot.Location)
		summary.TotalDuration += slot.DurationOrZero()
		if slot.EnterTime != nil && (summary.StartTime == nil || slot.EnterTime.Before(*summary.StartTime)) {
			summary.StartTime = slot.EnterTime
		}
		if slot.ExitTime != nil && (summary.EndTime == nil || slot.ExitTime.After(*summary.EndTime)) {
			summary.EndTime = slot.ExitTime
		}
	}
	summary.UniqueLocations = uniqueSorted(summary.TripOrder)
	if summary.StartTime != nil && summary.EndTime != nil {
		summary.SpanMinutes = float64Ptr(summary.EndTime.Sub(*summary.StartTime).Minutes())
	}
	summary.DayType = calendar.DayType(summary.StartTime)
	return summary
}

// SummarizeAll summarizes each itinerary in order
func SummarizeAll(itineraries []*Itinerary, calendar *DayTypeCalendar) []TripSummary {
	results := make([]TripSummary, 0, len(itineraries))
	for _, it := range itineraries {
		results = append(results, Summarize(it, calendar))
	}
	return results
}

func uniqueSorted(locations []string) []string {
	seen := make(map[string]bool, len(locations))
	results := make([]string, 0, len(locations))
	for _, location := range locations {
		if !seen[location] {
			seen[location] = true
			results = append(results, location)
		}
	}
	sort.Strings(results)
	return results
}

// GroupedTripSummary collects the subjects that share the same trip order or the same set of locations.
// Statistic slices are parallel to SubjectIds.
type GroupedTripSummary struct {
	Locations      []string     `json:"locations"`
	SubjectIds     []string     `json:"ids"`
	Count          int          `json:"count"`
	TotalDurations []float64    `json:"total_duration_poi"`
	StartTimes     []*time.Time `json:"trip_start_time"`
	EndTimes       []*time.Time `json:"trip_end_time"`
	SpanMinutes    []*float64   `json:"total_trip_duration"`
	DayTypes       []string     `json:"day_type"`
}

func (g *GroupedTripSummary) add(summary TripSummary) {
	g.SubjectIds = append(g.SubjectIds, summary.SubjectId)
	g.TotalDurations = append(g.TotalDurations, summary.TotalDuration)
	g.StartTimes = append(g.StartTimes, summary.StartTime)
	g.EndTimes = append(g.EndTimes, summary.EndTime)
	g.SpanMinutes = append(g.SpanMinutes, summary.SpanMinutes)
	g.DayTypes = append(g.DayTypes, summary.DayType)
	g.Count = len(g.SubjectIds)
}

// GroupByTripOrder groups summaries with identical ordered location sequences, in order of first appearance
func GroupByTripOrder(summaries []TripSummary) []*GroupedTripSummary {
	return groupBy(summaries, func(s TripSummary) []string { return s.TripOrder })
}

// GroupByUniqueLocations groups summaries visiting the same set of locations, in order of first appearance
func GroupByUniqueLocations(summaries []TripSummary) []*GroupedTripSummary {
	return groupBy(summaries, func(s TripSummary) []string { return s.UniqueLocations })
}

func groupBy(summaries []TripSummary, locationsOf func(TripSummary) []string) []*GroupedTripSummary {
	groups := make(map[string]*GroupedTripSummary)
	results := make([]*GroupedTripSummary, 0)
	for _, summary := range summaries {
		locations := locationsOf(summary)
		// unit separator can't appear in a polygon name
		key := strings.Join(locations, "\x1f")
		group, present := groups[key]
		if !present {
			group = &GroupedTripSummary{Locations: append([]string{}, locations...)}
			groups[key] = group
			results = append(results, group)
		}
		group.add(summary)
	}
	return results
}

// LocationCount is the number of subjects that visited NumberOfLocations distinct locations
type LocationCount struct {
	NumberOfLocations int `json:"number_of_locations"`
	Count             int `json:"count"`
}

// CountByNumberOfLocations sums group counts by the number of locations in each group, ordered by
// NumberOfLocations
func CountByNumberOfLocations(groups []*GroupedTripSummary) []LocationCount {
	counts := make(map[int]int)
	for _, group := range groups {
		counts[len(group.Locations)] += group.Count
	}
	results := make([]LocationCount, 0, len(counts))
	for numberOfLocations, count := range counts {
		results = append(results, LocationCount{NumberOfLocations: numberOfLocations, Count: count})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].NumberOfLocations < results[j].NumberOfLocations
	})
	return results
}

// PublishedTripSummaries is the message sent for each analyzed table of a pipeline run
type PublishedTripSummaries struct {
	RunId             string                `json:"run_id"`
	Table             string                `json:"table"`
	PublishedAt       time.Time             `json:"published_at"`
	Summaries         []TripSummary         `json:"summaries"`
	ByTripOrder       []*GroupedTripSummary `json:"by_trip_order"`
	ByUniqueLocations []*GroupedTripSummary `json:"by_unique_locations"`
}
