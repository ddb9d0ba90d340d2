package itinerary

import (
	"time"
)

// getTestTime parses str with TimestampLayout, panics on failure
func getTestTime(str string) time.Time {
	result, err := time.Parse(TimestampLayout, str)
	if err != nil {
		panic(err)
	}
	return result
}

func getTestTimePointer(str string) *time.Time {
	if len(str) == 0 {
		return nil
	}
	result := getTestTime(str)
	return &result
}

// makeTestSlot builds a Slot, empty times are unknown and a negative duration is unknown
func makeTestSlot(location string, enter string, exit string, duration float64) Slot {
	slot := Slot{
		Location:  location,
		EnterTime: getTestTimePointer(enter),
		ExitTime:  getTestTimePointer(exit),
	}
	if duration >= 0 {
		slot.Duration = float64Ptr(duration)
	}
	return slot
}

func makeTestVisit(subjectId string, location string, enter string, exit string) VisitRecord {
	enterTime := getTestTime(enter)
	exitTime := getTestTime(exit)
	return VisitRecord{
		SubjectId: subjectId,
		Location:  location,
		EnterTime: enterTime,
		ExitTime:  exitTime,
		Duration:  exitTime.Sub(enterTime).Seconds(),
	}
}
