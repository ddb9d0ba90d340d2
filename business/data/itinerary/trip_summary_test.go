package itinerary

import (
	"reflect"
	"testing"

	"github.com/matryer/is"
)

func TestSummarize(t *testing.T) {
	calendar := NewDayTypeCalendar()
	tests := []struct {
		name string
		it   *Itinerary
		want TripSummary
	}{
		{
			name: "full trip",
			it: &Itinerary{SubjectId: "007", Slots: []Slot{
				makeTestSlot("B", "2024-07-10 10:00:00", "2024-07-10 10:10:00", 600),
				makeTestSlot("A", "2024-07-10 10:30:00", "2024-07-10 11:00:00", 1800),
				makeTestSlot("B", "2024-07-10 11:30:00", "2024-07-10 11:45:00", 900),
			}},
			want: TripSummary{
				SubjectId:       "007",
				TripOrder:       []string{"B", "A", "B"},
				UniqueLocations: []string{"A", "B"},
				TotalDuration:   3300,
				StartTime:       getTestTimePointer("2024-07-10 10:00:00"),
				EndTime:         getTestTimePointer("2024-07-10 11:45:00"),
				SpanMinutes:     float64Ptr(105),
				DayType:         Weekday,
			},
		},
		{
			name: "unknown times and durations",
			it: &Itinerary{SubjectId: "8", Slots: []Slot{
				makeTestSlot("A", "", "2024-07-13 10:10:00", -1),
				makeTestSlot("C", "2024-07-13 10:30:00", "", 60),
			}},
			want: TripSummary{
				SubjectId:       "8",
				TripOrder:       []string{"A", "C"},
				UniqueLocations: []string{"A", "C"},
				TotalDuration:   60,
				StartTime:       getTestTimePointer("2024-07-13 10:30:00"),
				EndTime:         getTestTimePointer("2024-07-13 10:10:00"),
				SpanMinutes:     float64Ptr(-20),
				DayType:         Weekend,
			},
		},
		{
			name: "no slots",
			it:   &Itinerary{SubjectId: "9"},
			want: TripSummary{
				SubjectId:       "9",
				TripOrder:       []string{},
				UniqueLocations: []string{},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.it, calendar)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Summarize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func makeTestSummaries() []TripSummary {
	its := []*Itinerary{
		{SubjectId: "1", Slots: []Slot{
			makeTestSlot("A", "2024-07-10 10:00:00", "2024-07-10 10:10:00", 600),
			makeTestSlot("B", "2024-07-10 11:00:00", "2024-07-10 11:10:00", 600),
		}},
		{SubjectId: "2", Slots: []Slot{
			makeTestSlot("B", "2024-07-10 10:00:00", "2024-07-10 10:10:00", 600),
			makeTestSlot("A", "2024-07-10 11:00:00", "2024-07-10 11:10:00", 600),
		}},
		{SubjectId: "3", Slots: []Slot{
			makeTestSlot("A", "2024-07-04 10:00:00", "2024-07-04 10:20:00", 1200),
			makeTestSlot("B", "2024-07-04 11:00:00", "2024-07-04 11:10:00", 600),
		}},
		{SubjectId: "4", Slots: []Slot{
			makeTestSlot("C", "2024-07-10 10:00:00", "2024-07-10 10:10:00", 600),
		}},
		{SubjectId: "5"},
	}
	return SummarizeAll(its, NewDayTypeCalendar())
}

func TestGroupByTripOrder(t *testing.T) {
	is := is.New(t)
	groups := GroupByTripOrder(makeTestSummaries())
	is.Equal(len(groups), 4)
	is.Equal(groups[0].Locations, []string{"A", "B"})
	is.Equal(groups[0].SubjectIds, []string{"1", "3"})
	is.Equal(groups[0].Count, 2)
	is.Equal(groups[0].TotalDurations, []float64{1200, 1800})
	is.Equal(groups[0].DayTypes, []string{Weekday, Holiday})
	is.Equal(groups[1].Locations, []string{"B", "A"})
	is.Equal(groups[2].Locations, []string{"C"})
	is.Equal(groups[3].Locations, []string{})
	is.Equal(groups[3].SubjectIds, []string{"5"})
}

func TestGroupByUniqueLocations(t *testing.T) {
	is := is.New(t)
	summaries := makeTestSummaries()
	groups := GroupByUniqueLocations(summaries)
	is.Equal(len(groups), 3)
	is.Equal(groups[0].Locations, []string{"A", "B"})
	is.Equal(groups[0].SubjectIds, []string{"1", "2", "3"})

	total := 0
	for _, group := range groups {
		total += group.Count
		is.Equal(len(group.SubjectIds), group.Count)
		is.Equal(len(group.StartTimes), group.Count)
		is.Equal(len(group.SpanMinutes), group.Count)
	}
	is.Equal(total, len(summaries))
}

func TestCountByNumberOfLocations(t *testing.T) {
	is := is.New(t)
	counts := CountByNumberOfLocations(GroupByUniqueLocations(makeTestSummaries()))
	is.Equal(counts, []LocationCount{
		{NumberOfLocations: 0, Count: 1},
		{NumberOfLocations: 1, Count: 1},
		{NumberOfLocations: 2, Count: 3},
	})
}
