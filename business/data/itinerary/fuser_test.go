package itinerary

import (
	"reflect"
	"testing"

	"github.com/matryer/is"
)

func TestFuser_Fuse(t *testing.T) {
	tests := []struct {
		name  string
		input []Slot
		want  []Slot
	}{
		{
			name: "consecutive visits to the same location are merged",
			input: []Slot{
				makeTestSlot("A", "2024-07-01 10:00:00", "2024-07-01 10:05:00", 300),
				makeTestSlot("A", "2024-07-01 10:05:00", "2024-07-01 10:10:00", 300),
				makeTestSlot("B", "2024-07-01 10:10:00", "2024-07-01 10:12:00", 120),
			},
			want: []Slot{
				makeTestSlot("A", "2024-07-01 10:00:00", "2024-07-01 10:10:00", 600),
				makeTestSlot("B", "2024-07-01 10:10:00", "2024-07-01 10:12:00", 120),
			},
		},
		{
			name: "invalid locations are removed before merging",
			input: []Slot{
				makeTestSlot("A", "2024-07-01 10:00:00", "2024-07-01 10:05:00", 300),
				makeTestSlot("Unknown", "2024-07-01 10:06:00", "2024-07-01 10:08:00", 120),
				makeTestSlot("A", "2024-07-01 10:09:00", "2024-07-01 10:12:00", 180),
				makeTestSlot("Not Sorted", "2024-07-01 10:20:00", "2024-07-01 10:30:00", 600),
			},
			want: []Slot{
				makeTestSlot("A", "2024-07-01 10:00:00", "2024-07-01 10:12:00", 480),
			},
		},
		{
			name: "non consecutive visits stay separate",
			input: []Slot{
				makeTestSlot("A", "2024-07-01 10:00:00", "2024-07-01 10:05:00", 300),
				makeTestSlot("B", "2024-07-01 10:06:00", "2024-07-01 10:08:00", 120),
				makeTestSlot("A", "2024-07-01 10:09:00", "2024-07-01 10:12:00", 180),
			},
			want: []Slot{
				makeTestSlot("A", "2024-07-01 10:00:00", "2024-07-01 10:05:00", 300),
				makeTestSlot("B", "2024-07-01 10:06:00", "2024-07-01 10:08:00", 120),
				makeTestSlot("A", "2024-07-01 10:09:00", "2024-07-01 10:12:00", 180),
			},
		},
		{
			name: "unknown exit time keeps the known one",
			input: []Slot{
				makeTestSlot("A", "2024-07-01 10:00:00", "2024-07-01 10:05:00", 300),
				makeTestSlot("A", "2024-07-01 10:05:00", "", 300),
			},
			want: []Slot{
				makeTestSlot("A", "2024-07-01 10:00:00", "2024-07-01 10:05:00", 600),
			},
		},
		{
			name: "unknown durations count as zero and a zero sum is unknown",
			input: []Slot{
				makeTestSlot("A", "2024-07-01 10:00:00", "2024-07-01 10:05:00", -1),
				makeTestSlot("A", "2024-07-01 10:05:00", "2024-07-01 10:07:00", -1),
				makeTestSlot("B", "2024-07-01 10:08:00", "2024-07-01 10:09:00", -1),
				makeTestSlot("B", "2024-07-01 10:09:00", "2024-07-01 10:10:00", 60),
			},
			want: []Slot{
				makeTestSlot("A", "2024-07-01 10:00:00", "2024-07-01 10:07:00", -1),
				makeTestSlot("B", "2024-07-01 10:08:00", "2024-07-01 10:10:00", 60),
			},
		},
		{
			name: "only invalid locations",
			input: []Slot{
				makeTestSlot("Unknown", "2024-07-01 10:00:00", "2024-07-01 10:05:00", 300),
				makeTestSlot("Not Sorted", "2024-07-01 10:06:00", "2024-07-01 10:08:00", 120),
			},
			want: []Slot{},
		},
	}
	fuser := NewFuser(DefaultInvalidLocations)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fuser.Fuse(&Itinerary{SubjectId: "007", Slots: tt.input})
			if got.SubjectId != "007" {
				t.Errorf("Fuse() subject id = %s, want 007", got.SubjectId)
			}
			if !reflect.DeepEqual(got.Slots, tt.want) {
				t.Errorf("Fuse() = %v, want %v", got.Slots, tt.want)
			}
		})
	}
}

func TestFuser_FuseIsIdempotent(t *testing.T) {
	is := is.New(t)
	fuser := NewFuser(DefaultInvalidLocations)
	it := &Itinerary{
		SubjectId: "0042",
		Slots: []Slot{
			makeTestSlot("A", "2024-07-01 10:00:00", "2024-07-01 10:05:00", 300),
			makeTestSlot("A", "2024-07-01 10:05:00", "2024-07-01 10:10:00", 300),
			makeTestSlot("Unknown", "2024-07-01 10:11:00", "2024-07-01 10:12:00", 60),
			makeTestSlot("B", "2024-07-01 10:13:00", "2024-07-01 10:20:00", 420),
			makeTestSlot("B", "2024-07-01 10:21:00", "", -1),
			makeTestSlot("A", "2024-07-01 10:30:00", "2024-07-01 10:40:00", 600),
		},
	}
	once := fuser.Fuse(it)
	twice := fuser.Fuse(once)
	is.Equal(once, twice)
}

func TestFuser_FusePreservesValidDuration(t *testing.T) {
	is := is.New(t)
	fuser := NewFuser([]string{"Unknown"})
	slots := []Slot{
		makeTestSlot("A", "2024-07-01 10:00:00", "2024-07-01 10:05:00", 300),
		makeTestSlot("Unknown", "2024-07-01 10:05:00", "2024-07-01 10:06:00", 60),
		makeTestSlot("A", "2024-07-01 10:06:00", "2024-07-01 10:10:00", 240.5),
		makeTestSlot("B", "2024-07-01 10:10:00", "2024-07-01 10:12:00", -1),
		makeTestSlot("C", "2024-07-01 10:12:00", "2024-07-01 10:14:00", 120),
		makeTestSlot("C", "2024-07-01 10:14:00", "2024-07-01 10:16:00", 120),
	}
	var inputTotal float64
	for _, slot := range slots {
		if slot.Location != "Unknown" {
			inputTotal += slot.DurationOrZero()
		}
	}
	fused := fuser.Fuse(&Itinerary{SubjectId: "1", Slots: slots})
	var fusedTotal float64
	for _, slot := range fused.Slots {
		fusedTotal += slot.DurationOrZero()
	}
	is.Equal(inputTotal, fusedTotal)
	is.Equal(len(fused.Slots), 3) // A, B, C
}

func TestFuser_FuseAllKeepsEmptySubjects(t *testing.T) {
	is := is.New(t)
	fuser := NewFuser(DefaultInvalidLocations)
	got := fuser.FuseAll([]*Itinerary{
		{SubjectId: "1", Slots: []Slot{makeTestSlot("Unknown", "2024-07-01 10:00:00", "2024-07-01 10:05:00", 300)}},
		{SubjectId: "2", Slots: []Slot{makeTestSlot("A", "2024-07-01 10:00:00", "2024-07-01 10:05:00", 300)}},
	})
	is.Equal(len(got), 2)
	is.Equal(got[0].SubjectId, "1")
	is.Equal(len(got[0].Slots), 0)
	is.Equal(got[1].Slots[0].Location, "A")
}
