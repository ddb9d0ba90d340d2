package itinerary

import "time"

// DefaultInvalidLocations are the location labels that carry no information about where a subject went
var DefaultInvalidLocations = []string{"Not Sorted", "Unknown"}

// Fuser removes invalid locations from itineraries and merges consecutive visits to the same location
type Fuser struct {
	invalid map[string]bool
}

// NewFuser creates a Fuser that drops slots labeled with any of invalidLocations
func NewFuser(invalidLocations []string) *Fuser {
	invalid := make(map[string]bool, len(invalidLocations))
	for _, location := range invalidLocations {
		invalid[location] = true
	}
	return &Fuser{invalid: invalid}
}

// Fuse produces a new Itinerary from it where invalid slots are dropped and each slot sharing the location of the
// previously kept slot is merged into it. Merged slots keep the latest exit time and the sum of durations, which
// may be shorter than the time between enter and exit when the visits were not contiguous.
// A fused duration of 0 is stored as unknown.
func (f *Fuser) Fuse(it *Itinerary) *Itinerary {
	type fusedSlot struct {
		slot     Slot
		duration float64
	}
	fused := make([]fusedSlot, 0, len(it.Slots))
	for _, slot := range it.Slots {
		if slot.IsBlank() || f.invalid[slot.Location] {
			continue
		}
		last := len(fused) - 1
		if last >= 0 && fused[last].slot.Location == slot.Location {
			fused[last].slot.ExitTime = laterOf(fused[last].slot.ExitTime, slot.ExitTime)
			fused[last].duration += slot.DurationOrZero()
			continue
		}
		fused = append(fused, fusedSlot{
			slot: Slot{
				Location:  slot.Location,
				EnterTime: slot.EnterTime,
				ExitTime:  slot.ExitTime,
			},
			duration: slot.DurationOrZero(),
		})
	}

	result := Itinerary{
		SubjectId: it.SubjectId,
		Slots:     make([]Slot, 0, len(fused)),
	}
	for _, fs := range fused {
		slot := fs.slot
		if fs.duration != 0 {
			slot.Duration = float64Ptr(fs.duration)
		}
		result.Slots = append(result.Slots, slot)
	}
	return &result
}

// FuseAll fuses each itinerary, retaining subjects left without any slots
func (f *Fuser) FuseAll(itineraries []*Itinerary) []*Itinerary {
	results := make([]*Itinerary, 0, len(itineraries))
	for _, it := range itineraries {
		results = append(results, f.Fuse(it))
	}
	return results
}

// laterOf returns the later of two times, ignoring unknown times
func laterOf(a *time.Time, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.After(*a) {
		return b
	}
	return a
}
