// Package itinerary provides the visit, itinerary and trip summary types along with the operations that build,
// fuse, relabel and summarize them
package itinerary

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the layout used when writing enter and exit times
const TimestampLayout = "2006-01-02 15:04:05"

// timestampLayouts are attempted in order when parsing timestamps from logs and itinerary tables
var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04",
}

// VisitRecord is a single enter/exit of a polygon by a subject
type VisitRecord struct {
	SubjectId string
	Location  string
	EnterTime time.Time
	ExitTime  time.Time
	// Duration in seconds
	Duration float64
}

// Slot is one visit position in an Itinerary.
// EnterTime, ExitTime and Duration are nil when unknown.
type Slot struct {
	Location  string     `json:"location"`
	EnterTime *time.Time `json:"enter_time"`
	ExitTime  *time.Time `json:"exit_time"`
	Duration  *float64   `json:"duration"`
}

// IsBlank returns true when the slot carries no location
func (s Slot) IsBlank() bool {
	return len(s.Location) == 0
}

// DurationOrZero returns the slot duration, or 0 when unknown
func (s Slot) DurationOrZero() float64 {
	if s.Duration == nil {
		return 0
	}
	return *s.Duration
}

// Itinerary holds the ordered visits of a subject. Slots never contain blank entries, the table width
// is padded with blank slots only when written.
type Itinerary struct {
	SubjectId string `json:"subject_id"`
	Slots     []Slot `json:"slots"`
}

func (i *Itinerary) String() string {
	locations := make([]string, 0, len(i.Slots))
	for _, slot := range i.Slots {
		locations = append(locations, slot.Location)
	}
	return fmt.Sprintf("Itinerary id:%s, locations:[%s]", i.SubjectId, strings.Join(locations, ","))
}

// MaxWidth returns the largest number of slots held by any of the itineraries
func MaxWidth(itineraries []*Itinerary) int {
	width := 0
	for _, it := range itineraries {
		if len(it.Slots) > width {
			width = len(it.Slots)
		}
	}
	return width
}

// ParseTimestamp parses timestamps as written by the tracker and by pandas style tables
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q: %w", value, lastErr)
}

// ParseTimestampPointer parses value, returning nil if the value is empty or unparseable
func ParseTimestampPointer(value string) *time.Time {
	if len(strings.TrimSpace(value)) == 0 {
		return nil
	}
	t, err := ParseTimestamp(value)
	if err != nil {
		return nil
	}
	return &t
}

// FormatTimestamp formats t with TimestampLayout, empty string if t is nil
func FormatTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(TimestampLayout)
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func float64Ptr(f float64) *float64 {
	return &f
}
