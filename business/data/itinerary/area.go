package itinerary

import (
	"fmt"
	"strings"
)

// UnknownArea is assigned to locations that do not belong to any area
const UnknownArea = "Unknown"

// Area is a named group of polygon locations
type Area struct {
	Name      string   `yaml:"name" json:"name" validate:"required"`
	Locations []string `yaml:"locations" json:"locations" validate:"required,min=1,dive,required"`
}

// AreaDictionary maps locations to the Area they belong to. Areas keep the order they were defined in.
type AreaDictionary struct {
	areas          []Area
	areaByLocation map[string]string
}

// NewAreaDictionary builds an AreaDictionary from areas.
// Returns an error if an area name is repeated or a location belongs to more than one area.
func NewAreaDictionary(areas []Area) (*AreaDictionary, error) {
	dictionary := AreaDictionary{
		areas:          make([]Area, 0, len(areas)),
		areaByLocation: make(map[string]string),
	}
	names := make(map[string]bool)
	var duplicates []string
	for _, area := range areas {
		if names[area.Name] {
			return nil, fmt.Errorf("area %s is defined more than once", area.Name)
		}
		names[area.Name] = true
		for _, location := range area.Locations {
			if existing, present := dictionary.areaByLocation[location]; present {
				duplicates = append(duplicates, fmt.Sprintf("%s (%s, %s)", location, existing, area.Name))
				continue
			}
			dictionary.areaByLocation[location] = area.Name
		}
		dictionary.areas = append(dictionary.areas, Area{
			Name:      area.Name,
			Locations: append([]string(nil), area.Locations...),
		})
	}
	if len(duplicates) > 0 {
		return nil, fmt.Errorf("locations assigned to more than one area: %s", strings.Join(duplicates, ", "))
	}
	return &dictionary, nil
}

// AreaNames returns the area names in definition order
func (d *AreaDictionary) AreaNames() []string {
	names := make([]string, 0, len(d.areas))
	for _, area := range d.areas {
		names = append(names, area.Name)
	}
	return names
}

// AreaOf returns the name of the area containing location, UnknownArea if no area contains it,
// or an empty string if location is blank
func (d *AreaDictionary) AreaOf(location string) string {
	if len(strings.TrimSpace(location)) == 0 {
		return ""
	}
	if area, present := d.areaByLocation[location]; present {
		return area
	}
	return UnknownArea
}

// MapItinerary returns a copy of it with every location replaced by its area
func (d *AreaDictionary) MapItinerary(it *Itinerary) *Itinerary {
	result := Itinerary{
		SubjectId: it.SubjectId,
		Slots:     make([]Slot, len(it.Slots)),
	}
	for i, slot := range it.Slots {
		slot.Location = d.AreaOf(slot.Location)
		result.Slots[i] = slot
	}
	return &result
}

// MapAll applies MapItinerary to each itinerary
func (d *AreaDictionary) MapAll(itineraries []*Itinerary) []*Itinerary {
	results := make([]*Itinerary, 0, len(itineraries))
	for _, it := range itineraries {
		results = append(results, d.MapItinerary(it))
	}
	return results
}

// AreaItineraries holds itineraries restricted to the locations of a single area
type AreaItineraries struct {
	Area        string
	Itineraries []*Itinerary
}

// SplitByArea restricts each itinerary to the slots inside each area, keeping the original location labels.
// Areas no itinerary visited are left out.
func (d *AreaDictionary) SplitByArea(itineraries []*Itinerary) []AreaItineraries {
	results := make([]AreaItineraries, 0)
	for _, area := range d.areas {
		split := AreaItineraries{Area: area.Name}
		for _, it := range itineraries {
			var slots []Slot
			for _, slot := range it.Slots {
				if d.areaByLocation[slot.Location] == area.Name {
					slots = append(slots, slot)
				}
			}
			if len(slots) > 0 {
				split.Itineraries = append(split.Itineraries, &Itinerary{SubjectId: it.SubjectId, Slots: slots})
			}
		}
		if len(split.Itineraries) > 0 {
			results = append(results, split)
		}
	}
	return results
}
