package itinerary

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// studyFile is the yaml layout of a study settings file
type studyFile struct {
	InvalidLocations []string     `yaml:"invalidLocations" validate:"dive,required"`
	Areas            []Area       `yaml:"areas" validate:"dive"`
	Subjects         subjectLists `yaml:"subjects"`
}

type subjectLists struct {
	Allow []string `yaml:"allow" validate:"dive,required"`
	Deny  []string `yaml:"deny" validate:"dive,required"`
}

// Study holds the settings shared by every stage of a pipeline run
type Study struct {
	InvalidLocations []string
	Areas            *AreaDictionary
	Subjects         *SubjectFilter
}

// LoadStudy reads and validates the study settings yaml file at path.
// When the file omits invalidLocations DefaultInvalidLocations are used.
func LoadStudy(path string) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading study file %s: %w", path, err)
	}
	return ParseStudy(data)
}

// ParseStudy builds a Study from yaml content
func ParseStudy(data []byte) (*Study, error) {
	var file studyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing study yaml: %w", err)
	}
	v := validator.New()
	if err := v.Struct(file); err != nil {
		return nil, fmt.Errorf("validating study: %w", err)
	}
	areas, err := NewAreaDictionary(file.Areas)
	if err != nil {
		return nil, err
	}
	invalid := file.InvalidLocations
	if len(invalid) == 0 {
		invalid = DefaultInvalidLocations
	}
	return &Study{
		InvalidLocations: invalid,
		Areas:            areas,
		Subjects:         NewSubjectFilter(file.Subjects.Allow, file.Subjects.Deny),
	}, nil
}

// SubjectFilter decides which subject ids are processed
type SubjectFilter struct {
	allow map[string]bool
	deny  map[string]bool
}

// NewSubjectFilter creates a SubjectFilter. An empty allow list permits every subject not in deny.
func NewSubjectFilter(allow []string, deny []string) *SubjectFilter {
	return &SubjectFilter{
		allow: toSet(allow),
		deny:  toSet(deny),
	}
}

// Permits returns true if subjectId should be processed
func (s *SubjectFilter) Permits(subjectId string) bool {
	if s == nil {
		return true
	}
	if s.deny[subjectId] {
		return false
	}
	if len(s.allow) == 0 {
		return true
	}
	return s.allow[subjectId]
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, value := range values {
		set[value] = true
	}
	return set
}
