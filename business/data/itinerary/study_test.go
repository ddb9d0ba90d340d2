package itinerary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
)

const testStudyYaml = `
invalidLocations: [Not Sorted, Unknown, Shuttle_Avalanche]
areas:
  - name: Apgar
    locations: [Apgar_village, Apgar_campground]
  - name: Avalanche
    locations: [Avalanche_trail, Shuttle_Avalanche]
subjects:
  allow: ["0012", "0013", "0014"]
  deny: ["0013"]
`

func TestParseStudy(t *testing.T) {
	is := is.New(t)
	study, err := ParseStudy([]byte(testStudyYaml))
	is.NoErr(err)
	is.Equal(study.InvalidLocations, []string{"Not Sorted", "Unknown", "Shuttle_Avalanche"})
	is.Equal(study.Areas.AreaNames(), []string{"Apgar", "Avalanche"})
	is.Equal(study.Areas.AreaOf("Apgar_campground"), "Apgar")
	is.True(study.Subjects.Permits("0012"))
	is.True(!study.Subjects.Permits("0013")) // denied
	is.True(!study.Subjects.Permits("12"))   // not allowed
}

func TestParseStudy_defaults(t *testing.T) {
	is := is.New(t)
	study, err := ParseStudy([]byte("areas: []\n"))
	is.NoErr(err)
	is.Equal(study.InvalidLocations, DefaultInvalidLocations)
	is.Equal(len(study.Areas.AreaNames()), 0)
	is.True(study.Subjects.Permits("anything"))
}

func TestParseStudy_errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "area without name",
			yaml: "areas:\n  - locations: [A]\n",
		},
		{
			name: "area without locations",
			yaml: "areas:\n  - name: Apgar\n",
		},
		{
			name: "blank location",
			yaml: "areas:\n  - name: Apgar\n    locations: [A, \"\"]\n",
		},
		{
			name: "location in two areas",
			yaml: "areas:\n  - name: Apgar\n    locations: [A]\n  - name: Logan\n    locations: [A]\n",
		},
		{
			name: "not yaml",
			yaml: "areas: [",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseStudy([]byte(tt.yaml)); err == nil {
				t.Errorf("ParseStudy() expected error")
			}
		})
	}
}

func TestLoadStudy(t *testing.T) {
	is := is.New(t)
	path := filepath.Join(t.TempDir(), "study.yml")
	is.NoErr(os.WriteFile(path, []byte(testStudyYaml), 0644))
	study, err := LoadStudy(path)
	is.NoErr(err)
	is.Equal(study.Areas.AreaOf("Shuttle_Avalanche"), "Avalanche")

	_, err = LoadStudy(filepath.Join(t.TempDir(), "missing.yml"))
	is.True(err != nil)
}

func TestSubjectFilter_Permits(t *testing.T) {
	tests := []struct {
		name      string
		filter    *SubjectFilter
		subjectId string
		want      bool
	}{
		{name: "nil filter", filter: nil, subjectId: "1", want: true},
		{name: "empty lists", filter: NewSubjectFilter(nil, nil), subjectId: "1", want: true},
		{name: "denied", filter: NewSubjectFilter(nil, []string{"1"}), subjectId: "1", want: false},
		{name: "allowed", filter: NewSubjectFilter([]string{"1"}, nil), subjectId: "1", want: true},
		{name: "not allowed", filter: NewSubjectFilter([]string{"1"}, nil), subjectId: "2", want: false},
		{name: "deny wins", filter: NewSubjectFilter([]string{"1"}, []string{"1"}), subjectId: "1", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Permits(tt.subjectId); got != tt.want {
				t.Errorf("Permits() = %v, want %v", got, tt.want)
			}
		})
	}
}
