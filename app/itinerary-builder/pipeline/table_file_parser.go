package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/OpenTransitTools/shuttletrack/business/data/itinerary"
)

// tableFileParser holds information about a csv table. Methods to read columns for records. Errors while extracting
// data types are stored in errors array which record the line number the error happened.
type tableFileParser struct {
	Filename       string
	line           int
	csvReader      *csv.Reader
	headers        []string
	currentRecords []string
	errors         []error
}

// makeTableFileParser creates new tableFileParser from io.Reader
func makeTableFileParser(r io.Reader, filename string) (*tableFileParser, error) {
	csvReader := csv.NewReader(r)
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to load header in %s file: %v", filename, err)
	}
	removeBOMIfPresent(headers)
	return &tableFileParser{
		Filename:       filename,
		line:           1,
		csvReader:      csvReader,
		headers:        headers,
		currentRecords: headers,
	}, nil
}

func removeBOMIfPresent(headers []string) {
	if len(headers) < 1 {
		return
	}
	headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
}

// getString retrieves string
// returns empty string if missing
func (C *tableFileParser) getString(name string, optional bool) string {
	result, err := findValue(name, C.currentRecords, C.headers, optional)
	if err != nil {
		C.errors = append(C.errors, err)
	}
	if result == nil {
		return ""
	}
	return *result
}

// getInt retrieves int
// returns 0 if missing.
func (C *tableFileParser) getInt(name string, optional bool) int {
	value := strings.TrimSpace(C.getString(name, optional))
	if len(value) == 0 {
		return 0
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		C.errors = append(C.errors, csvError(name, err))
		return 0
	}
	return result
}

// getLenientFloat64Pointer retrieves float64 pointer
// returns nil if missing, unparseable, NaN or infinite
func (C *tableFileParser) getLenientFloat64Pointer(name string) *float64 {
	value := strings.TrimSpace(C.getString(name, true))
	if len(value) == 0 {
		return nil
	}
	result, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(result) || math.IsInf(result, 0) {
		return nil
	}
	return &result
}

// getTimestampPointer retrieves a timestamp
// returns nil if missing or unparseable
func (C *tableFileParser) getTimestampPointer(name string) *time.Time {
	return itinerary.ParseTimestampPointer(C.getString(name, true))
}

// slotCount returns the number of location_i columns present in the table
func (C *tableFileParser) slotCount() int {
	count := 0
	for indexOf(locationColumn(count+1), C.headers) >= 0 {
		count++
	}
	return count
}

// getError retrieve errors encountered while parsing the current line
func (C *tableFileParser) getError() error {
	if len(C.errors) > 0 {
		return fmt.Errorf("in file %v, line %v: %v", C.Filename, C.line, C.errors)
	}
	return nil
}

// nextLine moves csvReader one line forward, clearing errors of the previous line
func (C *tableFileParser) nextLine() error {
	var err error
	C.currentRecords, err = C.csvReader.Read()
	C.line += 1
	C.errors = nil
	return err
}

// find index of elements that matches name string. returns -1 if not found
func indexOf(name string, elements []string) int {
	for i, value := range elements {
		if name == value {
			return i
		}
	}
	return -1
}

// findValue retrieves string value from csv records
// returns nil if record isn't present and optional is true
func findValue(name string, records []string, headers []string, optional bool) (*string, error) {
	index := indexOf(name, headers)
	if index < 0 {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to find header: %s", name)
	}
	if len(records) <= index {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("records are too short to find header at %v named %s", index, name)
	}
	value := records[index]
	if len(value) == 0 && !optional {
		return nil, fmt.Errorf("missing required value in column %v", name)
	}
	return &value, nil
}

// csvError convenience method for formatting an error and line number in csv file.
func csvError(name string, err error) error {
	return fmt.Errorf("unable to parse column %s, error: %v ", name, err)
}

// readItineraryTable reads all rows of an itinerary table. Rows without an id and blank slots are skipped,
// unparseable times and durations are left unknown. Returns the itineraries and the number of slot columns in
// the table.
func readItineraryTable(log *log.Logger, r io.Reader, filename string) ([]*itinerary.Itinerary, int, error) {
	parser, err := makeTableFileParser(r, filename)
	if err != nil {
		return nil, 0, err
	}
	if indexOf(idColumn, parser.headers) < 0 {
		return nil, 0, fmt.Errorf("in file %s: unable to find header: %s", filename, idColumn)
	}
	width := parser.slotCount()
	results := make([]*itinerary.Itinerary, 0)
	skipped := 0
	for {
		err = parser.nextLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		it := buildItinerary(parser, width)
		if it == nil {
			log.Printf("in file %s, line %d: skipping row without id", filename, parser.line)
			skipped++
			continue
		}
		results = append(results, it)
	}
	if skipped > 0 {
		log.Printf("skipped %d rows without id in %s", skipped, filename)
	}
	return results, width, nil
}

// buildItinerary returns the itinerary on the current line, nil if the line has no id
func buildItinerary(parser *tableFileParser, width int) *itinerary.Itinerary {
	subjectId := strings.TrimSpace(strings.TrimPrefix(parser.getString(idColumn, true), "'"))
	if len(subjectId) == 0 {
		return nil
	}
	it := itinerary.Itinerary{
		SubjectId: subjectId,
		Slots:     make([]itinerary.Slot, 0, width),
	}
	for i := 1; i <= width; i++ {
		location := strings.TrimSpace(parser.getString(locationColumn(i), true))
		if len(location) == 0 {
			continue
		}
		it.Slots = append(it.Slots, itinerary.Slot{
			Location:  location,
			EnterTime: parser.getTimestampPointer(enterTimeColumn(i)),
			ExitTime:  parser.getTimestampPointer(exitTimeColumn(i)),
			Duration:  parser.getLenientFloat64Pointer(durationColumn(i)),
		})
	}
	return &it
}

// readGroupedLocationsTable reads the location groups and counts from a grouped unique locations table
func readGroupedLocationsTable(r io.Reader, filename string) ([]*itinerary.GroupedTripSummary, error) {
	parser, err := makeTableFileParser(r, filename)
	if err != nil {
		return nil, err
	}
	results := make([]*itinerary.GroupedTripSummary, 0)
	for {
		err = parser.nextLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		group := itinerary.GroupedTripSummary{
			Count: parser.getInt(countColumn, false),
		}
		locations := parser.getString(uniqueLocationsColumn, false)
		if err = decodeList(locations, &group.Locations); err != nil {
			parser.errors = append(parser.errors, csvError(uniqueLocationsColumn, err))
		}
		if err = parser.getError(); err != nil {
			return nil, err
		}
		results = append(results, &group)
	}
	return results, nil
}
