package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/OpenTransitTools/shuttletrack/business/data/itinerary"
)

const (
	idColumn              = "id"
	subjectIdColumn       = "ID"
	subjectIdsColumn      = "IDs"
	tripOrderColumn       = "Trip_Order"
	uniqueLocationsColumn = "Unique_Locations"
	countColumn           = "Count"
	numberOfLocations     = "Number_Of_Locations"
)

// statisticColumns follow the key column in trip summary tables
var statisticColumns = []string{
	"Total_Duration_POI",
	"Trip_Start_Time",
	"Trip_End_Time",
	"Total_Trip_Duration",
	"Trip_Day_Type",
}

func locationColumn(i int) string  { return fmt.Sprintf("location_%d", i) }
func enterTimeColumn(i int) string { return fmt.Sprintf("enter_time_%d", i) }
func exitTimeColumn(i int) string  { return fmt.Sprintf("exit_time_%d", i) }
func durationColumn(i int) string  { return fmt.Sprintf("duration_%d", i) }

// writeItineraryTable writes one row per itinerary with width slot column groups, padding with blank slots.
// When spreadsheetSafeIds is set ids are prefixed with an apostrophe so spreadsheets keep leading zeros.
func writeItineraryTable(w io.Writer, itineraries []*itinerary.Itinerary, width int, spreadsheetSafeIds bool) error {
	if maxWidth := itinerary.MaxWidth(itineraries); maxWidth > width {
		width = maxWidth
	}
	csvWriter := csv.NewWriter(w)
	headers := make([]string, 0, 1+width*4)
	headers = append(headers, idColumn)
	for i := 1; i <= width; i++ {
		headers = append(headers, locationColumn(i), enterTimeColumn(i), exitTimeColumn(i), durationColumn(i))
	}
	if err := csvWriter.Write(headers); err != nil {
		return err
	}
	for _, it := range itineraries {
		record := make([]string, len(headers))
		record[0] = it.SubjectId
		if spreadsheetSafeIds {
			record[0] = "'" + it.SubjectId
		}
		for i, slot := range it.Slots {
			column := 1 + i*4
			record[column] = slot.Location
			record[column+1] = itinerary.FormatTimestamp(slot.EnterTime)
			record[column+2] = itinerary.FormatTimestamp(slot.ExitTime)
			record[column+3] = formatFloatPointer(slot.Duration)
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// writeTripSummaryTable writes one row per subject, keyColumn selects between the trip order and the unique
// locations of the subject
func writeTripSummaryTable(w io.Writer, summaries []itinerary.TripSummary, keyColumn string) error {
	csvWriter := csv.NewWriter(w)
	headers := append([]string{subjectIdColumn, keyColumn}, statisticColumns...)
	if err := csvWriter.Write(headers); err != nil {
		return err
	}
	for _, summary := range summaries {
		locations := summary.TripOrder
		if keyColumn == uniqueLocationsColumn {
			locations = summary.UniqueLocations
		}
		key, err := encodeList(locations)
		if err != nil {
			return err
		}
		record := []string{
			summary.SubjectId,
			key,
			formatFloat(summary.TotalDuration),
			itinerary.FormatTimestamp(summary.StartTime),
			itinerary.FormatTimestamp(summary.EndTime),
			formatFloatPointer(summary.SpanMinutes),
			summary.DayType,
		}
		if err = csvWriter.Write(record); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// writeGroupedTripSummaryTable writes one row per group, lists of member statistics are written as json arrays
func writeGroupedTripSummaryTable(w io.Writer, groups []*itinerary.GroupedTripSummary, keyColumn string) error {
	csvWriter := csv.NewWriter(w)
	headers := append([]string{keyColumn, subjectIdsColumn, countColumn}, statisticColumns...)
	if err := csvWriter.Write(headers); err != nil {
		return err
	}
	for _, group := range groups {
		columns := [][]interface{}{
			{group.Locations, group.SubjectIds},
			{group.TotalDurations, formatTimestamps(group.StartTimes), formatTimestamps(group.EndTimes),
				group.SpanMinutes, group.DayTypes},
		}
		record := make([]string, 0, len(headers))
		for i, lists := range columns {
			if i == 1 {
				record = append(record, strconv.Itoa(group.Count))
			}
			for _, list := range lists {
				encoded, err := encodeList(list)
				if err != nil {
					return err
				}
				record = append(record, encoded)
			}
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

// writeLocationCountTable writes the number of subjects by number of distinct locations visited
func writeLocationCountTable(w io.Writer, counts []itinerary.LocationCount) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write([]string{numberOfLocations, countColumn}); err != nil {
		return err
	}
	for _, count := range counts {
		err := csvWriter.Write([]string{strconv.Itoa(count.NumberOfLocations), strconv.Itoa(count.Count)})
		if err != nil {
			return err
		}
	}
	csvWriter.Flush()
	return csvWriter.Error()
}

func encodeList(value interface{}) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(value string, list *[]string) error {
	return json.Unmarshal([]byte(value), list)
}

func formatTimestamps(times []*time.Time) []*string {
	results := make([]*string, len(times))
	for i, t := range times {
		if t != nil {
			formatted := itinerary.FormatTimestamp(t)
			results[i] = &formatted
		}
	}
	return results
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatFloatPointer(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}
