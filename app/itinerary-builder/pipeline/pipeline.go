// Package pipeline turns tracker logs into itinerary and trip summary tables.
// Each stage reads its whole input before writing its output, stages can be run one at a time from files
// or all together with Run.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/OpenTransitTools/shuttletrack/business/data/itinerary"
	"github.com/OpenTransitTools/shuttletrack/foundation/httpclient"
)

// ErrMissingInput is returned when a stage's input file doesn't exist. No output is written.
var ErrMissingInput = errors.New("missing input")

const (
	formattedLogTable        = "formatted_log_data"
	formattedLogCleanedTable = "formatted_log_dataCleaned"
	groupedLogTable          = "grouped_Log_data"
	groupedLogCleanedTable   = "grouped_Log_dataCleaned"
	areaDirectory            = "areas"

	fullTripsSuffix    = "FullTrips"
	groupedTripsSuffix = "GroupedTrips"
)

// Options holds the thresholds and output choices of a pipeline run
type Options struct {
	// MinDuration is the shortest visit in seconds kept by the log parser
	MinDuration float64
	// ItineraryMinDuration is the shortest visit in seconds kept when building itineraries
	ItineraryMinDuration float64
	// SpreadsheetSafeIds prefixes written ids with an apostrophe
	SpreadsheetSafeIds bool
}

// Analysis contains the trip summaries of an itinerary table
type Analysis struct {
	Summaries         []itinerary.TripSummary
	ByTripOrder       []*itinerary.GroupedTripSummary
	ByUniqueLocations []*itinerary.GroupedTripSummary
	LocationCounts    []itinerary.LocationCount
}

// Analyze summarizes each itinerary and groups the summaries by trip order and by unique locations
func Analyze(itineraries []*itinerary.Itinerary, calendar *itinerary.DayTypeCalendar) *Analysis {
	summaries := itinerary.SummarizeAll(itineraries, calendar)
	byUniqueLocations := itinerary.GroupByUniqueLocations(summaries)
	return &Analysis{
		Summaries:         summaries,
		ByTripOrder:       itinerary.GroupByTripOrder(summaries),
		ByUniqueLocations: byUniqueLocations,
		LocationCounts:    itinerary.CountByNumberOfLocations(byUniqueLocations),
	}
}

// ParseLogFile parses the tracker log at logPath, builds itineraries from its visits and writes them to outPath
func ParseLogFile(log *log.Logger,
	study *itinerary.Study,
	options Options,
	logPath string,
	outPath string) ([]*itinerary.Itinerary, error) {

	if err := checkInput(logPath); err != nil {
		return nil, err
	}
	file, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("opening log %s: %w", logPath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	result, err := ParseLog(log, file, options.MinDuration, study.Subjects)
	if err != nil {
		return nil, fmt.Errorf("parsing log %s: %w", logPath, err)
	}
	logParseResult(log, logPath, result)

	itineraries := itinerary.BuildItineraries(result.Records, options.ItineraryMinDuration)
	err = writeItineraryFile(outPath, itineraries, 0, options)
	if err != nil {
		return nil, err
	}
	log.Printf("Wrote %d itineraries to %s", len(itineraries), outPath)
	return itineraries, nil
}

func logParseResult(log *log.Logger, source string, result *ParseResult) {
	log.Printf("Read %d lines from %s, found %d visits", result.Lines, source, len(result.Records))
	if len(result.FullySkippedIds) > 0 {
		log.Printf("Every visit was shorter than the minimum duration for ids: %s",
			strings.Join(result.FullySkippedIds, ", "))
	}
	if result.UnmatchedEnters > 0 {
		log.Printf("%d entered polygon lines had no matching exit", result.UnmatchedEnters)
	}
	if result.MalformedVisits > 0 {
		log.Printf("%d visits had unreadable timestamps", result.MalformedVisits)
	}
}

// CleanItineraryFile fuses the itineraries in inPath and writes them to outPath
func CleanItineraryFile(log *log.Logger,
	study *itinerary.Study,
	options Options,
	inPath string,
	outPath string) ([]*itinerary.Itinerary, error) {

	itineraries, width, err := readItineraryFile(log, inPath)
	if err != nil {
		return nil, err
	}
	fused := itinerary.NewFuser(study.InvalidLocations).FuseAll(itineraries)
	if err = writeItineraryFile(outPath, fused, width, options); err != nil {
		return nil, err
	}
	log.Printf("Cleaned %d itineraries from %s into %s", len(fused), inPath, outPath)
	return fused, nil
}

// MapAreasFile replaces the locations of the itineraries in inPath by their area and writes them to outPath
func MapAreasFile(log *log.Logger,
	study *itinerary.Study,
	options Options,
	inPath string,
	outPath string) ([]*itinerary.Itinerary, error) {

	itineraries, width, err := readItineraryFile(log, inPath)
	if err != nil {
		return nil, err
	}
	mapped := study.Areas.MapAll(itineraries)
	if err = writeItineraryFile(outPath, mapped, width, options); err != nil {
		return nil, err
	}
	log.Printf("Mapped %d itineraries from %s to areas in %s", len(mapped), inPath, outPath)
	return mapped, nil
}

// SplitByAreaFiles writes one itinerary file per area to outDir holding only the visits made inside the area
func SplitByAreaFiles(log *log.Logger,
	study *itinerary.Study,
	options Options,
	inPath string,
	outDir string) ([]itinerary.AreaItineraries, error) {

	itineraries, _, err := readItineraryFile(log, inPath)
	if err != nil {
		return nil, err
	}
	splits := study.Areas.SplitByArea(itineraries)
	for _, split := range splits {
		outPath := tablePath(outDir, safeFileName(split.Area))
		if err = writeItineraryFile(outPath, split.Itineraries, 0, options); err != nil {
			return nil, err
		}
		log.Printf("Wrote %d itineraries visiting %s to %s", len(split.Itineraries), split.Area, outPath)
	}
	return splits, nil
}

// AnalyzeItineraryFile writes the individual and grouped trip summary tables of the itineraries in inPath to outDir,
// suffix is appended to each table name
func AnalyzeItineraryFile(log *log.Logger,
	calendar *itinerary.DayTypeCalendar,
	inPath string,
	outDir string,
	suffix string) (*Analysis, error) {

	itineraries, _, err := readItineraryFile(log, inPath)
	if err != nil {
		return nil, err
	}
	analysis := Analyze(itineraries, calendar)
	if err = writeAnalysisFiles(outDir, suffix, analysis); err != nil {
		return nil, err
	}
	log.Printf("Analyzed %d itineraries from %s into %d trip orders and %d location sets",
		len(itineraries), inPath, len(analysis.ByTripOrder), len(analysis.ByUniqueLocations))
	return analysis, nil
}

// CountLocationsFile reads a grouped unique locations table from inPath and writes the number of subjects by
// number of locations visited to outPath
func CountLocationsFile(log *log.Logger, inPath string, outPath string) ([]itinerary.LocationCount, error) {
	if err := checkInput(inPath); err != nil {
		return nil, err
	}
	file, err := os.Open(inPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", inPath, err)
	}
	defer func() {
		_ = file.Close()
	}()
	groups, err := readGroupedLocationsTable(file, inPath)
	if err != nil {
		return nil, err
	}
	counts := itinerary.CountByNumberOfLocations(groups)
	err = writeTableFile(outPath, func(w io.Writer) error {
		return writeLocationCountTable(w, counts)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Counted %d location set sizes from %s into %s", len(counts), inPath, outPath)
	return counts, nil
}

// FetchLog downloads the log at url into dir and returns its local path
func FetchLog(log *log.Logger, url string, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	destination := filepath.Join(dir, fmt.Sprintf("tracker_log_%d.log", time.Now().Unix()))
	downloaded, err := httpclient.DownloadRemoteFile(destination, url)
	if err != nil {
		return "", fmt.Errorf("downloading log from %s: %w", url, err)
	}
	log.Printf("Downloaded %d bytes from %s to %s", downloaded.Size, url, downloaded.LocalFilePath)
	return downloaded.LocalFilePath, nil
}

// Run parses the log at logPath and writes every itinerary and analysis table to outDir:
// per area itineraries, full trips and area level trips. The results are handed to publisher when it's not nil.
func Run(log *log.Logger,
	study *itinerary.Study,
	calendar *itinerary.DayTypeCalendar,
	options Options,
	publisher *ResultsPublisher,
	logPath string,
	outDir string) (*itinerary.Run, error) {

	run := itinerary.NewRun(logPath, options.MinDuration, time.Now())
	log.Printf("Starting %v", run)

	formatted, err := ParseLogFile(log, study, options, logPath, tablePath(outDir, formattedLogTable))
	if err != nil {
		return nil, err
	}
	width := itinerary.MaxWidth(formatted)
	fuser := itinerary.NewFuser(study.InvalidLocations)
	tables := []TableResults{{Name: formattedLogTable, Itineraries: formatted}}

	for _, split := range study.Areas.SplitByArea(formatted) {
		area := safeFileName(split.Area)
		splitPath := tablePath(filepath.Join(outDir, areaDirectory), area)
		if err = writeItineraryFile(splitPath, split.Itineraries, 0, options); err != nil {
			return nil, err
		}
		var results *TableResults
		results, err = writeAndAnalyze(calendar, options, outDir, groupedLogTable+"_"+area, "_"+area,
			fuser.FuseAll(split.Itineraries), itinerary.MaxWidth(split.Itineraries))
		if err != nil {
			return nil, err
		}
		tables = append(tables, *results)
	}

	mapped := study.Areas.MapAll(formatted)
	if err = writeItineraryFile(tablePath(outDir, groupedLogTable), mapped, width, options); err != nil {
		return nil, err
	}
	tables = append(tables, TableResults{Name: groupedLogTable, Itineraries: mapped})

	fullTrips, err := writeAndAnalyze(calendar, options, outDir, formattedLogCleanedTable, fullTripsSuffix,
		fuser.FuseAll(formatted), width)
	if err != nil {
		return nil, err
	}
	groupedTrips, err := writeAndAnalyze(calendar, options, outDir, groupedLogCleanedTable, groupedTripsSuffix,
		fuser.FuseAll(mapped), width)
	if err != nil {
		return nil, err
	}
	tables = append(tables, *fullTrips, *groupedTrips)
	log.Printf("Wrote %d tables to %s", len(tables), outDir)

	if err = publisher.publish(run, tables); err != nil {
		return nil, fmt.Errorf("recording %v: %w", run, err)
	}
	return &run, nil
}

// writeAndAnalyze writes fused itineraries as table name, then analyzes and writes their summaries with suffix
func writeAndAnalyze(calendar *itinerary.DayTypeCalendar,
	options Options,
	outDir string,
	name string,
	suffix string,
	fused []*itinerary.Itinerary,
	width int) (*TableResults, error) {

	if err := writeItineraryFile(tablePath(outDir, name), fused, width, options); err != nil {
		return nil, err
	}
	analysis := Analyze(fused, calendar)
	if err := writeAnalysisFiles(outDir, suffix, analysis); err != nil {
		return nil, err
	}
	return &TableResults{Name: name, Itineraries: fused, Analysis: analysis}, nil
}

func writeAnalysisFiles(outDir string, suffix string, analysis *Analysis) error {
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{"individual_order_trips_with_times", func(w io.Writer) error {
			return writeTripSummaryTable(w, analysis.Summaries, tripOrderColumn)
		}},
		{"individual_unique_trips_with_time", func(w io.Writer) error {
			return writeTripSummaryTable(w, analysis.Summaries, uniqueLocationsColumn)
		}},
		{"grouped_order_trips_with_times", func(w io.Writer) error {
			return writeGroupedTripSummaryTable(w, analysis.ByTripOrder, tripOrderColumn)
		}},
		{"grouped_unique_trips_with_times", func(w io.Writer) error {
			return writeGroupedTripSummaryTable(w, analysis.ByUniqueLocations, uniqueLocationsColumn)
		}},
		{"location_counts", func(w io.Writer) error {
			return writeLocationCountTable(w, analysis.LocationCounts)
		}},
	}
	for _, file := range files {
		if err := writeTableFile(tablePath(outDir, file.name+suffix), file.write); err != nil {
			return err
		}
	}
	return nil
}

// checkInput returns an error wrapping ErrMissingInput if path doesn't exist
func checkInput(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrMissingInput, path)
	}
	return err
}

func readItineraryFile(log *log.Logger, path string) ([]*itinerary.Itinerary, int, error) {
	if err := checkInput(path); err != nil {
		return nil, 0, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()
	return readItineraryTable(log, file, path)
}

func writeItineraryFile(path string, itineraries []*itinerary.Itinerary, width int, options Options) error {
	return writeTableFile(path, func(w io.Writer) error {
		return writeItineraryTable(w, itineraries, width, options.SpreadsheetSafeIds)
	})
}

// writeTableFile creates the file at path, along with its directory, and passes it to write
func writeTableFile(path string, write func(io.Writer) error) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := file.Close()
		if err == nil {
			err = closeErr
		}
	}()
	if err = write(file); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func tablePath(outDir string, name string) string {
	return filepath.Join(outDir, name+".csv")
}

// safeFileName replaces path separators in name
func safeFileName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(name)
}
