package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/OpenTransitTools/shuttletrack/business/data/itinerary"
)

const (
	subjectMarker = "Processing group_id"
	enteredMarker = "entered polygon"
	exitedMarker  = "exited polygon"
)

// noiseMarkers identify lines that are never part of a visit
var noiseMarkers = []string{
	"Processing shuttle stop polygons",
	"Tracker reached the end of data.",
}

var (
	subjectIdPattern = regexp.MustCompile(`\d+`)
	locationPattern  = regexp.MustCompile(`polygon '(.*?)'`)
	timestampPattern = regexp.MustCompile(`at (.*?) \(`)
)

// parserState is the state of the log parser between lines
type parserState int

const (
	idle parserState = iota
	awaitingExit
)

// pendingVisit is an entered polygon waiting for its exit
type pendingVisit struct {
	subjectId string
	location  string
	enterTime string
	line      int
}

// ParseResult holds the visits found in a log along with diagnostics about what was left out
type ParseResult struct {
	Records []itinerary.VisitRecord
	// FullySkippedIds are subjects whose every visit was shorter than the minimum duration
	FullySkippedIds []string
	// UnmatchedEnters counts entered polygon lines replaced by another entry before an exit was seen
	UnmatchedEnters int
	// MalformedVisits counts visits dropped because a timestamp couldn't be parsed
	MalformedVisits int
	Lines           int
}

// logParser reads tracker logs line by line. A visit is opened on an entered polygon line and emitted on the
// following exited polygon line.
type logParser struct {
	log          *log.Logger
	minDuration  float64
	subjects     *itinerary.SubjectFilter
	currentId    string
	state        parserState
	pending      pendingVisit
	skippedShort map[string]bool
	emitted      map[string]bool
	result       ParseResult
}

func newLogParser(log *log.Logger, minDuration float64, subjects *itinerary.SubjectFilter) *logParser {
	return &logParser{
		log:          log,
		minDuration:  minDuration,
		subjects:     subjects,
		skippedShort: make(map[string]bool),
		emitted:      make(map[string]bool),
	}
}

// ParseLog reads the tracker log in r and returns the visits that lasted at least minDuration seconds for
// subjects permitted by subjects. Only read errors are returned, lines that can't be understood are skipped.
func ParseLog(log *log.Logger, r io.Reader, minDuration float64, subjects *itinerary.SubjectFilter) (*ParseResult, error) {
	parser := newLogParser(log, minDuration, subjects)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		parser.result.Lines++
		parser.readLine(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log at line %d: %w", parser.result.Lines, err)
	}
	return parser.finish(), nil
}

func (p *logParser) readLine(line string) {
	for _, marker := range noiseMarkers {
		if strings.Contains(line, marker) {
			return
		}
	}
	switch {
	case strings.Contains(line, subjectMarker):
		p.startSubject(line)
	case strings.Contains(line, enteredMarker):
		p.enter(line)
	case strings.Contains(line, exitedMarker):
		p.exit(line)
	}
}

// startSubject changes the current subject to the first number following the marker.
// An open visit of the previous subject is abandoned.
func (p *logParser) startSubject(line string) {
	p.currentId = subjectIdPattern.FindString(line[strings.Index(line, subjectMarker)+len(subjectMarker):])
	if p.state == awaitingExit {
		p.result.UnmatchedEnters++
		p.state = idle
	}
}

func (p *logParser) enter(line string) {
	location, rest, found := findLocation(line)
	if !found {
		return
	}
	enterTime, found := findTimestamp(rest)
	if !found {
		return
	}
	if p.state == awaitingExit {
		// the previous entry never exited, it's replaced
		p.result.UnmatchedEnters++
		p.log.Printf("line %d: entered %s before exiting %s entered on line %d, dropping earlier entry",
			p.result.Lines, location, p.pending.location, p.pending.line)
	}
	p.pending = pendingVisit{
		subjectId: p.currentId,
		location:  location,
		enterTime: enterTime,
		line:      p.result.Lines,
	}
	p.state = awaitingExit
}

func (p *logParser) exit(line string) {
	if p.state != awaitingExit {
		return
	}
	_, rest, found := findLocation(line)
	if !found {
		rest = line
	}
	exitTime, found := findTimestamp(rest)
	if !found {
		return
	}
	visit := p.pending
	p.state = idle

	if len(visit.subjectId) == 0 || !p.subjects.Permits(visit.subjectId) {
		return
	}
	record, err := makeVisitRecord(visit, exitTime)
	if err != nil {
		p.result.MalformedVisits++
		p.log.Printf("line %d: skipping visit of %s to %s: %v", p.result.Lines, visit.subjectId, visit.location, err)
		return
	}
	// an exit before the entry is as short as a visit can be
	if record.Duration < 0 || record.Duration < p.minDuration {
		p.skippedShort[record.SubjectId] = true
		return
	}
	p.emitted[record.SubjectId] = true
	p.result.Records = append(p.result.Records, *record)
}

func (p *logParser) finish() *ParseResult {
	if p.state == awaitingExit {
		p.result.UnmatchedEnters++
		p.state = idle
	}
	fullySkipped := make([]string, 0)
	for subjectId := range p.skippedShort {
		if !p.emitted[subjectId] {
			fullySkipped = append(fullySkipped, subjectId)
		}
	}
	sort.Strings(fullySkipped)
	p.result.FullySkippedIds = fullySkipped
	return &p.result
}

func makeVisitRecord(visit pendingVisit, exitTimeString string) (*itinerary.VisitRecord, error) {
	enterTime, err := itinerary.ParseTimestamp(visit.enterTime)
	if err != nil {
		return nil, fmt.Errorf("enter time: %w", err)
	}
	exitTime, err := itinerary.ParseTimestamp(exitTimeString)
	if err != nil {
		return nil, fmt.Errorf("exit time: %w", err)
	}
	return &itinerary.VisitRecord{
		SubjectId: visit.subjectId,
		Location:  visit.location,
		EnterTime: enterTime,
		ExitTime:  exitTime,
		Duration:  exitTime.Sub(enterTime).Seconds(),
	}, nil
}

// findLocation returns the quoted polygon name in line and the remainder of the line following it
func findLocation(line string) (string, string, bool) {
	match := locationPattern.FindStringSubmatchIndex(line)
	if match == nil {
		return "", "", false
	}
	return line[match[2]:match[3]], line[match[1]:], true
}

// findTimestamp returns the timestamp text between "at " and " ("
func findTimestamp(text string) (string, bool) {
	match := timestampPattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[1], true
}
