package pipeline

import (
	"bytes"
	"log"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/OpenTransitTools/shuttletrack/business/data/itinerary"
	"github.com/matryer/is"
)

const testMinDuration = 120

func makeTestLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "TEST : ", 0)
}

const testTrackerLog = `2024-07-10 08:00:00 [INFO] Processing shuttle stop polygons
2024-07-10 08:00:01 [INFO] Processing group_id 007 with 12 points
2024-07-10 08:00:02 [INFO] Tracker 007 entered polygon 'Apgar_village' at 2024-07-10 10:00:00 (lat 48.5, lon -113.9)
2024-07-10 08:00:03 [INFO] Tracker 007 exited polygon 'Apgar_village' at 2024-07-10 10:01:30 (lat 48.5, lon -113.9)
2024-07-10 08:00:04 [INFO] Processing group_id 0042 with 30 points
2024-07-10 08:00:05 [INFO] Tracker 0042 entered polygon 'Apgar_village' at 2024-07-10 10:00:00 (lat 48.5, lon -113.9)
2024-07-10 08:00:06 [INFO] Tracker 0042 exited polygon 'Apgar_village' at 2024-07-10 10:05:00 (lat 48.5, lon -113.9)
2024-07-10 08:00:07 [DEBUG] unrelated tracker chatter
2024-07-10 08:00:08 [INFO] Tracker 0042 entered polygon 'Shuttle_Avalanche' at 2024-07-10 10:30:00 (lat 48.6, lon -113.8)
2024-07-10 08:00:09 [INFO] Tracker 0042 exited polygon 'Shuttle_Avalanche' at 2024-07-10 10:31:00 (lat 48.6, lon -113.8)
2024-07-10 08:00:10 [INFO] Tracker 0042 entered polygon 'Avalanche_trail' at 2024-07-10 10:40:00 (lat 48.6, lon -113.8)
2024-07-10 08:00:11 [INFO] Tracker 0042 exited polygon 'Avalanche_trail' at 2024-07-10 12:40:00 (lat 48.6, lon -113.8)
2024-07-10 08:00:12 [INFO] Tracker reached the end of data.
`

func getTestTime(str string) *time.Time {
	result, err := itinerary.ParseTimestamp(str)
	if err != nil {
		panic(err)
	}
	return &result
}

func makeTestVisit(subjectId string, location string, enter string, exit string) itinerary.VisitRecord {
	enterTime := *getTestTime(enter)
	exitTime := *getTestTime(exit)
	return itinerary.VisitRecord{
		SubjectId: subjectId,
		Location:  location,
		EnterTime: enterTime,
		ExitTime:  exitTime,
		Duration:  exitTime.Sub(enterTime).Seconds(),
	}
}

func TestParseLog(t *testing.T) {
	is := is.New(t)
	result, err := ParseLog(makeTestLogger(), strings.NewReader(testTrackerLog), testMinDuration, nil)
	is.NoErr(err)
	is.Equal(result.Records, []itinerary.VisitRecord{
		makeTestVisit("0042", "Apgar_village", "2024-07-10 10:00:00", "2024-07-10 10:05:00"),
		makeTestVisit("0042", "Avalanche_trail", "2024-07-10 10:40:00", "2024-07-10 12:40:00"),
	})
	is.Equal(result.FullySkippedIds, []string{"007"})
	is.Equal(result.UnmatchedEnters, 0)
	is.Equal(result.MalformedVisits, 0)
	is.Equal(result.Lines, 13)
}

func TestParseLog_edgeCases(t *testing.T) {
	tests := []struct {
		name             string
		log              string
		minDuration      float64
		subjects         *itinerary.SubjectFilter
		want             []itinerary.VisitRecord
		wantFullySkipped []string
		wantUnmatched    int
		wantMalformed    int
	}{
		{
			name: "short visit of sole record",
			log: "Processing group_id 007 ...\n" +
				"entered polygon 'Apgar_village' at 2020-01-01 10:00:00 (x)\n" +
				"exited polygon 'Apgar_village' at 2020-01-01 10:01:30 (x)\n",
			minDuration:      120,
			want:             nil,
			wantFullySkipped: []string{"007"},
		},
		{
			name: "exit without location",
			log: "Processing group_id 007 ...\n" +
				"entered polygon 'Apgar_village' at 2020-01-01 10:00:00 (x)\n" +
				"exited polygon ... at 2020-01-01 10:05:00 (x)\n",
			minDuration: 120,
			want: []itinerary.VisitRecord{
				makeTestVisit("007", "Apgar_village", "2020-01-01 10:00:00", "2020-01-01 10:05:00"),
			},
			wantFullySkipped: []string{},
		},
		{
			name: "short visit with a kept visit is not fully skipped",
			log: "Processing group_id 1\n" +
				"entered polygon 'A' at 2020-01-01 10:00:00 (x)\n" +
				"exited polygon 'A' at 2020-01-01 10:00:30 (x)\n" +
				"entered polygon 'B' at 2020-01-01 10:01:00 (x)\n" +
				"exited polygon 'B' at 2020-01-01 10:11:00 (x)\n",
			minDuration: 120,
			want: []itinerary.VisitRecord{
				makeTestVisit("1", "B", "2020-01-01 10:01:00", "2020-01-01 10:11:00"),
			},
			wantFullySkipped: []string{},
		},
		{
			name: "second enter replaces the pending visit",
			log: "Processing group_id 1\n" +
				"entered polygon 'A' at 2020-01-01 10:00:00 (x)\n" +
				"entered polygon 'B' at 2020-01-01 10:05:00 (x)\n" +
				"exited polygon 'B' at 2020-01-01 10:15:00 (x)\n" +
				"exited polygon 'A' at 2020-01-01 10:20:00 (x)\n",
			want: []itinerary.VisitRecord{
				makeTestVisit("1", "B", "2020-01-01 10:05:00", "2020-01-01 10:15:00"),
			},
			wantFullySkipped: []string{},
			wantUnmatched:    1,
		},
		{
			name: "pending visit dropped on new subject and at end of log",
			log: "Processing group_id 1\n" +
				"entered polygon 'A' at 2020-01-01 10:00:00 (x)\n" +
				"Processing group_id 2\n" +
				"exited polygon 'A' at 2020-01-01 10:20:00 (x)\n" +
				"entered polygon 'C' at 2020-01-01 11:00:00 (x)\n",
			want:             nil,
			wantFullySkipped: []string{},
			wantUnmatched:    2,
		},
		{
			name: "visit before any subject is dropped",
			log: "entered polygon 'A' at 2020-01-01 10:00:00 (x)\n" +
				"exited polygon 'A' at 2020-01-01 10:20:00 (x)\n",
			want:             nil,
			wantFullySkipped: []string{},
		},
		{
			name: "unparseable timestamp drops only that visit",
			log: "Processing group_id 1\n" +
				"entered polygon 'A' at yesterday (x)\n" +
				"exited polygon 'A' at 2020-01-01 10:20:00 (x)\n" +
				"entered polygon 'B' at 2020-01-01 11:00:00 (x)\n" +
				"exited polygon 'B' at 2020-01-01 11:20:00 (x)\n" +
				"entered polygon 'C' at 2020-01-01 12:00:00 (x)\n" +
				"exited polygon 'C' at 2020-01-01 11:59:00 (x)\n",
			want: []itinerary.VisitRecord{
				makeTestVisit("1", "B", "2020-01-01 11:00:00", "2020-01-01 11:20:00"),
			},
			wantFullySkipped: []string{},
			wantMalformed:    1,
		},
		{
			name: "exit before enter is below the minimum duration",
			log: "Processing group_id 1\n" +
				"entered polygon 'A' at 2020-01-01 12:00:00 (x)\n" +
				"exited polygon 'A' at 2020-01-01 11:59:00 (x)\n" +
				"Processing group_id 2\n" +
				"entered polygon 'A' at 2020-01-01 12:00:00 (x)\n" +
				"exited polygon 'A' at 2020-01-01 11:00:00 (x)\n" +
				"entered polygon 'B' at 2020-01-01 13:00:00 (x)\n" +
				"exited polygon 'B' at 2020-01-01 13:10:00 (x)\n",
			want: []itinerary.VisitRecord{
				makeTestVisit("2", "B", "2020-01-01 13:00:00", "2020-01-01 13:10:00"),
			},
			wantFullySkipped: []string{"1"},
		},
		{
			name: "location containing at",
			log: "Processing group_id 1\n" +
				"entered polygon 'Look at this (view)' at 2020-01-01 10:00:00 (x)\n" +
				"exited polygon 'Look at this (view)' at 2020-01-01 10:20:00 (x)\n",
			want: []itinerary.VisitRecord{
				makeTestVisit("1", "Look at this (view)", "2020-01-01 10:00:00", "2020-01-01 10:20:00"),
			},
			wantFullySkipped: []string{},
		},
		{
			name: "subject filter",
			log: "Processing group_id 1\n" +
				"entered polygon 'A' at 2020-01-01 10:00:00 (x)\n" +
				"exited polygon 'A' at 2020-01-01 10:20:00 (x)\n" +
				"Processing group_id 2\n" +
				"entered polygon 'A' at 2020-01-01 10:00:00 (x)\n" +
				"exited polygon 'A' at 2020-01-01 10:20:00 (x)\n" +
				"Processing group_id 3\n" +
				"entered polygon 'A' at 2020-01-01 10:00:00 (x)\n" +
				"exited polygon 'A' at 2020-01-01 10:20:00 (x)\n",
			subjects: itinerary.NewSubjectFilter([]string{"1", "2"}, []string{"2"}),
			want: []itinerary.VisitRecord{
				makeTestVisit("1", "A", "2020-01-01 10:00:00", "2020-01-01 10:20:00"),
			},
			wantFullySkipped: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLog(makeTestLogger(), strings.NewReader(tt.log), tt.minDuration, tt.subjects)
			if err != nil {
				t.Fatalf("ParseLog() error = %v", err)
			}
			if !reflect.DeepEqual(got.Records, tt.want) {
				t.Errorf("ParseLog() records = %v, want %v", got.Records, tt.want)
			}
			if !reflect.DeepEqual(got.FullySkippedIds, tt.wantFullySkipped) {
				t.Errorf("ParseLog() fully skipped = %v, want %v", got.FullySkippedIds, tt.wantFullySkipped)
			}
			if got.UnmatchedEnters != tt.wantUnmatched {
				t.Errorf("ParseLog() unmatched enters = %d, want %d", got.UnmatchedEnters, tt.wantUnmatched)
			}
			if got.MalformedVisits != tt.wantMalformed {
				t.Errorf("ParseLog() malformed visits = %d, want %d", got.MalformedVisits, tt.wantMalformed)
			}
		})
	}
}
