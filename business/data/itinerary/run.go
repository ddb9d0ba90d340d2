package itinerary

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/OpenTransitTools/shuttletrack/foundation/database"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const batchedRowCount = 250

// Run is a single execution of the pipeline over a log.
// Each recorded itinerary slot and trip summary shares the Run.Id value.
type Run struct {
	Id          string     `db:"id" json:"id"`
	LogSource   string     `db:"log_source" json:"log_source"`
	MinDuration float64    `db:"min_duration" json:"min_duration"`
	StartedAt   time.Time  `db:"started_at" json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at"`
}

func (r Run) String() string {
	completed := ""
	if r.CompletedAt != nil {
		completed = r.CompletedAt.Format(time.RFC3339)
	}
	return fmt.Sprintf("Run Id:%s, log:%s, minDuration:%v, started:%s completed:%s",
		r.Id, r.LogSource, r.MinDuration, r.StartedAt.Format(time.RFC3339), completed)
}

// NewRun creates a Run with a new id
func NewRun(logSource string, minDuration float64, startedAt time.Time) Run {
	return Run{
		Id:          uuid.NewString(),
		LogSource:   logSource,
		MinDuration: minDuration,
		StartedAt:   startedAt.UTC(),
	}
}

// RunTransaction contains required data for recording records owned by a Run
type RunTransaction struct {
	Run Run
	Tx  *sqlx.Tx
}

// SaveRun inserts run
func SaveRun(tx *sqlx.Tx, run *Run) error {
	statementString := "insert into pipeline_run ( " +
		"id, " +
		"log_source, " +
		"min_duration, " +
		"started_at, " +
		"completed_at) " +
		"values (" +
		":id, " +
		":log_source, " +
		":min_duration, " +
		":started_at, " +
		":completed_at)"
	_, err := tx.NamedExec(statementString, run)
	return err
}

// CompleteRun marks run as completed at completedAt
func CompleteRun(tx *sqlx.Tx, run *Run, completedAt time.Time) error {
	completedAt = completedAt.UTC()
	run.CompletedAt = &completedAt
	_, err := tx.NamedExec("update pipeline_run set completed_at = :completed_at where id = :id", run)
	return err
}

// GetRun retrieves Run with runId
func GetRun(db *sqlx.DB, runId string) (*Run, error) {
	query := "select * from pipeline_run where id = ?"
	run := Run{}
	err := db.Get(&run, db.Rebind(query), runId)
	return &run, err
}

// GetLatestRun retrieves the most recently started completed Run
func GetLatestRun(db *sqlx.DB) (*Run, error) {
	query := "select * from pipeline_run where completed_at is not null order by started_at desc limit 1"
	run := Run{}
	err := db.Get(&run, query)
	return &run, err
}

// GetAllRuns retrieves all recorded Runs, newest first
func GetAllRuns(db *sqlx.DB) ([]Run, error) {
	query := "select * from pipeline_run order by started_at desc"
	var results []Run
	err := db.Select(&results, query)
	return results, err
}

// itinerarySlotRow is the database layout of one Slot
type itinerarySlotRow struct {
	RunId     string   `db:"run_id"`
	TableName string   `db:"table_name"`
	SubjectId string   `db:"subject_id"`
	SlotIndex int      `db:"slot_index"`
	Location  string   `db:"location"`
	EnterTime *string  `db:"enter_time"`
	ExitTime  *string  `db:"exit_time"`
	Duration  *float64 `db:"duration"`
}

// RecordItineraries saves the slots of itineraries under tableName in batches
func RecordItineraries(runTx *RunTransaction, tableName string, itineraries []*Itinerary) error {
	statementString := "insert into itinerary_slot ( " +
		"run_id, " +
		"table_name, " +
		"subject_id, " +
		"slot_index, " +
		"location, " +
		"enter_time, " +
		"exit_time, " +
		"duration) " +
		"values (" +
		":run_id, " +
		":table_name, " +
		":subject_id, " +
		":slot_index, " +
		":location, " +
		":enter_time, " +
		":exit_time, " +
		":duration)"
	batch := make([]itinerarySlotRow, 0, batchedRowCount)
	for _, it := range itineraries {
		for i, slot := range it.Slots {
			batch = append(batch, itinerarySlotRow{
				RunId:     runTx.Run.Id,
				TableName: tableName,
				SubjectId: it.SubjectId,
				SlotIndex: i + 1,
				Location:  slot.Location,
				EnterTime: formatTimestampPointer(slot.EnterTime),
				ExitTime:  formatTimestampPointer(slot.ExitTime),
				Duration:  slot.Duration,
			})
			if len(batch) == batchedRowCount {
				if _, err := runTx.Tx.NamedExec(statementString, batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
	}
	if len(batch) == 0 {
		return nil
	}
	_, err := runTx.Tx.NamedExec(statementString, batch)
	return err
}

// tripSummaryRow is the database layout of a TripSummary
type tripSummaryRow struct {
	RunId           string   `db:"run_id"`
	TableName       string   `db:"table_name"`
	SubjectId       string   `db:"subject_id"`
	TripOrder       string   `db:"trip_order"`
	UniqueLocations string   `db:"unique_locations"`
	TotalDuration   float64  `db:"total_duration"`
	StartTime       *string  `db:"start_time"`
	EndTime         *string  `db:"end_time"`
	SpanMinutes     *float64 `db:"span_minutes"`
	DayType         string   `db:"day_type"`
}

// RecordTripSummaries saves summaries under tableName in batches
func RecordTripSummaries(runTx *RunTransaction, tableName string, summaries []TripSummary) error {
	statementString := "insert into trip_summary ( " +
		"run_id, " +
		"table_name, " +
		"subject_id, " +
		"trip_order, " +
		"unique_locations, " +
		"total_duration, " +
		"start_time, " +
		"end_time, " +
		"span_minutes, " +
		"day_type) " +
		"values (" +
		":run_id, " +
		":table_name, " +
		":subject_id, " +
		":trip_order, " +
		":unique_locations, " +
		":total_duration, " +
		":start_time, " +
		":end_time, " +
		":span_minutes, " +
		":day_type)"
	batch := make([]tripSummaryRow, 0, batchedRowCount)
	for _, summary := range summaries {
		tripOrder, err := json.Marshal(summary.TripOrder)
		if err != nil {
			return err
		}
		uniqueLocations, err := json.Marshal(summary.UniqueLocations)
		if err != nil {
			return err
		}
		batch = append(batch, tripSummaryRow{
			RunId:           runTx.Run.Id,
			TableName:       tableName,
			SubjectId:       summary.SubjectId,
			TripOrder:       string(tripOrder),
			UniqueLocations: string(uniqueLocations),
			TotalDuration:   summary.TotalDuration,
			StartTime:       formatTimestampPointer(summary.StartTime),
			EndTime:         formatTimestampPointer(summary.EndTime),
			SpanMinutes:     summary.SpanMinutes,
			DayType:         summary.DayType,
		})
		if len(batch) == batchedRowCount {
			if _, err = runTx.Tx.NamedExec(statementString, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) == 0 {
		return nil
	}
	_, err := runTx.Tx.NamedExec(statementString, batch)
	return err
}

// GetTripSummaryTableNames retrieves the names of the tables recorded with runId
func GetTripSummaryTableNames(db *sqlx.DB, runId string) ([]string, error) {
	query := "select distinct table_name from trip_summary where run_id = ? order by table_name"
	var results []string
	err := db.Select(&results, db.Rebind(query), runId)
	return results, err
}

// GetTripSummaries retrieves the TripSummaries recorded with runId in any of tableNames, ordered by subject id
func GetTripSummaries(db *sqlx.DB, runId string, tableNames []string) ([]TripSummary, error) {
	if len(tableNames) == 0 {
		return nil, nil
	}
	statementString := "select * from trip_summary where run_id = :run_id and table_name in (:table_names) " +
		"order by table_name, subject_id"
	rows, err := database.PrepareNamedQueryRowsFromMap(statementString, db, map[string]interface{}{
		"run_id":      runId,
		"table_names": tableNames,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()
	results := make([]TripSummary, 0)
	for rows.Next() {
		row := tripSummaryRow{}
		if err = rows.StructScan(&row); err != nil {
			return nil, err
		}
		summary, err := row.tripSummary()
		if err != nil {
			return nil, err
		}
		results = append(results, summary)
	}
	return results, rows.Err()
}

func (r *tripSummaryRow) tripSummary() (TripSummary, error) {
	summary := TripSummary{
		SubjectId:     r.SubjectId,
		TotalDuration: r.TotalDuration,
		SpanMinutes:   r.SpanMinutes,
		DayType:       r.DayType,
	}
	if err := json.Unmarshal([]byte(r.TripOrder), &summary.TripOrder); err != nil {
		return summary, fmt.Errorf("decoding trip_order of subject %s: %w", r.SubjectId, err)
	}
	if err := json.Unmarshal([]byte(r.UniqueLocations), &summary.UniqueLocations); err != nil {
		return summary, fmt.Errorf("decoding unique_locations of subject %s: %w", r.SubjectId, err)
	}
	if r.StartTime != nil {
		summary.StartTime = ParseTimestampPointer(*r.StartTime)
	}
	if r.EndTime != nil {
		summary.EndTime = ParseTimestampPointer(*r.EndTime)
	}
	return summary, nil
}

func formatTimestampPointer(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.Format(TimestampLayout)
	return &formatted
}
