package itinerary

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements create the tables used to record runs. Column types are understood by both postgres and sqlite.
var schemaStatements = []struct {
	name  string
	query string
}{
	{
		name: "pipeline_run",
		query: "create table if not exists pipeline_run (" +
			"id varchar(36) primary key, " +
			"log_source text not null, " +
			"min_duration double precision not null, " +
			"started_at timestamp not null, " +
			"completed_at timestamp null)",
	},
	{
		name: "itinerary_slot",
		query: "create table if not exists itinerary_slot (" +
			"run_id varchar(36) not null references pipeline_run(id), " +
			"table_name text not null, " +
			"subject_id text not null, " +
			"slot_index integer not null, " +
			"location text not null, " +
			"enter_time text null, " +
			"exit_time text null, " +
			"duration double precision null, " +
			"primary key (run_id, table_name, subject_id, slot_index))",
	},
	{
		name: "trip_summary",
		query: "create table if not exists trip_summary (" +
			"run_id varchar(36) not null references pipeline_run(id), " +
			"table_name text not null, " +
			"subject_id text not null, " +
			"trip_order text not null, " +
			"unique_locations text not null, " +
			"total_duration double precision not null, " +
			"start_time text null, " +
			"end_time text null, " +
			"span_minutes double precision null, " +
			"day_type text not null, " +
			"primary key (run_id, table_name, subject_id))",
	},
}

// CreateSchema creates any missing run tables
func CreateSchema(db *sqlx.DB) error {
	for _, statement := range schemaStatements {
		if _, err := db.Exec(statement.query); err != nil {
			return fmt.Errorf("creating table %s: %w", statement.name, err)
		}
	}
	return nil
}
