package pipeline

import (
	"encoding/json"
	"log"
	"time"

	"github.com/OpenTransitTools/shuttletrack/business/data/itinerary"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

// TableResults holds the itineraries of one pipeline table and their analysis
type TableResults struct {
	Name        string
	Itineraries []*itinerary.Itinerary
	Analysis    *Analysis
}

// ResultsPublisher takes the tables produced by a pipeline run and sends them to their destinations
// (database and/or nats). A nil db or natsConnection disables that destination.
type ResultsPublisher struct {
	log            *log.Logger
	db             *sqlx.DB
	natsConnection *nats.Conn
	subject        string
}

// MakeResultsPublisher creates ResultsPublisher
func MakeResultsPublisher(log *log.Logger,
	db *sqlx.DB,
	natsConnection *nats.Conn,
	subject string) *ResultsPublisher {
	return &ResultsPublisher{
		log:            log,
		db:             db,
		natsConnection: natsConnection,
		subject:        subject,
	}
}

// publish records run and its tables to the database in a single transaction, then sends the analyzed tables
// over nats. Database failures are returned, nats failures are logged.
func (p *ResultsPublisher) publish(run itinerary.Run, tables []TableResults) error {
	if p == nil {
		return nil
	}
	if p.db != nil {
		if err := p.record(run, tables); err != nil {
			return err
		}
	}
	if p.natsConnection != nil {
		p.sendOverNats(run, tables)
	}
	return nil
}

func (p *ResultsPublisher) record(run itinerary.Run, tables []TableResults) error {
	err := transact(p.log, p.db, func(tx *sqlx.Tx) error {
		err := itinerary.SaveRun(tx, &run)
		if err != nil {
			return err
		}
		runTx := itinerary.RunTransaction{
			Run: run,
			Tx:  tx,
		}
		for _, table := range tables {
			err = itinerary.RecordItineraries(&runTx, table.Name, table.Itineraries)
			if err != nil {
				return err
			}
			if table.Analysis == nil {
				continue
			}
			err = itinerary.RecordTripSummaries(&runTx, table.Name, table.Analysis.Summaries)
			if err != nil {
				return err
			}
		}
		return itinerary.CompleteRun(tx, &run, time.Now())
	})
	if err != nil {
		return err
	}
	p.log.Printf("Recorded %v with %d tables", run, len(tables))
	return nil
}

func (p *ResultsPublisher) sendOverNats(run itinerary.Run, tables []TableResults) {
	for _, table := range tables {
		if table.Analysis == nil {
			continue
		}
		jsonData, err := json.Marshal(itinerary.PublishedTripSummaries{
			RunId:             run.Id,
			Table:             table.Name,
			PublishedAt:       time.Now(),
			Summaries:         table.Analysis.Summaries,
			ByTripOrder:       table.Analysis.ByTripOrder,
			ByUniqueLocations: table.Analysis.ByUniqueLocations,
		})
		if err != nil {
			p.log.Printf("failed to marshal trip summaries of table %s, error:%v", table.Name, err)
			continue
		}
		err = p.natsConnection.Publish(p.subject, jsonData)
		if err != nil {
			p.log.Printf("failed to send trip summaries of table %s over nats, error:%v", table.Name, err)
		}
	}
}

/*
transact starts a Transaction on sqlx.DB, calls txFunc and commits or rolls back the transaction depending on the
return code of the txFunc result
*/
func transact(log *log.Logger, db *sqlx.DB, txFunc func(*sqlx.Tx) error) (err error) {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback() // err is non-nil; don't change it
			if rollbackErr != nil {
				log.Printf("Received error while attempting to rollback transaction. error:%v", rollbackErr)
			}
			return
		}
		err = tx.Commit() // err is nil; if Commit returns error update err
	}()
	err = txFunc(tx)
	return err
}
