// Package summarysvc serves recorded pipeline runs and published trip summaries over http.
package summarysvc

import (
	logger "log"
	"os"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

// StartServices brings up the web service and, when natsConn is not nil, the trip summary listener and its
// expiration loop. Returns on shutdown signal once every service has stopped.
func StartServices(log *logger.Logger,
	db *sqlx.DB,
	httpPort int,
	natsConn *nats.Conn,
	summarySubject string,
	expireSummarySeconds int,
	shutdownSignal chan os.Signal) {

	wg := sync.WaitGroup{}
	var shutdownChannels []chan bool
	makeShutdown := func() chan bool {
		ch := make(chan bool, 1)
		shutdownChannels = append(shutdownChannels, ch)
		wg.Add(1)
		return ch
	}

	var collection *summaryCollection
	if natsConn != nil {
		collection = makeSummaryCollection()
		go runSummaryListener(log, &wg, natsConn, collection, summarySubject, makeShutdown())
		go runExpirationLoop(log, &wg, collection, expireSummarySeconds, makeShutdown())
	}
	go runWebService(log, &wg, db, collection, httpPort, makeShutdown())

	<-shutdownSignal
	log.Printf("Exiting on shutdown signal, shutting down subroutines")
	for _, ch := range shutdownChannels {
		ch <- true
	}
	wg.Wait()
	log.Printf("Subroutines shut down, exiting trip summary service")
}

// runExpirationLoop periodically removes old published summaries from collection
func runExpirationLoop(log *logger.Logger,
	wg *sync.WaitGroup,
	collection *summaryCollection,
	expireSummarySeconds int,
	shutdownSignal chan bool) {
	defer wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-shutdownSignal:
			log.Printf("Exiting expiration loop on shutdown signal")
			return
		case now := <-ticker.C:
			removed, currentSize := collection.expire(now, expireSummarySeconds)
			if removed > 0 {
				log.Printf("Trip summary collection has %d tables. Removed %d old tables", currentSize, removed)
			}
		}
	}
}
