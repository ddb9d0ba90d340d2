package summarysvc

import (
	"encoding/json"
	logger "log"
	"sync"

	"github.com/OpenTransitTools/shuttletrack/business/data/itinerary"
	"github.com/nats-io/nats.go"
)

// runSummaryListener starts NATS subscription on subject for itinerary.PublishedTripSummaries messages.
// Store results in collection. Ends NATS subscription and returns on shutdownSignal
func runSummaryListener(log *logger.Logger,
	wg *sync.WaitGroup,
	natsConn *nats.Conn,
	collection *summaryCollection,
	subject string,
	shutdownSignal chan bool) {
	defer wg.Done()

	ch := make(chan *nats.Msg, 64)
	log.Printf("Subscribing to trip summaries on subject:%s on nats: %v\n", subject, natsConn.Servers())
	sub, err := natsConn.ChanSubscribe(subject, ch)
	if err != nil {
		log.Printf("Unable to establish subscription to nats server: %v\n", err)
		<-shutdownSignal
		return
	}

	for {
		select {
		case msg := <-ch:
			processSummariesFromMsg(log, msg, collection)
		case <-shutdownSignal:
			log.Printf("ending trip summary listener on shutdown signal\n")
			err = sub.Unsubscribe()
			if err != nil {
				log.Printf("Error unsubscribing to nats:%s", err)
			}
			return
		}
	}
}

// processSummariesFromMsg un-marshal itinerary.PublishedTripSummaries from nats.Msg and store them in collection
func processSummariesFromMsg(log *logger.Logger, msg *nats.Msg, collection *summaryCollection) {
	var published itinerary.PublishedTripSummaries
	err := json.Unmarshal(msg.Data, &published)
	if err != nil {
		log.Printf("error parsing trip summaries: %s, payload:%s", err, string(msg.Data))
		return
	}
	if len(published.Table) == 0 {
		log.Printf("discarding trip summaries without table name from run %s", published.RunId)
		return
	}
	if !collection.add(&published) {
		log.Printf("discarding older trip summaries of table %s from run %s", published.Table, published.RunId)
	}
}
