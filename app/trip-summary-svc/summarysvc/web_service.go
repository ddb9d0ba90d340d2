package summarysvc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	logger "log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/OpenTransitTools/shuttletrack/business/data/itinerary"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
)

// latestRunId can be used in place of a run id to select the most recent completed run
const latestRunId = "latest"

// defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

// ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

// runsHandler responds with all recorded pipeline runs
type runsHandler struct {
	log *logger.Logger
	db  *sqlx.DB
}

// ServeHTTP implements runsHandler http.Handler interface
func (h *runsHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	runs, err := itinerary.GetAllRuns(h.db)
	if err != nil {
		h.log.Printf("Error retrieving runs: error:%v\n", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = make([]itinerary.Run, 0)
	}
	writeJSON(h.log, w, runs)
}

// runTablesResponse lists the tables recorded with a run
type runTablesResponse struct {
	Run    *itinerary.Run `json:"run"`
	Tables []string       `json:"tables"`
}

// runTablesHandler responds with the tables recorded with a pipeline run
type runTablesHandler struct {
	log *logger.Logger
	db  *sqlx.DB
}

// ServeHTTP implements runTablesHandler http.Handler interface
func (h *runTablesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	run, ok := findRun(h.log, h.db, w, mux.Vars(r)["runId"])
	if !ok {
		return
	}
	tables, err := itinerary.GetTripSummaryTableNames(h.db, run.Id)
	if err != nil {
		h.log.Printf("Error retrieving tables of %v: error:%v\n", run, err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	if tables == nil {
		tables = make([]string, 0)
	}
	writeJSON(h.log, w, runTablesResponse{Run: run, Tables: tables})
}

// runSummariesResponse holds individual or grouped trip summaries of a run
type runSummariesResponse struct {
	RunId     string                          `json:"run_id"`
	Tables    []string                        `json:"tables"`
	Grouping  string                          `json:"grouping,omitempty"`
	Summaries []itinerary.TripSummary         `json:"summaries,omitempty"`
	Groups    []*itinerary.GroupedTripSummary `json:"groups,omitempty"`
}

// runSummariesHandler responds with the trip summaries of a run.
// The "table" form value restricts the tables included, "grouping" selects grouping by "order" or "unique" locations.
type runSummariesHandler struct {
	log *logger.Logger
	db  *sqlx.DB
}

// ServeHTTP implements runSummariesHandler http.Handler interface
func (h *runSummariesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	grouping := strings.ToLower(r.FormValue("grouping"))
	if grouping != "" && grouping != "order" && grouping != "unique" {
		http.Error(w, "grouping must be order or unique", http.StatusBadRequest)
		return
	}
	run, ok := findRun(h.log, h.db, w, mux.Vars(r)["runId"])
	if !ok {
		return
	}
	tables := r.Form["table"]
	if len(tables) == 0 {
		var err error
		tables, err = itinerary.GetTripSummaryTableNames(h.db, run.Id)
		if err != nil {
			h.log.Printf("Error retrieving tables of %v: error:%v\n", run, err)
			http.Error(w, "Error serving request", http.StatusInternalServerError)
			return
		}
	}
	summaries, err := itinerary.GetTripSummaries(h.db, run.Id, tables)
	if err != nil {
		h.log.Printf("Error retrieving trip summaries of %v: error:%v\n", run, err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = make([]itinerary.TripSummary, 0)
	}
	response := runSummariesResponse{
		RunId:    run.Id,
		Tables:   tables,
		Grouping: grouping,
	}
	switch grouping {
	case "order":
		response.Groups = itinerary.GroupByTripOrder(summaries)
	case "unique":
		response.Groups = itinerary.GroupByUniqueLocations(summaries)
	default:
		response.Summaries = summaries
	}
	writeJSON(h.log, w, response)
}

// publishedHandler responds with the latest trip summaries received over nats
type publishedHandler struct {
	log        *logger.Logger
	collection *summaryCollection
}

// ServeHTTP implements publishedHandler http.Handler interface. Without a table the names of the available
// tables are returned.
func (h *publishedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	table, present := mux.Vars(r)["table"]
	if !present {
		writeJSON(h.log, w, h.collection.tableNames())
		return
	}
	published, present := h.collection.get(table)
	if !present {
		http.Error(w, "no summaries published for table "+table, http.StatusNotFound)
		return
	}
	writeJSON(h.log, w, published)
}

// findRun retrieves the run with runId, or the latest completed run. Writes an error response and returns false
// if the run can't be retrieved
func findRun(log *logger.Logger, db *sqlx.DB, w http.ResponseWriter, runId string) (*itinerary.Run, bool) {
	var run *itinerary.Run
	var err error
	if runId == latestRunId {
		run, err = itinerary.GetLatestRun(db)
	} else {
		run, err = itinerary.GetRun(db, runId)
	}
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		log.Printf("Error retrieving run %s: error:%v\n", runId, err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

// writeJSON marshals value and writes it to w
func writeJSON(log *logger.Logger, w http.ResponseWriter, value interface{}) {
	jsonData, err := json.Marshal(value)
	if err != nil {
		log.Printf("Error marshaling response to json: error:%v\n", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	byteCount, err := w.Write(jsonData)
	if err != nil {
		log.Printf("Error writing json response: %s", err)
		return
	}
	log.Printf("wrote %d bytes in json response.", byteCount)
}

// createRouter routes requests to the trip summary handlers. Published summaries are only served when
// collection is not nil
func createRouter(log *logger.Logger, db *sqlx.DB, collection *summaryCollection) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/", &defaultHttpHandler{})
	r.Handle("/runs", &runsHandler{log: log, db: db}).Methods(http.MethodGet)
	r.Handle("/runs/{runId}/tables", &runTablesHandler{log: log, db: db}).Methods(http.MethodGet)
	r.Handle("/runs/{runId}/summaries", &runSummariesHandler{log: log, db: db}).Methods(http.MethodGet)
	if collection != nil {
		published := &publishedHandler{log: log, collection: collection}
		r.Handle("/published", published).Methods(http.MethodGet)
		r.Handle("/published/{table}", published).Methods(http.MethodGet)
	}
	return r
}

// createServer creates configured http.Server for responding to trip summary requests
func createServer(log *logger.Logger, db *sqlx.DB, collection *summaryCollection, httpPort int) *http.Server {
	return &http.Server{
		Addr:         strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      createRouter(log, db, collection),
	}
}

// runWebService starts up trip summary web service, and terminates on shutdown signal
func runWebService(log *logger.Logger,
	wg *sync.WaitGroup,
	db *sqlx.DB,
	collection *summaryCollection,
	httpPort int,
	shutdownSignal chan bool) {
	defer wg.Done()
	srv := createServer(log, db, collection, httpPort)
	log.Printf("Starting server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("server ListenAndServe ended. %s", err)
		}
	}()

	<-shutdownSignal
	log.Printf("ending webservice on shutdown signal")
	shutdownCtx, serverCancelFunc := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer serverCancelFunc()
	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		log.Printf("error shutting down webservice, error:%s", err)
	}
}
