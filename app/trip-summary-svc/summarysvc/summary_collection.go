package summarysvc

import (
	"sort"
	"sync"
	"time"

	"github.com/OpenTransitTools/shuttletrack/business/data/itinerary"
)

// summaryCollection contains the latest published trip summaries of each table and provides thread safe access
// to them
type summaryCollection struct {
	mu      sync.Mutex
	byTable map[string]*itinerary.PublishedTripSummaries
}

// makeSummaryCollection summaryCollection factory
func makeSummaryCollection() *summaryCollection {
	return &summaryCollection{
		byTable: make(map[string]*itinerary.PublishedTripSummaries),
	}
}

// add stores published summaries, discards them if the collection already holds newer summaries for the same table
func (c *summaryCollection) add(published *itinerary.PublishedTripSummaries) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, present := c.byTable[published.Table]; present {
		if existing.PublishedAt.After(published.PublishedAt) {
			return false
		}
	}
	c.byTable[published.Table] = published
	return true
}

// get returns the latest summaries published for table
func (c *summaryCollection) get(table string) (*itinerary.PublishedTripSummaries, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	published, present := c.byTable[table]
	return published, present
}

// tableNames returns the names of all tables with published summaries in alphabetical order
func (c *summaryCollection) tableNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.byTable))
	for name := range c.byTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// expire removes summaries published before at minus expireAfterSeconds.
// returns the number of tables removed and how many are currently stored.
func (c *summaryCollection) expire(at time.Time, expireAfterSeconds int) (removed int, currentSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := at.Add(-time.Duration(expireAfterSeconds) * time.Second)
	for name, published := range c.byTable {
		if published.PublishedAt.Before(cutoff) {
			delete(c.byTable, name)
			removed++
		}
	}
	return removed, len(c.byTable)
}
