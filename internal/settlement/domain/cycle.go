package settlement

import (
	"fmt"
	"time"
)

// cycleBuckets splits a day into discrete settlement cycles.
const cycleBuckets = 4

// CycleID returns the settlement cycle bucket for an instant, e.g.
// "20260314-C3" for the third six-hour bucket of the day.
func CycleID(t time.Time) string {
	utc := t.UTC()
	bucket := utc.Hour()/(24/cycleBuckets) + 1
	return fmt.Sprintf("%s-C%d", utc.Format("20060102"), bucket)
}
