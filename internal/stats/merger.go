package stats

import (
	"log"
	"sort"
	"time"

	"github.com/jgoulah/watersync/pkg/models"
)

// Merge converts a raw batch of readings plus the previously persisted
// cursor into a deduplicated, time-ordered slice of cumulative points.
//
// Entries at or before the cursor are dropped, which is what makes
// re-fetching an overlapping window safe; entries with negative
// consumption are dropped as a data-integrity filter. The running sum
// continues from the cursor's sum so that the series stays monotonic.
//
// An empty result with the unchanged cursor is success with zero new
// points, not an error.
func Merge(batch map[time.Time]float64, cursor models.SyncCursor, loc *time.Location) ([]models.StatisticPoint, models.SyncCursor) {
	timestamps := make([]time.Time, 0, len(batch))
	for ts := range batch {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	points := make([]models.StatisticPoint, 0, len(timestamps))
	sum := cursor.LastSum

	for _, ts := range timestamps {
		consumption := batch[ts]
		normalized := ts.In(loc)

		if !cursor.LastTimestamp.IsZero() && !normalized.After(cursor.LastTimestamp) {
			continue
		}
		if consumption < 0 {
			log.Printf("warning: dropping negative reading %.2f at %s", consumption, normalized)
			continue
		}

		sum += consumption
		points = append(points, models.StatisticPoint{
			Start: normalized,
			State: consumption,
			Sum:   sum,
		})
	}

	if len(points) == 0 {
		return points, cursor
	}

	return points, models.SyncCursor{
		LastTimestamp: points[len(points)-1].Start,
		LastSum:       sum,
	}
}
