package stats

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jgoulah/watersync/pkg/models"
)

// Coordinator drives one sync cycle: authenticate, resolve the available
// window, compute the fetch window from the persisted cursor, fetch,
// merge, append. Exactly one cycle runs at a time; the session it opens
// is discarded at cycle end and tokens are re-derived fresh each run.
//
// All cycle-local gauges are returned in the CycleResult rather than held
// on the coordinator, so the caller decides how to surface them.
type Coordinator struct {
	source UsageSource
	store  StatisticsStore
	meta   models.StatisticsMetadata
	loc    *time.Location
	now    func() time.Time
}

// NewCoordinator creates a sync coordinator for one statistics series
func NewCoordinator(source UsageSource, store StatisticsStore, meta models.StatisticsMetadata, loc *time.Location) *Coordinator {
	return &Coordinator{
		source: source,
		store:  store,
		meta:   meta,
		loc:    loc,
		now:    time.Now,
	}
}

// RunCycle executes one sync cycle. Any error leaves the store and cursor
// at their pre-cycle values; the caller may retry the whole cycle safely
// because the merge is idempotent.
func (c *Coordinator) RunCycle(ctx context.Context) (models.CycleResult, error) {
	result := models.CycleResult{LastUpdate: c.now()}

	session, err := c.source.Login(ctx)
	if err != nil {
		return result, fmt.Errorf("logging in: %w", err)
	}

	avail, err := session.AvailableRange(ctx)
	if err != nil {
		return result, fmt.Errorf("resolving available range: %w", err)
	}

	cursor, err := c.store.GetCursor(c.meta.StatisticID)
	if err != nil {
		return result, fmt.Errorf("reading cursor: %w", err)
	}

	start, end := c.computeWindow(cursor, avail)
	result.WindowStart = start
	result.WindowEnd = end

	if start.After(end) {
		// Polling faster than new data appears; expected, not an error
		result.NoOp = true
		return result, nil
	}

	batch, skippedDays, err := session.FetchRange(ctx, avail, start, end)
	if err != nil {
		return result, fmt.Errorf("fetching %s to %s: %w",
			start.Format("01/02/2006"), end.Format("01/02/2006"), err)
	}
	result.SkippedDays = skippedDays
	result.FetchedReadings = len(batch)

	points, _ := Merge(batch, cursor, c.loc)
	if len(points) > 0 {
		if err := c.store.Append(c.meta, points); err != nil {
			return result, fmt.Errorf("appending statistics: %w", err)
		}
	}
	result.NewPoints = len(points)

	// Gauges reflect this cycle's batch only; the all-time total lives in
	// the persisted cumulative sum
	for _, v := range batch {
		if v > result.LatestUsage {
			result.LatestUsage = v
		}
		result.TotalUsage += v
	}

	return result, nil
}

// computeWindow derives the fetch window from the cursor and the portal's
// available range, both normalized to midnight in the portal timezone.
func (c *Coordinator) computeWindow(cursor models.SyncCursor, avail models.DateRange) (time.Time, time.Time) {
	var start time.Time
	switch {
	case cursor.LastTimestamp.IsZero():
		start = avail.Start
	case dayOf(cursor.LastTimestamp, c.loc).Before(avail.Start):
		// The watermark fell outside what the portal still exposes, e.g.
		// after a long outage. The gap cannot be recovered; accept the
		// lost-data boundary and resume from the earliest available day.
		log.Printf("warning: cursor %s predates available start %s, data gap accepted",
			cursor.LastTimestamp.Format("01/02/2006"), avail.Start.Format("01/02/2006"))
		start = avail.Start
	default:
		start = dayOf(cursor.LastTimestamp, c.loc).AddDate(0, 0, 1)
	}

	end := avail.End
	if today := dayOf(c.now(), c.loc); today.Before(end) {
		end = today
	}

	return start, end
}

// dayOf normalizes a timestamp to midnight of its calendar day in loc
func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
