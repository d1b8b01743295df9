package stats

import (
	"context"
	"time"

	"github.com/jgoulah/watersync/pkg/models"
)

// StatisticsStore persists the cumulative series. Append must apply the
// whole batch atomically relative to subsequent GetCursor reads; a cycle
// that dies before Append leaves the store exactly as it was.
type StatisticsStore interface {
	// GetCursor returns the last recorded point of the series, or a zero
	// cursor if the series has no points yet
	GetCursor(statisticID string) (models.SyncCursor, error)

	// Append adds a batch of points to the series in one transaction
	Append(meta models.StatisticsMetadata, points []models.StatisticPoint) error
}

// UsageSource opens authenticated portal sessions
type UsageSource interface {
	Login(ctx context.Context) (UsageSession, error)
}

// UsageSession is one cycle's authenticated portal handle
type UsageSession interface {
	// AvailableRange returns the inclusive window of dates with data
	AvailableRange(ctx context.Context) (models.DateRange, error)

	// FetchRange returns readings for [start, end] clamped to avail,
	// plus the count of days skipped by soft failures
	FetchRange(ctx context.Context, avail models.DateRange, start, end time.Time) (map[time.Time]float64, int, error)
}
