package models

import "time"

// DateRange is an inclusive window of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// SyncCursor is the persisted watermark the incremental merge resumes from.
// A zero LastTimestamp means no data has ever been recorded for the series.
// LastSum is the cumulative total of every reading accepted at or before
// LastTimestamp.
type SyncCursor struct {
	LastTimestamp time.Time
	LastSum       float64
}

// StatisticPoint is one row of the cumulative series: the instantaneous
// consumption for the hour starting at Start, plus the running total.
// Points are append-only; a timestamp is never rewritten.
type StatisticPoint struct {
	Start time.Time
	State float64
	Sum   float64
}

// StatisticsMetadata identifies a persisted series.
type StatisticsMetadata struct {
	StatisticID string // namespaced key, e.g. "sfpuc:sfpuc_water_usage"
	Name        string
	Source      string
	Unit        string
	HasSum      bool
	HasMean     bool
}

// CycleResult carries the outcome of one sync cycle. The gauges reflect
// only the batch fetched in that cycle, not all-time totals; the all-time
// total lives in the persisted cumulative sum.
type CycleResult struct {
	LatestUsage     float64   // max reading in this cycle's batch
	TotalUsage      float64   // sum of this cycle's batch
	NewPoints       int       // points appended to the store
	FetchedReadings int       // raw readings returned by the portal
	SkippedDays     int       // days that failed softly and were excluded
	WindowStart     time.Time
	WindowEnd       time.Time
	LastUpdate      time.Time // wall-clock time of the cycle
	NoOp            bool      // window was empty; nothing fetched
}
