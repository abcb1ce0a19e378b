package service

import "time"

// Hard caps bounding the work done inside one transaction.
const (
	// MaxQuestionsPerAttempt caps how many items a single attempt may hold.
	MaxQuestionsPerAttempt = 100
	// MaxPatchChanges caps the number of per-item updates in one batch.
	MaxPatchChanges = 200
)

// Clamping ranges for attempt configuration. Out-of-range values are pulled
// to the nearest bound rather than rejected.
const (
	MinTimeLimit = 30 * time.Second
	MaxTimeLimit = 24 * time.Hour

	MinPassThresholdPct = 0
	MaxPassThresholdPct = 100

	// MaxTimeSpentDelta bounds a single patch's time-spent increment so a
	// client cannot inflate time tracking arbitrarily.
	MaxTimeSpentDelta = 10 * time.Minute
)

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
