package environment

import (
	"time"
)

// DefaultStalenessThreshold is how old a reading may be before it is flagged.
const DefaultStalenessThreshold = 30 * time.Minute

// StaleWarning is attached to readings older than the staleness threshold.
const StaleWarning = "stale - consider manual override"

// Freshness is the verdict of the freshness check. A stale reading is still
// usable; callers surface the warning instead of discarding the data.
type Freshness struct {
	AgeSeconds int64
	Stale      bool
	Warning    string
}

// CheckFreshness compares a capture time with now. Capture times in the future
// (provider clock skew) count as age zero. A non-positive threshold falls back
// to DefaultStalenessThreshold.
func CheckFreshness(capturedAt, now time.Time, threshold time.Duration) Freshness {
	if threshold <= 0 {
		threshold = DefaultStalenessThreshold
	}

	age := now.Sub(capturedAt)
	if age < 0 {
		age = 0
	}

	f := Freshness{AgeSeconds: int64(age / time.Second)}
	if age > threshold {
		f.Stale = true
		f.Warning = StaleWarning
	}
	return f
}
