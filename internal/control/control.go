package control

import (
	"fmt"
	"time"
)

// DefaultMaxIterations bounds a run when nothing else is configured.
const DefaultMaxIterations = 20

// Policy defines the limits that end a run.
type Policy struct {
	MaxIterations int
	// MaxWallTime of zero disables the wall-clock limit.
	MaxWallTime time.Duration
}

// DefaultPolicy returns the iteration cap with no wall-clock limit.
func DefaultPolicy() Policy {
	return Policy{MaxIterations: DefaultMaxIterations}
}

// LimitType identifies which limit is reached.
type LimitType string

const (
	LimitIterations LimitType = "max_iterations"
	LimitWallTime   LimitType = "max_wall_time_seconds"
)

// LimitError indicates a run limit was reached.
type LimitError struct {
	Type      LimitType
	Value     int64
	Threshold int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("limit reached type=%s value=%d threshold=%d", e.Type, e.Value, e.Threshold)
}

// CheckIterationLimit reports whether another iteration may start after
// usedIterations have completed.
func CheckIterationLimit(p Policy, usedIterations int) error {
	if p.MaxIterations <= 0 || usedIterations >= p.MaxIterations {
		return &LimitError{Type: LimitIterations, Value: int64(usedIterations), Threshold: int64(p.MaxIterations)}
	}
	return nil
}

// CheckWallTime validates elapsed time against policy.
func CheckWallTime(p Policy, startedAt time.Time, now time.Time) error {
	limit := p.MaxWallTime
	if limit <= 0 {
		return nil
	}
	elapsed := now.Sub(startedAt)
	if elapsed > limit {
		return &LimitError{
			Type:      LimitWallTime,
			Value:     int64(elapsed.Seconds()),
			Threshold: int64(limit.Seconds()),
		}
	}
	return nil
}
