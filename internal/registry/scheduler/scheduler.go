// Package scheduler nudges the registry to revisit resources at known
// future instants, typically a pending transfer's automatic-approval
// deadline. It is an optimization only: resolution is computed at read time,
// so a lost or late nudge delays persistence but never correctness.
package scheduler

import (
	"context"
	"time"

	"github.com/unstoppabledomains/nomulus/internal/registry/models"
)

// ReevaluateFunc is invoked with a due resource key. Implementations must
// tolerate keys whose resource no longer exists or no longer needs work.
type ReevaluateFunc func(ctx context.Context, key models.Key) error

// Scheduler records that a resource should be revisited no earlier than the
// given instant. Scheduling the same key again keeps the earliest instant.
type Scheduler interface {
	ScheduleNotBefore(ctx context.Context, key models.Key, at time.Time) error
}

// Noop discards schedules. Useful when only read-time projection is wanted.
type Noop struct{}

func (Noop) ScheduleNotBefore(context.Context, models.Key, time.Time) error { return nil }
