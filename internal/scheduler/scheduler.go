package scheduler

import (
	"context"

	"github.com/me/workgate/pkg/model"
)

// Scheduler moves jobs between ENQUEUED and RUNNING as their constraints
// allow.
type Scheduler interface {
	// Start begins the scheduling loop. Blocks until ctx is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the scheduler.
	Stop() error

	// Tick runs a single scheduling iteration. Used for testing.
	Tick(ctx context.Context) error

	// Refresh rebuilds the constraint controllers from the store.
	Refresh(ctx context.Context) error

	// Notify reports that jobs were submitted or changed state outside
	// the loop. The loop refreshes and ticks soon after.
	Notify()

	// Constraints reports the status of every condition kind.
	Constraints() []model.ConditionStatus

	// Blocking returns the condition kinds currently holding job back.
	Blocking(job *model.Job) []model.ConditionKind
}
