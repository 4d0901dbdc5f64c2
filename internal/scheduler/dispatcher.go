package scheduler

import (
	"context"
	"log/slog"

	"github.com/me/workgate/pkg/model"
)

// Dispatcher starts and halts job execution. The loop persists the state
// change only after the dispatcher call succeeds.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *model.Job) error
	Halt(ctx context.Context, job *model.Job) error
}

// LogDispatcher records dispatch decisions in the log. It is the default
// when no executor is wired in.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d LogDispatcher) Dispatch(_ context.Context, job *model.Job) error {
	if d.Logger != nil {
		d.Logger.Info("job dispatched", "job_id", job.ID, "name", job.Name)
	}
	return nil
}

func (d LogDispatcher) Halt(_ context.Context, job *model.Job) error {
	if d.Logger != nil {
		d.Logger.Info("job halted", "job_id", job.ID, "name", job.Name, "halt_count", job.HaltCount)
	}
	return nil
}
