package store

import (
	"context"

	"github.com/me/workgate/pkg/model"
)

// Store defines the persistence layer for workgate jobs.
type Store interface {
	CreateJob(ctx context.Context, job *model.Job) error
	// GetJob returns (nil, nil) when no job has the given ID.
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, opts model.ListOptions) ([]*model.Job, int, error)
	UpdateJob(ctx context.Context, job *model.Job) error
	GetJobsByState(ctx context.Context, state model.JobState) ([]*model.Job, error)

	// GetJobIDsWithConstraint returns the IDs of enqueued or running jobs
	// that declare the given condition kind.
	GetJobIDsWithConstraint(ctx context.Context, kind model.ConditionKind) ([]string, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
