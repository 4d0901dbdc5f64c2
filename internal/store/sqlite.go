package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/pkg/model"

	_ "modernc.org/sqlite"
)

const jobColumns = `id, name, state, required_network, requires_battery_not_low, requires_charging,
	requires_storage_not_low, halt_count, created_at, updated_at, started_at, completed_at`

// activeStates are the states a constraint controller tracks.
var activeStates = []model.JobState{model.JobStateEnqueued, model.JobStateRunning}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logging.Component(logger, "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.Job) error {
	s.logger.Debug("sql", "op", "insert", "table", "jobs", "id", job.ID)

	network := job.Constraints.RequiredNetwork
	if network == "" {
		network = model.NetworkNone
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, string(job.State), string(network),
		boolToInt(job.Constraints.RequiresBatteryNotLow),
		boolToInt(job.Constraints.RequiresCharging),
		boolToInt(job.Constraints.RequiresStorageNotLow),
		job.HaltCount,
		job.CreatedAt.Format(time.RFC3339Nano), job.UpdatedAt.Format(time.RFC3339Nano),
		formatTimePtr(job.StartedAt), formatTimePtr(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	s.logger.Debug("sql", "op", "select", "table", "jobs", "id", id)

	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, opts model.ListOptions) ([]*model.Job, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "jobs", "limit", opts.Limit, "offset", opts.Offset, "state", opts.State)
	opts.Clamp()

	where := ""
	var args []any
	if opts.State != "" {
		where = " WHERE state = ?"
		args = append(args, opts.State)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job *model.Job) error {
	s.logger.Debug("sql", "op", "update", "table", "jobs", "id", job.ID, "state", job.State)

	job.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET name = ?, state = ?, halt_count = ?, updated_at = ?, started_at = ?, completed_at = ?
		 WHERE id = ?`,
		job.Name, string(job.State), job.HaltCount,
		job.UpdatedAt.Format(time.RFC3339Nano),
		formatTimePtr(job.StartedAt), formatTimePtr(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update job %s: %w", job.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) GetJobsByState(ctx context.Context, state model.JobState) ([]*model.Job, error) {
	s.logger.Debug("sql", "op", "select_by_state", "table", "jobs", "state", state)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE state = ? ORDER BY created_at, id`, string(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (s *SQLiteStore) GetJobIDsWithConstraint(ctx context.Context, kind model.ConditionKind) ([]string, error) {
	s.logger.Debug("sql", "op", "select_by_constraint", "table", "jobs", "kind", kind)

	cond, args, err := constraintClause(kind)
	if err != nil {
		return nil, err
	}
	args = append(args, string(activeStates[0]), string(activeStates[1]))

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM jobs WHERE `+cond+` AND state IN (?, ?) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs with %s: %w", kind, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// constraintClause maps a condition kind to the column predicate selecting
// the jobs that declare it.
func constraintClause(kind model.ConditionKind) (string, []any, error) {
	switch kind {
	case model.ConditionNetworkAny:
		return "required_network = ?", []any{string(model.NetworkAny)}, nil
	case model.ConditionNetworkUnmetered:
		return "required_network = ?", []any{string(model.NetworkUnmetered)}, nil
	case model.ConditionNetworkNotRoaming:
		return "required_network = ?", []any{string(model.NetworkNotRoaming)}, nil
	case model.ConditionNetworkMetered:
		return "required_network = ?", []any{string(model.NetworkMetered)}, nil
	case model.ConditionBatteryNotLow:
		return "requires_battery_not_low = 1", nil, nil
	case model.ConditionBatteryCharging:
		return "requires_charging = 1", nil, nil
	case model.ConditionStorageNotLow:
		return "requires_storage_not_low = 1", nil, nil
	}
	return "", nil, fmt.Errorf("unknown condition kind %q", kind)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.Job, error) {
	var job model.Job
	var state, network string
	var batteryNotLow, charging, storageNotLow int
	var createdAt, updatedAt string
	var startedAt, completedAt sql.NullString

	if err := row.Scan(&job.ID, &job.Name, &state, &network, &batteryNotLow, &charging, &storageNotLow,
		&job.HaltCount, &createdAt, &updatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	job.State = model.JobState(state)
	job.Constraints = model.Constraints{
		RequiredNetwork:       model.NetworkRequirement(network),
		RequiresBatteryNotLow: batteryNotLow != 0,
		RequiresCharging:      charging != 0,
		RequiresStorageNotLow: storageNotLow != 0,
	}
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	job.StartedAt = parseTimePtr(startedAt)
	job.CompletedAt = parseTimePtr(completedAt)
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]*model.Job, error) {
	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
