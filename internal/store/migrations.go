package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all workgate tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id                       TEXT PRIMARY KEY,
		name                     TEXT NOT NULL,
		state                    TEXT NOT NULL DEFAULT 'ENQUEUED',
		required_network         TEXT NOT NULL DEFAULT 'NONE',
		requires_battery_not_low INTEGER NOT NULL DEFAULT 0,
		requires_charging        INTEGER NOT NULL DEFAULT 0,
		requires_storage_not_low INTEGER NOT NULL DEFAULT 0,
		created_at               TEXT NOT NULL,
		updated_at               TEXT NOT NULL,
		started_at               TEXT,
		completed_at             TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state)`,
	// Compound index for the per-kind constraint query.
	`CREATE INDEX IF NOT EXISTS idx_jobs_state_network ON jobs(state, required_network)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "jobs",
		column:   "halt_count",
		alterSQL: "ALTER TABLE jobs ADD COLUMN halt_count INTEGER NOT NULL DEFAULT 0",
	},
}

// migrate executes all schema DDL statements and alter migrations.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	exists, err := columnExists(ctx, db, table, column)
	if err != nil || exists {
		return err
	}
	_, err = db.ExecContext(ctx, alterSQL)
	return err
}

// columnExists closes its rows before returning so the caller may issue
// the ALTER on a single-connection pool.
func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}
