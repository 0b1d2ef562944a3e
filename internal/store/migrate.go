package store

import (
	"context"
	"fmt"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// migrate runs database migrations.
func (s *Store) migrate(ctx context.Context) error {
	if err := s.createStatusLogTable(ctx); err != nil {
		return err
	}

	if err := s.createActivityLogTable(ctx); err != nil {
		return err
	}

	if err := s.createMetadataTable(ctx); err != nil {
		return err
	}

	return nil
}

func (s *Store) createStatusLogTable(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS status_log (
		id             TEXT PRIMARY KEY,
		at             TEXT NOT NULL,
		status         TEXT NOT NULL,
		schema_version INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_status_log_at ON status_log(at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create status_log table: %w", err)
	}
	return nil
}

func (s *Store) createActivityLogTable(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS activity_log (
		id             TEXT PRIMARY KEY,
		at             TEXT NOT NULL,
		details        TEXT NOT NULL,
		state          TEXT NOT NULL,
		large_image    TEXT,
		small_image    TEXT,
		schema_version INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_log_at ON activity_log(at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create activity_log table: %w", err)
	}
	return nil
}

func (s *Store) createMetadataTable(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create metadata table: %w", err)
	}
	return nil
}
