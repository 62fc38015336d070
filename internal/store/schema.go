package store

import (
	"context"
	"fmt"
)

// schema holds the DDL for the analysis core's three tables. Business
// entities (reps, opportunities, accounts) live in the surrounding
// application's schema and are not managed here.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS rubrics (
		dimension   TEXT NOT NULL,
		version     TEXT NOT NULL,
		definition  JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (dimension, version)
	)`,
	`CREATE TABLE IF NOT EXISTS evaluation_cache (
		cache_key      TEXT PRIMARY KEY,
		dimension      TEXT NOT NULL,
		rubric_version TEXT NOT NULL,
		evaluation     JSONB NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_evaluation_cache_dimension_version
		ON evaluation_cache (dimension, rubric_version)`,
	`CREATE TABLE IF NOT EXISTS coaching_results (
		id             UUID PRIMARY KEY,
		call_id        UUID NOT NULL,
		dimension      TEXT NOT NULL,
		rubric_version TEXT NOT NULL,
		is_partial     BOOLEAN NOT NULL DEFAULT FALSE,
		result         JSONB NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (call_id, dimension, rubric_version)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_coaching_results_call
		ON coaching_results (call_id, created_at DESC)`,
}

// Migrate creates the core tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
