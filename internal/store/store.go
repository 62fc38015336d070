// Package store provides PostgreSQL persistence for rubrics, cached
// evaluations, and coaching results.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callcoach/callcoach/internal/types"
)

// Store wraps a PostgreSQL connection pool
type Store struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close closes the connection pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// SaveRubric stores one rubric version. Versions are immutable: a conflict
// on (dimension, version) is rejected rather than updated.
func (s *Store) SaveRubric(ctx context.Context, rubric *types.RubricDefinition) error {
	definition, err := json.Marshal(rubric)
	if err != nil {
		return fmt.Errorf("failed to marshal rubric: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO rubrics (dimension, version, definition)
		 VALUES ($1, $2, $3)`,
		rubric.Dimension, rubric.Version, definition,
	)
	if err != nil {
		return fmt.Errorf("failed to save rubric %s/%s: %w", rubric.Dimension, rubric.Version, err)
	}
	return nil
}

// LoadRubric retrieves one rubric version. Returns (nil, nil) when absent;
// the rubric package turns that into its typed not-found error.
func (s *Store) LoadRubric(ctx context.Context, dimension, version string) (*types.RubricDefinition, error) {
	var definition []byte
	err := s.pool.QueryRow(ctx,
		`SELECT definition FROM rubrics WHERE dimension = $1 AND version = $2`,
		dimension, version,
	).Scan(&definition)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load rubric %s/%s: %w", dimension, version, err)
	}

	var rubric types.RubricDefinition
	if err := json.Unmarshal(definition, &rubric); err != nil {
		return nil, fmt.Errorf("failed to parse stored rubric %s/%s: %w", dimension, version, err)
	}
	return &rubric, nil
}

// SaveEvaluation upserts one cached evaluation by its derived key. The
// upsert is idempotent: concurrent writers racing on the same key both carry
// equivalent output for the same deterministic prompt, so last-write-wins.
func (s *Store) SaveEvaluation(ctx context.Context, key string, eval *types.Evaluation) error {
	data, err := json.Marshal(eval)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO evaluation_cache (cache_key, dimension, rubric_version, evaluation)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cache_key) DO UPDATE SET evaluation = $4, created_at = NOW()`,
		key, eval.Dimension, eval.RubricVersion, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save evaluation %s: %w", key, err)
	}
	return nil
}

// LoadEvaluation retrieves a cached evaluation by key, (nil, nil) on miss
func (s *Store) LoadEvaluation(ctx context.Context, key string) (*types.Evaluation, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT evaluation FROM evaluation_cache WHERE cache_key = $1`,
		key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load evaluation %s: %w", key, err)
	}

	var eval types.Evaluation
	if err := json.Unmarshal(data, &eval); err != nil {
		return nil, fmt.Errorf("failed to parse cached evaluation %s: %w", key, err)
	}
	return &eval, nil
}

// DeleteEvaluations bulk-removes cached evaluations by dimension and/or
// rubric version. Empty arguments match all values.
func (s *Store) DeleteEvaluations(ctx context.Context, dimension, rubricVersion string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM evaluation_cache
		 WHERE ($1 = '' OR dimension = $1)
		   AND ($2 = '' OR rubric_version = $2)`,
		dimension, rubricVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete evaluations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SaveResult persists a consolidated coaching result. One row per (call,
// dimension, rubric version); recomputation under the same tuple overwrites,
// a new rubric version creates a new row.
func (s *Store) SaveResult(ctx context.Context, result *types.CoachingResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal coaching result: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO coaching_results (id, call_id, dimension, rubric_version, is_partial, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (call_id, dimension, rubric_version)
		 DO UPDATE SET is_partial = $5, result = $6, created_at = $7`,
		result.ID, result.CallID, result.Dimension, result.RubricVersion,
		result.IsPartial, data, result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save coaching result for call %s: %w", result.CallID, err)
	}
	return nil
}

// GetResult retrieves the coaching result for one (call, dimension, rubric
// version) tuple, (nil, nil) when absent.
func (s *Store) GetResult(ctx context.Context, callID uuid.UUID, dimension, rubricVersion string) (*types.CoachingResult, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT result FROM coaching_results
		 WHERE call_id = $1 AND dimension = $2 AND rubric_version = $3`,
		callID, dimension, rubricVersion,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get coaching result for call %s: %w", callID, err)
	}

	var result types.CoachingResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse coaching result for call %s: %w", callID, err)
	}
	return &result, nil
}

// ListResults returns all coaching results for a call, newest first. All
// rubric versions are retained, preserving historical comparability.
func (s *Store) ListResults(ctx context.Context, callID uuid.UUID) ([]types.CoachingResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT result FROM coaching_results WHERE call_id = $1 ORDER BY created_at DESC`,
		callID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list coaching results for call %s: %w", callID, err)
	}
	defer rows.Close()

	var results []types.CoachingResult
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan coaching result: %w", err)
		}
		var result types.CoachingResult
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to parse coaching result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}
