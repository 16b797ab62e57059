// Package resultstore persists a run's metrics record to Postgres so past
// runs can be compared without re-parsing metrics.json files from disk.
package resultstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/marcoskonzen/trustedge/internal/report"
	"github.com/marcoskonzen/trustedge/pkg/apperror"
	"github.com/marcoskonzen/trustedge/pkg/database"
	"github.com/marcoskonzen/trustedge/pkg/telemetry"
)

// ErrRunNotFound is returned when a lookup finds no matching run.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one persisted row: the full metrics record plus the
// identity columns a list view queries on without unmarshalling JSON.
type RunRecord struct {
	ID        string
	Seed      int64
	Algorithm string
	TimeSteps int
	Metrics   *report.RunMetrics
	CreatedAt time.Time
}

// Store is the repository interface over the `runs` table.
type Store interface {
	Save(ctx context.Context, rm *report.RunMetrics) (*RunRecord, error)
	GetByID(ctx context.Context, id string) (*RunRecord, error)
	ListByAlgorithm(ctx context.Context, algorithm string, limit, offset int) ([]*RunRecord, error)
}

// PostgresStore is the Postgres-backed Store implementation.
type PostgresStore struct {
	db database.DB
}

func NewPostgresStore(db database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, rm *report.RunMetrics) (*RunRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresStore.Save")
	defer span.End()

	raw, err := json.Marshal(rm)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "encoding run metrics for storage")
	}

	rec := &RunRecord{
		Seed:      rm.Parameters.Seed,
		Algorithm: rm.Parameters.Algorithm,
		TimeSteps: rm.Parameters.TimeSteps,
		Metrics:   rm,
	}

	query := `
		INSERT INTO runs (seed, algorithm, time_steps, metrics)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err = s.db.QueryRow(ctx, query, rec.Seed, rec.Algorithm, rec.TimeSteps, raw).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodePersistenceFailed, "saving run record")
	}
	return rec, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*RunRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresStore.GetByID")
	defer span.End()

	query := `SELECT id, seed, algorithm, time_steps, metrics, created_at FROM runs WHERE id = $1`

	rec := &RunRecord{}
	var raw []byte
	err := s.db.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.Seed, &rec.Algorithm, &rec.TimeSteps, &raw, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, apperror.Wrap(err, apperror.CodePersistenceFailed, "loading run record")
	}

	var rm report.RunMetrics
	if err := json.Unmarshal(raw, &rm); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "decoding stored run metrics")
	}
	rec.Metrics = &rm
	return rec, nil
}

func (s *PostgresStore) ListByAlgorithm(ctx context.Context, algorithm string, limit, offset int) ([]*RunRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresStore.ListByAlgorithm")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, seed, algorithm, time_steps, created_at
		FROM runs
		WHERE algorithm = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.Query(ctx, query, algorithm, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodePersistenceFailed, "listing run records")
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		rec := &RunRecord{}
		if err := rows.Scan(&rec.ID, &rec.Seed, &rec.Algorithm, &rec.TimeSteps, &rec.CreatedAt); err != nil {
			return nil, apperror.Wrap(err, apperror.CodePersistenceFailed, "scanning run record")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodePersistenceFailed, "iterating run records")
	}
	return out, nil
}
