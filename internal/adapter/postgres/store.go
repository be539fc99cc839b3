// Package postgres is the load engine: it stages normalized, enriched records
// into a transaction-scoped temp table and applies each source's conflict
// policy inside a single transaction. Any failure rolls the whole batch back;
// the transaction is the unit of atomicity, never the individual record.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citypulse/civic-etl/internal/domain"
	"github.com/citypulse/civic-etl/internal/spatial"
)

// Store holds the canonical-store connection pool. Connections are checked
// out per load transaction and released at commit or rollback.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens a pool against the canonical store.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Ping verifies connectivity, for readiness checks.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Boundaries loads the immutable neighborhood reference set. Called once per
// run; the pipeline never writes this table.
func (s *Store) Boundaries(ctx context.Context) (*spatial.Index, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, borough, ST_AsGeoJSON(geometry) FROM neighborhoods ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query neighborhoods: %w", err)
	}
	defer rows.Close()

	var boundaries []spatial.Boundary
	for rows.Next() {
		var (
			id            int64
			name, borough string
			geom          []byte
		)
		if err := rows.Scan(&id, &name, &borough, &geom); err != nil {
			return nil, fmt.Errorf("scan neighborhood: %w", err)
		}
		b, err := spatial.FromGeoJSON(id, name, borough, geom)
		if err != nil {
			return nil, err
		}
		boundaries = append(boundaries, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read neighborhoods: %w", err)
	}
	return spatial.NewIndex(boundaries), nil
}

// LoadBatch performs one idempotent batch load: begin, stage into a temp
// table dropped at commit, apply the source's conflict policy, commit.
func (s *Store) LoadBatch(ctx context.Context, spec domain.SourceSpec, recs []domain.CanonicalRecord) error {
	if len(recs) == 0 {
		return nil
	}
	plan, ok := loadPlans[spec.Source]
	if !ok {
		return &domain.LoadError{Source: spec.Source, Stage: "begin", Err: fmt.Errorf("no load plan for source")}
	}

	start := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &domain.LoadError{Source: spec.Source, Stage: "begin", Err: err}
	}
	// Rollback after commit is a no-op; this covers every early return.
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, plan.stagingDDL); err != nil {
		return &domain.LoadError{Source: spec.Source, Stage: "stage", Err: err}
	}

	srcRows := make([][]any, len(recs))
	for i := range recs {
		srcRows[i] = plan.row(&recs[i])
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{plan.staging}, plan.columns, pgx.CopyFromRows(srcRows)); err != nil {
		return &domain.LoadError{Source: spec.Source, Stage: "stage", Err: err}
	}

	if plan.purge != "" {
		if _, err := tx.Exec(ctx, plan.purge); err != nil {
			return &domain.LoadError{Source: spec.Source, Stage: "resolve", Err: err}
		}
	}
	tag, err := tx.Exec(ctx, plan.insert)
	if err != nil {
		return &domain.LoadError{Source: spec.Source, Stage: "resolve", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &domain.LoadError{Source: spec.Source, Stage: "commit", Err: err}
	}

	s.logger.Info("batch loaded",
		"source", string(spec.Source),
		"table", spec.Table,
		"rows", tag.RowsAffected(),
		"duration", time.Since(start),
	)
	return nil
}
