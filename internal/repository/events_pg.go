package repository

import (
	"context"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/jmoiron/sqlx"
)

// PostgresEventRepo keeps the durable copy of the swap event log,
// alongside the capped in-process copy the aggregator reads.
type PostgresEventRepo struct {
	db *sqlx.DB
}

func NewPostgresEventRepo(db *sqlx.DB) *PostgresEventRepo {
	repo := &PostgresEventRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresEventRepo) Insert(ctx context.Context, rec *model.EventRecord) error {
	query := `
		INSERT INTO swap_events (kind, swap_id, amount, duration_ms, impact_pct, savings_usd, error_category, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		string(rec.Kind), rec.SwapID, rec.Amount, rec.DurationMs,
		rec.ImpactPct, rec.SavingsUSD, rec.ErrorCategory, rec.Timestamp.UTC())
	return err
}

// Recent returns events newer than the given instant, oldest first.
func (r *PostgresEventRepo) Recent(ctx context.Context, since time.Time) ([]*model.EventRecord, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT kind, swap_id, amount, duration_ms, impact_pct, savings_usd, error_category, ts
		FROM swap_events WHERE ts >= $1 ORDER BY ts ASC
	`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.EventRecord
	for rows.Next() {
		var rec model.EventRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *PostgresEventRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := r.db.ExecContext(ctx, `DELETE FROM swap_events WHERE ts < $1`, cutoff)
	return err
}

func (r *PostgresEventRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS swap_events (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			swap_id TEXT NOT NULL,
			amount TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL DEFAULT 0,
			impact_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
			savings_usd TEXT NOT NULL DEFAULT '',
			error_category TEXT NOT NULL DEFAULT '',
			ts TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_swap_events_ts ON swap_events (ts)`)
	return nil
}
