package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/GoSwapGuard/swapguard/internal/model"
	"github.com/jmoiron/sqlx"
)

// PostgresPendingRepo durably stores pending operations so a multi-step
// swap can be resumed after a restart.
type PostgresPendingRepo struct {
	db *sqlx.DB
}

func NewPostgresPendingRepo(db *sqlx.DB) *PostgresPendingRepo {
	repo := &PostgresPendingRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresPendingRepo) Save(ctx context.Context, op *model.PendingOperation) error {
	payload, err := json.Marshal(op.Payload)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO pending_operations (recovery_id, payload, created_at, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (recovery_id)
		DO UPDATE SET payload = $2, status = $4
	`
	_, err = r.db.ExecContext(ctx, query, op.RecoveryID, string(payload), op.CreatedAt.UTC(), string(op.Status))
	return err
}

func (r *PostgresPendingRepo) Get(ctx context.Context, recoveryID string) (*model.PendingOperation, error) {
	var row struct {
		RecoveryID string    `db:"recovery_id"`
		Payload    string    `db:"payload"`
		CreatedAt  time.Time `db:"created_at"`
		Status     string    `db:"status"`
	}
	query := `SELECT recovery_id, payload, created_at, status FROM pending_operations WHERE recovery_id = $1`
	if err := r.db.QueryRowxContext(ctx, query, recoveryID).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	op := &model.PendingOperation{
		RecoveryID: row.RecoveryID,
		CreatedAt:  row.CreatedAt,
		Status:     model.PendingStatus(row.Status),
		Payload:    make(map[string]string),
	}
	if err := json.Unmarshal([]byte(row.Payload), &op.Payload); err != nil {
		return nil, ErrCorrupt
	}
	return op, nil
}

func (r *PostgresPendingRepo) List(ctx context.Context, limit int) ([]*model.PendingOperation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryxContext(ctx,
		`SELECT recovery_id, payload, created_at, status FROM pending_operations ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PendingOperation
	for rows.Next() {
		var row struct {
			RecoveryID string    `db:"recovery_id"`
			Payload    string    `db:"payload"`
			CreatedAt  time.Time `db:"created_at"`
			Status     string    `db:"status"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		op := &model.PendingOperation{
			RecoveryID: row.RecoveryID,
			CreatedAt:  row.CreatedAt,
			Status:     model.PendingStatus(row.Status),
			Payload:    make(map[string]string),
		}
		// Corrupt payloads are skipped rather than failing the whole list.
		if err := json.Unmarshal([]byte(row.Payload), &op.Payload); err != nil {
			continue
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (r *PostgresPendingRepo) UpdateStatus(ctx context.Context, recoveryID string, status model.PendingStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE pending_operations SET status = $2 WHERE recovery_id = $1`, recoveryID, string(status))
	return err
}

func (r *PostgresPendingRepo) Delete(ctx context.Context, recoveryID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM pending_operations WHERE recovery_id = $1`, recoveryID)
	return err
}

// Cleanup drops entries that expired or already completed.
func (r *PostgresPendingRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_operations WHERE created_at < $1 OR status = 'completed'`, cutoff)
	return err
}

func (r *PostgresPendingRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS pending_operations (
			recovery_id TEXT PRIMARY KEY,
			payload TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending'
		)
	`)
	return err
}
