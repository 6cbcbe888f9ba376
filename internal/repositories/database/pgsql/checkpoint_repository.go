package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
)

// PgxCheckpointRepository persists projector progress: the global catch-up
// checkpoint, per-aggregate offsets, and halt markers for poisoned streams.
type PgxCheckpointRepository struct {
	BaseRepository
}

func newPgxCheckpointRepository(pool *pgxpool.Pool) portsrepo.CheckpointRepositoryFacade {
	return &PgxCheckpointRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.CheckpointRepositoryFacade = (*PgxCheckpointRepository)(nil)

func (r *PgxCheckpointRepository) GetGlobalCheckpoint(ctx context.Context, projectorName string) (int64, error) {
	query := `SELECT global_seq FROM projector_checkpoints WHERE projector_name = $1;`
	var seq int64
	err := r.Pool.QueryRow(ctx, query, projectorName).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, apperrors.NewAppError(500, "failed to read checkpoint for projector "+projectorName, err)
	}
	return seq, nil
}

func (r *PgxCheckpointRepository) SetGlobalCheckpoint(ctx context.Context, projectorName string, globalSeq int64) error {
	query := `
		INSERT INTO projector_checkpoints (projector_name, global_seq, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (projector_name) DO UPDATE SET
			global_seq = EXCLUDED.global_seq,
			updated_at = EXCLUDED.updated_at;
	`
	if _, err := r.Pool.Exec(ctx, query, projectorName, globalSeq, time.Now().UTC()); err != nil {
		return apperrors.NewAppError(500, "failed to set checkpoint for projector "+projectorName, err)
	}
	return nil
}

func (r *PgxCheckpointRepository) GetAggregateOffset(ctx context.Context, projectorName string, aggregateType domain.AggregateType, aggregateID string) (int64, error) {
	query := `
		SELECT sequence_number
		FROM projector_offsets
		WHERE projector_name = $1 AND aggregate_type = $2 AND aggregate_id = $3;
	`
	var seq int64
	err := r.Pool.QueryRow(ctx, query, projectorName, aggregateType, aggregateID).Scan(&seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, apperrors.NewAppError(500, "failed to read offset for aggregate "+aggregateID, err)
	}
	return seq, nil
}

func (r *PgxCheckpointRepository) SetAggregateOffset(ctx context.Context, projectorName string, aggregateType domain.AggregateType, aggregateID string, seq int64) error {
	query := `
		INSERT INTO projector_offsets (projector_name, aggregate_type, aggregate_id, sequence_number, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (projector_name, aggregate_type, aggregate_id) DO UPDATE SET
			sequence_number = EXCLUDED.sequence_number,
			updated_at = EXCLUDED.updated_at;
	`
	if _, err := r.Pool.Exec(ctx, query, projectorName, aggregateType, aggregateID, seq, time.Now().UTC()); err != nil {
		return apperrors.NewAppError(500, "failed to set offset for aggregate "+aggregateID, err)
	}
	return nil
}

func (r *PgxCheckpointRepository) MarkAggregateHalted(ctx context.Context, projectorName string, aggregateType domain.AggregateType, aggregateID string, reason string) error {
	query := `
		INSERT INTO projector_halts (projector_name, aggregate_type, aggregate_id, reason, halted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (projector_name, aggregate_type, aggregate_id) DO UPDATE SET
			reason = EXCLUDED.reason,
			halted_at = EXCLUDED.halted_at;
	`
	if _, err := r.Pool.Exec(ctx, query, projectorName, aggregateType, aggregateID, reason, time.Now().UTC()); err != nil {
		return apperrors.NewAppError(500, "failed to mark halt for aggregate "+aggregateID, err)
	}
	return nil
}

func (r *PgxCheckpointRepository) IsAggregateHalted(ctx context.Context, projectorName string, aggregateType domain.AggregateType, aggregateID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM projector_halts
			WHERE projector_name = $1 AND aggregate_type = $2 AND aggregate_id = $3
		);
	`
	var halted bool
	if err := r.Pool.QueryRow(ctx, query, projectorName, aggregateType, aggregateID).Scan(&halted); err != nil {
		return false, apperrors.NewAppError(500, "failed to read halt state for aggregate "+aggregateID, err)
	}
	return halted, nil
}

func (r *PgxCheckpointRepository) ClearHalts(ctx context.Context, projectorName string) error {
	query := `DELETE FROM projector_halts WHERE projector_name = $1;`
	if _, err := r.Pool.Exec(ctx, query, projectorName); err != nil {
		return apperrors.NewAppError(500, "failed to clear halts for projector "+projectorName, err)
	}
	return nil
}

// Reset wipes checkpoint, offsets, and halts ahead of a full rebuild.
func (r *PgxCheckpointRepository) Reset(ctx context.Context, projectorName string) error {
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer r.Rollback(ctx, tx)

	for _, query := range []string{
		`DELETE FROM projector_checkpoints WHERE projector_name = $1;`,
		`DELETE FROM projector_offsets WHERE projector_name = $1;`,
		`DELETE FROM projector_halts WHERE projector_name = $1;`,
	} {
		if _, err := tx.Exec(ctx, query, projectorName); err != nil {
			return apperrors.NewAppError(500, "failed to reset projector "+projectorName, err)
		}
	}
	return r.Commit(ctx, tx)
}
