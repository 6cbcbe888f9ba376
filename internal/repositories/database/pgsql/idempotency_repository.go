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

// PgxIdempotencyRepository persists processed-event records. The primary key
// on (event_id, handler_name) is the at-most-once guarantee.
type PgxIdempotencyRepository struct {
	BaseRepository
}

func newPgxIdempotencyRepository(pool *pgxpool.Pool) portsrepo.IdempotencyRepositoryFacade {
	return &PgxIdempotencyRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.IdempotencyRepositoryFacade = (*PgxIdempotencyRepository)(nil)

// TryBegin claims the (eventID, handlerName) pair. A concurrent or earlier
// claim surfaces as ErrDuplicate and the caller must not run the handler.
func (r *PgxIdempotencyRepository) TryBegin(ctx context.Context, eventID, handlerName string) error {
	query := `
		INSERT INTO processed_events (event_id, handler_name, status, retry_count, processed_at)
		VALUES ($1, $2, $3, 0, $4);
	`
	_, err := r.Pool.Exec(ctx, query, eventID, handlerName, domain.HandlerPending, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicate
		}
		return apperrors.NewAppError(500, "failed to begin idempotency record for event "+eventID, err)
	}
	return nil
}

func (r *PgxIdempotencyRepository) MarkSuccess(ctx context.Context, eventID, handlerName string) error {
	query := `
		UPDATE processed_events
		SET status = $3, last_error = NULL, processed_at = $4
		WHERE event_id = $1 AND handler_name = $2;
	`
	cmdTag, err := r.Pool.Exec(ctx, query, eventID, handlerName, domain.HandlerSuccess, time.Now().UTC())
	if err != nil {
		return apperrors.NewAppError(500, "failed to mark success for event "+eventID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("idempotency record missing for event " + eventID + " handler " + handlerName)
	}
	return nil
}

func (r *PgxIdempotencyRepository) MarkError(ctx context.Context, eventID, handlerName string, retryCount int, lastError string) error {
	query := `
		UPDATE processed_events
		SET status = $3, retry_count = $4, last_error = $5, processed_at = $6
		WHERE event_id = $1 AND handler_name = $2;
	`
	cmdTag, err := r.Pool.Exec(ctx, query, eventID, handlerName, domain.HandlerError, retryCount, lastError, time.Now().UTC())
	if err != nil {
		return apperrors.NewAppError(500, "failed to mark error for event "+eventID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("idempotency record missing for event " + eventID + " handler " + handlerName)
	}
	return nil
}

func scanProcessedEvent(row pgx.Row) (domain.ProcessedEvent, error) {
	var p domain.ProcessedEvent
	var lastError *string
	err := row.Scan(
		&p.EventID,
		&p.HandlerName,
		&p.Status,
		&p.RetryCount,
		&lastError,
		&p.ProcessedAt,
	)
	if lastError != nil {
		p.LastError = *lastError
	}
	return p, err
}

const processedEventColumns = `
	event_id, handler_name, status, retry_count, last_error, processed_at
`

func (r *PgxIdempotencyRepository) Find(ctx context.Context, eventID, handlerName string) (*domain.ProcessedEvent, error) {
	query := `
		SELECT ` + processedEventColumns + `
		FROM processed_events
		WHERE event_id = $1 AND handler_name = $2;
	`
	p, err := scanProcessedEvent(r.Pool.QueryRow(ctx, query, eventID, handlerName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find idempotency record for event "+eventID, err)
	}
	return &p, nil
}

func (r *PgxIdempotencyRepository) ListByStatus(ctx context.Context, status domain.HandlerStatus, limit int) ([]domain.ProcessedEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + processedEventColumns + `
		FROM processed_events
		WHERE status = $1
		ORDER BY processed_at
		LIMIT $2;
	`
	rows, err := r.Pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to list idempotency records", err)
	}
	defer rows.Close()

	records := []domain.ProcessedEvent{}
	for rows.Next() {
		p, err := scanProcessedEvent(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan idempotency record row", err)
		}
		records = append(records, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating idempotency record rows", err)
	}
	return records, nil
}
