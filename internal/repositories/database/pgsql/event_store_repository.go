package pgsql

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/metrics"
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// PgxEventStoreRepository is the append-only event log. The
// (aggregate_type, aggregate_id, sequence_number) unique constraint is the
// optimistic-concurrency mechanism: concurrent appends to the same aggregate
// race and the loser gets ErrConcurrencyConflict.
type PgxEventStoreRepository struct {
	BaseRepository
}

func newPgxEventStoreRepository(pool *pgxpool.Pool) portsrepo.EventStoreRepositoryFacade {
	return &PgxEventStoreRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.EventStoreRepositoryFacade = (*PgxEventStoreRepository)(nil)

// AppendEvent durably appends one event at the expected sequence number.
func (r *PgxEventStoreRepository) AppendEvent(ctx context.Context, params portsrepo.AppendEventParams) (*domain.Event, error) {
	event := domain.Event{
		EventID:        uuid.NewString(),
		AggregateType:  params.AggregateType,
		AggregateID:    params.AggregateID,
		EventType:      params.EventType,
		Payload:        params.Payload,
		Metadata:       params.Metadata,
		SequenceNumber: params.ExpectedSequence,
		OccurredAt:     time.Now().UTC(),
	}

	query := `
		INSERT INTO events (
			event_id, aggregate_type, aggregate_id, event_type, payload,
			correlation_id, causation_id, actor_id, sequence_number, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING global_seq;
	`
	err := r.Pool.QueryRow(ctx, query,
		event.EventID,
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		event.Payload,
		event.Metadata.CorrelationID,
		nullIfEmpty(event.Metadata.CausationID),
		nullIfEmpty(event.Metadata.ActorID),
		event.SequenceNumber,
		event.OccurredAt,
	).Scan(&event.GlobalSequence)

	if err != nil {
		if isUniqueViolation(err) {
			metrics.ConcurrencyConflicts.Inc()
			return nil, apperrors.ErrConcurrencyConflict
		}
		return nil, apperrors.NewAppError(500, "failed to append event for aggregate "+params.AggregateID, err)
	}

	metrics.EventsAppended.WithLabelValues(string(event.AggregateType)).Inc()
	return &event, nil
}

const eventColumns = `
	event_id, aggregate_type, aggregate_id, event_type, payload,
	correlation_id, causation_id, actor_id, sequence_number, global_seq, occurred_at
`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	var causationID, actorID *string
	err := row.Scan(
		&e.EventID,
		&e.AggregateType,
		&e.AggregateID,
		&e.EventType,
		&e.Payload,
		&e.Metadata.CorrelationID,
		&causationID,
		&actorID,
		&e.SequenceNumber,
		&e.GlobalSequence,
		&e.OccurredAt,
	)
	if err != nil {
		return domain.Event{}, err
	}
	if causationID != nil {
		e.Metadata.CausationID = *causationID
	}
	if actorID != nil {
		e.Metadata.ActorID = *actorID
	}
	return e, nil
}

// ReadStream returns events for one aggregate after fromSeq, in sequence order.
func (r *PgxEventStoreRepository) ReadStream(ctx context.Context, aggregateType domain.AggregateType, aggregateID string, fromSeq int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE aggregate_type = $1 AND aggregate_id = $2 AND sequence_number > $3
		ORDER BY sequence_number
		LIMIT $4;
	`
	rows, err := r.Pool.Query(ctx, query, aggregateType, aggregateID, fromSeq, limit)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to read stream for aggregate "+aggregateID, err)
	}
	defer rows.Close()
	return collectEvents(rows, "aggregate "+aggregateID)
}

// ReadAll returns events across aggregates after fromGlobalSeq, in global order.
func (r *PgxEventStoreRepository) ReadAll(ctx context.Context, fromGlobalSeq int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE global_seq > $1
		ORDER BY global_seq
		LIMIT $2;
	`
	rows, err := r.Pool.Query(ctx, query, fromGlobalSeq, limit)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to read global event stream", err)
	}
	defer rows.Close()
	return collectEvents(rows, "global stream")
}

func collectEvents(rows pgx.Rows, what string) ([]domain.Event, error) {
	events := []domain.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to scan event row for "+what, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewAppError(500, "error iterating event rows for "+what, err)
	}
	return events, nil
}

// LatestSequence returns the highest sequence for an aggregate, 0 when empty.
func (r *PgxEventStoreRepository) LatestSequence(ctx context.Context, aggregateType domain.AggregateType, aggregateID string) (int64, error) {
	query := `
		SELECT COALESCE(MAX(sequence_number), 0)
		FROM events
		WHERE aggregate_type = $1 AND aggregate_id = $2;
	`
	var seq int64
	if err := r.Pool.QueryRow(ctx, query, aggregateType, aggregateID).Scan(&seq); err != nil {
		return 0, apperrors.NewAppError(500, "failed to read latest sequence for aggregate "+aggregateID, err)
	}
	return seq, nil
}

// FindEventByID returns one event by its ID.
func (r *PgxEventStoreRepository) FindEventByID(ctx context.Context, eventID string) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE event_id = $1;`
	e, err := scanEvent(r.Pool.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.NewAppError(500, "failed to find event "+eventID, err)
	}
	return &e, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
