package repositories

import (
	"context"
	"encoding/json"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
)

// AppendEventParams describes a new event to append to a stream.
type AppendEventParams struct {
	AggregateType domain.AggregateType
	AggregateID   string
	EventType     domain.EventType
	Payload       json.RawMessage
	Metadata      domain.EventMetadata
	// ExpectedSequence is the sequence number this append claims. Appends race
	// per aggregate; the loser gets apperrors.ErrConcurrencyConflict.
	ExpectedSequence int64
}

// EventStoreRepositoryFacade is the append-only source of truth. Events are
// never mutated or deleted; every other table is a rebuildable side effect.
type EventStoreRepositoryFacade interface {
	// AppendEvent durably appends one event, enforcing the per-aggregate
	// expected sequence via a uniqueness constraint.
	AppendEvent(ctx context.Context, params AppendEventParams) (*domain.Event, error)
	// ReadStream returns events for one aggregate ordered by sequence number,
	// starting after fromSeq. Restartable from any offset.
	ReadStream(ctx context.Context, aggregateType domain.AggregateType, aggregateID string, fromSeq int64, limit int) ([]domain.Event, error)
	// ReadAll returns events across all aggregates ordered by global sequence,
	// starting after fromGlobalSeq. Used for projector catch-up.
	ReadAll(ctx context.Context, fromGlobalSeq int64, limit int) ([]domain.Event, error)
	// LatestSequence returns the highest sequence number for an aggregate,
	// or 0 when the stream is empty.
	LatestSequence(ctx context.Context, aggregateType domain.AggregateType, aggregateID string) (int64, error)
	// FindEventByID returns a single event by its event ID.
	FindEventByID(ctx context.Context, eventID string) (*domain.Event, error)
}
