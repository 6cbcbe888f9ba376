package repositories

import (
	"context"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
)

// WorkflowRepositoryFacade persists period-close saga state. The saga is
// resumed by re-reading this state, never by keeping a process alive.
type WorkflowRepositoryFacade interface {
	SaveWorkflow(ctx context.Context, wf domain.PeriodCloseWorkflow) error
	FindWorkflowByPeriodID(ctx context.Context, periodID string) (*domain.PeriodCloseWorkflow, error)
	ListWorkflows(ctx context.Context, statuses []domain.CloseStep) ([]domain.PeriodCloseWorkflow, error)
}

// IdempotencyRepositoryFacade persists processed-event records. The unique
// (eventID, handlerName) constraint serializes concurrent handling of the
// same event without an external lock.
type IdempotencyRepositoryFacade interface {
	// TryBegin inserts a PENDING record; returns apperrors.ErrDuplicate when
	// the (eventID, handlerName) pair already exists.
	TryBegin(ctx context.Context, eventID, handlerName string) error
	MarkSuccess(ctx context.Context, eventID, handlerName string) error
	MarkError(ctx context.Context, eventID, handlerName string, retryCount int, lastError string) error
	Find(ctx context.Context, eventID, handlerName string) (*domain.ProcessedEvent, error)
	// ListByStatus lets operators diagnose stuck events.
	ListByStatus(ctx context.Context, status domain.HandlerStatus, limit int) ([]domain.ProcessedEvent, error)
}

// CheckpointRepositoryFacade persists projector progress: a global checkpoint
// for incremental catch-up plus per-aggregate offsets and halt markers.
type CheckpointRepositoryFacade interface {
	GetGlobalCheckpoint(ctx context.Context, projectorName string) (int64, error)
	SetGlobalCheckpoint(ctx context.Context, projectorName string, globalSeq int64) error
	GetAggregateOffset(ctx context.Context, projectorName string, aggregateType domain.AggregateType, aggregateID string) (int64, error)
	SetAggregateOffset(ctx context.Context, projectorName string, aggregateType domain.AggregateType, aggregateID string, seq int64) error
	MarkAggregateHalted(ctx context.Context, projectorName string, aggregateType domain.AggregateType, aggregateID string, reason string) error
	IsAggregateHalted(ctx context.Context, projectorName string, aggregateType domain.AggregateType, aggregateID string) (bool, error)
	ClearHalts(ctx context.Context, projectorName string) error
	// Reset clears checkpoints and offsets ahead of a full rebuild.
	Reset(ctx context.Context, projectorName string) error
}

// ProjectionAdminFacade supports full projection rebuilds.
type ProjectionAdminFacade interface {
	// TruncateProjections empties every projection table. The event store is
	// untouched; projections are disposable caches.
	TruncateProjections(ctx context.Context) error
}
