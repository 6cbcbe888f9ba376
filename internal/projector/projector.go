package projector

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/metrics"
	"github.com/commonward/coop_ledger_app/internal/middleware"
)

// ProjectorName keys the checkpoint rows of the single read-model projector.
const ProjectorName = "read_model"

const catchUpBatchSize = 500

// Reducer applies one event to the projection tables. Reducers must be
// idempotent: the same event may be delivered again after a crash between
// the projection write and the offset write.
type Reducer func(ctx context.Context, event domain.Event) error

// Projector folds the event log into the projection tables. It consumes
// events two ways: synchronously from the in-process bus on commit, and in
// batches via CatchUp after a restart. Both paths share the per-aggregate
// offset guard, so an event is applied at most once.
type Projector struct {
	repos    portsrepo.RepositoryProvider
	reducers map[domain.EventType]Reducer
}

func New(repos portsrepo.RepositoryProvider) *Projector {
	p := &Projector{
		repos:    repos,
		reducers: map[domain.EventType]Reducer{},
	}
	p.registerReducers()
	return p
}

// Name implements eventbus.Subscriber.
func (p *Projector) Name() string {
	return ProjectorName
}

// OnEvent implements eventbus.Subscriber: apply one committed event.
func (p *Projector) OnEvent(ctx context.Context, event domain.Event) error {
	return p.apply(ctx, event)
}

// apply runs the reducer for one event behind the halt and offset guards,
// then advances the aggregate offset and global checkpoint.
func (p *Projector) apply(ctx context.Context, event domain.Event) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	halted, err := p.repos.CheckpointRepo.IsAggregateHalted(ctx, ProjectorName, event.AggregateType, event.AggregateID)
	if err != nil {
		return err
	}
	if halted {
		logger.Warn("Skipping event for halted aggregate",
			slog.String("aggregate_id", event.AggregateID),
			slog.String("event_id", event.EventID),
		)
		// Checkpoint still advances; otherwise catch-up would re-read the
		// same batch forever. The aggregate offset stays put for the rebuild.
		return p.advanceCheckpoint(ctx, event.GlobalSequence)
	}

	offset, err := p.repos.CheckpointRepo.GetAggregateOffset(ctx, ProjectorName, event.AggregateType, event.AggregateID)
	if err != nil {
		return err
	}
	if event.SequenceNumber <= offset {
		// Already applied; redelivery after catch-up or crash.
		return p.advanceCheckpoint(ctx, event.GlobalSequence)
	}

	if reducer, ok := p.reducers[event.EventType]; ok {
		if err := reducer(ctx, event); err != nil {
			metrics.ProjectionErrors.WithLabelValues(string(event.EventType)).Inc()
			logger.Error("Reducer failed; halting aggregate",
				slog.String("aggregate_id", event.AggregateID),
				slog.String("event_type", string(event.EventType)),
				slog.String("error", err.Error()),
			)
			if haltErr := p.repos.CheckpointRepo.MarkAggregateHalted(ctx, ProjectorName, event.AggregateType, event.AggregateID, err.Error()); haltErr != nil {
				return haltErr
			}
			return err
		}
		metrics.EventsProjected.WithLabelValues(string(event.EventType)).Inc()
	}
	// Event types without a reducer (close-flow audit events) still advance
	// the offset so catch-up does not reprocess them forever.

	if err := p.repos.CheckpointRepo.SetAggregateOffset(ctx, ProjectorName, event.AggregateType, event.AggregateID, event.SequenceNumber); err != nil {
		return err
	}
	return p.advanceCheckpoint(ctx, event.GlobalSequence)
}

func (p *Projector) advanceCheckpoint(ctx context.Context, globalSeq int64) error {
	checkpoint, err := p.repos.CheckpointRepo.GetGlobalCheckpoint(ctx, ProjectorName)
	if err != nil {
		return err
	}
	if globalSeq <= checkpoint {
		return nil
	}
	return p.repos.CheckpointRepo.SetGlobalCheckpoint(ctx, ProjectorName, globalSeq)
}

// CatchUp replays events committed past the global checkpoint, in batches,
// until the head of the log. Called on startup before the HTTP server takes
// traffic, and by the replay command.
func (p *Projector) CatchUp(ctx context.Context) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	for {
		checkpoint, err := p.repos.CheckpointRepo.GetGlobalCheckpoint(ctx, ProjectorName)
		if err != nil {
			return err
		}
		events, err := p.repos.EventStoreRepo.ReadAll(ctx, checkpoint, catchUpBatchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			metrics.ProjectorLag.Set(0)
			return nil
		}

		logger.Info("Projector catching up",
			slog.Int64("from_global_seq", checkpoint),
			slog.Int("batch_size", len(events)),
		)
		for _, event := range events {
			if err := p.apply(ctx, event); err != nil {
				// The aggregate is halted; continue with the rest of the log.
				continue
			}
		}
		metrics.ProjectorLag.Set(float64(len(events)))

		// A full batch that moves the checkpoint nowhere would be re-read on
		// the next iteration, forever. Surface the stall instead of spinning.
		after, err := p.repos.CheckpointRepo.GetGlobalCheckpoint(ctx, ProjectorName)
		if err != nil {
			return err
		}
		if after <= checkpoint {
			return apperrors.NewAppError(500,
				"projector made no progress past global sequence "+strconv.FormatInt(checkpoint, 10),
				apperrors.ErrProjection)
		}
	}
}

// Rebuild truncates the projection tables, resets projector state, and
// replays the full log. The event store is untouched.
func (p *Projector) Rebuild(ctx context.Context) error {
	logger := middleware.GetLoggerFromCtx(ctx)
	logger.Info("Rebuilding projections from event log")

	if err := p.repos.ProjectionAdmin.TruncateProjections(ctx); err != nil {
		return err
	}
	if err := p.repos.CheckpointRepo.Reset(ctx, ProjectorName); err != nil {
		return err
	}
	return p.CatchUp(ctx)
}
