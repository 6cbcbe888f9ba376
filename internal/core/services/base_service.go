package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
	"github.com/commonward/coop_ledger_app/internal/middleware"
)

// appendRetries bounds the re-read loop on optimistic-concurrency conflicts.
const appendRetries = 3

// BaseService provides event appending and logging shared by all services.
// Services never write projection tables directly: they validate against
// projections, append events, and let the projector fold state.
type BaseService struct {
	Repos portsrepo.RepositoryProvider
	Bus   *eventbus.Bus
}

// GetLogger gets the logger from context or returns a default one.
func (s *BaseService) GetLogger(ctx context.Context) *slog.Logger {
	logger := middleware.GetLoggerFromCtx(ctx)
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// LogError logs an error with consistent formatting.
func (s *BaseService) LogError(ctx context.Context, err error, msg string, keyvals ...any) {
	args := make([]any, 0, len(keyvals)+2)
	args = append(args, slog.String("error", err.Error()))
	args = append(args, keyvals...)
	s.GetLogger(ctx).Error(msg, args...)
}

// AppendAndPublish marshals the payload, appends the event at the aggregate's
// next sequence number, and publishes it on the in-process bus. A concurrency
// conflict triggers a bounded re-read of the latest sequence; persistent
// conflict surfaces as ErrConcurrencyConflict for the caller to re-validate.
func (s *BaseService) AppendAndPublish(ctx context.Context, aggregateType domain.AggregateType, aggregateID string, eventType domain.EventType, payload any, meta domain.EventMetadata) (*domain.Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to marshal event payload", err)
	}
	if meta.CorrelationID == "" {
		meta.CorrelationID = uuid.NewString()
	}

	var event *domain.Event
	for attempt := 0; attempt < appendRetries; attempt++ {
		latest, err := s.Repos.EventStoreRepo.LatestSequence(ctx, aggregateType, aggregateID)
		if err != nil {
			return nil, err
		}
		event, err = s.Repos.EventStoreRepo.AppendEvent(ctx, portsrepo.AppendEventParams{
			AggregateType:    aggregateType,
			AggregateID:      aggregateID,
			EventType:        eventType,
			Payload:          raw,
			Metadata:         meta,
			ExpectedSequence: latest + 1,
		})
		if err == nil {
			break
		}
		if errors.Is(err, apperrors.ErrConcurrencyConflict) && attempt < appendRetries-1 {
			continue
		}
		return nil, err
	}

	s.Bus.Publish(ctx, *event)
	return event, nil
}

func actorMeta(actorID string) domain.EventMetadata {
	return domain.EventMetadata{
		CorrelationID: uuid.NewString(),
		ActorID:       actorID,
	}
}
