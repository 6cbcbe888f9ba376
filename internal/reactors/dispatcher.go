package reactors

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/metrics"
	"github.com/commonward/coop_ledger_app/internal/middleware"
)

// Reactor reacts to one kind of committed event with a side effect in
// another context. Reactors never run twice for the same event: the
// dispatcher claims an idempotency record before invoking them.
type Reactor interface {
	Name() string
	Handles(eventType domain.EventType) bool
	Handle(ctx context.Context, event domain.Event) error
}

// RetryPolicy bounds reactor retries with exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Multiplier  float64
}

// Dispatcher fans committed events out to reactors behind the idempotency
// guard. It subscribes to the bus after the projector, so reactors always
// see up-to-date projections.
type Dispatcher struct {
	idempotency portsrepo.IdempotencyRepositoryFacade
	reactors    []Reactor
	policy      RetryPolicy
}

func NewDispatcher(idempotency portsrepo.IdempotencyRepositoryFacade, policy RetryPolicy, reactors ...Reactor) *Dispatcher {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = time.Second
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = time.Minute
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 2
	}
	return &Dispatcher{idempotency: idempotency, reactors: reactors, policy: policy}
}

// Name implements eventbus.Subscriber.
func (d *Dispatcher) Name() string {
	return "reactor_dispatcher"
}

// OnEvent implements eventbus.Subscriber.
func (d *Dispatcher) OnEvent(ctx context.Context, event domain.Event) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	for _, r := range d.reactors {
		if !r.Handles(event.EventType) {
			continue
		}

		err := d.idempotency.TryBegin(ctx, event.EventID, r.Name())
		if errors.Is(err, apperrors.ErrDuplicate) {
			metrics.ReactorExecutions.WithLabelValues(r.Name(), "duplicate").Inc()
			continue
		}
		if err != nil {
			return err
		}

		if err := d.runWithRetry(ctx, r, event); err != nil {
			logger.Error("Reactor exhausted retries",
				slog.String("handler", r.Name()),
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
			// The ERROR record stays for operators; no crash of delivery.
			continue
		}

		if err := d.idempotency.MarkSuccess(ctx, event.EventID, r.Name()); err != nil {
			return err
		}
		metrics.ReactorExecutions.WithLabelValues(r.Name(), "success").Inc()
	}
	return nil
}

const redriveBatchLimit = 500

// RedriveStuck re-runs reactors whose idempotency records never reached
// SUCCESS: PENDING records abandoned by a crash between the claim and the
// side effect, and ERROR records whose retries were exhausted. Call it on
// startup before the bus takes traffic, so no handler is in flight.
func (d *Dispatcher) RedriveStuck(ctx context.Context, store portsrepo.EventStoreRepositoryFacade) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	byName := map[string]Reactor{}
	for _, r := range d.reactors {
		byName[r.Name()] = r
	}

	for _, status := range []domain.HandlerStatus{domain.HandlerPending, domain.HandlerError} {
		records, err := d.idempotency.ListByStatus(ctx, status, redriveBatchLimit)
		if err != nil {
			return err
		}
		for _, record := range records {
			r, known := byName[record.HandlerName]
			if !known {
				logger.Warn("Stuck record for unknown handler",
					slog.String("handler", record.HandlerName),
					slog.String("event_id", record.EventID),
				)
				continue
			}
			event, err := store.FindEventByID(ctx, record.EventID)
			if err != nil {
				return err
			}
			if err := d.runWithRetry(ctx, r, *event); err != nil {
				// The record keeps its non-SUCCESS status for the next pass.
				logger.Error("Redrive failed",
					slog.String("handler", record.HandlerName),
					slog.String("event_id", record.EventID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if err := d.idempotency.MarkSuccess(ctx, record.EventID, record.HandlerName); err != nil {
				return err
			}
			metrics.ReactorExecutions.WithLabelValues(record.HandlerName, "redriven").Inc()
		}
	}
	return nil
}

// runWithRetry executes the reactor with bounded exponential backoff. The
// final failure is persisted on the idempotency record.
func (d *Dispatcher) runWithRetry(ctx context.Context, r Reactor, event domain.Event) error {
	backoff := d.policy.BaseBackoff
	var lastErr error

	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		lastErr = r.Handle(ctx, event)
		if lastErr == nil {
			return nil
		}

		if attempt < d.policy.MaxAttempts {
			metrics.ReactorRetries.WithLabelValues(r.Name()).Inc()
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = d.policy.MaxAttempts
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * d.policy.Multiplier)
			if backoff > d.policy.MaxBackoff {
				backoff = d.policy.MaxBackoff
			}
		}
	}

	metrics.ReactorExecutions.WithLabelValues(r.Name(), "error").Inc()
	if markErr := d.idempotency.MarkError(ctx, event.EventID, r.Name(), d.policy.MaxAttempts, lastErr.Error()); markErr != nil {
		return markErr
	}
	return lastErr
}
