package reactors_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/reactors"
)

type fakeIdempotency struct {
	records map[string]*domain.ProcessedEvent
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{records: map[string]*domain.ProcessedEvent{}}
}

func (f *fakeIdempotency) key(eventID, handlerName string) string {
	return eventID + "/" + handlerName
}

func (f *fakeIdempotency) TryBegin(_ context.Context, eventID, handlerName string) error {
	k := f.key(eventID, handlerName)
	if _, exists := f.records[k]; exists {
		return apperrors.ErrDuplicate
	}
	f.records[k] = &domain.ProcessedEvent{
		EventID:     eventID,
		HandlerName: handlerName,
		Status:      domain.HandlerPending,
	}
	return nil
}

func (f *fakeIdempotency) MarkSuccess(_ context.Context, eventID, handlerName string) error {
	f.records[f.key(eventID, handlerName)].Status = domain.HandlerSuccess
	return nil
}

func (f *fakeIdempotency) MarkError(_ context.Context, eventID, handlerName string, retryCount int, lastError string) error {
	record := f.records[f.key(eventID, handlerName)]
	record.Status = domain.HandlerError
	record.RetryCount = retryCount
	record.LastError = lastError
	return nil
}

func (f *fakeIdempotency) Find(_ context.Context, eventID, handlerName string) (*domain.ProcessedEvent, error) {
	record, ok := f.records[f.key(eventID, handlerName)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return record, nil
}

func (f *fakeIdempotency) ListByStatus(_ context.Context, status domain.HandlerStatus, limit int) ([]domain.ProcessedEvent, error) {
	var out []domain.ProcessedEvent
	for _, r := range f.records {
		if r.Status == status && len(out) < limit {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeReactor struct {
	name     string
	handles  domain.EventType
	calls    int
	failures int
}

func (r *fakeReactor) Name() string { return r.name }

func (r *fakeReactor) Handles(eventType domain.EventType) bool { return eventType == r.handles }

func (r *fakeReactor) Handle(context.Context, domain.Event) error {
	r.calls++
	if r.calls <= r.failures {
		return errors.New("transient failure")
	}
	return nil
}

// fakeEventStore serves FindEventByID for redrive; the append/read paths are
// unused here.
type fakeEventStore struct {
	events map[string]domain.Event
}

func newFakeEventStore(events ...domain.Event) *fakeEventStore {
	store := &fakeEventStore{events: map[string]domain.Event{}}
	for _, e := range events {
		store.events[e.EventID] = e
	}
	return store
}

func (f *fakeEventStore) AppendEvent(_ context.Context, _ portsrepo.AppendEventParams) (*domain.Event, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEventStore) ReadStream(_ context.Context, _ domain.AggregateType, _ string, _ int64, _ int) ([]domain.Event, error) {
	return nil, nil
}

func (f *fakeEventStore) ReadAll(_ context.Context, _ int64, _ int) ([]domain.Event, error) {
	return nil, nil
}

func (f *fakeEventStore) LatestSequence(_ context.Context, _ domain.AggregateType, _ string) (int64, error) {
	return 0, nil
}

func (f *fakeEventStore) FindEventByID(_ context.Context, eventID string) (*domain.Event, error) {
	event, ok := f.events[eventID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &event, nil
}

func testEvent(eventType domain.EventType) domain.Event {
	return domain.Event{
		EventID:   "evt-1",
		EventType: eventType,
	}
}

func TestDispatcher_RunsMatchingReactorOnce(t *testing.T) {
	idempotency := newFakeIdempotency()
	reactor := &fakeReactor{name: "claim_creator", handles: domain.EventContribApproved}
	dispatcher := reactors.NewDispatcher(idempotency, reactors.RetryPolicy{MaxAttempts: 1}, reactor)

	event := testEvent(domain.EventContribApproved)
	require.NoError(t, dispatcher.OnEvent(context.Background(), event))
	assert.Equal(t, 1, reactor.calls)

	record, err := idempotency.Find(context.Background(), event.EventID, reactor.Name())
	require.NoError(t, err)
	assert.Equal(t, domain.HandlerSuccess, record.Status)

	// Redelivery of the same event is swallowed by the idempotency guard.
	require.NoError(t, dispatcher.OnEvent(context.Background(), event))
	assert.Equal(t, 1, reactor.calls)
}

func TestDispatcher_SkipsNonMatchingEvents(t *testing.T) {
	idempotency := newFakeIdempotency()
	reactor := &fakeReactor{name: "claim_creator", handles: domain.EventContribApproved}
	dispatcher := reactors.NewDispatcher(idempotency, reactors.RetryPolicy{MaxAttempts: 1}, reactor)

	require.NoError(t, dispatcher.OnEvent(context.Background(), testEvent(domain.EventMemberEnrolled)))
	assert.Equal(t, 0, reactor.calls)
	assert.Empty(t, idempotency.records)
}

func TestDispatcher_RetriesThenSucceeds(t *testing.T) {
	idempotency := newFakeIdempotency()
	reactor := &fakeReactor{name: "flaky", handles: domain.EventContribApproved, failures: 2}
	dispatcher := reactors.NewDispatcher(idempotency, reactors.RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  time.Millisecond,
	}, reactor)

	event := testEvent(domain.EventContribApproved)
	require.NoError(t, dispatcher.OnEvent(context.Background(), event))
	assert.Equal(t, 3, reactor.calls)

	record, err := idempotency.Find(context.Background(), event.EventID, reactor.Name())
	require.NoError(t, err)
	assert.Equal(t, domain.HandlerSuccess, record.Status)
}

func TestDispatcher_ExhaustedRetriesLeaveErrorRecord(t *testing.T) {
	idempotency := newFakeIdempotency()
	reactor := &fakeReactor{name: "broken", handles: domain.EventContribApproved, failures: 10}
	dispatcher := reactors.NewDispatcher(idempotency, reactors.RetryPolicy{
		MaxAttempts: 2,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  time.Millisecond,
	}, reactor)

	event := testEvent(domain.EventContribApproved)

	// Delivery itself does not fail; the error is parked on the record.
	require.NoError(t, dispatcher.OnEvent(context.Background(), event))
	assert.Equal(t, 2, reactor.calls)

	record, err := idempotency.Find(context.Background(), event.EventID, reactor.Name())
	require.NoError(t, err)
	assert.Equal(t, domain.HandlerError, record.Status)
	assert.Equal(t, 2, record.RetryCount)
	assert.Equal(t, "transient failure", record.LastError)

	stuck, err := idempotency.ListByStatus(context.Background(), domain.HandlerError, 10)
	require.NoError(t, err)
	assert.Len(t, stuck, 1)
}

func TestRedriveStuck_FinishesAbandonedPendingRecord(t *testing.T) {
	idempotency := newFakeIdempotency()
	reactor := &fakeReactor{name: "claim_creator", handles: domain.EventContribApproved}
	dispatcher := reactors.NewDispatcher(idempotency, reactors.RetryPolicy{MaxAttempts: 1}, reactor)

	// A crash between the claim and the side effect leaves a PENDING record;
	// redelivery alone would hit the duplicate guard and never run the handler.
	event := testEvent(domain.EventContribApproved)
	require.NoError(t, idempotency.TryBegin(context.Background(), event.EventID, reactor.Name()))
	require.NoError(t, dispatcher.OnEvent(context.Background(), event))
	assert.Equal(t, 0, reactor.calls)

	store := newFakeEventStore(event)
	require.NoError(t, dispatcher.RedriveStuck(context.Background(), store))
	assert.Equal(t, 1, reactor.calls)

	record, err := idempotency.Find(context.Background(), event.EventID, reactor.Name())
	require.NoError(t, err)
	assert.Equal(t, domain.HandlerSuccess, record.Status)
}

func TestRedriveStuck_RetriesParkedErrorRecord(t *testing.T) {
	idempotency := newFakeIdempotency()
	reactor := &fakeReactor{name: "flaky", handles: domain.EventContribApproved, failures: 1}
	dispatcher := reactors.NewDispatcher(idempotency, reactors.RetryPolicy{
		MaxAttempts: 1,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  time.Millisecond,
	}, reactor)

	event := testEvent(domain.EventContribApproved)
	require.NoError(t, dispatcher.OnEvent(context.Background(), event))

	record, err := idempotency.Find(context.Background(), event.EventID, reactor.Name())
	require.NoError(t, err)
	require.Equal(t, domain.HandlerError, record.Status)

	// The next startup pass gives the parked record another run.
	store := newFakeEventStore(event)
	require.NoError(t, dispatcher.RedriveStuck(context.Background(), store))
	assert.Equal(t, 2, reactor.calls)

	record, err = idempotency.Find(context.Background(), event.EventID, reactor.Name())
	require.NoError(t, err)
	assert.Equal(t, domain.HandlerSuccess, record.Status)
}

func TestRedriveStuck_LeavesSuccessfulRecordsAlone(t *testing.T) {
	idempotency := newFakeIdempotency()
	reactor := &fakeReactor{name: "claim_creator", handles: domain.EventContribApproved}
	dispatcher := reactors.NewDispatcher(idempotency, reactors.RetryPolicy{MaxAttempts: 1}, reactor)

	event := testEvent(domain.EventContribApproved)
	require.NoError(t, dispatcher.OnEvent(context.Background(), event))
	assert.Equal(t, 1, reactor.calls)

	store := newFakeEventStore(event)
	require.NoError(t, dispatcher.RedriveStuck(context.Background(), store))
	assert.Equal(t, 1, reactor.calls, "a SUCCESS record must not run again")
}

func TestRedriveStuck_KeepsFailingRecordParked(t *testing.T) {
	idempotency := newFakeIdempotency()
	reactor := &fakeReactor{name: "broken", handles: domain.EventContribApproved, failures: 10}
	dispatcher := reactors.NewDispatcher(idempotency, reactors.RetryPolicy{
		MaxAttempts: 1,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  time.Millisecond,
	}, reactor)

	event := testEvent(domain.EventContribApproved)
	require.NoError(t, dispatcher.OnEvent(context.Background(), event))

	store := newFakeEventStore(event)
	require.NoError(t, dispatcher.RedriveStuck(context.Background(), store))

	record, err := idempotency.Find(context.Background(), event.EventID, reactor.Name())
	require.NoError(t, err)
	assert.Equal(t, domain.HandlerError, record.Status)
}

func TestDispatcher_IndependentGuardsPerReactor(t *testing.T) {
	idempotency := newFakeIdempotency()
	first := &fakeReactor{name: "first", handles: domain.EventContribApproved}
	second := &fakeReactor{name: "second", handles: domain.EventContribApproved}
	dispatcher := reactors.NewDispatcher(idempotency, reactors.RetryPolicy{MaxAttempts: 1}, first, second)

	require.NoError(t, dispatcher.OnEvent(context.Background(), testEvent(domain.EventContribApproved)))
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Len(t, idempotency.records, 2)
}
