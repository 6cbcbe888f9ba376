package eventbus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
)

type recordingSubscriber struct {
	name string
	err  error
	log  *[]string
}

func (s *recordingSubscriber) Name() string { return s.name }

func (s *recordingSubscriber) OnEvent(context.Context, domain.Event) error {
	*s.log = append(*s.log, s.name)
	return s.err
}

func TestPublish_DeliversInRegistrationOrder(t *testing.T) {
	bus := eventbus.New()
	var log []string
	bus.Subscribe(&recordingSubscriber{name: "projector", log: &log})
	bus.Subscribe(&recordingSubscriber{name: "reactors", log: &log})

	bus.Publish(context.Background(), domain.Event{EventID: "evt-1"})
	assert.Equal(t, []string{"projector", "reactors"}, log)
}

func TestPublish_SubscriberErrorDoesNotStopDelivery(t *testing.T) {
	bus := eventbus.New()
	var log []string
	bus.Subscribe(&recordingSubscriber{name: "first", err: errors.New("boom"), log: &log})
	bus.Subscribe(&recordingSubscriber{name: "second", log: &log})

	bus.Publish(context.Background(), domain.Event{EventID: "evt-1"})
	assert.Equal(t, []string{"first", "second"}, log)
}

func TestPublish_NoSubscribers(t *testing.T) {
	bus := eventbus.New()
	bus.Publish(context.Background(), domain.Event{EventID: "evt-1"})
}
