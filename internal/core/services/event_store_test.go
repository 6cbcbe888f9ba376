package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
)

func appendParams(aggregateID string, seq int64) portsrepo.AppendEventParams {
	return portsrepo.AppendEventParams{
		AggregateType:    domain.AggregatePeriod,
		AggregateID:      aggregateID,
		EventType:        domain.EventPeriodOpened,
		Payload:          json.RawMessage(`{}`),
		ExpectedSequence: seq,
	}
}

func TestAppendEvent_RejectsStaleExpectedSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.store.AppendEvent(ctx, appendParams("p-1", 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.SequenceNumber)

	// A writer that read the stream before the first append still expects
	// sequence 1; its append must lose.
	_, err = env.store.AppendEvent(ctx, appendParams("p-1", 1))
	require.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)

	_, err = env.store.AppendEvent(ctx, appendParams("p-1", 3))
	require.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)

	second, err := env.store.AppendEvent(ctx, appendParams("p-1", 2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.SequenceNumber)
	assert.Greater(t, second.GlobalSequence, first.GlobalSequence)
}

func TestAppendEvent_SequencesArePerAggregate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.store.AppendEvent(ctx, appendParams("p-1", 1))
	require.NoError(t, err)

	// A different aggregate starts its own stream at 1.
	other, err := env.store.AppendEvent(ctx, appendParams("p-2", 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.SequenceNumber)
	assert.Equal(t, int64(2), other.GlobalSequence)
}

func TestReadStream_IsRestartableFromAnyOffset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for seq := int64(1); seq <= 5; seq++ {
		_, err := env.store.AppendEvent(ctx, appendParams("p-1", seq))
		require.NoError(t, err)
	}

	tail, err := env.store.ReadStream(ctx, domain.AggregatePeriod, "p-1", 3, 10)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, int64(4), tail[0].SequenceNumber)
	assert.Equal(t, int64(5), tail[1].SequenceNumber)

	latest, err := env.store.LatestSequence(ctx, domain.AggregatePeriod, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), latest)
}
