package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/retailstream/internal/runtime/events"
)

var burstAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func payloads(burst []events.Envelope) []events.Payload {
	out := make([]events.Payload, len(burst))
	for i, env := range burst {
		out[i] = env.Payload
	}
	return out
}

func TestSyntheticIsDeterministicForSeed(t *testing.T) {
	cfg := Config{Seed: 42, BurstSize: 25, Stores: 3, Customers: 20, Products: 10}
	a, err := NewSynthetic(cfg)
	require.NoError(t, err)
	b, err := NewSynthetic(cfg)
	require.NoError(t, err)

	for range 5 {
		first, err := a.GenerateBurst(burstAt)
		require.NoError(t, err)
		second, err := b.GenerateBurst(burstAt)
		require.NoError(t, err)
		assert.Equal(t, payloads(first), payloads(second))
	}
}

func TestSyntheticFirstBurstOpensStores(t *testing.T) {
	g, err := NewSynthetic(Config{Seed: 7, BurstSize: 1, Stores: 3})
	require.NoError(t, err)

	// The openings alone satisfy a burst size of one.
	burst, err := g.GenerateBurst(burstAt)
	require.NoError(t, err)
	require.Len(t, burst, 3)
	for i := range 3 {
		assert.Equal(t, events.StoreOpened, burst[i].EventType)
	}

	next, err := g.GenerateBurst(burstAt.Add(time.Second))
	require.NoError(t, err)
	require.NotEmpty(t, next)
	for _, env := range next {
		assert.NotEqual(t, events.StoreOpened, env.EventType)
	}
}

func TestSyntheticBurstsAreValid(t *testing.T) {
	g, err := NewSynthetic(Config{Seed: 99, BurstSize: 40})
	require.NoError(t, err)
	require.NoError(t, g.Init(context.Background()))

	seen := map[string]bool{}
	for i := range 20 {
		burst, err := g.GenerateBurst(burstAt.Add(time.Duration(i) * time.Second))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(burst), 40)

		for _, env := range burst {
			require.NoError(t, env.Validate())
			assert.False(t, seen[env.TraceID], "duplicate trace id %s", env.TraceID)
			seen[env.TraceID] = true
			if env.ParentEventID != "" {
				assert.True(t, seen[env.ParentEventID], "parent %s emitted after child", env.ParentEventID)
			}
		}
	}
}

func TestSyntheticReceiptTotalsAddUp(t *testing.T) {
	g, err := NewSynthetic(Config{Seed: 3, BurstSize: 200})
	require.NoError(t, err)

	burst, err := g.GenerateBurst(burstAt)
	require.NoError(t, err)

	checked := 0
	for _, env := range burst {
		receipt, ok := env.Payload.(events.ReceiptCreatedPayload)
		if !ok {
			continue
		}
		assert.True(t, receipt.Subtotal.Add(receipt.Tax).Equal(receipt.Total))
		assert.True(t, receipt.Total.IsPositive())
		checked++
	}
	assert.Positive(t, checked)
}

func TestSyntheticFinishEmitsStoreClosedOnce(t *testing.T) {
	g, err := NewSynthetic(Config{Seed: 1, Stores: 2})
	require.NoError(t, err)
	_, err = g.GenerateBurst(burstAt)
	require.NoError(t, err)

	closed := g.Finish(burstAt)
	require.Len(t, closed, 2)
	assert.Equal(t, events.StoreClosed, closed[0].EventType)
	assert.Empty(t, g.Finish(burstAt))
}

func TestNewSyntheticRejectsNegativeSizes(t *testing.T) {
	_, err := NewSynthetic(Config{Stores: -1})
	assert.Error(t, err)
}

func TestFuncAdapter(t *testing.T) {
	var gen ContentGenerator = Func(func(now time.Time) ([]events.Envelope, error) {
		return []events.Envelope{events.New(events.StoreOpenedPayload{StoreID: "ST001", OperationTime: now}, now)}, nil
	})
	burst, err := gen.GenerateBurst(burstAt)
	require.NoError(t, err)
	assert.Len(t, burst, 1)
}
