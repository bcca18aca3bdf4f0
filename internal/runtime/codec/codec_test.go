package codec

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/retailstream/internal/runtime/errors"
	"github.com/drblury/retailstream/internal/runtime/events"
)

func sampleEnvelope() events.Envelope {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	env := events.New(events.ReceiptCreatedPayload{
		StoreID:    "store-7",
		ReceiptID:  "rcpt-1",
		Subtotal:   decimal.RequireFromString("11.50"),
		Tax:        decimal.RequireFromString("1.00"),
		Total:      decimal.RequireFromString("12.50"),
		TenderType: "CARD",
		ItemCount:  3,
	}, at)
	return env.Stamp("corr-1", "session-1", at)
}

func TestNewSelectsCodec(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, NameJSON, c.Name())

	c, err = New("PROTO")
	require.NoError(t, err)
	assert.Equal(t, NameProto, c.Name())

	_, err = New("avro")
	assert.ErrorIs(t, err, errspkg.ErrUnknownCodec)
}

func TestJSONWritesCloudEvent(t *testing.T) {
	env := sampleEnvelope()
	c := JSON{}

	data, err := c.Encode(env)
	require.NoError(t, err)

	decoded, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "1.0", decoded["specversion"])
	assert.Equal(t, "retail.receipt_created", decoded["type"])
	assert.Equal(t, DefaultSource, decoded["source"])
	assert.Equal(t, env.TraceID, decoded["id"])
	assert.Equal(t, "corr-1", decoded["correlationid"])
	assert.Equal(t, "session-1", decoded["sessionid"])
	assert.NotContains(t, decoded, "parentid")

	payload, ok := decoded["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "12.5", payload["total"])
	assert.Equal(t, "store-7", payload["store_id"])
}

func TestProtoCarriesEnvelopeThroughStruct(t *testing.T) {
	env := sampleEnvelope().WithParent("parent-1")
	c := Proto{}

	data, err := c.Encode(env)
	require.NoError(t, err)

	decoded, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "receipt_created", decoded["event_type"])
	assert.Equal(t, env.TraceID, decoded["trace_id"])
	assert.Equal(t, "parent-1", decoded["parent_event_id"])
	assert.Equal(t, "2026-03-14T09:30:00Z", decoded["ingest_timestamp"])

	payload, ok := decoded["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "12.5", payload["total"])
	assert.Equal(t, float64(3), payload["item_count"])
}

func TestEstimateSizeMatchesJSONLength(t *testing.T) {
	env := sampleEnvelope()
	data, err := api.Marshal(env)
	require.NoError(t, err)
	assert.Equal(t, len(data), EstimateSize(env))
	assert.Positive(t, EstimateSize(env))
}
