package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/retailstream/internal/runtime/classify"
	"github.com/drblury/retailstream/internal/runtime/codec"
	errspkg "github.com/drblury/retailstream/internal/runtime/errors"
	"github.com/drblury/retailstream/internal/runtime/events"
	metadatapkg "github.com/drblury/retailstream/internal/runtime/metadata"
	pubtransport "github.com/drblury/retailstream/transport"
	"github.com/drblury/retailstream/transport/transporttest"
)

func newPublisherTransport(t *testing.T, pub message.Publisher, caps pubtransport.Capabilities) *PublisherTransport {
	t.Helper()
	pt, err := NewPublisherTransport(pubtransport.Sink{Publisher: pub, Capabilities: caps}, PublisherOptions{TopicPrefix: "shop"})
	require.NoError(t, err)
	return pt
}

func mixedBatch() []events.Envelope {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	receipt := events.New(events.ReceiptCreatedPayload{
		StoreID: "store-1", ReceiptID: "r-1", TenderType: "CARD", ItemCount: 2,
		Subtotal: decimal.RequireFromString("10"), Tax: decimal.RequireFromString("1"), Total: decimal.RequireFromString("11"),
	}, at).Stamp("corr-1", "sess-1", at)
	opened := events.New(events.StoreOpenedPayload{StoreID: "store-1", OperationTime: at}, at).Stamp("corr-1", "sess-1", at)
	line := events.New(events.ReceiptLineAddedPayload{
		ReceiptID: "r-1", LineNumber: 1, ProductID: "p-1", Quantity: 2,
		UnitPrice: decimal.RequireFromString("5"), ExtendedPrice: decimal.RequireFromString("10"),
	}, at).WithParent(receipt.TraceID).Stamp("corr-1", "sess-1", at)
	return []events.Envelope{receipt, opened, line}
}

func TestNewPublisherTransportRequiresPublisher(t *testing.T) {
	_, err := NewPublisherTransport(pubtransport.Sink{}, PublisherOptions{})
	assert.ErrorIs(t, err, errspkg.ErrPublisherRequired)
}

func TestPublisherTransportRoutesByEventType(t *testing.T) {
	pub := &transporttest.Publisher{}
	pt := newPublisherTransport(t, pub, pubtransport.ChannelCapabilities)

	batch := mixedBatch()
	require.NoError(t, pt.Send(context.Background(), batch))

	assert.ElementsMatch(t, []string{"shop.receipt_created", "shop.store_opened", "shop.receipt_line_added"}, pub.Topics())
	assert.Equal(t, "shop.store_opened", pt.Topic(events.StoreOpened))

	msgs := pub.Messages("shop.receipt_line_added")
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, batch[2].TraceID, msg.UUID)
	assert.Equal(t, "receipt_line_added", msg.Metadata.Get(metadatapkg.KeyEventType))
	assert.Equal(t, "corr-1", msg.Metadata.Get(metadatapkg.KeyCorrelationID))
	assert.Equal(t, "sess-1", msg.Metadata.Get(metadatapkg.KeySessionID))
	assert.Equal(t, batch[0].TraceID, msg.Metadata.Get(metadatapkg.KeyParentEventID))
	assert.Equal(t, "application/cloudevents+json", msg.Metadata.Get(metadatapkg.KeyContentType))

	decoded, err := codec.JSON{}.Decode(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, "retail.receipt_line_added", decoded["type"])
}

func TestPublisherTransportRejectsOversizeBeforePublishing(t *testing.T) {
	pub := &transporttest.Publisher{}
	tiny := pubtransport.Capabilities{Name: "tiny", MaxMessageSize: 64}
	pt := newPublisherTransport(t, pub, tiny)

	err := pt.Send(context.Background(), mixedBatch())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	classified := classify.Classify(err)
	assert.Equal(t, classify.CategorySerialization, classified.Category)
	assert.Equal(t, classify.SeverityPermanent, classified.Severity)
	assert.False(t, classified.Retryable)
	assert.Empty(t, pub.Topics())
}

func TestPublisherTransportPropagatesPublishError(t *testing.T) {
	boom := errors.New("broker unavailable")
	pub := &transporttest.Publisher{Err: boom}
	pt := newPublisherTransport(t, pub, pubtransport.KafkaCapabilities)

	err := pt.Send(context.Background(), mixedBatch())
	assert.ErrorIs(t, err, boom)
}

type blockingPublisher struct {
	release chan struct{}
}

func (b *blockingPublisher) Publish(string, ...*message.Message) error {
	<-b.release
	return nil
}

func (b *blockingPublisher) Close() error { return nil }

func TestPublisherTransportReturnsWhenContextEnds(t *testing.T) {
	pub := &blockingPublisher{release: make(chan struct{})}
	defer close(pub.release)
	pt := newPublisherTransport(t, pub, pubtransport.ChannelCapabilities)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pt.Send(ctx, mixedBatch())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublisherTransportProtoCodec(t *testing.T) {
	pub := &transporttest.Publisher{}
	pt, err := NewPublisherTransport(pubtransport.Sink{Publisher: pub}, PublisherOptions{Codec: codec.Proto{}})
	require.NoError(t, err)

	require.NoError(t, pt.Send(context.Background(), mixedBatch()[1:2]))
	msgs := pub.Messages("retail.store_opened")
	require.Len(t, msgs, 1)
	assert.Equal(t, "application/protobuf", msgs[0].Metadata.Get(metadatapkg.KeyContentType))

	decoded, err := codec.Proto{}.Decode(msgs[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "store_opened", decoded["event_type"])
}

func TestPublisherTransportHealthAndClose(t *testing.T) {
	pub := &transporttest.Publisher{}
	probeErr := errors.New("not connected")
	healthy := true
	sink := pubtransport.Sink{
		Publisher:    pub,
		Capabilities: pubtransport.NATSCapabilities,
		Probe: func(context.Context) error {
			if healthy {
				return nil
			}
			return probeErr
		},
	}
	pt, err := NewPublisherTransport(sink, PublisherOptions{})
	require.NoError(t, err)

	h := pt.Health(context.Background())
	assert.True(t, h.Healthy)
	assert.Equal(t, "nats", h.Detail)

	healthy = false
	h = pt.Health(context.Background())
	assert.False(t, h.Healthy)
	assert.Equal(t, "not connected", h.Detail)

	assert.Equal(t, pubtransport.NATSCapabilities, pt.Capabilities())
	require.NoError(t, pt.Close())
	assert.True(t, pub.Closed())
}
