package channel

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/retailstream/transport"
	"github.com/drblury/retailstream/transport/transporttest"
)

func TestRegister(t *testing.T) {
	original := transport.DefaultRegistry
	defer func() { transport.DefaultRegistry = original }()

	transport.DefaultRegistry = transport.NewRegistry()
	Register()

	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.Equal(t, transport.ChannelCapabilities, transport.GetCapabilities(TransportName))
}

func TestBuildDeliversToSubscribers(t *testing.T) {
	originalFactory := Factory
	defer func() { Factory = originalFactory }()

	var pubSub *gochannel.GoChannel
	Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) *gochannel.GoChannel {
		assert.Equal(t, int64(DefaultBufferSize), cfg.OutputChannelBuffer)
		pubSub = gochannel.NewGoChannel(cfg, logger)
		return pubSub
	}

	sink, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	require.NoError(t, err)
	defer sink.Close()
	require.NotNil(t, pubSub)
	assert.NoError(t, sink.Check(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	received, err := pubSub.Subscribe(ctx, "retail.receipt_created")
	require.NoError(t, err)

	require.NoError(t, sink.Publisher.Publish("retail.receipt_created", message.NewMessage("m-1", []byte("{}"))))

	select {
	case msg := <-received:
		assert.Equal(t, "m-1", msg.UUID)
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}
}
