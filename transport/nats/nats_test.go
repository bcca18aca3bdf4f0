package nats

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/retailstream/transport"
	"github.com/drblury/retailstream/transport/transporttest"
)

func TestBuildRequiresURL(t *testing.T) {
	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	assert.ErrorIs(t, err, ErrURLRequired)
}

func TestBuildDisablesJetStream(t *testing.T) {
	originalConnect, originalFactory := Connect, PublisherFactory
	defer func() { Connect, PublisherFactory = originalConnect, originalFactory }()

	var dialed string
	Connect = func(url string, opts ...natsgo.Option) (*natsgo.Conn, error) {
		dialed = url
		return nil, nil
	}
	pub := &transporttest.Publisher{}
	var captured wmnats.PublisherPublishConfig
	PublisherFactory = func(conn *natsgo.Conn, cfg wmnats.PublisherPublishConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		captured = cfg
		return pub, nil
	}

	sink, err := Build(context.Background(), &transporttest.Config{NATSURL: "nats://localhost:4222"}, watermill.NopLogger{})
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", dialed)
	assert.True(t, captured.JetStream.Disabled)
	assert.NotNil(t, captured.Marshaler)
	assert.Same(t, pub, sink.Publisher)
	assert.Equal(t, transport.NATSCapabilities, sink.Capabilities)
	assert.ErrorIs(t, sink.Check(context.Background()), ErrDisconnected)
}

func TestBuildPropagatesDialError(t *testing.T) {
	original := Connect
	defer func() { Connect = original }()

	boom := errors.New("no servers available")
	Connect = func(string, ...natsgo.Option) (*natsgo.Conn, error) { return nil, boom }

	_, err := Build(context.Background(), &transporttest.Config{NATSURL: "nats://x"}, watermill.NopLogger{})
	assert.ErrorIs(t, err, boom)
}
