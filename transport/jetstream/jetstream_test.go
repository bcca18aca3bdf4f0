package jetstream

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/retailstream/transport/transporttest"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{URL: "nats://localhost:4222"}.withDefaults()
	assert.Equal(t, DefaultStreamName, cfg.StreamName)
	assert.Equal(t, DefaultMaxAge, cfg.MaxAge)
	assert.Equal(t, 1, cfg.Replicas)
	assert.Equal(t, DefaultAckTimeout, cfg.AckTimeout)

	custom := Config{StreamName: "RETAIL", Replicas: 3}.withDefaults()
	assert.Equal(t, "RETAIL", custom.StreamName)
	assert.Equal(t, 3, custom.Replicas)
}

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "RETAIL.retail.receipt_created", SubjectFor("RETAIL", "retail.receipt_created"))
	assert.Equal(t, "RETAIL.orders", SubjectFor("RETAIL", "RETAIL.orders"))
}

func TestBuildRequiresURL(t *testing.T) {
	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	assert.ErrorIs(t, err, ErrURLRequired)
}

func TestBuildPropagatesDialError(t *testing.T) {
	original := Connect
	defer func() { Connect = original }()

	boom := errors.New("no servers available for connection")
	var dialed string
	Connect = func(url string, opts ...nats.Option) (*nats.Conn, error) {
		dialed = url
		return nil, boom
	}

	_, err := Build(context.Background(), &transporttest.Config{NATSURL: "nats://js:4222"}, watermill.NopLogger{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "nats://js:4222", dialed)
}

func TestClosedPublisherRejects(t *testing.T) {
	p := &Publisher{config: Config{}.withDefaults(), closed: true}
	assert.ErrorIs(t, p.Publish("topic"), ErrClosed)
	assert.NoError(t, p.Close())
}
