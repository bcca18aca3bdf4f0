package transports

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drblury/retailstream/transport"
)

func TestAllTransportsRegistered(t *testing.T) {
	assert.Equal(t, []string{
		"aws", "channel", "http", "io", "kafka", "nats", "nats-jetstream", "postgres", "rabbitmq", "sqlite",
	}, transport.DefaultRegistry.Names())
}
