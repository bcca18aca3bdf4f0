// Package channel provides an in-memory transport backed by watermill's
// gochannel pub/sub. Useful for local runs and tests.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/retailstream/transport"
)

const TransportName = "channel"

// DefaultBufferSize is the per-subscriber output buffer.
const DefaultBufferSize = 1024

// Factory creates the pub/sub. Override it to keep a handle for subscribing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(cfg, logger)
}

func init() {
	Register()
}

// Register adds the channel transport to the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build creates a gochannel publisher. It is always healthy.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Sink, error) {
	pubSub := Factory(gochannel.Config{OutputChannelBuffer: DefaultBufferSize}, logger)
	return transport.Sink{
		Publisher:    pubSub,
		Capabilities: transport.ChannelCapabilities,
	}, nil
}
