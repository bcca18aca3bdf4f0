// Package nats publishes to NATS Core subjects through watermill-nats.
package nats

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/drblury/retailstream/transport"
)

const TransportName = "nats"

var (
	ErrURLRequired  = errors.New("nats: url is required")
	ErrDisconnected = errors.New("nats: not connected")
)

// ConnectTimeout bounds the initial dial.
var ConnectTimeout = 5 * time.Second

// Connect allows overriding the dial for testing.
var Connect = func(url string, opts ...natsgo.Option) (*natsgo.Conn, error) {
	return natsgo.Connect(url, opts...)
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(conn *natsgo.Conn, cfg wmnats.PublisherPublishConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return wmnats.NewPublisherWithNatsConn(conn, cfg, logger)
}

func init() {
	Register()
}

func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSCapabilities)
}

// Build dials NATS once and shares the connection between the publisher and
// the health probe.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Sink, error) {
	url := cfg.GetNATSURL()
	if url == "" {
		return transport.Sink{}, ErrURLRequired
	}

	conn, err := Connect(url,
		natsgo.Name("retailstream"),
		natsgo.Timeout(ConnectTimeout),
		natsgo.MaxReconnects(-1),
	)
	if err != nil {
		return transport.Sink{}, err
	}

	publisher, err := PublisherFactory(conn, wmnats.PublisherPublishConfig{
		Marshaler: &wmnats.NATSMarshaler{},
		JetStream: wmnats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return transport.Sink{}, err
	}

	return transport.Sink{
		Publisher:    publisher,
		Capabilities: transport.NATSCapabilities,
		Probe: func(context.Context) error {
			if conn == nil || !conn.IsConnected() {
				return ErrDisconnected
			}
			return nil
		},
	}, nil
}
