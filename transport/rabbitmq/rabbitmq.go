// Package rabbitmq publishes to RabbitMQ through watermill-amqp. Each topic
// maps to a durable fanout exchange.
package rabbitmq

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/retailstream/transport"
)

const TransportName = "rabbitmq"

var (
	ErrURLRequired  = errors.New("rabbitmq: url is required")
	ErrDisconnected = errors.New("rabbitmq: connection lost")
)

// Connection is the part of amqp.ConnectionWrapper the probe needs.
type Connection interface {
	IsConnected() bool
}

// ConnectionFactory allows overriding the connection creation for testing.
var ConnectionFactory = func(cfg amqp.ConnectionConfig, logger watermill.LoggerAdapter) (*amqp.ConnectionWrapper, error) {
	return amqp.NewConnection(cfg, logger)
}

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg amqp.Config, logger watermill.LoggerAdapter, conn *amqp.ConnectionWrapper) (message.Publisher, error) {
	return amqp.NewPublisherWithConnection(cfg, logger, conn)
}

func init() {
	Register()
}

func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.RabbitMQCapabilities)
}

// Build dials RabbitMQ with automatic reconnects and publishes persistent
// messages.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Sink, error) {
	url := cfg.GetRabbitMQURL()
	if url == "" {
		return transport.Sink{}, ErrURLRequired
	}

	amqpConfig := amqp.NewDurablePubSubConfig(url, amqp.GenerateQueueNameTopicName)

	conn, err := ConnectionFactory(amqp.ConnectionConfig{
		AmqpURI:   url,
		Reconnect: amqp.DefaultReconnectConfig(),
	}, logger)
	if err != nil {
		return transport.Sink{}, err
	}

	publisher, err := PublisherFactory(amqpConfig, logger, conn)
	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		return transport.Sink{}, err
	}

	var probeConn Connection
	if conn != nil {
		probeConn = conn
	}
	return transport.Sink{
		Publisher:    publisher,
		Capabilities: transport.RabbitMQCapabilities,
		Probe:        Probe(probeConn),
	}, nil
}

// Probe reports ErrDisconnected while the wrapper is reconnecting.
func Probe(conn Connection) transport.ProbeFunc {
	return func(context.Context) error {
		if conn == nil || !conn.IsConnected() {
			return ErrDisconnected
		}
		return nil
	}
}
