// Package transport defines the publisher side of a message bus as seen by
// the streaming engine. Each backend (kafka, rabbitmq, aws, ...) lives in its
// own sub-package and registers a Builder with the registry from init.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// ProbeFunc reports whether a backend is reachable without publishing.
type ProbeFunc func(ctx context.Context) error

// Sink is a ready-to-use publisher together with its health probe.
type Sink struct {
	Publisher message.Publisher
	// Probe may be nil when the backend has no cheaper liveness check than a
	// publish; such sinks always report healthy.
	Probe        ProbeFunc
	Capabilities Capabilities
}

// Check runs the probe, if any.
func (s Sink) Check(ctx context.Context) error {
	if s.Probe == nil {
		return nil
	}
	return s.Probe(ctx)
}

// Close releases the publisher.
func (s Sink) Close() error {
	if s.Publisher == nil {
		return nil
	}
	return s.Publisher.Close()
}

// Builder creates a sink from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Sink, error)

// Config exposes only the settings builders need, so backends do not depend
// on the application's config package.
type Config interface {
	// GetTransport returns the registered name of the backend to build.
	GetTransport() string

	GetKafkaBrokers() []string

	GetRabbitMQURL() string

	GetNATSURL() string
	GetJetStreamStream() string

	GetHTTPPublisherURL() string

	GetIOFile() string

	GetSQLiteFile() string

	GetPostgresURL() string

	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}
