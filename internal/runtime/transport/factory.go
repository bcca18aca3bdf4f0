package transport

import (
	"context"
	"strings"

	"github.com/drblury/retailstream/internal/runtime/codec"
	"github.com/drblury/retailstream/internal/runtime/config"
	errspkg "github.com/drblury/retailstream/internal/runtime/errors"
	"github.com/drblury/retailstream/internal/runtime/logging"
	pubtransport "github.com/drblury/retailstream/transport"

	// Register every built-in backend.
	_ "github.com/drblury/retailstream/transport/transports"
)

// Factory abstracts how the engine obtains its transport.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger logging.ServiceLogger) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger logging.ServiceLogger) (Transport, error)

func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger logging.ServiceLogger) (Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory builds transports from the public registry, or a Noop
// transport when conf selects "noop".
func DefaultFactory() Factory {
	return registryFactory{registry: pubtransport.DefaultRegistry}
}

// NewRegistryFactory builds transports from registry.
func NewRegistryFactory(registry *pubtransport.Registry) Factory {
	return registryFactory{registry: registry}
}

type registryFactory struct {
	registry *pubtransport.Registry
}

func (f registryFactory) Build(ctx context.Context, conf *config.Config, logger logging.ServiceLogger) (Transport, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if strings.EqualFold(conf.Transport, NameNoop) {
		return &Noop{}, nil
	}

	cdc, err := codec.New(conf.Codec)
	if err != nil {
		return nil, err
	}

	sink, err := f.registry.Build(ctx, conf, logging.NewWatermillAdapter(logger))
	if err != nil {
		return nil, err
	}

	pt, err := NewPublisherTransport(sink, PublisherOptions{
		TopicPrefix: conf.TopicPrefix,
		Codec:       cdc,
		Logger:      logger,
	})
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	return pt, nil
}
