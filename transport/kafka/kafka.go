// Package kafka publishes to Apache Kafka through watermill-kafka.
package kafka

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/retailstream/transport"
)

const TransportName = "kafka"

var (
	ErrNoBrokers    = errors.New("kafka: at least one broker is required")
	ErrNoLiveBroker = errors.New("kafka: no brokers reachable")
)

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

// ClusterProbe checks that the brokers answer. Override it for testing.
var ClusterProbe = func(ctx context.Context, brokers []string, cfg *sarama.Config) error {
	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	if len(client.Brokers()) == 0 {
		return ErrNoLiveBroker
	}
	return nil
}

func init() {
	Register()
}

func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaCapabilities)
}

// Build creates a synchronous Kafka publisher that waits for all in-sync
// replicas before acknowledging a batch.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Sink, error) {
	brokers := cfg.GetKafkaBrokers()
	if len(brokers) == 0 {
		return transport.Sink{}, ErrNoBrokers
	}

	saramaCfg := kafka.DefaultSaramaSyncPublisherConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.MaxMessageBytes = int(transport.KafkaCapabilities.MaxMessageSize)

	publisher, err := PublisherFactory(kafka.PublisherConfig{
		Brokers:               brokers,
		Marshaler:             kafka.DefaultMarshaler{},
		OverwriteSaramaConfig: saramaCfg,
	}, logger)
	if err != nil {
		return transport.Sink{}, err
	}

	return transport.Sink{
		Publisher:    publisher,
		Capabilities: transport.KafkaCapabilities,
		Probe: func(ctx context.Context) error {
			return ClusterProbe(ctx, brokers, saramaCfg)
		},
	}, nil
}
