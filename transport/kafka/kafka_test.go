package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/retailstream/transport"
	"github.com/drblury/retailstream/transport/transporttest"
)

func TestBuildRequiresBrokers(t *testing.T) {
	_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
	assert.ErrorIs(t, err, ErrNoBrokers)
}

func TestBuildConfiguresPublisher(t *testing.T) {
	originalFactory, originalProbe := PublisherFactory, ClusterProbe
	defer func() { PublisherFactory, ClusterProbe = originalFactory, originalProbe }()

	pub := &transporttest.Publisher{}
	var captured kafka.PublisherConfig
	PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		captured = cfg
		return pub, nil
	}
	probeErr := errors.New("no route to broker")
	var probedBrokers []string
	ClusterProbe = func(ctx context.Context, brokers []string, cfg *sarama.Config) error {
		probedBrokers = brokers
		return probeErr
	}

	cfg := &transporttest.Config{KafkaBrokers: []string{"localhost:9092"}}
	sink, err := Build(context.Background(), cfg, watermill.NopLogger{})
	require.NoError(t, err)

	assert.Same(t, pub, sink.Publisher)
	assert.Equal(t, []string{"localhost:9092"}, captured.Brokers)
	require.NotNil(t, captured.OverwriteSaramaConfig)
	assert.Equal(t, sarama.WaitForAll, captured.OverwriteSaramaConfig.Producer.RequiredAcks)
	assert.Equal(t, transport.KafkaCapabilities, sink.Capabilities)

	assert.ErrorIs(t, sink.Check(context.Background()), probeErr)
	assert.Equal(t, []string{"localhost:9092"}, probedBrokers)
}

func TestBuildPropagatesFactoryError(t *testing.T) {
	originalFactory := PublisherFactory
	defer func() { PublisherFactory = originalFactory }()

	boom := errors.New("boom")
	PublisherFactory = func(kafka.PublisherConfig, watermill.LoggerAdapter) (message.Publisher, error) {
		return nil, boom
	}

	_, err := Build(context.Background(), &transporttest.Config{KafkaBrokers: []string{"b:9092"}}, watermill.NopLogger{})
	assert.ErrorIs(t, err, boom)
}
