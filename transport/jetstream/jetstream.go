// Package jetstream publishes to a NATS JetStream stream with nats.go.
// Publishes wait for the stream's acknowledgement, so an accepted batch is
// persisted.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/drblury/retailstream/transport"
)

const TransportName = "nats-jetstream"

const (
	DefaultStreamName = "RETAILSTREAM"
	DefaultMaxAge     = 7 * 24 * time.Hour
	DefaultAckTimeout = 5 * time.Second
)

var (
	ErrURLRequired = errors.New("jetstream: url is required")
	ErrClosed      = errors.New("jetstream: publisher is closed")
)

// Connect allows overriding the dial for testing.
var Connect = nats.Connect

func init() {
	Register()
}

func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSJetStreamCapabilities)
}

// Build connects and makes sure the stream exists.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Sink, error) {
	p, err := New(Config{
		URL:        cfg.GetNATSURL(),
		StreamName: cfg.GetJetStreamStream(),
	}, logger)
	if err != nil {
		return transport.Sink{}, err
	}
	return transport.Sink{
		Publisher:    p,
		Capabilities: transport.NATSJetStreamCapabilities,
		Probe:        p.Ping,
	}, nil
}

// Config holds JetStream settings.
type Config struct {
	URL string
	// StreamName also prefixes every subject: <stream>.<topic>.
	StreamName string
	MaxAge     time.Duration
	Replicas   int
	AckTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = DefaultAckTimeout
	}
	return c
}

// Publisher implements message.Publisher on a JetStream context.
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	config Config
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// New dials NATS and ensures the stream.
func New(cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, ErrURLRequired
	}
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	cfg = cfg.withDefaults()

	nc, err := Connect(cfg.URL, nats.Name("retailstream"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("jetstream: connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: context: %w", err)
	}

	p := &Publisher{nc: nc, js: js, config: cfg, logger: logger}
	if err := p.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) ensureStream() error {
	streamCfg := &nats.StreamConfig{
		Name:      p.config.StreamName,
		Subjects:  []string{p.config.StreamName + ".>"},
		MaxAge:    p.config.MaxAge,
		Replicas:  p.config.Replicas,
		Retention: nats.LimitsPolicy,
	}

	if _, err := p.js.AddStream(streamCfg); err != nil {
		if !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return fmt.Errorf("jetstream: add stream %s: %w", p.config.StreamName, err)
		}
		if _, err := p.js.UpdateStream(streamCfg); err != nil {
			p.logger.Info("JetStream stream kept as is", watermill.LogFields{
				"stream": p.config.StreamName,
				"reason": err.Error(),
			})
		}
	}
	return nil
}

// Publish sends each message and waits for its stream ack.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	subject := SubjectFor(p.config.StreamName, topic)
	for _, msg := range messages {
		headers := nats.Header{}
		for k, v := range msg.Metadata {
			headers.Set(k, v)
		}
		// Msg-Id lets the stream drop duplicates of a retried publish.
		headers.Set(nats.MsgIdHdr, msg.UUID)

		_, err := p.js.PublishMsg(&nats.Msg{
			Subject: subject,
			Data:    msg.Payload,
			Header:  headers,
		}, nats.AckWait(p.config.AckTimeout))
		if err != nil {
			return fmt.Errorf("jetstream: publish %s: %w", subject, err)
		}
	}
	return nil
}

// Ping checks that the connection is up and JetStream answers.
func (p *Publisher) Ping(ctx context.Context) error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("jetstream: connection status %s", p.nc.Status())
	}
	_, err := p.js.AccountInfo(nats.Context(ctx))
	return err
}

// Close drains nothing; pending publishes have already been acknowledged.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.nc.Close()
	return nil
}

// SubjectFor maps a topic to a subject inside the stream. NATS subjects use
// dots as separators, so the topic is kept as is.
func SubjectFor(stream, topic string) string {
	return stream + "." + strings.TrimPrefix(topic, stream+".")
}
