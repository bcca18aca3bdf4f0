package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/retailstream/internal/runtime/classify"
	"github.com/drblury/retailstream/internal/runtime/codec"
	errspkg "github.com/drblury/retailstream/internal/runtime/errors"
	"github.com/drblury/retailstream/internal/runtime/events"
	"github.com/drblury/retailstream/internal/runtime/logging"
	metadatapkg "github.com/drblury/retailstream/internal/runtime/metadata"
	pubtransport "github.com/drblury/retailstream/transport"
)

// DefaultTopicPrefix is used when PublisherOptions leaves TopicPrefix empty.
const DefaultTopicPrefix = "retail"

// ErrMessageTooLarge is wrapped when an encoded envelope exceeds the
// backend's maximum message size.
var ErrMessageTooLarge = errors.New("message exceeds transport maximum size")

// PublisherOptions configures a PublisherTransport.
type PublisherOptions struct {
	TopicPrefix string
	Codec       codec.Codec
	Logger      logging.ServiceLogger
}

// PublisherTransport publishes envelopes through a watermill publisher, one
// topic per event type.
type PublisherTransport struct {
	sink   pubtransport.Sink
	codec  codec.Codec
	prefix string
	logger logging.ServiceLogger
}

// NewPublisherTransport wraps sink. A nil codec selects CloudEvents JSON.
func NewPublisherTransport(sink pubtransport.Sink, opts PublisherOptions) (*PublisherTransport, error) {
	if sink.Publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if opts.Codec == nil {
		opts.Codec = codec.JSON{}
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = DefaultTopicPrefix
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &PublisherTransport{
		sink:   sink,
		codec:  opts.Codec,
		prefix: opts.TopicPrefix,
		logger: opts.Logger.With(logging.LogFields{"transport": sink.Capabilities.Name, "codec": opts.Codec.Name()}),
	}, nil
}

// Topic returns the topic events of type t are published to.
func (p *PublisherTransport) Topic(t events.EventType) string {
	return p.prefix + "." + string(t)
}

// NewMessage encodes env and attaches the standard headers.
func (p *PublisherTransport) NewMessage(env events.Envelope) (*message.Message, error) {
	payload, err := p.codec.Encode(env)
	if err != nil {
		return nil, classify.Serialization(fmt.Errorf("encode %s %s: %w", env.EventType, env.TraceID, err))
	}
	if caps := p.sink.Capabilities; !caps.Accepts(len(payload)) {
		return nil, classify.Serialization(fmt.Errorf("%w: %s %s is %d bytes, %s accepts %d",
			ErrMessageTooLarge, env.EventType, env.TraceID, len(payload), caps.Name, caps.MaxMessageSize))
	}

	md := metadatapkg.FromEnvelope(env).With(metadatapkg.KeyContentType, p.codec.ContentType())
	msg := message.NewMessage(env.TraceID, payload)
	msg.Metadata = metadatapkg.ToWatermill(md)
	return msg, nil
}

// Send encodes the whole batch before publishing anything, so an envelope
// that cannot be encoded fails the batch without a partial publish.
// Publishing runs on its own goroutine so a cancelled ctx returns promptly
// even when the backend blocks.
func (p *PublisherTransport) Send(ctx context.Context, batch []events.Envelope) error {
	topics := make([]string, 0, len(batch))
	byTopic := make(map[string][]*message.Message, len(batch))
	for _, env := range batch {
		msg, err := p.NewMessage(env)
		if err != nil {
			return err
		}
		msg.SetContext(ctx)

		topic := p.Topic(env.EventType)
		if _, seen := byTopic[topic]; !seen {
			topics = append(topics, topic)
		}
		byTopic[topic] = append(byTopic[topic], msg)
	}

	done := make(chan error, 1)
	go func() {
		for _, topic := range topics {
			if err := p.sink.Publisher.Publish(topic, byTopic[topic]...); err != nil {
				done <- fmt.Errorf("publish %d messages to %s: %w", len(byTopic[topic]), topic, err)
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err == nil {
			p.logger.Trace("Batch published", logging.LogFields{"size": len(batch), "topics": len(topics)})
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health runs the sink's probe.
func (p *PublisherTransport) Health(ctx context.Context) Health {
	h := Health{Healthy: true, Detail: p.sink.Capabilities.Name, CheckedAt: time.Now()}
	if err := p.sink.Check(ctx); err != nil {
		h.Healthy = false
		h.Detail = err.Error()
	}
	return h
}

// Capabilities reports what the backend supports.
func (p *PublisherTransport) Capabilities() pubtransport.Capabilities {
	return p.sink.Capabilities
}

func (p *PublisherTransport) Close() error {
	return p.sink.Close()
}
