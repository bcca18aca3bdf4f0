// Package transporttest provides fakes for exercising transport builders.
package transporttest

import (
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Config is a plain-struct transport.Config.
type Config struct {
	Transport          string
	KafkaBrokers       []string
	RabbitMQURL        string
	NATSURL            string
	JetStreamStream    string
	HTTPPublisherURL   string
	IOFile             string
	SQLiteFile         string
	PostgresURL        string
	AWSRegion          string
	AWSAccountID       string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpoint        string
}

func (c *Config) GetTransport() string          { return c.Transport }
func (c *Config) GetKafkaBrokers() []string     { return c.KafkaBrokers }
func (c *Config) GetRabbitMQURL() string        { return c.RabbitMQURL }
func (c *Config) GetNATSURL() string            { return c.NATSURL }
func (c *Config) GetJetStreamStream() string    { return c.JetStreamStream }
func (c *Config) GetHTTPPublisherURL() string   { return c.HTTPPublisherURL }
func (c *Config) GetIOFile() string             { return c.IOFile }
func (c *Config) GetSQLiteFile() string         { return c.SQLiteFile }
func (c *Config) GetPostgresURL() string        { return c.PostgresURL }
func (c *Config) GetAWSRegion() string          { return c.AWSRegion }
func (c *Config) GetAWSAccountID() string       { return c.AWSAccountID }
func (c *Config) GetAWSAccessKeyID() string     { return c.AWSAccessKeyID }
func (c *Config) GetAWSSecretAccessKey() string { return c.AWSSecretAccessKey }
func (c *Config) GetAWSEndpoint() string        { return c.AWSEndpoint }

// ErrClosed is returned by Publisher after Close.
var ErrClosed = errors.New("transporttest: publisher closed")

// Publisher records published messages per topic. Err, when set, is
// returned from every Publish call.
type Publisher struct {
	mu       sync.Mutex
	Err      error
	closed   bool
	messages map[string][]*message.Message
}

func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.Err != nil {
		return p.Err
	}
	if p.messages == nil {
		p.messages = make(map[string][]*message.Message)
	}
	p.messages[topic] = append(p.messages[topic], messages...)
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Messages returns what was published on topic.
func (p *Publisher) Messages(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*message.Message(nil), p.messages[topic]...)
}

// Topics returns every topic that received at least one message.
func (p *Publisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.messages))
	for topic := range p.messages {
		out = append(out, topic)
	}
	return out
}

// Closed reports whether Close was called.
func (p *Publisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
