// Package io appends published messages to a JSON Lines file. The path "-"
// writes to standard output, which makes the engine usable as a plain
// event generator.
package io

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"

	"github.com/drblury/retailstream/transport"
)

const TransportName = "io"

// DefaultFilePath is used when no file is configured.
const DefaultFilePath = "retailstream-events.jsonl"

// Stdout selects standard output.
const Stdout = "-"

var ErrClosed = errors.New("io: publisher is closed")

// Stdio is the writer used for Stdout. Override it for testing.
var Stdio io.Writer = os.Stdout

func init() {
	Register()
}

func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.IOCapabilities)
}

// Build creates a file publisher. The file is opened per publish so an
// external rotation is picked up.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Sink, error) {
	path := cfg.GetIOFile()
	if path == "" {
		path = DefaultFilePath
	}
	p := NewPublisher(path, logger)
	return transport.Sink{
		Publisher:    p,
		Capabilities: transport.IOCapabilities,
		Probe:        p.Probe,
	}, nil
}

// Line is one persisted message. JSON payloads are embedded as is; any other
// payload is stored base64 encoded in PayloadBase64.
type Line struct {
	UUID          string            `json:"uuid"`
	Topic         string            `json:"topic"`
	WrittenAt     time.Time         `json:"written_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Payload       json.RawMessage   `json:"payload,omitempty"`
	PayloadBase64 []byte            `json:"payload_base64,omitempty"`
}

// Publisher writes messages to a file.
type Publisher struct {
	path   string
	logger watermill.LoggerAdapter

	mu     sync.Mutex
	closed bool
}

func NewPublisher(path string, logger watermill.LoggerAdapter) *Publisher {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Publisher{path: path, logger: logger}
}

// Publish writes one line per message. A batch is written with a single
// write call so concurrent readers never see half a batch.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	var buf []byte
	now := time.Now().UTC()
	for _, msg := range messages {
		line := Line{UUID: msg.UUID, Topic: topic, WrittenAt: now, Metadata: msg.Metadata}
		if json.Valid(msg.Payload) {
			line.Payload = json.RawMessage(msg.Payload)
		} else {
			line.PayloadBase64 = msg.Payload
		}
		encoded, err := sonic.Marshal(line)
		if err != nil {
			return fmt.Errorf("io: encode message %s: %w", msg.UUID, err)
		}
		buf = append(buf, encoded...)
		buf = append(buf, '\n')
	}

	w, closeFn, err := p.open()
	if err != nil {
		return err
	}
	defer closeFn()
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("io: write %s: %w", p.path, err)
	}
	return nil
}

func (p *Publisher) open() (io.Writer, func(), error) {
	if p.path == Stdout {
		return Stdio, func() {}, nil
	}
	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("io: open %s: %w", p.path, err)
	}
	return f, func() {
		if err := f.Close(); err != nil {
			p.logger.Error("Failed to close output file", err, watermill.LogFields{"path": p.path})
		}
	}, nil
}

// Probe checks that the file can be opened for appending.
func (p *Publisher) Probe(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	_, closeFn, err := p.open()
	if err != nil {
		return err
	}
	closeFn()
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
