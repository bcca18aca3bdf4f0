// Package postgres stores published messages in a PostgreSQL outbox table
// using lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/drblury/retailstream/transport"
)

const TransportName = "postgres"

// DefaultSchema holds the outbox table.
const DefaultSchema = "retailstream"

var (
	ErrURLRequired   = errors.New("postgres: connection string is required")
	ErrInvalidSchema = errors.New("postgres: invalid schema name")
	ErrClosed        = errors.New("postgres: publisher is closed")
)

var schemaName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Open allows overriding the database handle creation for testing.
var Open = sql.Open

func init() {
	Register()
}

func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.PostgresCapabilities)
}

// Build connects and creates the schema.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Sink, error) {
	p, err := New(ctx, Config{ConnectionString: cfg.GetPostgresURL()}, logger)
	if err != nil {
		return transport.Sink{}, err
	}
	return transport.Sink{
		Publisher:    p,
		Capabilities: transport.PostgresCapabilities,
		Probe:        p.Ping,
	}, nil
}

// Config holds PostgreSQL settings.
type Config struct {
	ConnectionString string
	SchemaName       string
	MaxOpenConns     int
	MaxIdleConns     int
}

func (c Config) withDefaults() Config {
	if c.SchemaName == "" {
		c.SchemaName = DefaultSchema
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	return c
}

func (c Config) validate() error {
	if c.ConnectionString == "" {
		return ErrURLRequired
	}
	if !schemaName.MatchString(c.SchemaName) {
		return fmt.Errorf("%w: %q", ErrInvalidSchema, c.SchemaName)
	}
	return nil
}

// Publisher inserts every message into <schema>.messages.
type Publisher struct {
	db     *sql.DB
	config Config
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// New connects to PostgreSQL and creates the outbox table.
func New(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	db, err := Open("postgres", cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	p := &Publisher{db: db, config: cfg, logger: logger}
	if err := p.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: init schema: %w", err)
	}
	return p, nil
}

func (p *Publisher) initSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, fmt.Sprintf(`
	CREATE SCHEMA IF NOT EXISTS %[1]s;
	CREATE TABLE IF NOT EXISTS %[1]s.messages (
		id BIGSERIAL PRIMARY KEY,
		uuid TEXT NOT NULL UNIQUE,
		topic TEXT NOT NULL,
		payload BYTEA NOT NULL,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_messages_topic ON %[1]s.messages(topic, id);
	`, p.config.SchemaName))
	return err
}

// Publish inserts the batch in one transaction.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			p.logger.Error("Failed to roll back outbox insert", err, nil)
		}
	}()

	stmt, err := tx.Prepare(p.insertStatement())
	if err != nil {
		return fmt.Errorf("postgres: prepare: %w", err)
	}
	defer stmt.Close()

	for _, msg := range messages {
		md, err := sonic.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: encode metadata: %w", err)
		}
		if _, err := stmt.Exec(msg.UUID, topic, []byte(msg.Payload), md); err != nil {
			return fmt.Errorf("postgres: insert %s: %w", msg.UUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (p *Publisher) insertStatement() string {
	return fmt.Sprintf(`INSERT INTO %s.messages (uuid, topic, payload, metadata) VALUES ($1, $2, $3, $4)`, p.config.SchemaName)
}

func (p *Publisher) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}
