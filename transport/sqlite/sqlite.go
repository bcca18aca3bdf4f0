// Package sqlite stores published messages in a local SQLite table, an
// outbox that downstream jobs can drain.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/drblury/retailstream/transport"
)

const TransportName = "sqlite"

// DefaultFilePath is used when no file is configured.
const DefaultFilePath = "retailstream_outbox.db"

var ErrClosed = errors.New("sqlite: publisher is closed")

func init() {
	Register()
}

func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.SQLiteCapabilities)
}

// Build opens the database and creates the schema.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Sink, error) {
	p, err := New(ctx, Config{FilePath: cfg.GetSQLiteFile()}, logger)
	if err != nil {
		return transport.Sink{}, err
	}
	return transport.Sink{
		Publisher:    p,
		Capabilities: transport.SQLiteCapabilities,
		Probe:        p.Ping,
	}, nil
}

// Config holds SQLite settings.
type Config struct {
	// FilePath of the database. ":memory:" keeps everything in memory.
	FilePath    string
	BusyTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FilePath == "" {
		c.FilePath = DefaultFilePath
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	return c
}

func (c Config) dsn() string {
	return fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", c.FilePath, c.BusyTimeout.Milliseconds())
}

// Publisher inserts every message into the messages table.
type Publisher struct {
	db     *sql.DB
	logger watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// New opens the database at cfg.FilePath.
func New(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	cfg = cfg.withDefaults()

	db, err := sql.Open("sqlite3", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.FilePath, err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	p := &Publisher{db: db, logger: logger}
	if err := p.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return p, nil
}

func (p *Publisher) initSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		topic TEXT NOT NULL,
		payload BLOB NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_topic ON messages(topic, id);
	`)
	return err
}

// Publish inserts the batch in one transaction. A duplicate UUID fails the
// whole batch.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			p.logger.Error("Failed to roll back outbox insert", err, nil)
		}
	}()

	stmt, err := tx.Prepare(`INSERT INTO messages (uuid, topic, payload, metadata) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer stmt.Close()

	for _, msg := range messages {
		md, err := sonic.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("sqlite: encode metadata: %w", err)
		}
		if _, err := stmt.Exec(msg.UUID, topic, []byte(msg.Payload), string(md)); err != nil {
			return fmt.Errorf("sqlite: insert %s: %w", msg.UUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Count returns the number of stored messages on topic.
func (p *Publisher) Count(ctx context.Context, topic string) (int64, error) {
	var n int64
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE topic = ?`, topic).Scan(&n)
	return n, err
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
