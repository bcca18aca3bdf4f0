package transport

// Capabilities describes what a backend guarantees to a publisher.
type Capabilities struct {
	Name string

	// SupportsOrdering means messages on one topic arrive in publish order.
	SupportsOrdering bool

	// SupportsBatching means one Publish call with many messages is cheaper
	// than many calls with one.
	SupportsBatching bool

	// SupportsTracing means message headers reach the consumer untouched.
	SupportsTracing bool

	// Durable means an accepted message survives a broker restart.
	Durable bool

	// MaxMessageSize in bytes; 0 means unlimited or unknown.
	MaxMessageSize int64
}

// Accepts reports whether a message body of size bytes fits the backend.
func (c Capabilities) Accepts(size int) bool {
	return c.MaxMessageSize <= 0 || int64(size) <= c.MaxMessageSize
}

var (
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsTracing:  true,
	}

	KafkaCapabilities = Capabilities{
		Name:             "kafka",
		SupportsOrdering: true,
		SupportsBatching: true,
		SupportsTracing:  true,
		Durable:          true,
		MaxMessageSize:   1048576,
	}

	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsTracing:  true,
		Durable:          true,
		MaxMessageSize:   134217728,
	}

	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		MaxMessageSize:  1048576,
	}

	NATSJetStreamCapabilities = Capabilities{
		Name:             "nats-jetstream",
		SupportsOrdering: true,
		SupportsBatching: true,
		SupportsTracing:  true,
		Durable:          true,
		MaxMessageSize:   1048576,
	}

	// AWSCapabilities describes SNS publishing.
	AWSCapabilities = Capabilities{
		Name:             "aws",
		SupportsBatching: true,
		SupportsTracing:  true,
		Durable:          true,
		MaxMessageSize:   262144,
	}

	SQLiteCapabilities = Capabilities{
		Name:             "sqlite",
		SupportsOrdering: true,
		SupportsBatching: true,
		Durable:          true,
	}

	PostgresCapabilities = Capabilities{
		Name:             "postgres",
		SupportsOrdering: true,
		SupportsBatching: true,
		Durable:          true,
	}

	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsTracing: true,
	}

	IOCapabilities = Capabilities{
		Name:             "io",
		SupportsOrdering: true,
		Durable:          true,
	}
)

// GetCapabilities looks name up in the default registry.
func GetCapabilities(name string) Capabilities {
	return DefaultRegistry.GetCapabilities(name)
}
