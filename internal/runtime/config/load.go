package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, with nested keys
// joined by underscores: RETAILSTREAM_STREAMING_BURST_SIZE.
const EnvPrefix = "RETAILSTREAM"

// Load reads the optional config file at path (yaml, json or toml), applies
// environment overrides and defaults, and validates the result. Unknown keys
// are ignored.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults registers every known key with its default. Keys must be known
// to viper for AutomaticEnv to pick up their environment overrides.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("transport", d.Transport)
	v.SetDefault("topic_prefix", d.TopicPrefix)
	v.SetDefault("codec", d.Codec)
	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("rabbitmq_url", "")
	v.SetDefault("nats_url", "")
	v.SetDefault("jetstream_stream", "")
	v.SetDefault("http_publisher_url", "")
	v.SetDefault("io_file", d.IOFile)
	v.SetDefault("sqlite_file", "")
	v.SetDefault("postgres_url", "")
	v.SetDefault("aws_region", "")
	v.SetDefault("aws_account_id", "")
	v.SetDefault("aws_access_key_id", "")
	v.SetDefault("aws_secret_access_key", "")
	v.SetDefault("aws_endpoint", "")
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)

	s := d.Streaming
	v.SetDefault("streaming.emit_interval_ms", s.EmitIntervalMs)
	v.SetDefault("streaming.burst_size", s.BurstSize)
	v.SetDefault("streaming.max_batch_size", s.MaxBatchSize)
	v.SetDefault("streaming.batch_timeout_ms", s.BatchTimeoutMs)
	v.SetDefault("streaming.retry_attempts", s.RetryAttempts)
	v.SetDefault("streaming.backoff_multiplier", s.BackoffMultiplier)
	v.SetDefault("streaming.circuit_breaker_enabled", s.CircuitBreakerEnabled)
	v.SetDefault("streaming.monitoring_interval_s", s.MonitoringIntervalS)
	v.SetDefault("streaming.max_buffer_size", s.MaxBufferSize)
	v.SetDefault("streaming.enable_dead_letter_queue", s.EnableDeadLetterQueue)
	v.SetDefault("streaming.dlq_max_size", s.DLQMaxSize)
	v.SetDefault("streaming.dlq_retry_max_attempts", s.DLQRetryMaxAttempts)

	v.SetDefault("circuit_breaker.failure_threshold", d.CircuitBreaker.FailureThreshold)
	v.SetDefault("circuit_breaker.reset_timeout", d.CircuitBreaker.ResetTimeout)

	v.SetDefault("generator.seed", d.Generator.Seed)
	v.SetDefault("generator.stores", d.Generator.Stores)
	v.SetDefault("generator.customers", d.Generator.Customers)
	v.SetDefault("generator.products", d.Generator.Products)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.port", d.Metrics.Port)

	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.level", d.Log.Level)
}
