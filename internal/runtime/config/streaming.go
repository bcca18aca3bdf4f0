package config

import (
	"errors"
	"time"
)

// StreamingConfig holds the tunables of the streaming engine.
type StreamingConfig struct {
	EmitIntervalMs        int     `mapstructure:"emit_interval_ms"`
	BurstSize             int     `mapstructure:"burst_size"`
	MaxBatchSize          int     `mapstructure:"max_batch_size"`
	BatchTimeoutMs        int     `mapstructure:"batch_timeout_ms"`
	RetryAttempts         int     `mapstructure:"retry_attempts"`
	BackoffMultiplier     float64 `mapstructure:"backoff_multiplier"`
	CircuitBreakerEnabled bool    `mapstructure:"circuit_breaker_enabled"`
	MonitoringIntervalS   int     `mapstructure:"monitoring_interval_s"`
	MaxBufferSize         int     `mapstructure:"max_buffer_size"`
	EnableDeadLetterQueue bool    `mapstructure:"enable_dead_letter_queue"`
	DLQMaxSize            int     `mapstructure:"dlq_max_size"`
	DLQRetryMaxAttempts   int     `mapstructure:"dlq_retry_max_attempts"`
}

// DefaultStreamingConfig returns the documented defaults.
func DefaultStreamingConfig() StreamingConfig {
	return StreamingConfig{
		EmitIntervalMs:        500,
		BurstSize:             10,
		MaxBatchSize:          100,
		BatchTimeoutMs:        1000,
		RetryAttempts:         3,
		BackoffMultiplier:     2.0,
		CircuitBreakerEnabled: true,
		MonitoringIntervalS:   30,
		MaxBufferSize:         10000,
		EnableDeadLetterQueue: true,
		DLQMaxSize:            1000,
		DLQRetryMaxAttempts:   3,
	}
}

func (s StreamingConfig) EmitInterval() time.Duration {
	return time.Duration(s.EmitIntervalMs) * time.Millisecond
}

func (s StreamingConfig) BatchTimeout() time.Duration {
	return time.Duration(s.BatchTimeoutMs) * time.Millisecond
}

func (s StreamingConfig) MonitoringInterval() time.Duration {
	return time.Duration(s.MonitoringIntervalS) * time.Second
}

// Validate reports every out-of-range value, joined.
func (s StreamingConfig) Validate() error {
	return errors.Join(s.validate()...)
}

func (s StreamingConfig) validate() []error {
	var errs []error
	if s.EmitIntervalMs <= 0 {
		errs = append(errs, errors.New("streaming: emit_interval_ms must be positive"))
	}
	if s.BurstSize < 1 {
		errs = append(errs, errors.New("streaming: burst_size must be at least 1"))
	}
	if s.MaxBatchSize < 1 {
		errs = append(errs, errors.New("streaming: max_batch_size must be at least 1"))
	}
	if s.BatchTimeoutMs <= 0 {
		errs = append(errs, errors.New("streaming: batch_timeout_ms must be positive"))
	}
	if s.RetryAttempts < 0 {
		errs = append(errs, errors.New("streaming: retry_attempts cannot be negative"))
	}
	if s.BackoffMultiplier < 1 {
		errs = append(errs, errors.New("streaming: backoff_multiplier must be at least 1"))
	}
	if s.MonitoringIntervalS <= 0 {
		errs = append(errs, errors.New("streaming: monitoring_interval_s must be positive"))
	}
	if s.MaxBufferSize < 1 {
		errs = append(errs, errors.New("streaming: max_buffer_size must be at least 1"))
	}
	if s.EnableDeadLetterQueue && s.DLQMaxSize < 1 {
		errs = append(errs, errors.New("streaming: dlq_max_size must be at least 1"))
	}
	if s.DLQRetryMaxAttempts < 0 {
		errs = append(errs, errors.New("streaming: dlq_retry_max_attempts cannot be negative"))
	}
	return errs
}
