package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/drblury/retailstream/internal/runtime/config"
	"github.com/drblury/retailstream/internal/runtime/generator"
	"github.com/drblury/retailstream/internal/runtime/logging"
	"github.com/drblury/retailstream/internal/runtime/streamer"
	"github.com/drblury/retailstream/internal/runtime/transport"
)

// runOptions holds flags for the run command.
type runOptions struct {
	*rootOptions
	Duration  time.Duration
	Transport string
	Seed      uint64
	RetryDLQ  bool
}

var newTransportFactory = transport.DefaultFactory

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a streaming session",
		Long: `Start a streaming session and block until it ends.

The session ends when --duration elapses, on SIGINT/SIGTERM, or after a
critical delivery failure. Buffered events are flushed before exit.

While running:
  SIGUSR1  toggles pause/resume
  SIGUSR2  retries the dead-letter queue

Example:
  retailstream run --transport kafka --duration 10m
  RETAILSTREAM_TRANSPORT=io RETAILSTREAM_IO_FILE=events.jsonl retailstream run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, opts)
		},
	}

	cmd.Flags().DurationVarP(&opts.Duration, "duration", "d", 0, "stop after this long (0 runs until interrupted)")
	cmd.Flags().StringVarP(&opts.Transport, "transport", "t", "", "override the configured transport")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "override generator.seed for reproducible content")
	cmd.Flags().BoolVar(&opts.RetryDLQ, "retry-dlq-on-exit", false, "retry parked events once after the session ends")
	return cmd
}

func runSession(cmd *cobra.Command, opts *runOptions) error {
	conf, err := opts.load()
	if err != nil {
		return err
	}
	if opts.Transport != "" {
		conf.Transport = opts.Transport
	}
	if cmd.Flags().Changed("seed") {
		conf.Generator.Seed = opts.Seed
	}
	if err := conf.Validate(); err != nil {
		return exitError{code: 2, err: err}
	}

	log, err := newLogger(cmd.ErrOrStderr(), conf)
	if err != nil {
		return err
	}
	log.Info("Starting retailstream", logging.LogFields{"config": conf.String()})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tr, err := newTransportFactory().Build(ctx, conf, log)
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}

	gen, err := generator.NewSynthetic(generator.Config{
		Seed:      conf.Generator.Seed,
		BurstSize: conf.Streaming.BurstSize,
		Stores:    conf.Generator.Stores,
		Customers: conf.Generator.Customers,
		Products:  conf.Generator.Products,
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s, err := streamer.New(conf, streamer.Dependencies{
		Generator:  gen,
		Transport:  tr,
		Logger:     log,
		Registerer: reg,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Error("Closing transport failed", err, nil)
		}
	}()

	if conf.Metrics.Enabled {
		stopMetrics := serveMetrics(conf, reg, log)
		defer stopMetrics()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(signals)
	go handleSignals(ctx, cancel, signals, s, log)

	if err := s.Run(ctx, opts.Duration); err != nil {
		return err
	}

	if opts.RetryDLQ && s.GetDLQSummary().Size > 0 {
		retryCtx, cancelRetry := context.WithTimeout(context.WithoutCancel(ctx), conf.ShutdownTimeout)
		s.RetryDLQEvents(retryCtx, 0)
		cancelRetry()
	}

	st := s.GetStatistics()
	summary := s.GetDLQSummary()
	log.Info("Final statistics", logging.LogFields{
		"session_id":               s.Session().ID,
		"events_generated":         st.EventsGenerated,
		"events_sent_successfully": st.EventsSentSuccessfully,
		"events_failed":            st.EventsFailed,
		"events_retried_from_dlq":  st.EventsRetriedFromDLQ,
		"bytes_sent":               st.BytesSent,
		"circuit_breaker_trips":    st.CircuitBreakerTrips,
		"dlq_size":                 summary.Size,
		"dlq_evicted":              summary.TotalEvicted,
		"flush_p95_ms":             time.Duration(st.FlushLatency.P95Ns).Milliseconds(),
	})
	return nil
}

// handleSignals maps process signals onto streamer controls until ctx ends.
// A shutdown signal that arrives before streaming started cancels ctx.
func handleSignals(ctx context.Context, cancel context.CancelFunc, signals <-chan os.Signal, s *streamer.Streamer, log logging.ServiceLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			switch sig {
			case syscall.SIGUSR1:
				res := s.Pause()
				if !res.Success {
					res = s.Resume()
				}
				log.Info("Pause toggled", logging.LogFields{"state": res.State, "message": res.Message})
			case syscall.SIGUSR2:
				s.RetryDLQEvents(ctx, 0)
			default:
				log.Info("Received signal, shutting down", logging.LogFields{"signal": sig.String()})
				if !s.Stop().Success {
					cancel()
				}
			}
		}
	}
}

// serveMetrics exposes reg on metrics.port and returns a shutdown func.
func serveMetrics(conf *config.Config, reg *prometheus.Registry, log logging.ServiceLogger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", conf.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("Starting metrics server", logging.LogFields{"address": srv.Addr})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", err, logging.LogFields{"address": srv.Addr})
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), conf.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
