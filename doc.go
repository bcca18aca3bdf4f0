// Package retailstream streams synthetic retail events to a message transport.
//
// A Streamer drives a ContentGenerator on a fixed emit interval, buffers the
// resulting envelopes and flushes them in batches through a Transport. Each
// flush is retried with exponential backoff behind a circuit breaker. Batches
// that still fail are classified and parked in a bounded dead-letter queue,
// from where RetryDLQEvents can re-send them later. A monitoring loop tracks
// throughput, error rates, transport health and process resources.
//
// A minimal session loads a Config, builds a transport with
// DefaultTransportFactory, creates the synthetic generator and calls Run:
//
//	conf, _ := retailstream.LoadConfig("retailstream.yaml")
//	log := retailstream.DiscardLogger()
//	tr, _ := retailstream.DefaultTransportFactory().Build(ctx, conf, log)
//	gen, _ := retailstream.NewSynthetic(retailstream.SyntheticConfig{BurstSize: conf.Streaming.BurstSize})
//	s, _ := retailstream.NewStreamer(conf, retailstream.Dependencies{Generator: gen, Transport: tr, Logger: log})
//	_ = s.Run(ctx, 10*time.Minute)
//
// # Transports
//
// Events are published through Watermill publishers. The built-in transports
// are channel, kafka, rabbitmq, aws (SNS), nats, nats-jetstream, http, io,
// sqlite and postgres, plus noop for dry runs. Custom transports can be added
// with RegisterTransport or by supplying a TransportFactory.
//
// # Control
//
// Pause, Resume and Stop are safe to call from any goroutine while Run is
// blocking. They never fail with an error; the returned ControlResult says
// whether the request took effect.
//
// # Hooks
//
// FlushHooks provides OnFlushStart, OnFlushDone and OnFlushError callbacks
// around every batch delivery, for logging, metrics or alerting.
package retailstream
