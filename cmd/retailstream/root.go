package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/drblury/retailstream/internal/runtime/config"
	"github.com/drblury/retailstream/internal/runtime/logging"
)

// rootOptions holds the flags every command shares.
type rootOptions struct {
	ConfigFile string
	LogLevel   string
	LogFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "retailstream",
		Short: "Stream synthetic retail events to a message bus",
		Long: `retailstream generates receipts, inventory moves, foot traffic, ad
impressions and online orders, and publishes them at a steady pace to Kafka,
RabbitMQ, NATS, AWS SNS, HTTP, SQLite, PostgreSQL or a file.

Settings come from an optional config file (yaml, json or toml) and from
RETAILSTREAM_* environment variables, e.g. RETAILSTREAM_STREAMING_BURST_SIZE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to a config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log.level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "override log.format (json|text)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))
	cmd.AddCommand(newTransportsCommand())
	return cmd
}

// load reads the config and applies the log overrides.
func (o *rootOptions) load() (*config.Config, error) {
	conf, err := config.Load(o.ConfigFile)
	if err != nil {
		return nil, exitError{code: 2, err: err}
	}
	if o.LogLevel != "" {
		conf.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		conf.Log.Format = o.LogFormat
	}
	return conf, nil
}

func newLogger(w io.Writer, conf *config.Config) (logging.ServiceLogger, error) {
	log, err := logging.NewSlogLogger(w, conf.Log.Format, conf.Log.Level)
	if err != nil {
		return nil, exitError{code: 2, err: err}
	}
	return logging.NewSlogServiceLogger(log), nil
}
