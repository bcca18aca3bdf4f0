package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Load the configuration the way run does, validate it and print it with
credentials redacted. Exits with status 2 when the configuration is invalid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := root.load()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), conf.String())
			return err
		},
	}
}
