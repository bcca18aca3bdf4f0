package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	itransport "github.com/drblury/retailstream/internal/runtime/transport"
	pubtransport "github.com/drblury/retailstream/transport"
)

func newTransportsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transports",
		Short: "List the available transports and their capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listTransports(cmd, pubtransport.DefaultRegistry)
		},
	}
}

func listTransports(cmd *cobra.Command, registry *pubtransport.Registry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tORDERING\tBATCHING\tTRACING\tDURABLE\tMAX MESSAGE")
	for _, caps := range registry.List() {
		maxSize := "-"
		if caps.MaxMessageSize > 0 {
			maxSize = fmt.Sprintf("%d", caps.MaxMessageSize)
		}
		fmt.Fprintf(w, "%s\t%t\t%t\t%t\t%t\t%s\n",
			caps.Name, caps.SupportsOrdering, caps.SupportsBatching, caps.SupportsTracing, caps.Durable, maxSize)
	}
	fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\n", itransport.NameNoop)
	return w.Flush()
}
