package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"citetrack/internal/records"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show record counts per lifecycle state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnvironment(func(env *environment) error {
				stats, err := env.store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				health, err := env.store.Health(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, colorizeHeading(out, "Citetrack Status"))
				fmt.Fprintf(out, "Database: %s\n\n", env.store.Path())

				rows := make([]table.Row, 0, len(stats))
				for _, status := range records.AllStatuses() {
					count := stats[status]
					if count == 0 {
						continue
					}
					rows = append(rows, table.Row{status.Label(), count})
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "No tracked URLs")
					return nil
				}
				fmt.Fprintln(out, renderTable(table.Row{"Status", "Records"}, rows, 2))

				fmt.Fprintf(out, "\n%d total: %d pending, %d in flight, %d need attention, %d stored, %d failed\n",
					health.Total, health.NotStarted, health.Processing,
					health.Attention, health.Stored, health.Failed)
				return nil
			})
		},
	}
}
