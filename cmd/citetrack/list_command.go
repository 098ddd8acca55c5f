package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"citetrack/internal/records"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]records.Status, 0, len(statusFlags))
			for _, raw := range statusFlags {
				status, ok := records.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}

			return ctx.withEnvironment(func(env *environment) error {
				items, err := env.store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No tracked URLs")
					return nil
				}

				rows := make([]table.Row, 0, len(items))
				for _, record := range items {
					item := record.ExternalItemKey
					if item == "" {
						item = "-"
					}
					rows = append(rows, table.Row{
						record.ID,
						record.Status.Label(),
						string(record.Intent),
						item,
						record.AttemptCount,
						record.UpdatedAt.Local().Format("2006-01-02 15:04"),
						record.URL,
					})
				}
				fmt.Fprintln(out, renderTable(
					table.Row{"ID", "Status", "Intent", "Item", "Attempts", "Updated", "URL"},
					rows, 1, 5,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&statusFlags, "status", nil, "Only list records in the given statuses")
	return cmd
}
