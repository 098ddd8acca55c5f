package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record with its processing history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}

			return ctx.withEnvironment(func(env *environment) error {
				view, err := env.store.Projection(cmd.Context(), id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Record #%d\n", view.ID)
				fmt.Fprintf(out, "  URL:     %s\n", view.URL)
				fmt.Fprintf(out, "  Status:  %s\n", view.Status.Label())
				fmt.Fprintf(out, "  Intent:  %s\n", view.Intent)
				if view.ExternalItemKey != "" {
					fmt.Fprintf(out, "  Item:    %s\n", view.ExternalItemKey)
				}
				if view.LastError != nil {
					fmt.Fprintf(out, "  Error:   [%s] %s (retryable=%v)\n",
						view.LastError.Kind, view.LastError.Message, view.LastError.Retryable)
				}
				fmt.Fprintf(out, "  Updated: %s\n", view.UpdatedAt.Local().Format(time.RFC3339))

				if len(view.History) == 0 {
					fmt.Fprintln(out, "No processing history")
					return nil
				}

				rows := make([]table.Row, 0, len(view.History))
				for _, attempt := range view.History {
					result := attempt.ResultItemKey
					if result == "" {
						if msg, ok := attempt.Metadata["error"].(string); ok {
							result = msg
						}
					}
					rows = append(rows, table.Row{
						attempt.Seq,
						attempt.Timestamp.Local().Format("2006-01-02 15:04:05"),
						attempt.Stage,
						attempt.Method,
						yesNo(attempt.Success),
						fmt.Sprintf("%dms", attempt.DurationMs),
						result,
					})
				}
				fmt.Fprintln(out, renderTable(
					table.Row{"#", "Time", "Stage", "Method", "OK", "Duration", "Result"},
					rows, 1, 6,
				))
				return nil
			})
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
