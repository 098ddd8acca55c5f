package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Return failed records to not_started",
		Long: "Reset the given failed records, or every failed record when no ids " +
			"are passed, so the next run picks them up again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseRecordIDs(args)
			if err != nil {
				return err
			}
			return ctx.withEnvironment(func(env *environment) error {
				count, err := env.orch.Retry(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed record(s)\n", count)
				return nil
			})
		},
	}
}
