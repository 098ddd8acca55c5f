package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"citetrack/internal/records"
)

func newIntentCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "intent <id> <auto|priority|manual-only|ignore-auto>",
		Short: "Set the processing intent for a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			intent, ok := records.ParseIntent(args[1])
			if !ok {
				return fmt.Errorf("unknown intent %q", args[1])
			}
			return ctx.withEnvironment(func(env *environment) error {
				if err := env.store.SetIntent(cmd.Context(), id, intent); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Record #%d intent set to %s\n", id, intent)
				return nil
			})
		},
	}
}
