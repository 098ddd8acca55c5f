package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"citetrack/internal/records"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url> [url...]",
		Short: "Start tracking one or more URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnvironment(func(env *environment) error {
				out := cmd.OutOrStdout()
				for _, raw := range args {
					record, err := env.store.NewURL(cmd.Context(), raw)
					if err != nil {
						if errors.Is(err, records.ErrDuplicateURL) {
							existing, lookupErr := env.store.FindByURL(cmd.Context(), raw)
							if lookupErr == nil {
								fmt.Fprintf(out, "Already tracked as #%d: %s\n", existing.ID, existing.URL)
								continue
							}
						}
						return fmt.Errorf("add %q: %w", raw, err)
					}
					fmt.Fprintf(out, "Tracking #%d: %s\n", record.ID, record.URL)
				}
				return nil
			})
		},
	}
}
