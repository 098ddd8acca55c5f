package main

import (
	"github.com/spf13/cobra"
)

func newApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a record's extracted metadata and store the link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return ctx.withEnvironment(func(env *environment) error {
				record, err := env.store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				outcome, err := env.orch.Approve(cmd.Context(), record)
				if err != nil {
					return err
				}
				printOutcome(cmd.OutOrStdout(), outcome)
				return nil
			})
		},
	}
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a record's extracted metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return ctx.withEnvironment(func(env *environment) error {
				record, err := env.store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				outcome, err := env.orch.Reject(cmd.Context(), record, reason)
				if err != nil {
					return err
				}
				printOutcome(cmd.OutOrStdout(), outcome)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the extracted metadata was rejected")
	return cmd
}
