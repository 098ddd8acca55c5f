package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"citetrack/internal/records"
)

func newIgnoreCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "ignore <id>",
		Short: "Mark a record as deliberately not pursued",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManual(ctx, cmd, args[0], "ignored", func(env *environment, cmdCtx context.Context, record *records.Record) error {
				return env.orch.Ignore(cmdCtx, record, reason)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Optional note recorded with the change")
	return cmd
}

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a record (terminal, no further transitions)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManual(ctx, cmd, args[0], "archived", func(env *environment, cmdCtx context.Context, record *records.Record) error {
				return env.orch.Archive(cmdCtx, record, reason)
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Optional note recorded with the change")
	return cmd
}

func newReinstateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reinstate <id>",
		Short: "Return an ignored record to not_started",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManual(ctx, cmd, args[0], "reinstated", func(env *environment, cmdCtx context.Context, record *records.Record) error {
				return env.orch.Reinstate(cmdCtx, record)
			})
		},
	}
}

func runManual(ctx *commandContext, cmd *cobra.Command, arg, verb string, fn func(*environment, context.Context, *records.Record) error) error {
	id, err := parseRecordID(arg)
	if err != nil {
		return err
	}
	return ctx.withEnvironment(func(env *environment) error {
		record, err := env.store.GetByID(cmd.Context(), id)
		if err != nil {
			return err
		}
		if err := fn(env, cmd.Context(), record); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Record #%d %s\n", id, verb)
		return nil
	})
}
