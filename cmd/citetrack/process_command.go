package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"citetrack/internal/orchestrator"
	"citetrack/internal/records"
	"citetrack/internal/statemachine"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "process <id>",
		Short: "Run one processing attempt for a single record",
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

				outcome, err := env.orch.Process(cmd.Context(), record, orchestrator.Options{Forced: force})
				out := cmd.OutOrStdout()
				if err != nil {
					var terr *statemachine.TransitionError
					switch {
					case errors.As(err, &terr):
						fmt.Fprintf(out, "Record #%d not processed: %v\n", id, terr)
						return nil
					case errors.Is(err, records.ErrConflict):
						return fmt.Errorf("record #%d is being processed elsewhere", id)
					default:
						return err
					}
				}

				printOutcome(out, outcome)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Override manual-only and ignore-auto intents")
	return cmd
}

func printOutcome(out io.Writer, outcome orchestrator.Outcome) {
	switch outcome.Disposition {
	case orchestrator.DispositionStored:
		fmt.Fprintf(out, "Record #%d linked to item %s\n", outcome.RecordID, outcome.ItemKey)
	case orchestrator.DispositionStoredIncomplete:
		fmt.Fprintf(out, "Record #%d linked to item %s (citation incomplete)\n", outcome.RecordID, outcome.ItemKey)
	case orchestrator.DispositionAwaitingApproval:
		fmt.Fprintf(out, "Record #%d has extracted metadata awaiting approval\n", outcome.RecordID)
	case orchestrator.DispositionAwaitingSelection:
		fmt.Fprintf(out, "Record #%d has multiple identifier candidates awaiting selection\n", outcome.RecordID)
	case orchestrator.DispositionRestored:
		fmt.Fprintf(out, "Record #%d replacement failed; previous item %s restored\n", outcome.RecordID, outcome.ItemKey)
	case orchestrator.DispositionExhausted:
		fmt.Fprintf(out, "Record #%d exhausted all tiers (%s): %s\n",
			outcome.RecordID, strings.Join(outcome.TiersTried, ", "), outcome.Reason)
	case orchestrator.DispositionFailed:
		fmt.Fprintf(out, "Record #%d failed: %s\n", outcome.RecordID, outcome.Reason)
	default:
		fmt.Fprintf(out, "Record #%d: %s\n", outcome.RecordID, outcome.Disposition)
	}
	if outcome.Replaced && outcome.OldItemKey != "" && outcome.Disposition != orchestrator.DispositionRestored {
		fmt.Fprintf(out, "Replaced previous item %s\n", outcome.OldItemKey)
	}
}
