package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"citetrack/internal/batch"
	"citetrack/internal/records"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var concurrency int
	var force bool
	var includeFailed bool

	cmd := &cobra.Command{
		Use:   "run [id...]",
		Short: "Process pending records as a batch",
		Long: "Process the given record ids, or every not-started record when no ids " +
			"are passed. Only one run may hold the batch lock at a time; interrupting " +
			"with Ctrl-C lets in-flight records finish before stopping.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseRecordIDs(args)
			if err != nil {
				return err
			}

			return ctx.withEnvironment(func(env *environment) error {
				lock := flock.New(env.cfg.LockPath())
				locked, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("acquire batch lock: %w", err)
				}
				if !locked {
					return fmt.Errorf("another citetrack run holds %s", env.cfg.LockPath())
				}
				defer lock.Unlock()

				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				out := cmd.OutOrStdout()

				restored, err := env.store.ResetStuckProcessing(runCtx)
				if err != nil {
					return fmt.Errorf("reset stuck records: %w", err)
				}
				if restored > 0 {
					fmt.Fprintf(out, "Recovered %d record(s) stuck in processing\n", restored)
				}

				if len(ids) == 0 {
					statuses := []records.Status{records.StatusNotStarted}
					if includeFailed {
						statuses = append(statuses, records.StatusFailed)
					}
					ids, err = env.store.ListIDs(runCtx, statuses...)
					if err != nil {
						return err
					}
				}
				if len(ids) == 0 {
					fmt.Fprintln(out, "Nothing to process")
					return nil
				}

				driver := batch.New(env.cfg, env.store, env.orch, env.logger)
				started := time.Now()
				run, err := driver.Run(runCtx, ids, batch.Options{Concurrency: concurrency, Forced: force})
				if err != nil {
					return err
				}

				if err := env.notifier.NotifyBatchStarted(runCtx, run.ID(), len(ids)); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "notification failed: %v\n", err)
				}

				go func() {
					<-runCtx.Done()
					run.Cancel()
				}()

				var bar *progressbar.ProgressBar
				if shouldColorize(os.Stderr) {
					bar = progressbar.NewOptions(len(ids),
						progressbar.OptionSetDescription("processing"),
						progressbar.OptionShowCount(),
						progressbar.OptionSetWidth(40),
						progressbar.OptionThrottle(200*time.Millisecond),
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionSetRenderBlankState(true),
						progressbar.OptionEnableColorCodes(false),
					)
				}

				cancelled := false
				for event := range run.Events() {
					switch event.Type {
					case batch.EventItem:
						if bar != nil {
							_ = bar.Add(1)
						}
					case batch.EventCancelled:
						cancelled = true
					}
				}
				if bar != nil {
					_ = bar.Finish()
					fmt.Fprintln(os.Stderr)
				}

				summary := run.Wait()
				elapsed := time.Since(started).Round(time.Second)
				printSummary(out, summary, cancelled, elapsed)

				// Completion is reported even for interrupted runs so the
				// operator sees what finished before the stop.
				notifyCtx := cmd.Context()
				if err := env.notifier.NotifyBatchCompleted(notifyCtx, run.ID(),
					summary.Linked, summary.Failed, summary.Attention, elapsed); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "notification failed: %v\n", err)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Worker count override (defaults to configuration)")
	cmd.Flags().BoolVar(&force, "force", false, "Override manual-only and ignore-auto intents")
	cmd.Flags().BoolVar(&includeFailed, "include-failed", false, "Also process records in the failed state")
	return cmd
}

func printSummary(out io.Writer, summary batch.Summary, cancelled bool, elapsed time.Duration) {
	verb := "completed"
	if cancelled {
		verb = "cancelled"
	}
	fmt.Fprintf(out, "Batch %s in %s: %d/%d processed\n", verb, elapsed, summary.Processed, summary.Total)
	fmt.Fprintf(out, "  linked %d, attention %d, failed %d", summary.Linked, summary.Attention, summary.Failed)
	if summary.Skipped > 0 {
		fmt.Fprintf(out, ", skipped %d", summary.Skipped)
	}
	if summary.Conflicts > 0 {
		fmt.Fprintf(out, ", conflicts %d", summary.Conflicts)
	}
	if summary.Errors > 0 {
		fmt.Fprintf(out, ", errors %d", summary.Errors)
	}
	fmt.Fprintln(out)
}
