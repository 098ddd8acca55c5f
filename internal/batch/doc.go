// Package batch runs the orchestrator across many records with a fixed-size
// worker pool. Each Driver.Run call returns an independent Run handle whose
// event stream reports progress and whose Pause, Resume, and Cancel controls
// are cooperative: in-flight items always run to completion.
package batch
