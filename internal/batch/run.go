package batch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"citetrack/internal/logging"
	"citetrack/internal/orchestrator"
	"citetrack/internal/services"
)

// Run is the handle for one batch execution. It is owned by the caller of
// Driver.Run; there is no process-wide current run.
type Run struct {
	id    string
	ids   []int64
	total int

	events chan Event
	done   chan struct{}

	cancelOnce sync.Once
	cancelCh   chan struct{}

	mu        sync.Mutex
	cond      *sync.Cond
	paused    bool
	closed    bool
	inflight  map[int64]struct{}
	processed int
	summary   Summary
}

func newRun(ids []int64, concurrency int) *Run {
	run := &Run{
		id:       uuid.NewString(),
		ids:      ids,
		total:    len(ids),
		events:   make(chan Event, 2*len(ids)+16),
		done:     make(chan struct{}),
		cancelCh: make(chan struct{}),
		inflight: make(map[int64]struct{}, concurrency),
	}
	run.cond = sync.NewCond(&run.mu)
	run.summary.Total = len(ids)
	return run
}

// ID returns the run's unique identifier.
func (r *Run) ID() string { return r.id }

// Events returns the progress stream. The channel is closed after the
// terminal completed or cancelled event.
func (r *Run) Events() <-chan Event { return r.events }

// Pause stops dispatching new items; in-flight items run to completion.
func (r *Run) Pause() {
	r.mu.Lock()
	already := r.paused
	r.paused = true
	r.mu.Unlock()
	if !already {
		r.emit(Event{Type: EventPaused, RunID: r.id, Processed: r.Processed(), Total: r.total})
	}
}

// Resume continues dispatch from the next undispatched id.
func (r *Run) Resume() {
	r.mu.Lock()
	wasPaused := r.paused
	r.paused = false
	r.mu.Unlock()
	r.cond.Broadcast()
	if wasPaused {
		r.emit(Event{Type: EventResumed, RunID: r.id, Processed: r.Processed(), Total: r.total})
	}
}

// Cancel stops dispatch; in-flight items are never hard-killed.
func (r *Run) Cancel() {
	r.cancelOnce.Do(func() {
		close(r.cancelCh)
	})
	r.cond.Broadcast()
}

// Wait blocks until the run finishes and returns its summary.
func (r *Run) Wait() Summary {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// Processed returns the number of items finished so far.
func (r *Run) Processed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.processed
}

func (r *Run) cancelled() bool {
	select {
	case <-r.cancelCh:
		return true
	default:
		return false
	}
}

// waitWhilePaused blocks while the pause flag is set. Returns false when the
// run was cancelled instead of resumed.
func (r *Run) waitWhilePaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.paused {
		if r.cancelled() {
			return false
		}
		r.cond.Wait()
	}
	return !r.cancelled()
}

// emit delivers a progress event without ever blocking. One buffer slot is
// always held back so the terminal send in dispatch cannot block on a
// consumer that stopped draining the stream.
func (r *Run) emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || cap(r.events)-len(r.events) <= 1 {
		// Progress events are advisory; drop rather than wedge.
		return
	}
	r.events <- event
}

func (r *Run) claim(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inflight[id]; ok {
		return false
	}
	r.inflight[id] = struct{}{}
	return true
}

func (r *Run) release(id int64) {
	r.mu.Lock()
	delete(r.inflight, id)
	r.mu.Unlock()
}

// dispatch feeds exactly `concurrency` workers from the id queue, honoring
// pause and cancel between dispatches, then emits the terminal event.
func (r *Run) dispatch(ctx context.Context, driver *Driver, logger *slog.Logger, opts Options) {
	ctx = services.WithRunID(ctx, r.id)

	queue := make(chan int64)
	var wg sync.WaitGroup

	workers := driver.concurrency
	if opts.Concurrency > 0 {
		workers = opts.Concurrency
	}
	if workers > r.total && r.total > 0 {
		workers = r.total
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range queue {
				r.work(ctx, driver, logger, id, opts)
			}
		}()
	}

dispatch:
	for _, id := range r.ids {
		if !r.waitWhilePaused() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		select {
		case queue <- id:
		case <-r.cancelCh:
			break dispatch
		case <-ctx.Done():
			break dispatch
		}
	}
	close(queue)
	wg.Wait()

	r.mu.Lock()
	summary := r.summary
	r.mu.Unlock()

	terminal := EventCompleted
	if r.cancelled() || ctx.Err() != nil {
		terminal = EventCancelled
	}
	logger.Info(
		"batch run finished",
		logging.String(logging.FieldEventType, "batch_done"),
		logging.String("result", string(terminal)),
		logging.Int("processed", summary.Processed),
		logging.Int("total", summary.Total),
	)
	r.mu.Lock()
	r.closed = true
	// emit keeps one slot free, so this send cannot block.
	r.events <- Event{
		Type:      terminal,
		RunID:     r.id,
		Processed: summary.Processed,
		Total:     summary.Total,
		Summary:   &summary,
	}
	close(r.events)
	r.mu.Unlock()
	close(r.done)
}

func (r *Run) work(ctx context.Context, driver *Driver, logger *slog.Logger, id int64, opts Options) {
	if !r.claim(id) {
		return
	}
	defer r.release(id)

	var (
		outcome orchestrator.Outcome
		itemErr error
	)

	record, err := driver.store.GetByID(ctx, id)
	if err != nil {
		itemErr = err
	} else {
		outcome, itemErr = driver.processor.Process(ctx, record, orchestrator.Options{Forced: opts.Forced})
	}

	errText := ""
	if itemErr != nil {
		errText = itemErr.Error()
	}

	r.mu.Lock()
	r.processed++
	processed := r.processed
	r.summary.account(outcome, itemErr)
	r.mu.Unlock()

	if errText != "" {
		logger.Warn(
			"batch item ended with error",
			logging.Int64(logging.FieldRecordID, id),
			logging.String("error", errText),
		)
	}

	r.emit(Event{
		Type:      EventItem,
		RunID:     r.id,
		RecordID:  id,
		Outcome:   outcome,
		Err:       errText,
		Processed: processed,
		Total:     r.total,
	})
}
