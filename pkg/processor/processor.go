// Package processor runs metadata extraction and area estimation over a
// batch of survey files on a fixed pool of workers.
//
// Every dispatched file yields exactly one survey.FileRecord, failed or
// not; a failure in one file never affects another. Progress is reported
// asynchronously so a slow observer cannot stall the workers, and
// cancellation is cooperative: files already being processed finish, no
// new files are started.
package processor

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/lasacres/internal/logctx"
	"github.com/eunmann/lasacres/pkg/area"
	"github.com/eunmann/lasacres/pkg/logging"
	"github.com/eunmann/lasacres/pkg/survey"
)

// DefaultMaxFileBytes is the per-file size cap (20 GiB).
const DefaultMaxFileBytes int64 = 20 << 30

// DefaultProgressBuffer is the capacity of the progress event queue.
const DefaultProgressBuffer = 256

// Describer produces the textual metadata report for one file.
type Describer interface {
	Name() string
	Describe(ctx context.Context, path string) (string, error)
}

// Config configures a Processor.
type Config struct {
	// Workers is the pool size. Zero means runtime.NumCPU().
	Workers int
	// MaxFileBytes rejects larger files. Zero means DefaultMaxFileBytes;
	// negative disables the cap.
	MaxFileBytes int64
	// ProgressBuffer is the event queue capacity. Zero means
	// DefaultProgressBuffer.
	ProgressBuffer int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.MaxFileBytes == 0 {
		c.MaxFileBytes = DefaultMaxFileBytes
	}
	if c.ProgressBuffer <= 0 {
		c.ProgressBuffer = DefaultProgressBuffer
	}
	return c
}

// Processor is safe to Run repeatedly; runs share no state.
type Processor struct {
	cfg       Config
	describer Describer
	estimator *area.Estimator
	observer  Observer
}

// New creates a Processor. estimator and observer may be nil.
func New(cfg Config, d Describer, estimator *area.Estimator, observer Observer) *Processor {
	if estimator == nil {
		estimator = &area.Estimator{}
	}
	return &Processor{
		cfg:       cfg.withDefaults(),
		describer: d,
		estimator: estimator,
		observer:  observer,
	}
}

// Workers returns the effective pool size.
func (p *Processor) Workers() int { return p.cfg.Workers }

// Result is the outcome of one run.
type Result struct {
	// Records holds one record per dispatched path, in input order.
	Records []survey.FileRecord
	// Undispatched lists paths never started because the run was canceled.
	Undispatched []string
	// Canceled reports whether ctx ended before every path was dispatched.
	Canceled bool
	// DroppedEvents counts progress events discarded while the queue was full.
	DroppedEvents int64
	Elapsed       time.Duration
}

// ErrNoDescriber is returned by Run when the processor has no Describer.
var ErrNoDescriber = errors.New("processor: no metadata describer configured")

type task struct {
	index int
	path  string
}

// Run processes paths and returns once every started file has finished and
// the final progress event has been delivered. Errors inside files become
// records; Run itself only fails on misconfiguration.
func (p *Processor) Run(ctx context.Context, paths []string) (*Result, error) {
	if p.describer == nil {
		return nil, ErrNoDescriber
	}

	start := time.Now()
	total := len(paths)
	log := logctx.FromContext(ctx).With().Str("phase", "scan").Logger()
	logging.ScanStarted(log, "scan", total, p.cfg.Workers, p.estimator.HullEnabled())

	tracker := logging.NewProgressTracker("scan", int64(total), log)
	notify := newNotifier(p.observer, p.cfg.ProgressBuffer)

	// Files run to completion even if the caller cancels mid-run.
	workCtx := logctx.WithLogger(context.WithoutCancel(ctx), log)

	records := make([]survey.FileRecord, total)
	finished := make([]bool, total)
	var completed atomic.Int64

	tasks := make(chan task)
	var g errgroup.Group

	g.Go(func() error {
		defer close(tasks)
		for i, path := range paths {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case tasks <- task{index: i, path: path}:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < p.cfg.Workers; w++ {
		g.Go(func() error {
			for t := range tasks {
				fileCtx := logctx.WithFile(workCtx, baseName(t.path), w)
				onStage := func(stage string) {
					notify.send(Event{
						Completed: int(completed.Load()),
						Total:     total,
						File:      baseName(t.path),
						Stage:     stage,
					})
				}

				rec := p.processFile(fileCtx, t.path, onStage)
				records[t.index] = rec
				finished[t.index] = true

				done := int(completed.Add(1))
				p.logFile(fileCtx, rec, tracker)
				notify.send(Event{
					Completed: done,
					Total:     total,
					File:      rec.Name,
					Stage:     survey.StageDone,
					Failed:    rec.Err != nil,
				})
			}
			return nil
		})
	}

	// Workers never return errors; Wait is the drain barrier.
	_ = g.Wait()

	res := &Result{Records: make([]survey.FileRecord, 0, total)}
	for i := range paths {
		if finished[i] {
			res.Records = append(res.Records, records[i])
		} else {
			res.Undispatched = append(res.Undispatched, paths[i])
		}
	}
	res.Canceled = len(res.Undispatched) > 0

	notify.finish(Event{
		Completed: int(completed.Load()),
		Total:     total,
		Stage:     survey.StageDone,
		Final:     true,
		Canceled:  res.Canceled,
	})
	res.DroppedEvents = notify.dropped.Load()
	res.Elapsed = time.Since(start)

	completedN, failedN, _ := tracker.Progress()
	logging.PhaseComplete(log, "scan", res.Elapsed).
		Int64("succeeded", completedN).
		Int64("failed", failedN).
		Int("undispatched", len(res.Undispatched)).
		Int64("dropped_events", res.DroppedEvents).
		Log("scan finished")

	return res, nil
}

func (p *Processor) logFile(ctx context.Context, rec survey.FileRecord, tracker *logging.ProgressTracker) {
	log := logctx.FromContext(ctx)
	if rec.Err != nil {
		tracker.RecordFailure(rec.Duration)
	} else {
		tracker.RecordCompletion(rec.Duration)
	}

	ev := logging.FileCompleted(log, "scan", rec.Duration).
		Bytes("size_bytes", rec.SizeBytes).
		ProgressFromTracker(tracker)
	if rec.Err != nil {
		ev.Err(rec.Err).Log("file failed")
		return
	}
	ev.Count("points", rec.PointCount).
		Str("unit", rec.Unit.String()).
		Str("method", rec.Method.String()).
		Acres("acres", rec.PreferredAcres()).
		LogDebug("file processed")
}
