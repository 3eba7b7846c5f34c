package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eunmann/lasacres/pkg/humanfmt"
	"github.com/rs/zerolog"
)

// ProgressTracker counts processed files and estimates the time remaining.
// It is safe for concurrent use.
type ProgressTracker struct {
	total     int64
	completed atomic.Int64
	failed    atomic.Int64
	startTime time.Time
	log       zerolog.Logger
	phase     string

	// Moving average of recent file durations
	mu              sync.Mutex
	recentDurations []time.Duration
	maxRecent       int
}

// NewProgressTracker creates a tracker for total items.
func NewProgressTracker(phase string, total int64, log zerolog.Logger) *ProgressTracker {
	return &ProgressTracker{
		total:           total,
		startTime:       time.Now(),
		log:             log,
		phase:           phase,
		recentDurations: make([]time.Duration, 0, 16),
		maxRecent:       16,
	}
}

// RecordCompletion records a successfully processed item.
func (pt *ProgressTracker) RecordCompletion(d time.Duration) {
	pt.completed.Add(1)
	pt.recordDuration(d)
}

// RecordFailure records an item that finished with an error. Failed items
// count toward progress and the duration average.
func (pt *ProgressTracker) RecordFailure(d time.Duration) {
	pt.failed.Add(1)
	pt.recordDuration(d)
}

func (pt *ProgressTracker) recordDuration(d time.Duration) {
	pt.mu.Lock()
	if len(pt.recentDurations) >= pt.maxRecent {
		pt.recentDurations = pt.recentDurations[1:]
	}
	pt.recentDurations = append(pt.recentDurations, d)
	pt.mu.Unlock()
}

// Progress returns current counts.
func (pt *ProgressTracker) Progress() (completed, failed, total int64) {
	return pt.completed.Load(), pt.failed.Load(), pt.total
}

// Done returns completed plus failed.
func (pt *ProgressTracker) Done() int64 {
	return pt.completed.Load() + pt.failed.Load()
}

// ProgressPct returns the progress percentage (0-100).
func (pt *ProgressTracker) ProgressPct() float64 {
	if pt.total == 0 {
		return 100.0
	}
	return float64(pt.Done()) * 100.0 / float64(pt.total)
}

// ETA estimates the time remaining from recent durations. With concurrent
// workers the estimate is per-worker and therefore pessimistic.
func (pt *ProgressTracker) ETA() time.Duration {
	done := pt.Done()
	if done == 0 {
		return 0
	}
	remaining := pt.total - done
	if remaining <= 0 {
		return 0
	}

	pt.mu.Lock()
	var avg time.Duration
	if len(pt.recentDurations) > 0 {
		var sum time.Duration
		for _, d := range pt.recentDurations {
			sum += d
		}
		avg = sum / time.Duration(len(pt.recentDurations))
	} else {
		avg = time.Since(pt.startTime) / time.Duration(done)
	}
	pt.mu.Unlock()

	return avg * time.Duration(remaining)
}

// Elapsed returns time since tracking started.
func (pt *ProgressTracker) Elapsed() time.Duration {
	return time.Since(pt.startTime)
}

// Remaining returns how many items are left.
func (pt *ProgressTracker) Remaining() int64 {
	return pt.total - pt.Done()
}

// Total returns the total count.
func (pt *ProgressTracker) Total() int64 {
	return pt.total
}

// CompletionEvent helps build consistent completion log events.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  map[string]interface{}
	err     error
}

// NewCompletionEvent creates a new completion event builder.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{
		log:     log,
		event:   event,
		phase:   phase,
		elapsed: elapsed,
		fields:  make(map[string]interface{}),
	}
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Int adds an int field.
func (ce *CompletionEvent) Int(key string, val int) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Int64 adds an int64 field.
func (ce *CompletionEvent) Int64(key string, val int64) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Float64 adds a float64 field.
func (ce *CompletionEvent) Float64(key string, val float64) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Err attaches an error; the event is then logged at warn level.
func (ce *CompletionEvent) Err(err error) *CompletionEvent {
	ce.err = err
	return ce
}

// Bytes adds byte count with optional human-readable companion.
func (ce *CompletionEvent) Bytes(key string, bytes int64) *CompletionEvent {
	ce.fields[key] = bytes
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.Bytes(bytes)
	}
	return ce
}

// Count adds count with optional human-readable companion.
func (ce *CompletionEvent) Count(key string, n int64) *CompletionEvent {
	ce.fields[key] = n
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.Count(n)
	}
	return ce
}

// Acres adds an acreage with optional human-readable companion.
func (ce *CompletionEvent) Acres(key string, acres float64) *CompletionEvent {
	ce.fields[key] = acres
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.Acres(acres)
	}
	return ce
}

// ProgressFromTracker adds progress fields from a ProgressTracker.
func (ce *CompletionEvent) ProgressFromTracker(pt *ProgressTracker) *CompletionEvent {
	completed, failed, total := pt.Progress()
	ce.fields["completed"] = completed
	ce.fields["failed"] = failed
	ce.fields["total"] = total
	if total > 0 {
		ce.fields["progress_pct"] = float64(completed+failed) * 100.0 / float64(total)
	}
	if eta := pt.ETA(); eta > 0 {
		ce.fields["eta_ms"] = eta.Milliseconds()
		if IsPrettyMode() {
			ce.fields["eta_h"] = humanfmt.Duration(eta)
		}
	}
	return ce
}

// Throughput adds throughput fields.
func (ce *CompletionEvent) Throughput(bytes int64) *CompletionEvent {
	if ce.elapsed > 0 {
		ce.fields["throughput_bps"] = float64(bytes) / ce.elapsed.Seconds()
		if IsPrettyMode() {
			ce.fields["throughput_h"] = humanfmt.Throughput(bytes, ce.elapsed)
		}
	}
	return ce
}

// Log emits the event at info level, or warn when an error is attached.
func (ce *CompletionEvent) Log(msg string) {
	if ce.err != nil {
		ce.emit(ce.log.Warn().Err(ce.err), msg)
		return
	}
	ce.emit(ce.log.Info(), msg)
}

// LogDebug emits the event at debug level.
func (ce *CompletionEvent) LogDebug(msg string) {
	e := ce.log.Debug()
	if ce.err != nil {
		e = e.Err(ce.err)
	}
	ce.emit(e, msg)
}

func (ce *CompletionEvent) emit(e *zerolog.Event, msg string) {
	e = e.Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())

	if IsPrettyMode() {
		e = e.Str("duration_h", humanfmt.Duration(ce.elapsed))
	}

	for k, v := range ce.fields {
		e = e.Interface(k, v)
	}

	e.Msg(msg)
}

// PhaseComplete starts a phase completion event.
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// FileCompleted starts a per-file completion event.
func FileCompleted(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "file_completed", phase, elapsed)
}

// ArtifactWritten starts an event for an exported output file.
func ArtifactWritten(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "artifact_written", phase, elapsed)
}

// ScanStarted logs the start of a scan (no duration, no progress_pct).
func ScanStarted(log zerolog.Logger, phase string, files, workers int, hull bool) {
	log.Info().
		Str("event", "scan_started").
		Str("phase", phase).
		Int("files", files).
		Int("workers", workers).
		Bool("hull", hull).
		Msg("scan started")
}
