// Package memdiag provides memory diagnostics for debugging memory usage
// during scans.
//
// Enable debug logging with LASACRES_MEM_DEBUG=1
// Enable pprof server with LASACRES_MEM_PPROF=1 (listens on PprofAddr)
package memdiag

import (
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	// Registers pprof handlers on DefaultServeMux for the pprof HTTP server.
	_ "net/http/pprof"

	"github.com/eunmann/lasacres/pkg/humanfmt"
	"github.com/eunmann/lasacres/pkg/logging"
	"github.com/eunmann/lasacres/pkg/membudget"
)

// Environment switches.
const (
	EnvDebug = "LASACRES_MEM_DEBUG"
	EnvPprof = "LASACRES_MEM_PPROF"
)

// PprofAddr is where the pprof server listens.
const PprofAddr = "localhost:6060"

// Config holds configuration for memory diagnostics.
type Config struct {
	// Enabled controls whether memory diagnostics are active.
	Enabled bool

	// PprofEnabled controls whether pprof server is started.
	PprofEnabled bool

	// LogInterval is the interval for periodic memory logging.
	LogInterval time.Duration

	// Budget, when set, is reported alongside heap statistics.
	Budget *membudget.Budget
}

// ConfigFromEnv returns the default configuration, reading from environment.
func ConfigFromEnv() Config {
	return Config{
		Enabled:      os.Getenv(EnvDebug) == "1",
		PprofEnabled: os.Getenv(EnvPprof) == "1",
		LogInterval:  5 * time.Second,
	}
}

// Stats holds memory statistics from runtime.
type Stats struct {
	HeapAlloc     uint64
	HeapSys       uint64
	HeapInuse     uint64
	StackInuse    uint64
	Sys           uint64
	NumGC         uint32
	GCCPUFraction float64
}

// Read reads current memory statistics.
func Read() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Stats{
		HeapAlloc:     m.HeapAlloc,
		HeapSys:       m.HeapSys,
		HeapInuse:     m.HeapInuse,
		StackInuse:    m.StackInuse,
		Sys:           m.Sys,
		NumGC:         m.NumGC,
		GCCPUFraction: m.GCCPUFraction,
	}
}

// Tracker logs memory usage periodically and tracks the peak heap.
type Tracker struct {
	config   Config
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  atomic.Bool
	mu       sync.Mutex
	phase    string
	peakHeap uint64
}

// NewTracker creates a new memory tracker.
func NewTracker(config Config) *Tracker {
	if config.LogInterval <= 0 {
		config.LogInterval = 5 * time.Second
	}
	return &Tracker{
		config: config,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		phase:  "init",
	}
}

// Enabled reports whether the tracker logs anything.
func (t *Tracker) Enabled() bool { return t.config.Enabled }

// Start begins periodic memory logging if enabled.
func (t *Tracker) Start() {
	if !t.config.Enabled {
		return
	}
	if !t.started.CompareAndSwap(false, true) {
		return
	}

	log := logging.L()
	log.Info().Msg("memory diagnostics enabled")

	if t.config.PprofEnabled {
		go func() {
			log.Info().Str("addr", PprofAddr).Msg("starting pprof server")
			if err := http.ListenAndServe(PprofAddr, nil); err != nil {
				log.Error().Err(err).Msg("pprof server failed")
			}
		}()
	}

	go t.logLoop()
}

// Stop stops the tracker and logs a final sample.
func (t *Tracker) Stop() {
	if !t.started.Load() {
		return
	}
	close(t.stopCh)
	<-t.doneCh
}

// SetPhase sets the current phase for logging context.
func (t *Tracker) SetPhase(phase string) {
	t.mu.Lock()
	t.phase = phase
	t.mu.Unlock()

	t.LogNow("phase_change")
}

// LogNow logs current memory stats immediately.
func (t *Tracker) LogNow(reason string) {
	if !t.config.Enabled {
		return
	}
	stats := Read()

	t.mu.Lock()
	phase := t.phase
	t.peakHeap = max(t.peakHeap, stats.HeapAlloc)
	peakHeap := t.peakHeap
	t.mu.Unlock()

	e := logging.L().Debug().
		Str("reason", reason).
		Str("phase", phase).
		Str("heap_alloc", humanfmt.BytesUint64(stats.HeapAlloc)).
		Str("heap_inuse", humanfmt.BytesUint64(stats.HeapInuse)).
		Str("stack_inuse", humanfmt.BytesUint64(stats.StackInuse)).
		Str("sys_total", humanfmt.BytesUint64(stats.Sys)).
		Str("peak_heap", humanfmt.BytesUint64(peakHeap)).
		Uint32("num_gc", stats.NumGC).
		Float64("gc_cpu_pct", stats.GCCPUFraction*100)

	if b := t.config.Budget; b != nil {
		bs := b.Stats()
		e = e.Str("budget_inuse", humanfmt.BytesUint64(bs.InUseBytes)).
			Str("budget_peak", humanfmt.BytesUint64(bs.PeakBytes)).
			Str("budget_total", humanfmt.BytesUint64(bs.TotalBytes))
	}
	e.Msg("memory stats")
}

// PeakHeap returns the peak heap allocation seen.
func (t *Tracker) PeakHeap() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peakHeap
}

func (t *Tracker) logLoop() {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.config.LogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			t.LogNow("shutdown")
			return
		case <-ticker.C:
			t.LogNow("periodic")
		}
	}
}
