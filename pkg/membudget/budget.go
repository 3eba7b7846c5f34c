// Package membudget bounds the memory held by concurrently sampled point
// buffers during convex-hull estimation.
//
// Workers reserve the bytes a sampled buffer will need before loading
// points and release them once the hull is computed, so the total across
// all in-flight files stays within the budget.
package membudget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/eunmann/lasacres/pkg/sysmem"
)

// DefaultBudgetBytes is the fallback budget when system RAM cannot be detected.
const DefaultBudgetBytes uint64 = 2 * 1024 * 1024 * 1024

// BudgetSource indicates how the memory budget was determined.
type BudgetSource string

const (
	// BudgetSourceAuto50Pct is 50% of the memory available at startup.
	BudgetSourceAuto50Pct BudgetSource = "auto-50pct"
	// BudgetSourceDefault is the fallback default.
	BudgetSourceDefault BudgetSource = "default"
	// BudgetSourceCLI was set by a command-line flag.
	BudgetSourceCLI BudgetSource = "cli"
	// BudgetSourceConfig was set by the config file or environment.
	BudgetSourceConfig BudgetSource = "config"
)

// ErrExceedsBudget is returned when a single reservation can never fit.
var ErrExceedsBudget = errors.New("reservation exceeds total budget")

// Budget is a counting semaphore over bytes.
//
// Budget is safe for concurrent use.
type Budget struct {
	total  uint64
	inUse  atomic.Uint64
	peak   atomic.Uint64
	source BudgetSource

	mu   sync.Mutex
	cond *sync.Cond
}

// Config holds configuration for creating a Budget.
type Config struct {
	// TotalBytes is the budget in bytes.
	TotalBytes uint64

	// Source indicates how the budget was determined.
	Source BudgetSource
}

// New creates a Budget with the given configuration.
func New(cfg Config) *Budget {
	b := &Budget{
		total:  cfg.TotalBytes,
		source: cfg.Source,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// NewFromSystemRAM creates a Budget of 50% of currently available RAM,
// or DefaultBudgetBytes when detection fails.
func NewFromSystemRAM() *Budget {
	result := sysmem.Total()
	if !result.Reliable {
		return New(Config{TotalBytes: DefaultBudgetBytes, Source: BudgetSourceDefault})
	}
	return New(Config{TotalBytes: result.AvailableBytes / 2, Source: BudgetSourceAuto50Pct})
}

// Total returns the total budget in bytes.
func (b *Budget) Total() uint64 {
	return b.total
}

// InUse returns the currently reserved bytes.
func (b *Budget) InUse() uint64 {
	return b.inUse.Load()
}

// Peak returns the highest reservation total seen.
func (b *Budget) Peak() uint64 {
	return b.peak.Load()
}

// Available returns total minus in-use bytes.
func (b *Budget) Available() uint64 {
	inUse := b.inUse.Load()
	if inUse >= b.total {
		return 0
	}
	return b.total - inUse
}

// Source returns how the budget was determined.
func (b *Budget) Source() BudgetSource {
	return b.source
}

// TryReserve reserves n bytes if they fit right now.
func (b *Budget) TryReserve(n uint64) bool {
	for {
		current := b.inUse.Load()
		next := current + n
		if next > b.total {
			return false
		}
		if b.inUse.CompareAndSwap(current, next) {
			b.notePeak(next)
			return true
		}
	}
}

// Reserve blocks until n bytes are reserved or ctx is done.
func (b *Budget) Reserve(ctx context.Context, n uint64) error {
	if n > b.total {
		return fmt.Errorf("%w: %d > %d bytes", ErrExceedsBudget, n, b.total)
	}
	if b.TryReserve(n) {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})
	defer stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	for !b.TryReserve(n) {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.cond.Wait()
	}
	return nil
}

// Release returns n bytes to the pool. Over-release is clamped at zero.
func (b *Budget) Release(n uint64) {
	for {
		current := b.inUse.Load()
		next := uint64(0)
		if n < current {
			next = current - n
		}
		if b.inUse.CompareAndSwap(current, next) {
			break
		}
	}

	b.mu.Lock()
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *Budget) notePeak(v uint64) {
	for {
		p := b.peak.Load()
		if v <= p || b.peak.CompareAndSwap(p, v) {
			return
		}
	}
}

// Stats is a point-in-time view of the budget.
type Stats struct {
	TotalBytes     uint64
	InUseBytes     uint64
	PeakBytes      uint64
	AvailableBytes uint64
	Source         BudgetSource
	UsagePercent   float64
}

// Stats returns current budget statistics.
func (b *Budget) Stats() Stats {
	inUse := b.inUse.Load()
	available := uint64(0)
	if inUse < b.total {
		available = b.total - inUse
	}
	var usagePct float64
	if b.total > 0 {
		usagePct = float64(inUse) / float64(b.total) * 100.0
	}
	return Stats{
		TotalBytes:     b.total,
		InUseBytes:     inUse,
		PeakBytes:      b.peak.Load(),
		AvailableBytes: available,
		Source:         b.source,
		UsagePercent:   usagePct,
	}
}

// ParseHumanSize parses a human-readable size string (e.g., "4GiB", "512MB").
// Supported suffixes: B, KB, KiB, MB, MiB, GB, GiB, TB, TiB.
func ParseHumanSize(s string) (uint64, error) {
	if s == "" {
		return 0, errors.New("empty size string")
	}

	numEnd := 0
	for i, c := range s {
		if (c < '0' || c > '9') && c != '.' {
			numEnd = i
			break
		}
		numEnd = i + 1
	}

	numStr := s[:numEnd]
	suffix := s[numEnd:]

	var num float64
	if _, err := fmt.Sscanf(numStr, "%f", &num); err != nil {
		return 0, fmt.Errorf("invalid number: %s", numStr)
	}

	var multiplier float64
	switch suffix {
	case "", "B":
		multiplier = 1.0
	case "KB":
		multiplier = 1000
	case "KiB", "K":
		multiplier = 1024
	case "MB":
		multiplier = 1000 * 1000
	case "MiB", "M":
		multiplier = 1024 * 1024
	case "GB":
		multiplier = 1000 * 1000 * 1000
	case "GiB", "G":
		multiplier = 1024 * 1024 * 1024
	case "TB":
		multiplier = 1000 * 1000 * 1000 * 1000
	case "TiB", "T":
		multiplier = 1024 * 1024 * 1024 * 1024
	default:
		return 0, fmt.Errorf("unknown size suffix: %s", suffix)
	}

	return uint64(num * multiplier), nil
}
