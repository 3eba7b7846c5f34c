package membudget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBudgetBasic(t *testing.T) {
	budget := New(Config{
		TotalBytes: 1000,
		Source:     BudgetSourceCLI,
	})

	if budget.Total() != 1000 {
		t.Errorf("Total() = %d, want 1000", budget.Total())
	}
	if budget.Source() != BudgetSourceCLI {
		t.Errorf("Source() = %s, want %s", budget.Source(), BudgetSourceCLI)
	}
	if budget.Available() != 1000 {
		t.Errorf("Available() = %d, want 1000", budget.Available())
	}
}

func TestNewFromSystemRAM(t *testing.T) {
	budget := NewFromSystemRAM()

	if budget.Total() == 0 {
		t.Error("Total() = 0")
	}
	if budget.Source() != BudgetSourceAuto50Pct && budget.Source() != BudgetSourceDefault {
		t.Errorf("Source = %s, want auto-50pct or default", budget.Source())
	}
}

func TestTryReserveRelease(t *testing.T) {
	budget := New(Config{TotalBytes: 100})

	if !budget.TryReserve(60) {
		t.Fatal("TryReserve(60) = false, want true")
	}
	if budget.TryReserve(50) {
		t.Error("TryReserve(50) over budget = true, want false")
	}
	if !budget.TryReserve(40) {
		t.Error("TryReserve(40) = false, want true")
	}
	if budget.InUse() != 100 {
		t.Errorf("InUse() = %d, want 100", budget.InUse())
	}

	budget.Release(70)
	if budget.InUse() != 30 {
		t.Errorf("InUse() = %d, want 30", budget.InUse())
	}
	budget.Release(1000)
	if budget.InUse() != 0 {
		t.Errorf("InUse() after over-release = %d, want 0", budget.InUse())
	}
	if budget.Peak() != 100 {
		t.Errorf("Peak() = %d, want 100", budget.Peak())
	}
}

func TestReserve_ExceedsTotal(t *testing.T) {
	budget := New(Config{TotalBytes: 10})
	if err := budget.Reserve(context.Background(), 11); !errors.Is(err, ErrExceedsBudget) {
		t.Errorf("Reserve(11) error = %v, want ErrExceedsBudget", err)
	}
}

func TestReserve_BlocksUntilRelease(t *testing.T) {
	budget := New(Config{TotalBytes: 10})
	budget.TryReserve(10)

	done := make(chan error, 1)
	go func() { done <- budget.Reserve(context.Background(), 5) }()

	select {
	case err := <-done:
		t.Fatalf("Reserve returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	budget.Release(5)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Reserve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Reserve did not wake after Release")
	}
	if budget.InUse() != 10 {
		t.Errorf("InUse() = %d, want 10", budget.InUse())
	}
}

func TestReserve_Canceled(t *testing.T) {
	budget := New(Config{TotalBytes: 10})
	budget.TryReserve(10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- budget.Reserve(ctx, 5) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Reserve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Reserve did not return after cancel")
	}
}

func TestReserve_Concurrent(t *testing.T) {
	budget := New(Config{TotalBytes: 64})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := budget.Reserve(context.Background(), 16); err != nil {
				t.Errorf("Reserve() error = %v", err)
				return
			}
			if budget.InUse() > budget.Total() {
				t.Errorf("InUse %d exceeds total %d", budget.InUse(), budget.Total())
			}
			budget.Release(16)
		}()
	}
	wg.Wait()

	if budget.InUse() != 0 {
		t.Errorf("InUse() = %d, want 0", budget.InUse())
	}
	if budget.Peak() > 64 {
		t.Errorf("Peak() = %d, want <= 64", budget.Peak())
	}
}

func TestStats(t *testing.T) {
	budget := New(Config{TotalBytes: 200, Source: BudgetSourceConfig})
	budget.TryReserve(50)

	s := budget.Stats()
	if s.InUseBytes != 50 || s.AvailableBytes != 150 || s.UsagePercent != 25 {
		t.Errorf("Stats() = %+v", s)
	}
	if New(Config{}).Stats().UsagePercent != 0 {
		t.Error("zero budget UsagePercent should be 0")
	}
}

func TestParseHumanSize(t *testing.T) {
	tests := []struct {
		input   string
		want    uint64
		wantErr bool
	}{
		{"1024", 1024, false},
		{"100B", 100, false},
		{"1KB", 1000, false},
		{"1KiB", 1024, false},
		{"1K", 1024, false},
		{"1MB", 1000000, false},
		{"1MiB", 1024 * 1024, false},
		{"1M", 1024 * 1024, false},
		{"1GB", 1000000000, false},
		{"1GiB", 1024 * 1024 * 1024, false},
		{"4GiB", 4 * 1024 * 1024 * 1024, false},
		{"0.5GiB", 512 * 1024 * 1024, false},
		{"", 0, true},
		{"XYZ", 0, true},
		{"100XB", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseHumanSize(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseHumanSize(%q) should error", tt.input)
			}
		} else {
			if err != nil {
				t.Errorf("ParseHumanSize(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseHumanSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		}
	}
}
