package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eunmann/lasacres/pkg/area"
	"github.com/eunmann/lasacres/pkg/survey"
)

func report(maxX, maxY float64) string {
	return fmt.Sprintf(`reporting all LAS header entries:
  number of point records:    1000
  min x y z:                  0 0 0
  max x y z:                  %g %g 10
      key 3076 tiff_tag_location 0 count 1 value_offset 9001 - ProjLinearUnitsGeoKey: Linear_Meter
`, maxX, maxY)
}

// fakeDescriber serves canned reports keyed by base name.
type fakeDescriber struct {
	reports map[string]string
	panics  map[string]bool
	calls   atomic.Int64

	// started and release, when set, block the first call until release
	// is closed.
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *fakeDescriber) Name() string { return "fake" }

func (f *fakeDescriber) Describe(ctx context.Context, path string) (string, error) {
	f.calls.Add(1)
	name := filepath.Base(path)
	if f.started != nil {
		f.once.Do(func() {
			close(f.started)
			<-f.release
		})
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.panics[name] {
		panic("describer exploded on " + name)
	}
	r, ok := f.reports[name]
	if !ok {
		return "", survey.ErrEmptyInput
	}
	return r, nil
}

func makeFiles(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		if err := os.WriteFile(paths[i], []byte("LASF0123456789"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}

func TestRun_Isolation(t *testing.T) {
	names := []string{"a.las", "b.las", "c.las", "d.las", "e.las"}
	paths := makeFiles(t, names...)
	d := &fakeDescriber{reports: map[string]string{
		"a.las": report(100, 100),
		"b.las": report(200, 100),
		"c.las": "min x y z: 0 0 0\nmax x y z: oops\n",
		"d.las": report(100, 50),
		"e.las": report(10, 10),
	}}

	p := New(Config{Workers: 3}, d, nil, nil)
	res, err := p.Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Records) != len(paths) {
		t.Fatalf("got %d records, want %d", len(res.Records), len(paths))
	}

	failures := 0
	for i, rec := range res.Records {
		if rec.Name != names[i] {
			t.Errorf("record %d is %q, want input order %q", i, rec.Name, names[i])
		}
		if rec.Err != nil {
			failures++
			if !errors.Is(rec.Err, survey.ErrMalformedReport) {
				t.Errorf("%s: Err = %v, want ErrMalformedReport", rec.Name, rec.Err)
			}
			if rec.Bounds.Set {
				t.Errorf("%s: failed record has bounds set", rec.Name)
			}
			var fe *survey.FileError
			if !errors.As(rec.Err, &fe) || fe.Stage != survey.StageMetadata {
				t.Errorf("%s: Err = %#v, want FileError at metadata stage", rec.Name, rec.Err)
			}
			continue
		}
		if rec.BBoxAcres <= 0 || rec.Unit != survey.UnitMeters || rec.PointCount != 1000 {
			t.Errorf("%s: BBoxAcres=%v Unit=%v PointCount=%d", rec.Name, rec.BBoxAcres, rec.Unit, rec.PointCount)
		}
	}
	if failures != 1 {
		t.Errorf("got %d failed records, want 1", failures)
	}
	if res.Canceled || len(res.Undispatched) != 0 {
		t.Errorf("Canceled=%v Undispatched=%v", res.Canceled, res.Undispatched)
	}
}

func TestRun_PartitionInvariant(t *testing.T) {
	for _, workers := range []int{1, 2, 8} {
		names := make([]string, 23)
		reports := map[string]string{}
		for i := range names {
			names[i] = fmt.Sprintf("tile_%02d.las", i)
			if i%4 != 0 {
				reports[names[i]] = report(float64(10+i), 20)
			}
		}
		paths := makeFiles(t, names...)

		res, err := New(Config{Workers: workers}, &fakeDescriber{reports: reports}, nil, nil).Run(context.Background(), paths)
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		succeeded, failed := 0, 0
		for _, rec := range res.Records {
			if rec.Succeeded() {
				succeeded++
			} else {
				failed++
			}
		}
		if succeeded+failed != len(paths) {
			t.Errorf("workers=%d: %d + %d != %d", workers, succeeded, failed, len(paths))
		}
		if failed != 6 {
			t.Errorf("workers=%d: failed = %d, want 6", workers, failed)
		}
	}
}

func TestRun_PanicBecomesRecord(t *testing.T) {
	paths := makeFiles(t, "ok.las", "boom.las")
	d := &fakeDescriber{
		reports: map[string]string{"ok.las": report(10, 10), "boom.las": report(10, 10)},
		panics:  map[string]bool{"boom.las": true},
	}

	res, err := New(Config{Workers: 2}, d, nil, nil).Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !res.Records[0].Succeeded() {
		t.Errorf("ok.las failed: %v", res.Records[0].Err)
	}
	if !errors.Is(res.Records[1].Err, survey.ErrComputationFailure) {
		t.Errorf("boom.las Err = %v, want ErrComputationFailure", res.Records[1].Err)
	}
	if res.Records[1].Duration <= 0 {
		t.Error("panicked record has no duration")
	}
}

func TestRun_StatFailuresAndSizeCap(t *testing.T) {
	paths := makeFiles(t, "small.las")
	missing := filepath.Join(filepath.Dir(paths[0]), "missing.las")
	big := filepath.Join(filepath.Dir(paths[0]), "big.las")
	if err := os.WriteFile(big, make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	d := &fakeDescriber{reports: map[string]string{"small.las": report(1, 1), "big.las": report(1, 1)}}

	res, err := New(Config{Workers: 2, MaxFileBytes: 1024}, d, nil, nil).Run(context.Background(), []string{paths[0], missing, big})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !res.Records[0].Succeeded() {
		t.Errorf("small.las: %v", res.Records[0].Err)
	}
	if !errors.Is(res.Records[1].Err, os.ErrNotExist) {
		t.Errorf("missing.las Err = %v, want not-exist", res.Records[1].Err)
	}
	if !errors.Is(res.Records[2].Err, survey.ErrFileTooLarge) {
		t.Errorf("big.las Err = %v, want ErrFileTooLarge", res.Records[2].Err)
	}
	if res.Records[2].SizeBytes != 4096 {
		t.Errorf("big.las SizeBytes = %d, want 4096", res.Records[2].SizeBytes)
	}
}

func TestRun_CancelFinishesInFlight(t *testing.T) {
	names := []string{"1.las", "2.las", "3.las", "4.las"}
	paths := makeFiles(t, names...)
	reports := map[string]string{}
	for _, n := range names {
		reports[n] = report(10, 10)
	}
	d := &fakeDescriber{reports: reports, started: make(chan struct{}), release: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type out struct {
		res *Result
		err error
	}
	done := make(chan out, 1)
	go func() {
		res, err := New(Config{Workers: 1}, d, nil, nil).Run(ctx, paths)
		done <- out{res, err}
	}()

	<-d.started
	cancel()
	close(d.release)

	var o out
	select {
	case o = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if o.err != nil {
		t.Fatalf("Run() error: %v", o.err)
	}
	if len(o.res.Records) != 1 {
		t.Fatalf("got %d records, want the 1 in-flight file", len(o.res.Records))
	}
	if !o.res.Records[0].Succeeded() {
		t.Errorf("in-flight file failed: %v", o.res.Records[0].Err)
	}
	if !o.res.Canceled || len(o.res.Undispatched) != 3 {
		t.Errorf("Canceled=%v Undispatched=%v", o.res.Canceled, o.res.Undispatched)
	}
	if len(o.res.Records)+len(o.res.Undispatched) != len(paths) {
		t.Error("records and undispatched do not cover the input")
	}
}

func TestRun_SlowObserverDoesNotStallWorkers(t *testing.T) {
	names := make([]string, 30)
	reports := map[string]string{}
	for i := range names {
		names[i] = fmt.Sprintf("f%02d.las", i)
		reports[names[i]] = report(5, 5)
	}
	paths := makeFiles(t, names...)
	d := &fakeDescriber{reports: reports}

	unblock := make(chan struct{})
	var mu sync.Mutex
	var events []Event
	obs := ObserverFunc(func(e Event) {
		<-unblock
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	done := make(chan *Result, 1)
	go func() {
		res, _ := New(Config{Workers: 4, ProgressBuffer: 1}, d, nil, obs).Run(context.Background(), paths)
		done <- res
	}()

	deadline := time.Now().Add(5 * time.Second)
	for d.calls.Load() < int64(len(paths)) {
		if time.Now().After(deadline) {
			t.Fatalf("workers stalled behind blocked observer after %d files", d.calls.Load())
		}
		time.Sleep(time.Millisecond)
	}
	close(unblock)

	var res *Result
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if len(res.Records) != len(paths) {
		t.Errorf("got %d records, want %d", len(res.Records), len(paths))
	}
	if res.DroppedEvents == 0 {
		t.Error("expected dropped events with a blocked observer and a 1-slot queue")
	}

	mu.Lock()
	defer mu.Unlock()
	last := events[len(events)-1]
	if !last.Final || last.Completed != len(paths) || last.Total != len(paths) {
		t.Errorf("last event = %+v, want final with all files completed", last)
	}
}

func TestRun_ObserverSeesStages(t *testing.T) {
	paths := makeFiles(t, "a.las", "b.las")
	d := &fakeDescriber{reports: map[string]string{"a.las": report(10, 10), "b.las": report(10, 10)}}

	est := &area.Estimator{
		Engine:   area.MonotoneChain{},
		Fraction: 1,
		Open: func(string) (area.PointSource, error) {
			return &memPoints{pts: []area.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}}, nil
		},
	}

	var mu sync.Mutex
	stages := map[string]int{}
	var final Event
	obs := ObserverFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		stages[e.Stage]++
		if e.Final {
			final = e
		}
	})

	res, err := New(Config{Workers: 2, ProgressBuffer: 64}, d, est, obs).Run(context.Background(), paths)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for _, rec := range res.Records {
		if rec.Method != survey.MethodConvexHull || rec.HullVertices != 4 {
			t.Errorf("%s: Method=%v HullVertices=%d warnings=%v", rec.Name, rec.Method, rec.HullVertices, rec.Warnings)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, s := range []string{survey.StageMetadata, survey.StagePoints, survey.StageHull} {
		if stages[s] != 2 {
			t.Errorf("stage %q seen %d times, want 2", s, stages[s])
		}
	}
	if stages[survey.StageDone] != 3 {
		t.Errorf("done events = %d, want 2 per-file + 1 final", stages[survey.StageDone])
	}
	if !final.Final || final.Completed != 2 {
		t.Errorf("final = %+v", final)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	var got []Event
	obs := ObserverFunc(func(e Event) { got = append(got, e) })

	res, err := New(Config{}, &fakeDescriber{}, nil, obs).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Records) != 0 || res.Canceled {
		t.Errorf("Records=%d Canceled=%v", len(res.Records), res.Canceled)
	}
	if len(got) != 1 || !got[0].Final || got[0].Total != 0 {
		t.Errorf("events = %+v, want one final event", got)
	}
}

func TestRun_NoDescriber(t *testing.T) {
	if _, err := New(Config{}, nil, nil, nil).Run(context.Background(), nil); !errors.Is(err, ErrNoDescriber) {
		t.Errorf("Run() error = %v, want ErrNoDescriber", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	p := New(Config{}, &fakeDescriber{}, nil, nil)
	if p.Workers() != runtime.NumCPU() {
		t.Errorf("Workers() = %d, want NumCPU %d", p.Workers(), runtime.NumCPU())
	}
	if p.cfg.MaxFileBytes != DefaultMaxFileBytes || p.cfg.ProgressBuffer != DefaultProgressBuffer {
		t.Errorf("cfg = %+v", p.cfg)
	}
	if New(Config{MaxFileBytes: -1}, nil, nil, nil).cfg.MaxFileBytes != -1 {
		t.Error("negative MaxFileBytes should disable the cap")
	}
}

func TestObserverPanicIsContained(t *testing.T) {
	paths := makeFiles(t, "a.las")
	d := &fakeDescriber{reports: map[string]string{"a.las": report(1, 1)}}
	obs := ObserverFunc(func(Event) { panic("observer bug") })

	res, err := New(Config{Workers: 1}, d, nil, obs).Run(context.Background(), paths)
	if err != nil || len(res.Records) != 1 || !res.Records[0].Succeeded() {
		t.Errorf("Run() = %+v, %v", res, err)
	}
}

type memPoints struct {
	pts []area.Point
	i   int
}

func (m *memPoints) Next() (float64, float64, error) {
	if m.i >= len(m.pts) {
		return 0, 0, io.EOF
	}
	p := m.pts[m.i]
	m.i++
	return p.X, p.Y, nil
}

func (m *memPoints) Close() error { return nil }
