package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/eunmann/lasacres/pkg/processor"
)

// isTerminal is replaced in tests.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// barObserver renders processor events as a terminal progress bar. The
// processor calls it from one goroutine, so it needs no locking.
type barObserver struct {
	bar *progressbar.ProgressBar
}

// barThrottle limits terminal redraws.
const barThrottle = 100 * time.Millisecond

func newBarObserver(w io.Writer, total int, opts ...progressbar.Option) *barObserver {
	base := []progressbar.Option{
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("scanning"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	}
	bar := progressbar.NewOptions(total, append(base, opts...)...)
	return &barObserver{bar: bar}
}

// OnProgress implements processor.Observer.
func (o *barObserver) OnProgress(e processor.Event) {
	if e.File != "" {
		o.bar.Describe(fmt.Sprintf("%-24s %s", e.File, e.Stage))
	}
	_ = o.bar.Set(e.Completed)
	if e.Final {
		_ = o.bar.Finish()
	}
}

// progressObserver returns a bar observer when stderr is a terminal and
// progress is enabled, else nil.
func progressObserver(s Settings, stderr io.Writer, total int) processor.Observer {
	if s.NoProgress || total == 0 || !isTerminal(stderr) {
		return nil
	}
	return newBarObserver(stderr, total, progressbar.OptionThrottle(barThrottle))
}
