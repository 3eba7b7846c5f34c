package processor

import (
	"sync/atomic"

	"github.com/eunmann/lasacres/pkg/logging"
)

// Event is one progress notification.
type Event struct {
	Completed int
	Total     int
	// File is the base name of the file the event is about; empty on the
	// final event.
	File string
	// Stage is a sub-stage label such as survey.StageHull, or
	// survey.StageDone once a file has finished.
	Stage  string
	Failed bool
	// Final marks the last event of a run. It is never dropped.
	Final    bool
	Canceled bool
}

// Observer receives progress events on a single goroutine, in order.
type Observer interface {
	OnProgress(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnProgress implements Observer.
func (f ObserverFunc) OnProgress(e Event) { f(e) }

// notifier decouples workers from the observer through a bounded queue.
// Intermediate events are dropped when the queue is full.
type notifier struct {
	obs     Observer
	ch      chan Event
	done    chan struct{}
	dropped atomic.Int64
}

func newNotifier(obs Observer, buffer int) *notifier {
	n := &notifier{obs: obs}
	if obs == nil {
		return n
	}
	n.ch = make(chan Event, buffer)
	n.done = make(chan struct{})
	go n.loop()
	return n
}

func (n *notifier) loop() {
	defer close(n.done)
	for e := range n.ch {
		n.deliver(e)
	}
}

func (n *notifier) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.L().Error().Interface("panic", r).Msg("progress observer panicked")
		}
	}()
	n.obs.OnProgress(e)
}

// send never blocks.
func (n *notifier) send(e Event) {
	if n.ch == nil {
		return
	}
	select {
	case n.ch <- e:
	default:
		n.dropped.Add(1)
	}
}

// finish enqueues the final event, waiting for room if needed, then waits
// for the observer to drain. It must only be called after all senders stop.
func (n *notifier) finish(final Event) {
	if n.ch == nil {
		return
	}
	n.ch <- final
	close(n.ch)
	<-n.done
}
