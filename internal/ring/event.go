package ring

import (
	"sync/atomic"
	"time"
)

// Event is a single-producer/single-consumer wakeup flag, the Go
// equivalent of reckless's spsc_event: Signal never blocks, Wait blocks
// until the next Signal (or returns immediately if one is already
// pending), and Signaled lets a busy poll check without blocking.
type Event struct {
	ch      chan struct{}
	pending atomic.Bool
}

// NewEvent returns a ready-to-use Event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{}, 1)}
}

// Signal wakes one pending Wait, or marks the event pending if nobody is
// currently waiting.
func (e *Event) Signal() {
	if e.pending.CompareAndSwap(false, true) {
		select {
		case e.ch <- struct{}{}:
		default:
		}
	}
}

// Wait blocks until Signal has been called at least once since the last
// Wait returned.
func (e *Event) Wait() {
	<-e.ch
	e.pending.Store(false)
}

// Signaled reports whether Signal has fired without a matching Wait yet,
// without blocking or consuming the signal.
func (e *Event) Signaled() bool {
	return e.pending.Load()
}

// WaitTimeout blocks until Signal fires or d elapses, reporting which one
// happened. Used by the consumer's idle poll to back off exponentially
// instead of waking on a fixed ticker.
func (e *Event) WaitTimeout(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-e.ch:
		e.pending.Store(false)
		return true
	case <-t.C:
		return false
	}
}
