// charon.go: the Logger facade and the single background consumer worker
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/charon/internal/frame"
	"github.com/agilira/charon/internal/ring"
	"github.com/agilira/charon/internal/stage"
	"github.com/agilira/go-errors"
	timecache "github.com/agilira/go-timecache"
)

// Writer is the sink a Logger flushes formatted bytes to. See
// internal/stage.Writer for the full contract (partial writes are legal;
// the consumer loops).
type Writer = stage.Writer

// ClassifiedError lets a Writer distinguish a failure it expects the
// caller to recover from (Temporary() == true) from one it does not.
type ClassifiedError = stage.ClassifiedError

// ErrorPolicy selects how the consumer reacts to a Writer failure.
type ErrorPolicy = stage.ErrorPolicy

// The four error policies spec.md §4.2 describes.
const (
	PolicyIgnore           = stage.PolicyIgnore
	PolicyNotifyOnRecovery = stage.PolicyNotifyOnRecovery
	PolicyBlock            = stage.PolicyBlock
	PolicyFailImmediately  = stage.PolicyFailImmediately
)

// Producer is a producer goroutine's handle to its own ring.InputBuffer.
// Go has no thread-local storage, so the caller obtains one handle per
// logical producer via Logger.NewProducer and keeps it for that
// producer's lifetime (see DESIGN.md, Open Question 4).
type Producer = ring.Producer

// panicExtentBuffer is a dedicated, never-dereferenced sentinel value
// used to recognize the panic-shutdown commit extent by pointer identity,
// distinct from the nil Buffer that marks an ordinary shutdown.
var panicExtentBuffer = &ring.InputBuffer{}

// flushExtentBuffer is the dedicated event frame spec.md §5 describes:
// Flush injects a marker carrying this identity into the very same
// ring.CommitQueue every producer writes through, so by the time the
// consumer dequeues it every extent submitted before the call — by any
// producer — has already been drained. A side channel checked outside the
// queue could not make that promise.
var flushExtentBuffer = &ring.InputBuffer{}

// Stats reports counters a caller can use for its own monitoring, the Go
// analogue of lethe.Stats() (grounded on lethe.go's atomic-counter
// telemetry pattern, generalized to charon's submit/lose/backpressure
// domain).
type Stats struct {
	Submitted       uint64
	Lost            uint64
	QueueFullEvents uint64
}

// Logger is charon's public entry point: one background consumer
// goroutine draining any number of producers' ring.InputBuffers through a
// shared ring.CommitQueue into an internal/stage.Buffer.
type Logger struct {
	registry *ring.Registry
	queue    *ring.CommitQueue
	out      *stage.Buffer

	flushMu        sync.Mutex
	pendingFlushes []chan error

	cbMu                sync.Mutex
	formatErrorCallback func(err error)
	writerErrorCallback func(firstErr error, lostFrames uint64)

	panicEvent   *ring.Event
	panicked     atomic.Bool
	panicFlushed chan struct{}

	closeOnce sync.Once
	doneCh    chan struct{}
	wg        sync.WaitGroup

	submitted       atomic.Uint64
	lost            atomic.Uint64
	queueFullEvents atomic.Uint64

	timeCache *timecache.TimeCache
}

// Open starts a Logger's consumer goroutine per cfg. The returned Logger
// must eventually be Closed to release its consumer goroutine and
// cached-clock ticker.
func Open(cfg Config) (*Logger, error) {
	if cfg.Writer == nil {
		return nil, ErrWriterRequired
	}

	queueSize := cfg.CommitQueueSize
	if queueSize == 0 {
		queueSize = 1024
	}

	l := &Logger{
		registry:     ring.NewRegistry(cfg.InputBufferSize),
		queue:        ring.NewCommitQueue(queueSize),
		out:          stage.New(cfg.Writer, cfg.OutputBufferSize),
		panicEvent:   ring.NewEvent(),
		panicFlushed: make(chan struct{}),
		doneCh:       make(chan struct{}),
		timeCache:    timecache.NewWithResolution(time.Millisecond),
	}

	l.out.SetPanicSignal(l.panicEvent)
	l.out.SetTemporaryErrorPolicy(cfg.TemporaryErrorPolicy)
	l.out.SetPermanentErrorPolicy(cfg.PermanentErrorPolicy)
	l.formatErrorCallback = cfg.FormatErrorCallback
	l.writerErrorCallback = cfg.WriterErrorCallback
	l.out.SetWriterErrorCallback(func(firstErr error, lost uint64) {
		l.cbMu.Lock()
		cb := l.writerErrorCallback
		l.cbMu.Unlock()
		if cb != nil {
			cb(firstErr, lost)
		}
	})

	l.wg.Add(1)
	go l.outputWorker()
	return l, nil
}

// NewProducer enrolls a new producer and returns its handle. Call once per
// goroutine that will submit records through l, and keep the handle for
// that goroutine's lifetime.
func (l *Logger) NewProducer() *Producer {
	return l.registry.NewProducer()
}

// SetTemporaryErrorPolicy sets the policy applied to Writer failures
// classified as temporary.
func (l *Logger) SetTemporaryErrorPolicy(p ErrorPolicy) { l.out.SetTemporaryErrorPolicy(p) }

// SetPermanentErrorPolicy sets the policy applied to Writer failures
// classified as permanent, or unclassified. PolicyNotifyOnRecovery and
// PolicyBlock are rejected since a permanent failure cannot, by
// definition, recover.
func (l *Logger) SetPermanentErrorPolicy(p ErrorPolicy) { l.out.SetPermanentErrorPolicy(p) }

// SetFormatErrorCallback installs the callback invoked on the consumer
// goroutine whenever a Formatter panics while rendering a frame.
func (l *Logger) SetFormatErrorCallback(cb func(err error)) {
	l.cbMu.Lock()
	l.formatErrorCallback = cb
	l.cbMu.Unlock()
}

// SetWriterErrorCallback installs the callback invoked once a flush
// succeeds after one or more prior flushes failed under
// PolicyNotifyOnRecovery, reporting the first error seen and how many
// frames were lost meanwhile.
func (l *Logger) SetWriterErrorCallback(cb func(firstErr error, lostFrames uint64)) {
	l.cbMu.Lock()
	l.writerErrorCallback = cb
	l.cbMu.Unlock()
}

// Stats returns a snapshot of this Logger's counters.
func (l *Logger) Stats() Stats {
	return Stats{
		Submitted:       l.submitted.Load(),
		Lost:            l.lost.Load(),
		QueueFullEvents: l.queueFullEvents.Load(),
	}
}

// push enqueues extent, retrying with the queue-full/queue-consumed event
// pair like ring.CommitQueue.Push, but also counts how often the queue was
// found full for Stats().
func (l *Logger) push(extent ring.CommitExtent) {
	for !l.queue.TryPush(extent) {
		l.queueFullEvents.Add(1)
		l.queue.Full().Signal()
		l.queue.Consumed().Wait()
	}
}

// write is the shared hot path behind Write1..Write4: it reserves a frame
// sized for F/T in p's ring, copies args into it, and enqueues a commit
// extent for the consumer.
func write[F frame.Formatter[T], T any](l *Logger, p *Producer, formatter F, args T) error {
	select {
	case <-l.doneCh:
		return ErrClosed
	default:
	}
	if permErr := l.out.PermanentError(); permErr != nil {
		return errors.Wrap(permErr, ErrCodePermanentWrite, "writer has failed permanently")
	}
	ib := p.Buffer
	if err := frame.Write[F, T](ib, formatter, args); err != nil {
		return err
	}
	l.push(ring.CommitExtent{Buffer: ib, End: ib.End()})
	l.submitted.Add(1)
	return nil
}

// Write1 submits one record with a single argument, formatted by F.
func Write1[F frame.Formatter[frame.Args1[A]], A any](l *Logger, p *Producer, formatter F, a0 A) error {
	return write[F](l, p, formatter, frame.Args1[A]{A0: a0})
}

// Write2 submits one record with two arguments, formatted by F.
func Write2[F frame.Formatter[frame.Args2[A, B]], A, B any](l *Logger, p *Producer, formatter F, a0 A, a1 B) error {
	return write[F](l, p, formatter, frame.Args2[A, B]{A0: a0, A1: a1})
}

// Write3 submits one record with three arguments, formatted by F.
func Write3[F frame.Formatter[frame.Args3[A, B, C]], A, B, C any](l *Logger, p *Producer, formatter F, a0 A, a1 B, a2 C) error {
	return write[F](l, p, formatter, frame.Args3[A, B, C]{A0: a0, A1: a1, A2: a2})
}

// Write4 submits one record with four arguments, formatted by F.
func Write4[F frame.Formatter[frame.Args4[A, B, C, D]], A, B, C, D any](l *Logger, p *Producer, formatter F, a0 A, a1 B, a2 C, a3 D) error {
	return write[F](l, p, formatter, frame.Args4[A, B, C, D]{A0: a0, A1: a1, A2: a2, A3: a3})
}

// Flush blocks until every record submitted before this call returns has
// been formatted and handed to the Writer (subject to the active error
// policy), mirroring spec.md §5's "dedicated event frame" synchronous
// checkpoint: it enqueues a marker extent behind every record already
// pushed to the shared commit queue, rather than signaling out of band,
// so it can't race ahead of writes still sitting in that queue.
func (l *Logger) Flush() error {
	select {
	case <-l.doneCh:
		return ErrClosed
	default:
	}

	reply := make(chan error, 1)
	l.flushMu.Lock()
	l.pendingFlushes = append(l.pendingFlushes, reply)
	l.push(ring.CommitExtent{Buffer: flushExtentBuffer})
	l.flushMu.Unlock()

	select {
	case err := <-reply:
		return err
	case <-l.doneCh:
		return ErrClosed
	}
}

// Close flushes and stops the consumer goroutine, then returns the last
// permanent Writer error observed, if any. Close is idempotent; subsequent
// calls return the same result without blocking again.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() {
		l.push(ring.CommitExtent{})
		<-l.doneCh
		l.wg.Wait()
		l.timeCache.Stop()
	})
	return l.out.PermanentError()
}

// StartPanicFlush signals the Logger's panic event and asks the consumer to
// perform one final best-effort flush, including any partially formatted
// frame. The panic event only aborts a PolicyBlock retry loop in the
// staging buffer: producers are not frozen and their ring.InputBuffers are
// not told about the panic, so writes made after this call are still
// accepted while their ring and the commit queue have room, but the
// consumer never formats them. It is one-shot: later calls are no-ops.
// Intended to be called from a recover() in a deferred function or a
// signal handler.
func (l *Logger) StartPanicFlush() {
	if l.panicked.CompareAndSwap(false, true) {
		l.panicEvent.Signal()
		l.push(ring.CommitExtent{Buffer: panicExtentBuffer})
	}
}

// AwaitPanicFlush blocks until the consumer reports the panic flush is
// done, or timeout elapses (timeout <= 0 waits forever). It reports
// whether the flush completed within the deadline.
func (l *Logger) AwaitPanicFlush(timeout time.Duration) bool {
	if timeout <= 0 {
		<-l.panicFlushed
		return true
	}
	select {
	case <-l.panicFlushed:
		return true
	case <-time.After(timeout):
		return false
	}
}

// outputWorker is the single consumer goroutine: spec.md §4.6's
// Idle/Draining/Flushing/Shutdown/Panic-shutdown state machine.
func (l *Logger) outputWorker() {
	defer l.wg.Done()
	backoff := time.Millisecond
	const maxBackoff = time.Second

	for {
		extent, ok := l.queue.Pop()
		if !ok {
			if l.out.HasCompleteFrame() {
				l.out.Flush()
			}
			if l.queue.Full().WaitTimeout(backoff) {
				backoff = time.Millisecond
			} else {
				backoff += backoff / 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}
		backoff = time.Millisecond

		switch {
		case extent.Shutdown():
			l.out.Flush()
			close(l.doneCh)
			return
		case extent.Buffer == panicExtentBuffer:
			l.out.PanicFlush()
			close(l.panicFlushed)
			select {} // frozen until the process exits via the crash path
		case extent.Buffer == flushExtentBuffer:
			l.flushMu.Lock()
			reply := l.pendingFlushes[0]
			l.pendingFlushes = l.pendingFlushes[1:]
			l.flushMu.Unlock()
			reply <- l.out.Flush()
		default:
			l.drain(extent)
		}
	}
}

// drain walks extent's buffer from its current start cursor to extent.End,
// dispatching every frame in between, then signals the buffer's
// input-consumed event once — eliminating the source's touched-set
// entirely (see DESIGN.md, Open Question 2) rather than deferring the
// signal to the next idle boundary.
func (l *Logger) drain(extent ring.CommitExtent) {
	ib := extent.Buffer
	pos := ib.Start()
	for pos != extent.End {
		if ring.IsWraparoundMarker(ib.Bytes(), pos) {
			pos = ib.Wraparound()
			continue
		}
		size := l.dispatchFrame(ib, pos)
		pos = ib.DiscardFrame(size)
	}
	ib.Consumed().Signal()
}

// dispatchFrame formats the frame at pos in ib's backing storage. A panic
// from the Formatter (spec.md §7's "formatter exception on the consumer
// side") is caught: the partial output is discarded, a lost frame is
// counted, and the format-error callback is invoked with the frame's
// argument type. The frame's size — fixed per (Formatter, Args) pair,
// independent of the panic — is always returned so the caller can advance
// past it regardless of outcome. ib.Unpin releases any GC-pinned argument
// value (see internal/frame.Write) once the frame is done with, whether
// dispatch succeeded or panicked.
func (l *Logger) dispatchFrame(ib *ring.InputBuffer, pos int) (size int) {
	raw := ib.Bytes()[pos:]
	defer ib.Unpin(pos)
	defer func() {
		if r := recover(); r != nil {
			l.out.LostFrame()
			l.lost.Add(1)
			size = frame.Size(raw)
			l.cbMu.Lock()
			cb := l.formatErrorCallback
			l.cbMu.Unlock()
			if cb != nil {
				cb(fmt.Errorf("charon: formatter for %s panicked: %v", frame.TypeOf(raw), r))
			}
		}
	}()
	size = frame.Dispatch(l.out, raw)
	l.out.FrameEnd()
	return size
}
