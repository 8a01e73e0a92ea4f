// Package stage implements the single-writer output staging buffer that the
// consumer goroutine formats log frames into before flushing to a sink.
//
// A Buffer is never touched by producers; it is owned exclusively by the
// consumer loop in the root charon package. Its contract mirrors reckless's
// output_buffer: Reserve/Commit grow the pending write, FrameEnd marks the
// last byte that is safe to flush (a partially-written frame must never
// reach the sink except during a panic flush), and Flush drains committed
// bytes through the configured Writer under the active error policy.
package stage

import (
	"sync"
	"time"

	"github.com/agilira/go-errors"
)

// ErrorPolicy selects how a Buffer reacts to a Writer failure.
type ErrorPolicy int

const (
	// PolicyIgnore silently drops the failed write and keeps going.
	PolicyIgnore ErrorPolicy = iota
	// PolicyNotifyOnRecovery remembers the first error and reports it,
	// together with the number of frames lost meanwhile, once a later
	// flush succeeds.
	PolicyNotifyOnRecovery
	// PolicyBlock retries with exponential backoff until the write
	// succeeds or a panic flush aborts the wait.
	PolicyBlock
	// PolicyFailImmediately latches a permanent error flag; subsequent
	// producer writes observe it and return an error instead of queuing
	// more frames that can never be flushed.
	PolicyFailImmediately
)

// Error codes reported by this package's errors.Error values.
const (
	ErrCodeExcessiveOutput errors.ErrorCode = "STAGE_EXCESSIVE_OUTPUT"
	ErrCodeFlushIgnored    errors.ErrorCode = "STAGE_FLUSH_IGNORED"
	ErrCodeFlushDeferred   errors.ErrorCode = "STAGE_FLUSH_DEFERRED"
	ErrCodeFlushPermanent  errors.ErrorCode = "STAGE_FLUSH_PERMANENT"
	ErrCodePanicAbandon    errors.ErrorCode = "STAGE_PANIC_ABANDON"
)

// Writer is the sink a Buffer flushes committed bytes to. Implementations
// must be safe to call from the single consumer goroutine only; charon
// never calls Write concurrently.
type Writer interface {
	Write(p []byte) (n int, err error)
}

// ClassifiedError lets a Writer distinguish failures it expects to recover
// from (Temporary() == true) from ones it does not.
type ClassifiedError interface {
	error
	Temporary() bool
}

// WriterErrorCallback is invoked after a successful flush that follows one
// or more failed flushes, reporting the first error seen and how many
// frames were discarded while the sink was down.
type WriterErrorCallback func(firstErr error, lostFrames uint64)

// PanicSignal lets a Buffer abandon a blocking retry loop once a panic
// flush has started elsewhere in the process.
type PanicSignal interface {
	Signaled() bool
}

// Buffer is the staging area a consumer formats frames into. It is a plain
// struct, not safe for concurrent use — exactly one goroutine (the
// consumer) ever touches it.
type Buffer struct {
	writer Writer
	buf    []byte

	frameEnd     int // end of the last fully-formatted frame
	committedEnd int // end of bytes written so far this frame

	temporaryPolicy ErrorPolicy
	permanentPolicy ErrorPolicy

	mu            sync.Mutex
	errCallback   WriterErrorCallback
	firstErr      error
	lostFrames    uint64
	permanentErr  error // set once PolicyFailImmediately latches
	panicSignaled PanicSignal
}

// DefaultCapacity matches reckless's 64 KiB default output buffer size.
const DefaultCapacity = 64 * 1024

// New creates a staging Buffer of the given capacity writing to w. A
// capacity of 0 uses DefaultCapacity.
func New(w Writer, capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		writer:          w,
		buf:             make([]byte, 0, capacity),
		temporaryPolicy: PolicyBlock,
		permanentPolicy: PolicyFailImmediately,
	}
}

// SetPanicSignal wires the flag a blocking flush polls to abandon its retry
// loop once a panic flush begins.
func (b *Buffer) SetPanicSignal(s PanicSignal) { b.panicSignaled = s }

// SetWriterErrorCallback installs the callback invoked after recovering
// from a run of failed flushes.
func (b *Buffer) SetWriterErrorCallback(cb WriterErrorCallback) {
	b.mu.Lock()
	b.errCallback = cb
	b.mu.Unlock()
}

// TemporaryErrorPolicy returns the policy applied to errors classified as
// temporary.
func (b *Buffer) TemporaryErrorPolicy() ErrorPolicy { return b.temporaryPolicy }

// SetTemporaryErrorPolicy sets the policy applied to errors classified as
// temporary. Any of the four policies is valid here.
func (b *Buffer) SetTemporaryErrorPolicy(p ErrorPolicy) { b.temporaryPolicy = p }

// PermanentErrorPolicy returns the policy applied to errors classified as
// permanent (or unclassified).
func (b *Buffer) PermanentErrorPolicy() ErrorPolicy { return b.permanentPolicy }

// SetPermanentErrorPolicy sets the policy applied to permanent errors. A
// permanent failure can by definition never recover, so PolicyNotifyOnRecovery
// and PolicyBlock (which both assume recovery is possible) are rejected.
func (b *Buffer) SetPermanentErrorPolicy(p ErrorPolicy) {
	if p == PolicyNotifyOnRecovery || p == PolicyBlock {
		panic("stage: permanent error policy must be ignore or fail_immediately")
	}
	b.permanentPolicy = p
}

// Reserve guarantees room for at least n more bytes beyond the current
// write position and returns a slice of length n the caller may write
// into. The buffer's length is not advanced; call Commit with however many
// bytes were actually used. If n exceeds the buffer's total capacity even
// when empty, the frame can never fit and ErrCodeExcessiveOutput is
// returned.
func (b *Buffer) Reserve(n int) ([]byte, error) {
	if cap(b.buf)-len(b.buf) < n {
		if err := b.reserveSlowPath(n); err != nil {
			return nil, err
		}
	}
	end := len(b.buf)
	return b.buf[end : end+n : end+n], nil
}

func (b *Buffer) reserveSlowPath(n int) error {
	if n > cap(b.buf) {
		return errors.New(ErrCodeExcessiveOutput,
			"frame requires more space than the output buffer's total capacity")
	}
	// Flush whatever full frames we already have to make room; a single
	// frame under construction is never flushed here.
	if err := b.flushLocked(); err != nil {
		return err
	}
	return nil
}

// Commit advances the write cursor by n bytes, where n is at most the size
// previously passed to Reserve.
func (b *Buffer) Commit(n int) {
	b.buf = b.buf[:len(b.buf)+n]
}

// FrameEnd marks the current write position as the end of a complete,
// flushable frame.
func (b *Buffer) FrameEnd() {
	b.committedEnd = len(b.buf)
	b.frameEnd = b.committedEnd
}

// LostFrame discards everything written since the last FrameEnd, used when
// a frame's formatter fails partway through.
func (b *Buffer) LostFrame() {
	b.buf = b.buf[:b.frameEnd]
	b.committedEnd = b.frameEnd
	b.mu.Lock()
	b.lostFrames++
	b.mu.Unlock()
}

// HasCompleteFrame reports whether there is at least one fully committed
// frame waiting to be flushed.
func (b *Buffer) HasCompleteFrame() bool { return b.frameEnd > 0 }

// Flush writes every complete frame to the sink, honoring the active error
// policies. It never flushes bytes past the last FrameEnd.
func (b *Buffer) Flush() error {
	return b.flushLocked()
}

// PanicFlush writes everything in the buffer, including a partially
// constructed final frame, and never blocks — used once during process
// shutdown after a panic. It is best-effort: a write error is swallowed
// since there is no one left to report it to.
func (b *Buffer) PanicFlush() {
	if len(b.buf) == 0 {
		return
	}
	b.writer.Write(b.buf)
	b.buf = b.buf[:0]
	b.frameEnd = 0
	b.committedEnd = 0
}

// attemptWrite writes b.buf[:remaining] to the writer, looping through any
// partial writes, and reports how many bytes went out before either the
// whole span was written or the writer returned an error. It makes no
// policy decision of its own; callers (flushLocked's first attempt,
// blockAndRetry's retries) each decide what to do with a failure.
func (b *Buffer) attemptWrite(remaining int) (pos int, err error) {
	for pos < remaining {
		n, werr := b.writer.Write(b.buf[pos:remaining])
		if n > 0 {
			pos += n
		}
		if werr != nil {
			return pos, werr
		}
	}
	return pos, nil
}

// compactAfterFailedWrite drops the pos bytes that made it out before a
// write failure and shifts the rest to the front, so the next attempt (a
// later Flush, or blockAndRetry's next iteration) only ever resends what
// still needs sending.
func (b *Buffer) compactAfterFailedWrite(pos int) {
	rest := len(b.buf) - pos
	copy(b.buf[:rest], b.buf[pos:])
	b.buf = b.buf[:rest]
	b.frameEnd -= pos
	if b.frameEnd < 0 {
		b.frameEnd = 0
	}
}

func (b *Buffer) flushLocked() error {
	remaining := b.frameEnd
	if remaining == 0 {
		return nil
	}
	pos, err := b.attemptWrite(remaining)
	if err != nil {
		return b.handleFlushError(err, pos, remaining)
	}
	b.afterSuccessfulFlush(remaining)
	return nil
}

func (b *Buffer) afterSuccessfulFlush(remaining int) {
	rest := len(b.buf) - remaining
	copy(b.buf[:rest], b.buf[remaining:])
	b.buf = b.buf[:rest]
	b.frameEnd = 0
	b.committedEnd = rest

	b.mu.Lock()
	firstErr := b.firstErr
	lost := b.lostFrames
	b.firstErr = nil
	b.lostFrames = 0
	b.permanentErr = nil
	cb := b.errCallback
	b.mu.Unlock()

	if firstErr != nil && cb != nil {
		cb(firstErr, lost)
	}
}

func (b *Buffer) handleFlushError(err error, pos, remaining int) error {
	b.compactAfterFailedWrite(pos)

	temporary := false
	if ce, ok := err.(ClassifiedError); ok {
		temporary = ce.Temporary()
	}
	policy := b.permanentPolicy
	if temporary {
		policy = b.temporaryPolicy
	}

	if policy == PolicyIgnore || policy == PolicyNotifyOnRecovery {
		// Both policies give up on the complete frames this flush could
		// not write; only a frame still under construction is kept.
		rest := len(b.buf) - b.frameEnd
		copy(b.buf[:rest], b.buf[b.frameEnd:])
		b.buf = b.buf[:rest]
		b.frameEnd = 0
		b.committedEnd = rest
	}

	switch policy {
	case PolicyIgnore:
		return errors.Wrap(err, ErrCodeFlushIgnored, "flush failed, ignoring per policy")
	case PolicyNotifyOnRecovery:
		b.mu.Lock()
		if b.firstErr == nil {
			b.firstErr = err
		}
		b.lostFrames++
		b.mu.Unlock()
		return errors.Wrap(err, ErrCodeFlushDeferred, "flush failed, will notify on recovery")
	case PolicyBlock:
		return b.blockAndRetry(err)
	case PolicyFailImmediately:
		b.mu.Lock()
		if b.permanentErr == nil {
			b.permanentErr = err
		}
		b.mu.Unlock()
		return errors.Wrap(err, ErrCodeFlushPermanent, "flush failed permanently")
	default:
		return err
	}
}

// blockAndRetry retries the flush with exponential backoff, starting at
// 1ms and capping at 1s, matching output_buffer.cpp's block policy. It
// abandons the wait if a panic flush has started.
//
// This loops in place rather than calling flushLocked again: flushLocked's
// own failure path runs back through handleFlushError, which for
// PolicyBlock calls blockAndRetry — calling flushLocked from here would
// reenter that chain on every failed attempt, growing the call stack by one
// frame per retry with no bound under a sustained outage. Retrying by
// calling attemptWrite and compactAfterFailedWrite directly keeps the
// policy dispatch out of the loop entirely.
func (b *Buffer) blockAndRetry(firstErr error) error {
	delay := time.Millisecond
	const maxDelay = time.Second
	for {
		if b.panicSignaled != nil && b.panicSignaled.Signaled() {
			return errors.Wrap(firstErr, ErrCodePanicAbandon, "abandoning blocked flush for panic shutdown")
		}
		time.Sleep(delay)

		remaining := b.frameEnd
		if remaining == 0 {
			return nil
		}
		pos, err := b.attemptWrite(remaining)
		if err != nil {
			b.compactAfterFailedWrite(pos)
			delay += delay / 4
			if delay > maxDelay {
				delay = maxDelay
			}
			continue
		}
		b.afterSuccessfulFlush(remaining)
		return nil
	}
}

// PermanentError reports the latched error if PolicyFailImmediately has
// fired, so producers can refuse further writes per spec.
func (b *Buffer) PermanentError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.permanentErr
}
