// Package ring implements the per-producer input buffer and the shared
// MPSC commit-extent queue that together form the lock-free hot path
// between log producers and the single consumer goroutine.
package ring

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/agilira/go-errors"
)

// ErrCodeFrameTooLarge is returned by AllocateFrame when a single frame can
// never fit, even in an empty buffer.
const ErrCodeFrameTooLarge errors.ErrorCode = "RING_FRAME_TOO_LARGE"

// FrameAlignment is the alignment every frame is padded to. It matches the
// size of the dispatch-id slot (and of the WRAPAROUND_MARKER sentinel)
// written at a frame's first word, a fixed 8 bytes regardless of pointer
// width so the wire layout doesn't vary across 32/64-bit builds.
const FrameAlignment = int(unsafe.Sizeof(uint64(0)))

// DefaultCapacity is the per-goroutine input buffer size reckless uses by
// default (see asynclog's thread_input_buffer default of a few pages).
const DefaultCapacity = 64 * 1024

// InputBuffer is a single-producer/single-consumer circular byte buffer.
// AllocateFrame is called only by the owning producer goroutine;
// DiscardFrame and Wraparound are called only by the consumer goroutine.
// It implements exactly the six-case algorithm of reckless's
// allocate_input_frame: an empty ring resets both cursors to the origin, a
// contiguous tail is used directly, a frame that doesn't fit the tail but
// fits at the head writes a wraparound marker and restarts at the origin,
// and a frame that fits nowhere waits for the consumer to free space.
type InputBuffer struct {
	buf  []byte
	mask int

	start atomic.Uintptr // offset into buf; consumer-owned, producer reads it
	end   int            // offset into buf; producer-owned

	consumed *Event // signaled by the consumer after draining frames

	// pinned keeps alive, for as long as a frame sits in the ring, any
	// argument value the byte ring itself can't keep the GC honest about:
	// buf is a []byte, so a string header or *time.Location copied into it
	// via unsafe.Pointer is invisible to the garbage collector's pointer
	// scan. Pin stores the original value (boxed, so the GC sees its
	// pointers again) keyed by the frame's origin offset; Unpin releases it
	// once the consumer has read the frame.
	pinned sync.Map // offset (int) -> any
}

// NewInputBuffer allocates an InputBuffer of the given capacity (rounded
// up to a multiple of FrameAlignment). A capacity of 0 uses
// DefaultCapacity.
func NewInputBuffer(capacity int) *InputBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	mask := FrameAlignment - 1
	capacity = (capacity + mask) &^ mask
	return &InputBuffer{
		buf:      make([]byte, capacity),
		mask:     mask,
		consumed: NewEvent(),
	}
}

// Consumed returns the event the consumer signals after draining frames
// from this buffer, used to wake a producer blocked in AllocateFrame.
func (b *InputBuffer) Consumed() *Event { return b.consumed }

func (b *InputBuffer) align(size int) int {
	return (size + b.mask) &^ b.mask
}

// advance moves p forward by distance, wrapping to 0 exactly at the end of
// the buffer, mirroring advance_frame_pointer's invariant that a cursor
// never sits at the buffer's end.
func (b *InputBuffer) advance(p, distance int) int {
	p += distance
	if len(b.buf)-p == 0 {
		return 0
	}
	return p
}

// AllocateFrame reserves size bytes for a new frame and returns the
// backing slice plus its origin offset (needed by the caller to store the
// frame's allocation marker for RevertAllocation). It blocks until enough
// contiguous space is available.
func (b *InputBuffer) AllocateFrame(size int) (frame []byte, origin int, err error) {
	size = b.align(size)
	if size >= len(b.buf) {
		return nil, 0, errors.New(ErrCodeFrameTooLarge,
			"log entry does not fit in the input buffer; enlarge the buffer or shrink the entry")
	}

	for {
		end := b.end
		start := int(b.start.Load())

		if start == end && end != 0 {
			// The ring is empty: every produced frame has been consumed,
			// so no extent of this ring is left for the consumer to read.
			// Reset both cursors to the origin so the next frame starts
			// contiguous from 0 instead of creeping toward the tail and
			// wrapping sooner than necessary. A wraparound marker is also
			// left at the old position, so a reader still positioned
			// there is sent to the origin instead of misreading whatever
			// the next frame writes at offset 0.
			writeWraparoundMarker(b.buf, end)
			b.start.Store(0)
			start = 0
			end = 0
			b.end = 0
		}
		free := start - end

		if free > 0 {
			// Free space is contiguous between end and start.
			if size < free {
				b.end = b.advance(end, size)
				return b.buf[end : end+size], end, nil
			}
			b.consumed.Wait()
			continue
		}

		free1 := len(b.buf) - end
		if size < free1 {
			b.end = b.advance(end, size)
			return b.buf[end : end+size], end, nil
		}
		free2 := start
		if size < free2 {
			writeWraparoundMarker(b.buf, end)
			b.end = b.advance(0, size)
			return b.buf[0:size], 0, nil
		}
		b.consumed.Wait()
	}
}

// Pin keeps v reachable from the GC's perspective for as long as the frame
// at origin remains in the ring, for argument types whose copy into buf
// (via unsafe.Pointer in the frame package) would otherwise leave their
// referents — a string's backing array, a *time.Location — unreachable
// except through bytes the collector doesn't scan as pointers.
func (b *InputBuffer) Pin(origin int, v any) { b.pinned.Store(origin, v) }

// Unpin releases the value Pin stored for the frame at origin. Safe to call
// even if nothing was pinned there (pointer-free argument types never call
// Pin in the first place).
func (b *InputBuffer) Unpin(origin int) { b.pinned.Delete(origin) }

// RevertAllocation rolls back an allocation that failed after AllocateFrame
// returned (e.g. the formatter's argument tuple panicked mid-construction),
// putting the end cursor back at origin.
func (b *InputBuffer) RevertAllocation(origin int) {
	b.end = origin
}

// DiscardFrame retires a consumed frame of size bytes starting at the
// current start cursor and returns the new start offset. Called only by
// the consumer.
func (b *InputBuffer) DiscardFrame(size int) int {
	size = b.align(size)
	start := int(b.start.Load())
	next := b.advance(start, size)
	b.start.Store(uintptr(next))
	return next
}

// Wraparound moves the start cursor back to the origin after the consumer
// encounters a wraparound marker.
func (b *InputBuffer) Wraparound() int {
	b.start.Store(0)
	return 0
}

// Start returns the consumer's current read cursor.
func (b *InputBuffer) Start() int { return int(b.start.Load()) }

// End returns the producer's current write cursor. Only meaningful for the
// consumer to read once it has observed the corresponding commit extent.
func (b *InputBuffer) End() int { return b.end }

// Bytes exposes the underlying storage so the consumer can read frame
// contents between two offsets (handling wraparound is the caller's job;
// frames never straddle the buffer end by construction).
func (b *InputBuffer) Bytes() []byte { return b.buf }

// FrameOrigin returns the starting byte slice of a frame at the given
// offset so the consumer's dispatch call can reinterpret it.
func (b *InputBuffer) FrameOrigin(offset int) unsafe.Pointer {
	return unsafe.Pointer(&b.buf[offset])
}
