package ring

import (
	"math/bits"
	"runtime"
	"sync/atomic"
)

// CommitExtent names a span of committed frames in one producer's input
// buffer, from that buffer's current start cursor up to End. A nil Buffer
// is the shutdown sentinel the consumer uses to end its loop.
type CommitExtent struct {
	Buffer *InputBuffer
	End    int
}

// Shutdown reports whether this extent is the ordinary shutdown marker.
func (e CommitExtent) Shutdown() bool { return e.Buffer == nil }

// CommitQueue is the bounded lock-free MPSC queue of CommitExtent values
// shared by every producer and the single consumer. It is the generalized,
// typed descendant of lethe/buffer.go's byte-slice ringBuffer: the
// reserve-then-store CAS pattern that avoids producers racing on the same
// slot is unchanged, only the payload type differs.
type CommitQueue struct {
	slots []atomic.Pointer[CommitExtent]
	mask  uint64
	head  atomic.Uint64
	tail  atomic.Uint64

	full     *Event // signaled by a producer that found the queue full
	consumed *Event // signaled by the consumer after popping an extent
}

func nextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	return 1 << (64 - bits.LeadingZeros64(x-1))
}

// NewCommitQueue creates a queue with room for at least size extents
// (rounded up to a power of two).
func NewCommitQueue(size uint64) *CommitQueue {
	if size < 64 {
		size = 64
	}
	size = nextPow2(size)
	return &CommitQueue{
		slots:    make([]atomic.Pointer[CommitExtent], size),
		mask:     size - 1,
		full:     NewEvent(),
		consumed: NewEvent(),
	}
}

// Full returns the event a blocked producer waits on when the queue has no
// free slots.
func (q *CommitQueue) Full() *Event { return q.full }

// Consumed returns the event signaled each time the consumer pops an
// extent, waking any producer blocked on Full.
func (q *CommitQueue) Consumed() *Event { return q.consumed }

// TryPush attempts to enqueue extent, returning false if the queue is
// currently full. Safe for any number of concurrent producers.
func (q *CommitQueue) TryPush(extent CommitExtent) bool {
	size := uint64(len(q.slots))
	for {
		tail := q.tail.Load()
		head := q.head.Load()
		if tail-head >= size {
			return false
		}
		if q.tail.CompareAndSwap(tail, tail+1) {
			e := extent
			q.slots[tail&q.mask].Store(&e)
			return true
		}
	}
}

// Push enqueues extent, blocking with the queue-full/queue-consumed event
// pair (exactly reckless's queue_commit_extent retry loop) until there is
// room.
func (q *CommitQueue) Push(extent CommitExtent) {
	for !q.TryPush(extent) {
		q.full.Signal()
		q.consumed.Wait()
	}
}

// Pop removes and returns the oldest extent, or ok=false if the queue is
// currently empty. Must only be called by the single consumer goroutine.
func (q *CommitQueue) Pop() (extent CommitExtent, ok bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		if head >= tail {
			return CommitExtent{}, false
		}
		if q.head.CompareAndSwap(head, head+1) {
			// The slot is reserved for us, but the producer that advanced
			// tail past it may not have finished its Store yet (tail is
			// bumped by CAS before the payload is published). Advancing
			// head past an unpublished slot here would abandon it for
			// good, losing the extent outright, so spin until it
			// publishes instead of retrying the outer loop.
			idx := head & q.mask
			var p *CommitExtent
			for {
				p = q.slots[idx].Load()
				if p != nil {
					break
				}
				runtime.Gosched()
			}
			q.slots[idx].Store(nil)
			q.consumed.Signal()
			return *p, true
		}
	}
}
