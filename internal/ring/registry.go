package ring

import "sync"

// Registry hands out and tracks one InputBuffer per producer. Go has no
// thread-local storage, so unlike reckless (which resolves a
// thread_input_buffer via a thread_local singleton), charon has the
// caller hold onto a *Producer handle — typically stored in a
// goroutine-scoped variable or threaded through a context.Context — and
// pass it to Write. See DESIGN.md, Open Question 4.
type Registry struct {
	capacity int

	mu        sync.Mutex
	producers []*Producer
}

// Producer is a producer's handle to its own InputBuffer. It records
// nothing else; the consumer learns which rings to read from the commit
// extents producers push, not from the registry.
type Producer struct {
	Buffer *InputBuffer
}

// NewRegistry creates a registry whose producers get input buffers of the
// given capacity.
func NewRegistry(capacity int) *Registry {
	return &Registry{capacity: capacity}
}

// NewProducer enrolls a new producer and returns its handle. Call once per
// logical producer (goroutine, worker, request handler) that will write
// through this registry, and keep the handle for the producer's lifetime.
func (r *Registry) NewProducer() *Producer {
	p := &Producer{Buffer: NewInputBuffer(r.capacity)}
	r.mu.Lock()
	r.producers = append(r.producers, p)
	r.mu.Unlock()
	return p
}

// Snapshot returns a copy of the currently enrolled producers; producers
// enrolled after the call are not in the returned slice. The consumer's
// drain loop does not call it.
func (r *Registry) Snapshot() []*Producer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Producer, len(r.producers))
	copy(out, r.producers)
	return out
}
