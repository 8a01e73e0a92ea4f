// Package charon is a low-latency structured logging core for
// multi-threaded applications. A producer goroutine's Write call
// completes in bounded, cache-local time: it never performs I/O, never
// takes a contended lock, and never formats its arguments. Formatting and
// writing are deferred to a single dedicated consumer goroutine running
// inside an open Logger.
//
// A minimal producer looks like:
//
//	log, err := charon.Open(charon.Config{Writer: w})
//	if err != nil {
//		// handle
//	}
//	defer log.Close()
//
//	p := log.NewProducer()
//	log.Info(p, "server started")
//
// Each goroutine that logs needs its own *charon.Producer handle, obtained
// once via Logger.NewProducer and kept for that goroutine's lifetime (Go
// has no thread-local storage, so charon cannot discover this on its own —
// see DESIGN.md).
//
// Charon is the ferryman who carries souls across the Styx — the name
// fits a library whose entire job is carrying log frames from many
// producer goroutines to the one consumer that writes them down.
package charon
