package charon_test

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agilira/charon"
	"github.com/stretchr/testify/require"
)

// bufWriter is a Writer that simply accumulates everything written to it.
// It is only ever touched by a Logger's single consumer goroutine while
// the Logger is open, so no locking is needed as long as the test reads
// its contents only after Close or Flush has returned.
type bufWriter struct {
	buf bytes.Buffer
}

func (w *bufWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func lastField(line string) string {
	fields := strings.Fields(line)
	return fields[len(fields)-1]
}

func TestLoggerSingleProducerPreservesOrder(t *testing.T) {
	w := &bufWriter{}
	log, err := charon.Open(charon.Config{Writer: w})
	require.NoError(t, err)
	defer log.Close()

	p := log.NewProducer()
	const n = 5000
	for i := 0; i < n; i++ {
		require.NoError(t, log.Info(p, fmt.Sprintf("record-%d", i)))
	}
	require.NoError(t, log.Flush())

	lines := splitLines(w.buf.String())
	require.Len(t, lines, n)
	for i, line := range lines {
		require.Equal(t, fmt.Sprintf("record-%d", i), lastField(line))
	}
}

func TestLoggerMultiProducerPerProducerOrderPreserved(t *testing.T) {
	w := &bufWriter{}
	log, err := charon.Open(charon.Config{Writer: w})
	require.NoError(t, err)
	defer log.Close()

	const producers = 4
	const records = 1000

	var wg sync.WaitGroup
	for pid := 0; pid < producers; pid++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			p := log.NewProducer()
			for i := 0; i < records; i++ {
				_ = log.Info(p, fmt.Sprintf("p%d-%d", pid, i))
			}
		}(pid)
	}
	wg.Wait()
	require.NoError(t, log.Flush())

	lines := splitLines(w.buf.String())
	require.Len(t, lines, producers*records)

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for _, line := range lines {
		var pid, seq int
		_, err := fmt.Sscanf(lastField(line), "p%d-%d", &pid, &seq)
		require.NoError(t, err)
		require.Greater(t, seq, last[pid], "producer %d's records arrived out of order", pid)
		last[pid] = seq
	}
	for pid, final := range last {
		require.Equal(t, records-1, final, "producer %d did not deliver every record", pid)
	}
}

func TestLoggerFlushOrdersAfterPriorWrites(t *testing.T) {
	// A regression test for a would-be race where Flush could complete
	// before records submitted just before it were drained: Flush must
	// see everything its own caller already pushed.
	w := &bufWriter{}
	log, err := charon.Open(charon.Config{Writer: w})
	require.NoError(t, err)
	defer log.Close()

	p := log.NewProducer()
	for i := 0; i < 50; i++ {
		require.NoError(t, log.Info(p, fmt.Sprintf("before-flush-%d", i)))
		require.NoError(t, log.Flush())
		lines := splitLines(w.buf.String())
		require.Len(t, lines, i+1, "flush %d should observe exactly the records submitted so far", i)
	}
}

type tempErr struct{ msg string }

func (e tempErr) Error() string   { return e.msg }
func (e tempErr) Temporary() bool { return true }

// flakyWriter fails its first N writes with a classified temporary error,
// then behaves like a normal writer.
type flakyWriter struct {
	remaining int
	w         bufWriter
}

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.remaining > 0 {
		w.remaining--
		return 0, tempErr{msg: "sink unavailable"}
	}
	return w.w.Write(p)
}

func TestLoggerNotifyOnRecoveryReportsFirstErrorAndLostCount(t *testing.T) {
	fw := &flakyWriter{remaining: 2}

	var mu sync.Mutex
	var gotErr error
	var gotLost uint64

	log, err := charon.Open(charon.Config{
		Writer:               fw,
		TemporaryErrorPolicy: charon.PolicyNotifyOnRecovery,
		WriterErrorCallback: func(firstErr error, lostFrames uint64) {
			mu.Lock()
			gotErr, gotLost = firstErr, lostFrames
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer log.Close()

	p := log.NewProducer()
	for i := 0; i < 3; i++ {
		require.NoError(t, log.Info(p, fmt.Sprintf("line-%d", i)))
		log.Flush()
	}

	mu.Lock()
	defer mu.Unlock()
	require.Error(t, gotErr)
	require.Equal(t, uint64(2), gotLost)
	require.Len(t, splitLines(fw.w.buf.String()), 1, "the two lines whose flushes failed are discarded; only the last reaches the writer")
}

type permErr struct{ msg string }

func (e permErr) Error() string { return e.msg }

// failingWriter always fails, with an unclassified (and therefore
// permanent, per DESIGN.md) error.
type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, permErr{msg: "disk gone"} }

func TestLoggerFailImmediatelyLatchesPermanentErrorAndRejectsWrites(t *testing.T) {
	log, err := charon.Open(charon.Config{
		Writer:               failingWriter{},
		PermanentErrorPolicy: charon.PolicyFailImmediately,
	})
	require.NoError(t, err)
	defer log.Close()

	p := log.NewProducer()
	require.NoError(t, log.Info(p, "first"))
	log.Flush()

	// Give the consumer's failed flush a chance to latch the permanent
	// error before the next write observes it.
	require.Eventually(t, func() bool {
		return log.Info(p, "second") != nil
	}, time.Second, time.Millisecond, "writes should start failing once the writer fails permanently")
}

func TestLoggerCloseIsIdempotent(t *testing.T) {
	w := &bufWriter{}
	log, err := charon.Open(charon.Config{Writer: w})
	require.NoError(t, err)

	p := log.NewProducer()
	require.NoError(t, log.Info(p, "hello"))

	err1 := log.Close()
	err2 := log.Close()
	require.Equal(t, err1, err2)
}

func TestLoggerNilProducerRejected(t *testing.T) {
	w := &bufWriter{}
	log, err := charon.Open(charon.Config{Writer: w})
	require.NoError(t, err)
	defer log.Close()

	require.ErrorIs(t, log.Info(nil, "x"), charon.ErrNilProducer)
}

func TestLoggerIndentedNestsDepth(t *testing.T) {
	w := &bufWriter{}
	log, err := charon.Open(charon.Config{Writer: w})
	require.NoError(t, err)
	defer log.Close()

	p := log.NewProducer()
	view := log.WithIndent(p, 2)
	require.NoError(t, view.Log(charon.LevelInfo, 0, "outer"))
	require.NoError(t, view.Nested().Log(charon.LevelInfo, 0, "inner"))
	require.NoError(t, log.Flush())

	lines := splitLines(w.buf.String())
	require.Len(t, lines, 2)
	// "outer" is indented 2 spaces, "inner" 4: the inner line's message
	// starts further right, so it is strictly longer once trailing text
	// is equal length ("outer" vs "inner" are both 5 bytes).
	require.Greater(t, strings.Index(lines[1], "inner"), strings.Index(lines[0], "outer"))
}

func TestLoggerStartPanicFlushWritesPendingRecord(t *testing.T) {
	w := &bufWriter{}
	log, err := charon.Open(charon.Config{Writer: w})
	require.NoError(t, err)
	// Deliberately not deferring Close: once a panic flush starts, the
	// consumer goroutine parks forever by design (spec.md's panic
	// shutdown state), so there is nothing left to Close.

	p := log.NewProducer()
	require.NoError(t, log.Info(p, "before-panic"))

	log.StartPanicFlush()
	require.True(t, log.AwaitPanicFlush(2*time.Second))

	require.Contains(t, w.buf.String(), "before-panic")
}

func TestLoggerStatsReflectsSubmittedRecords(t *testing.T) {
	w := &bufWriter{}
	log, err := charon.Open(charon.Config{Writer: w})
	require.NoError(t, err)
	defer log.Close()

	p := log.NewProducer()
	for i := 0; i < 10; i++ {
		require.NoError(t, log.Info(p, "x"))
	}
	require.NoError(t, log.Flush())

	stats := log.Stats()
	require.Equal(t, uint64(10), stats.Submitted)
	require.Equal(t, uint64(0), stats.Lost)
}

func TestOpenRequiresWriter(t *testing.T) {
	_, err := charon.Open(charon.Config{})
	require.ErrorIs(t, err, charon.ErrWriterRequired)
}
