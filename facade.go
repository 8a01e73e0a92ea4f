// facade.go: the severity/timestamp/indent text façade over the generic
// write path, exactly the kind of thin wrapper spec.md §1 scopes out of
// the core and spec.md §6 says the façade, not the core, owns (including
// the line-ending convention).
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"time"

	"github.com/agilira/charon/internal/stage"
)

// lineArgs is the decayed argument tuple the text façade's Write1 call
// captures: a severity level, a producer-side-captured timestamp, an
// indent depth, and the message text.
type lineArgs struct {
	Level  Level
	Time   time.Time
	Indent int
	Msg    string
}

// lineFormatter renders lineArgs as "LEVEL  RFC3339Milli  <indent>msg\n".
// It is a stateless value type, as frame.Formatter implementations are
// expected to be: the frame only ever stores which Formatter to use, not
// an instance of it.
type lineFormatter struct{}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Format renders a into out. A Reserve failure (the output buffer could
// not make room even after flushing) is turned into a panic so the
// consumer's dispatchFrame recovers it the same way any other formatter
// failure is handled — discard the partial frame, count it lost, report
// it through the format-error callback.
func (lineFormatter) Format(out *stage.Buffer, a lineArgs) {
	var tsStorage [len(timestampLayout) + 4]byte
	ts := a.Time.AppendFormat(tsStorage[:0], timestampLayout)

	level := a.Level.String()
	total := len(level) + 2 + len(ts) + 2 + a.Indent + len(a.Msg) + 1
	buf, err := out.Reserve(total)
	if err != nil {
		panic(err)
	}

	pos := 0
	pos += copy(buf[pos:], level)
	buf[pos] = ' '
	pos++
	buf[pos] = ' '
	pos++
	pos += copy(buf[pos:], ts)
	buf[pos] = ' '
	pos++
	buf[pos] = ' '
	pos++
	for i := 0; i < a.Indent; i++ {
		buf[pos] = ' '
		pos++
	}
	pos += copy(buf[pos:], a.Msg)
	buf[pos] = '\n'
	pos++
	out.Commit(pos)
}

// Log submits one text line through p at the given severity and indent
// depth, capturing the current time via the Logger's cached clock (no
// syscall per record, the same rationale lethe.go's timeCache documents
// for its own mtime reads).
func (l *Logger) Log(p *Producer, level Level, indent int, msg string) error {
	if p == nil {
		return ErrNilProducer
	}
	return Write1[lineFormatter](l, p, lineFormatter{}, lineArgs{
		Level:  level,
		Time:   l.timeCache.CachedTime(),
		Indent: indent,
		Msg:    msg,
	})
}

// Debug submits msg at LevelDebug with no indent.
func (l *Logger) Debug(p *Producer, msg string) error { return l.Log(p, LevelDebug, 0, msg) }

// Info submits msg at LevelInfo with no indent.
func (l *Logger) Info(p *Producer, msg string) error { return l.Log(p, LevelInfo, 0, msg) }

// Warn submits msg at LevelWarn with no indent.
func (l *Logger) Warn(p *Producer, msg string) error { return l.Log(p, LevelWarn, 0, msg) }

// Error submits msg at LevelError with no indent.
func (l *Logger) Error(p *Producer, msg string) error { return l.Log(p, LevelError, 0, msg) }

// Fatal submits msg at LevelFatal with no indent. Unlike a typical
// "Fatal", it does not call os.Exit — terminating the process on a log
// call is a policy decision for the caller, not the library (see spec.md
// §1's crash-handler scoping: charon ships the panic-flush machinery, not
// the OS-level trigger).
func (l *Logger) Fatal(p *Producer, msg string) error { return l.Log(p, LevelFatal, 0, msg) }

// Indented returns a producer-scoped view that adds depth to every Log
// call's indent, for nested diagnostic output (request handling inside a
// middleware inside a server loop, say) without threading an indent level
// through every call site by hand.
type Indented struct {
	l     *Logger
	p     *Producer
	depth int
}

// WithIndent returns an Indented view of l/p at the given base depth.
func (l *Logger) WithIndent(p *Producer, depth int) Indented {
	return Indented{l: l, p: p, depth: depth}
}

// Log submits msg at level, indented by i's depth plus indent.
func (i Indented) Log(level Level, indent int, msg string) error {
	return i.l.Log(i.p, level, i.depth+indent, msg)
}

// Nested returns a view one level deeper than i, e.g. for a sub-operation
// of whatever i already represents.
func (i Indented) Nested() Indented {
	return Indented{l: i.l, p: i.p, depth: i.depth + 2}
}
