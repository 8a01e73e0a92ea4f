// crash.go: the process-wide crash-handler registry
//
// spec.md §9 describes this as "a process-wide registry for the crash
// handler (a small list of currently-open logs plus previously installed
// handlers) with init/teardown on install_crash_handler/
// uninstall_crash_handler", to be represented as "a small, lock-guarded
// singleton accessed only from the crash path and from setup/teardown".
// charon ships exactly that, minus the OS signal/unhandled-exception hook
// itself (spec.md §1 scopes the OS integration out of the core; wiring an
// os/signal.Notify or a recover() in main to call FlushAllOnCrash is left
// to the caller).
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"sync"
	"time"
)

var crashRegistry struct {
	mu   sync.Mutex
	logs []*Logger
}

// InstallCrashHandler enrolls l so a later FlushAllOnCrash call also
// drains it. Typically called once, right after Open.
func InstallCrashHandler(l *Logger) {
	crashRegistry.mu.Lock()
	crashRegistry.logs = append(crashRegistry.logs, l)
	crashRegistry.mu.Unlock()
}

// UninstallCrashHandler removes l from the registry, typically paired
// with Close.
func UninstallCrashHandler(l *Logger) {
	crashRegistry.mu.Lock()
	defer crashRegistry.mu.Unlock()
	for i, r := range crashRegistry.logs {
		if r == l {
			crashRegistry.logs = append(crashRegistry.logs[:i], crashRegistry.logs[i+1:]...)
			return
		}
	}
}

// FlushAllOnCrash starts a panic flush on every currently-installed
// Logger and waits up to timeout for each to finish, in installation
// order. Intended to be called from a recover() in a deferred function,
// or from an os/signal handler set up by the caller — not by charon
// itself, per spec.md §1's crash-handler scoping.
func FlushAllOnCrash(timeout time.Duration) {
	crashRegistry.mu.Lock()
	logs := append([]*Logger(nil), crashRegistry.logs...)
	crashRegistry.mu.Unlock()

	for _, l := range logs {
		l.StartPanicFlush()
	}
	for _, l := range logs {
		l.AwaitPanicFlush(timeout)
	}
}
