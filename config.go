// config.go: configuration parsing and dynamic reconfiguration
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agilira/argus"
	"github.com/agilira/charon/internal/stage"
)

// Config controls a Logger's buffer sizing, error policies and sink. Every
// field except Writer has a usable zero value; Open fills in defaults for
// anything left unset and rejects a nil Writer.
type Config struct {
	// Writer is where formatted log bytes are sent. Required.
	Writer Writer

	// InputBufferSize is the per-producer ring size, as a byte count
	// (ParseSize turns a string such as "64KB" into one).
	// Defaults to ring.DefaultCapacity.
	InputBufferSize int

	// OutputBufferSize is the consumer's staging buffer size in bytes.
	// Defaults to stage.DefaultCapacity.
	OutputBufferSize int

	// CommitQueueSize is the shared MPSC queue's capacity in entries
	// (rounded up to a power of two). Defaults to 1024.
	CommitQueueSize uint64

	// TemporaryErrorPolicy and PermanentErrorPolicy select how the
	// consumer reacts to a Writer failure classified as temporary or
	// permanent/unclassified, respectively.
	TemporaryErrorPolicy stage.ErrorPolicy
	PermanentErrorPolicy stage.ErrorPolicy

	// WriterErrorCallback, if set, is invoked after the Writer recovers
	// from a run of failures, with the first error seen and how many
	// frames were lost meanwhile.
	WriterErrorCallback func(firstErr error, lostFrames uint64)

	// FormatErrorCallback, if set, is invoked when a Formatter itself
	// fails (panics) while rendering a frame.
	FormatErrorCallback func(err error)
}

// ParseSize converts size strings like "100MB", "1GB" to bytes. Supports
// case-insensitive input and single-letter units (K, M, G, T).
func ParseSize(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	if val, err := strconv.ParseInt(s, 10, 64); err == nil {
		return val, nil
	}
	s = strings.ToUpper(s)

	var multiplier int64
	var numStr string
	switch {
	case strings.HasSuffix(s, "KB"):
		multiplier, numStr = 1024, s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier, numStr = 1024*1024, s[:len(s)-2]
	case strings.HasSuffix(s, "GB"):
		multiplier, numStr = 1024*1024*1024, s[:len(s)-2]
	case strings.HasSuffix(s, "TB"):
		multiplier, numStr = 1024*1024*1024*1024, s[:len(s)-2]
	case strings.HasSuffix(s, "K"):
		multiplier, numStr = 1024, s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		multiplier, numStr = 1024*1024, s[:len(s)-1]
	case strings.HasSuffix(s, "G"):
		multiplier, numStr = 1024*1024*1024, s[:len(s)-1]
	case strings.HasSuffix(s, "T"):
		multiplier, numStr = 1024*1024*1024*1024, s[:len(s)-1]
	default:
		return 0, fmt.Errorf("unknown size suffix in %q (supported: KB/K, MB/M, GB/G, TB/T)", s)
	}

	val, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size number in %q: %v", s, err)
	}
	result := val * multiplier
	if result < 0 {
		return 0, fmt.Errorf("size %q too large", s)
	}
	return result, nil
}

// ParseDuration converts duration strings like "7d", "24h" to
// time.Duration, extending time.ParseDuration with day/week/year suffixes.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	s = strings.ToLower(s)

	var multiplier time.Duration
	var numStr string
	switch {
	case strings.HasSuffix(s, "d"):
		multiplier, numStr = 24*time.Hour, s[:len(s)-1]
	case strings.HasSuffix(s, "w"):
		multiplier, numStr = 7*24*time.Hour, s[:len(s)-1]
	case strings.HasSuffix(s, "y"):
		multiplier, numStr = 365*24*time.Hour, s[:len(s)-1]
	default:
		return 0, fmt.Errorf("unknown duration suffix in %q", s)
	}
	val, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration number in %q: %v", s, err)
	}
	return time.Duration(val) * multiplier, nil
}

// RetryFileOperation executes operation up to retryCount times with
// retryDelay between attempts, for sinks (like FileWriter) built on
// filesystems prone to transient failures (antivirus locks, network
// shares, overlay filesystem hiccups under container load).
func RetryFileOperation(operation func() error, retryCount int, retryDelay time.Duration) error {
	if retryCount <= 0 {
		retryCount = 3
	}
	if retryDelay <= 0 {
		retryDelay = 10 * time.Millisecond
	}
	var lastErr error
	for i := 0; i < retryCount; i++ {
		if err := operation(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if i < retryCount-1 {
			time.Sleep(retryDelay)
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", retryCount, lastErr)
}

// ReconfigureFunc applies a change detected in a watched configuration
// file to a running Logger: the new temporary/permanent error policy.
type ReconfigureFunc func(l *Logger, temporary, permanent stage.ErrorPolicy)

// WatchConfig hot-reloads a Logger's error policies from a config file
// using argus's file watcher, so an operator can flip how charon reacts to
// a struggling sink without restarting the process. The file is expected
// to contain two lines, "temporary=<policy>" and "permanent=<policy>",
// with policy names "ignore", "notify", "block", or "fail".
//
// This is charon's home for the argus dependency the teacher repo lists
// but never imports (see SPEC_FULL.md's DOMAIN STACK).
func WatchConfig(l *Logger, path string) (stop func() error, err error) {
	watcher, err := argus.UniversalConfigWatcher(path, func(event argus.ChangeEvent) {
		temp, perm, parseErr := parsePolicyFile(event.Path)
		if parseErr != nil {
			if l.formatErrorCallback != nil {
				l.formatErrorCallback(parseErr)
			}
			return
		}
		l.SetTemporaryErrorPolicy(temp)
		l.SetPermanentErrorPolicy(perm)
	})
	if err != nil {
		return nil, err
	}
	return watcher.Stop, nil
}

func parsePolicyFile(path string) (temporary, permanent stage.ErrorPolicy, err error) {
	temporary, permanent = stage.PolicyBlock, stage.PolicyFailImmediately
	lines, err := argus.ReadLines(path)
	if err != nil {
		return temporary, permanent, err
	}
	for _, line := range lines {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "temporary":
			temporary, err = parsePolicyName(strings.TrimSpace(v))
		case "permanent":
			permanent, err = parsePolicyName(strings.TrimSpace(v))
		}
		if err != nil {
			return temporary, permanent, err
		}
	}
	return temporary, permanent, nil
}

func parsePolicyName(s string) (stage.ErrorPolicy, error) {
	switch s {
	case "ignore":
		return stage.PolicyIgnore, nil
	case "notify":
		return stage.PolicyNotifyOnRecovery, nil
	case "block":
		return stage.PolicyBlock, nil
	case "fail":
		return stage.PolicyFailImmediately, nil
	default:
		return 0, fmt.Errorf("unknown error policy %q", s)
	}
}
