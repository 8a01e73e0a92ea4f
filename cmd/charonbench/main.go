// Command charonbench drives the concrete scenarios spec.md §8 describes
// (N producers times M records, a configurable error policy) against a
// real charon Logger and prints Stats() at the
// end. It exists to make charon's throughput/backpressure behavior
// observable from the command line, the same role lethe's examples/ tree
// plays for rotation (see DESIGN.md's dropped-modules entry for why that
// tree itself wasn't kept).
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0
package main

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/agilira/charon"
	flashflags "github.com/agilira/flash-flags"
)

func main() {
	fs := flashflags.New("charonbench")
	producers := fs.Int("producers", 4, "number of concurrent producer goroutines")
	records := fs.Int("records", 250000, "records written per producer")
	policy := fs.String("policy", "block", "temporary error policy: ignore|notify|block|fail")
	outPath := fs.String("out", "", "output file path (empty writes to stdout)")
	quiet := fs.Bool("quiet", false, "suppress per-record text output, still formats it")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "charonbench:", err)
		os.Exit(2)
	}

	var w charon.Writer
	if *outPath == "" {
		w = charon.StdoutWriter{}
	} else {
		fw, err := charon.NewFileWriter(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "charonbench: open output:", err)
			os.Exit(1)
		}
		defer fw.Close()
		w = fw
	}
	if *quiet {
		w = discardWriter{}
	}

	temp, perm, err := parsePolicy(*policy)
	if err != nil {
		fmt.Fprintln(os.Stderr, "charonbench:", err)
		os.Exit(2)
	}

	log, err := charon.Open(charon.Config{
		Writer:               w,
		TemporaryErrorPolicy: temp,
		PermanentErrorPolicy: perm,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "charonbench: open:", err)
		os.Exit(1)
	}

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < *producers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p := log.NewProducer()
			for j := 0; j < *records; j++ {
				_ = log.Info(p, fmt.Sprintf("producer %d record %d", id, j))
			}
		}(i)
	}
	wg.Wait()

	if err := log.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, "charonbench: flush:", err)
	}
	elapsed := time.Since(start)

	if err := log.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "charonbench: close:", err)
	}

	stats := log.Stats()
	fmt.Fprintf(os.Stderr, "charonbench: %d producers x %d records in %s (%.0f records/s), submitted=%d lost=%d queueFullEvents=%d\n",
		*producers, *records, elapsed, float64(*producers**records)/elapsed.Seconds(),
		stats.Submitted, stats.Lost, stats.QueueFullEvents)
}

func parsePolicy(name string) (temporary, permanent charon.ErrorPolicy, err error) {
	switch name {
	case "ignore":
		return charon.PolicyIgnore, charon.PolicyIgnore, nil
	case "notify":
		return charon.PolicyNotifyOnRecovery, charon.PolicyFailImmediately, nil
	case "block":
		return charon.PolicyBlock, charon.PolicyFailImmediately, nil
	case "fail":
		return charon.PolicyFailImmediately, charon.PolicyFailImmediately, nil
	default:
		return 0, 0, fmt.Errorf("unknown policy %q (want ignore|notify|block|fail)", name)
	}
}

// discardWriter drops every byte written to it: -quiet trades the real
// sink's I/O cost for a pure formatting/dispatch throughput measurement.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return io.Discard.Write(p) }
