// Copyright 2025 The hitrace-bench Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package runner drives the trial loop of one run configuration: capture,
// parse, filter, extract, accumulate.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"github.com/openharmony-rs/hitrace-bench/filters"
	"github.com/openharmony-rs/hitrace-bench/points"
	"github.com/openharmony-rs/hitrace-bench/results"
	"github.com/openharmony-rs/hitrace-bench/runconfig"
	"github.com/openharmony-rs/hitrace-bench/trace"
)

// Source produces the raw capture lines of one trial run. A capture is a
// blocking, possibly slow operation; the runner calls it once per trial.
type Source interface {
	Capture(ctx context.Context) ([]string, error)
}

// FileSource replays a local capture file for every trial.
type FileSource struct {
	Path string
}

// Capture reads the capture file line by line.
func (s FileSource) Capture(_ context.Context) ([]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("could not open trace file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read trace file: %w", err)
	}
	return lines, nil
}

// Run executes every trial of the configuration and merges the per-trial
// partial results into res. Per-line and per-spec failures stay local to
// their trial; only a capture with no trace records at all, a capture error
// or a cancellation aborts the loop. Cancellation is honored between trials
// only, no trial is interrupted halfway.
func Run(ctx context.Context, cfg *runconfig.RunConfig, src Source, res *results.RunResults) error {
	for i := 1; i <= cfg.Args.Tries; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("interrupted before trial %d: %w", i, err)
		}
		klog.V(1).Infof("running trial %d of %d", i, cfg.Args.Tries)

		lines, err := src.Capture(ctx)
		if err != nil {
			return fmt.Errorf("trial %d: %w", i, err)
		}
		partial, err := runTrial(cfg, lines)
		if err != nil {
			return fmt.Errorf("trial %d: %w", i, err)
		}
		res.Merge(partial)
	}
	return nil
}

// runTrial evaluates all filters of the configuration over one capture.
func runTrial(cfg *runconfig.RunConfig, lines []string) (*results.RunResults, error) {
	traces, errs := trace.Parse(lines)
	for _, err := range errs {
		klog.Errorf("skipping malformed trace line: %v", err)
	}
	if len(traces) == 0 {
		return nil, fmt.Errorf("capture produced no trace records (%d lines, %d malformed)", len(lines), len(errs))
	}
	if cfg.Args.AllTraces {
		klog.Infof("printing %d traces", len(traces))
		for i := range traces {
			klog.Info(traces[i].String())
		}
	}

	partial := results.New()
	for name, iv := range filters.FindIntervals(traces, cfg.Filters) {
		if iv.Err != nil {
			klog.Error(iv.Err)
			partial.AddFailure(name)
			continue
		}
		partial.AddInterval(name, iv.Duration)
	}
	for _, pf := range cfg.PointFilters {
		pts, perrs := points.Extract(traces, pf, cfg.Args.URL)
		for _, err := range perrs {
			klog.Error(err)
		}
		for _, p := range pts {
			partial.AddPoint(p)
		}
	}
	return partial, nil
}
