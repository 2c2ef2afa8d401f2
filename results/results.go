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

// Package results holds the accumulated measurements of one run
// configuration across all of its trial runs.
package results

import (
	"time"

	"k8s.io/klog/v2"

	"github.com/openharmony-rs/hitrace-bench/points"
)

// PointValues is the accumulated value list for one derived point name.
type PointValues struct {
	// NoUnitConversion must be consistent across all contributing runs;
	// the first writer wins.
	NoUnitConversion bool
	Values           []uint64
}

// RunResults accumulates monotonically across all trial runs of one
// configuration and is read once by the summary step at the end. It has
// exactly one logical owner; per-trial partials are merged sequentially.
type RunResults struct {
	// Intervals maps an interval filter name to the durations observed. Lists
	// may be shorter than the trial count because not every filter succeeds
	// every run.
	Intervals map[string][]time.Duration
	// Failures counts the failed trials per interval filter name.
	Failures map[string]int
	// Points maps a derived point name to its accumulated values.
	Points map[string]*PointValues
}

// New returns an empty accumulator.
func New() *RunResults {
	return &RunResults{
		Intervals: make(map[string][]time.Duration),
		Failures:  make(map[string]int),
		Points:    make(map[string]*PointValues),
	}
}

// AddInterval records one successful interval measurement.
func (r *RunResults) AddInterval(name string, d time.Duration) {
	r.Intervals[name] = append(r.Intervals[name], d)
}

// AddFailure counts one failed trial for the named interval filter.
func (r *RunResults) AddFailure(name string) {
	r.Failures[name]++
}

// AddPoint records one extracted point value under its derived name.
func (r *RunResults) AddPoint(p points.Point) {
	pv, ok := r.Points[p.Name]
	if !ok {
		r.Points[p.Name] = &PointValues{
			NoUnitConversion: p.NoUnitConversion,
			Values:           []uint64{p.Value},
		}
		return
	}
	if pv.NoUnitConversion != p.NoUnitConversion {
		klog.Warningf("point %q changed its unit-conversion flag across runs, keeping the first", p.Name)
	}
	pv.Values = append(pv.Values, p.Value)
}

// Merge folds the partial results of one trial into r.
func (r *RunResults) Merge(o *RunResults) {
	for name, durations := range o.Intervals {
		r.Intervals[name] = append(r.Intervals[name], durations...)
	}
	for name, count := range o.Failures {
		r.Failures[name] += count
	}
	for name, pv := range o.Points {
		dst, ok := r.Points[name]
		if !ok {
			r.Points[name] = &PointValues{
				NoUnitConversion: pv.NoUnitConversion,
				Values:           append([]uint64{}, pv.Values...),
			}
			continue
		}
		if dst.NoUnitConversion != pv.NoUnitConversion {
			klog.Warningf("point %q changed its unit-conversion flag across runs, keeping the first", name)
		}
		dst.Values = append(dst.Values, pv.Values...)
	}
}
