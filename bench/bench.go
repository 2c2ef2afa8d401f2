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

// Package bench renders accumulated results as a bencher metric format
// document, the machine-readable output consumed by the benchmark tracker.
package bench

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openharmony-rs/hitrace-bench/aggregated"
	"github.com/openharmony-rs/hitrace-bench/results"
)

// Measure is one bencher measure: the central value with its lower and upper
// bounds, here avg/min/max.
type Measure struct {
	Value      float64 `json:"value"`
	LowerValue float64 `json:"lower_value"`
	UpperValue float64 `json:"upper_value"`
}

// Document maps a benchmark key to its measures by unit name.
type Document map[string]map[string]Measure

// key builds the benchmark key, adding the E2E and prepend segments.
func key(prepend, name string) string {
	if prepend != "" {
		return prepend + "/E2E/" + name
	}
	return "E2E/" + name
}

// unitName picks the bencher measure name for a point key. Paint-timing
// points carry their own units regardless of the conversion flag.
func unitName(name string, pv *results.PointValues) string {
	switch {
	case strings.HasSuffix(name, "/paint_time"):
		return "Nanoseconds"
	case strings.HasSuffix(name, "/area"):
		return "Pixels"
	case pv.NoUnitConversion:
		return "Data"
	default:
		return "Memory"
	}
}

// Generate reduces the accumulated results into a bencher document.
// Measurement keys with zero successful samples are left out; they appear
// only in the failure counters.
func Generate(res *results.RunResults, prepend string) (Document, error) {
	doc := make(Document)
	for name, durations := range res.Intervals {
		if len(durations) == 0 {
			continue
		}
		stats, err := aggregated.AvgMinMax(durations)
		if err != nil {
			return nil, fmt.Errorf("interval %q: %w", name, err)
		}
		doc[key(prepend, name)] = map[string]Measure{
			"Latency": {
				Value:      float64(stats.Avg / time.Nanosecond),
				LowerValue: float64(stats.Min / time.Nanosecond),
				UpperValue: float64(stats.Max / time.Nanosecond),
			},
		}
	}
	for name, pv := range res.Points {
		if len(pv.Values) == 0 {
			continue
		}
		stats, err := aggregated.AvgMinMax(pv.Values)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", name, err)
		}
		doc[key(prepend, name)] = map[string]Measure{
			unitName(name, pv): {
				Value:      float64(stats.Avg),
				LowerValue: float64(stats.Min),
				UpperValue: float64(stats.Max),
			},
		}
	}
	return doc, nil
}

// Write writes the bencher document to the given file, pretty printed.
func Write(path string, res *results.RunResults, prepend string) error {
	doc, err := Generate(res, prepend)
	if err != nil {
		return err
	}
	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("could not serialize results: %w", err)
	}
	if err := os.WriteFile(path, append(content, '\n'), 0644); err != nil {
		return fmt.Errorf("could not create %s: %w", path, err)
	}
	return nil
}
