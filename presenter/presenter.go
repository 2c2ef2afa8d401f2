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

// Package presenter renders accumulated results as a developer-facing table.
package presenter

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/openharmony-rs/hitrace-bench/aggregated"
	"github.com/openharmony-rs/hitrace-bench/results"
)

var (
	avgColor  = color.New(color.FgYellow)
	minColor  = color.New(color.FgGreen)
	maxColor  = color.New(color.FgRed)
	failColor = color.New(color.FgRed, color.Bold)
)

// Print writes the avg/min/max summary of every measurement to w. Names with
// zero successful samples show only their failure count. Negative averages
// mean the end event preceded the start event and are flagged red.
func Print(w io.Writer, res *results.RunResults, tries int, url string) error {
	fmt.Fprintf(w, "----name %s %s %s------(%d) runs (hp:%s)------------------------\n",
		avgColor.Sprint("avg"), minColor.Sprint("min"), maxColor.Sprint("max"), tries, url)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Avg", "Min", "Max", "Runs", "Failed"})
	table.SetAutoFormatHeaders(false)

	for _, name := range sortedKeys(res.Intervals) {
		durations := res.Intervals[name]
		failed := res.Failures[name]
		if len(durations) == 0 {
			table.Append([]string{name, "-", "-", "-", "0", failColor.Sprintf("%d", failed)})
			continue
		}
		stats, err := aggregated.AvgMinMax(durations)
		if err != nil {
			return fmt.Errorf("interval %q: %w", name, err)
		}
		avg := avgColor.Sprint(stats.Avg)
		if stats.Avg < 0 {
			avg = failColor.Sprint(stats.Avg)
		}
		table.Append([]string{
			name,
			avg,
			minColor.Sprint(stats.Min),
			maxColor.Sprint(stats.Max),
			fmt.Sprintf("%d", stats.Count),
			fmt.Sprintf("%d", failed),
		})
	}

	for _, name := range sortedKeys(res.Points) {
		pv := res.Points[name]
		if len(pv.Values) == 0 {
			continue
		}
		stats, err := aggregated.AvgMinMax(pv.Values)
		if err != nil {
			return fmt.Errorf("point %q: %w", name, err)
		}
		table.Append([]string{
			name,
			avgColor.Sprint(formatValue(stats.Avg, pv.NoUnitConversion)),
			minColor.Sprint(formatValue(stats.Min, pv.NoUnitConversion)),
			maxColor.Sprint(formatValue(stats.Max, pv.NoUnitConversion)),
			fmt.Sprintf("%d", stats.Count),
			"0",
		})
	}

	table.Render()
	return nil
}

// PrintComputer writes the raw interval samples in the terse machine-friendly
// line format, one measurement per line.
func PrintComputer(w io.Writer, res *results.RunResults) {
	for _, name := range sortedKeys(res.Intervals) {
		fmt.Fprintf(w, "%s: ", name)
		for _, d := range res.Intervals[name] {
			fmt.Fprintf(w, "%d.%06d, ", d/time.Second, (d%time.Second)/time.Microsecond)
		}
		fmt.Fprintln(w)
	}
}

// formatValue humanizes byte quantities; dimensionless counts print as is.
func formatValue(v uint64, noUnitConversion bool) string {
	if noUnitConversion {
		return fmt.Sprintf("%d", v)
	}
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}
	div, exp := uint64(unit), 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(v)/float64(div), "KMGTPE"[exp])
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
