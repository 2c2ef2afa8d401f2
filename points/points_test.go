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

package points

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/openharmony-rs/hitrace-bench/trace"
)

const targetURL = "https://servo.org"

func dot(function string) trace.Trace {
	return trace.Trace{
		Name:      "org.servo.servo",
		PID:       1,
		CPU:       0,
		Timestamp: trace.Timestamp{Sec: 1, USec: 0},
		Marker:    trace.Dot,
		Seq:       "1",
		Shorthand: "H",
		Function:  function,
	}
}

// ignoreTrace drops the diagnostic back-reference when comparing points.
var ignoreTrace = cmpopts.IgnoreFields(Point{}, "Trace")

func TestExtractDispatch(t *testing.T) {
	tests := []struct {
		desc   string
		filter Filter
		traces []trace.Trace
		want   []Point
	}{
		{
			desc:   "Simple memory report",
			filter: Filter{Name: "Resident", MatchStr: "resident"},
			traces: []trace.Trace{dot("servo_memory_profiling:resident 270778368")},
			want:   []Point{{Name: "Resident", Value: 270778368, Kind: MemoryReport}},
		},
		{
			desc:   "Memory report in the piped sub-format",
			filter: Filter{Name: "Resident", MatchStr: "resident"},
			traces: []trace.Trace{dot("servo_memory_profiling:resident|270778368|C123")},
			want:   []Point{{Name: "Resident", Value: 270778368, Kind: MemoryReport}},
		},
		{
			desc:   "Url report for the target url keeps subpath segments",
			filter: Filter{Name: "JS", MatchStr: "js"},
			traces: []trace.Trace{dot("servo_memory_profiling:url(https://servo.org/)/js/non-heap 262144")},
			want:   []Point{{Name: "JS/non-heap", Value: 262144, Kind: MemoryURL}},
		},
		{
			desc:   "Url report without subpath keeps the bare filter name",
			filter: Filter{Name: "JS", MatchStr: "js"},
			traces: []trace.Trace{dot("servo_memory_profiling:url(https://servo.org/)/js 262144")},
			want:   []Point{{Name: "JS", Value: 262144, Kind: MemoryURL}},
		},
		{
			desc:   "Url report for an unrelated origin is rejected",
			filter: Filter{Name: "JS", MatchStr: "js"},
			traces: []trace.Trace{dot("servo_memory_profiling:url(https://ads.example.com/)/js/non-heap 4096")},
			want:   nil,
		},
		{
			desc:   "Smaps requires the exact tag as match key",
			filter: Filter{Name: "resident-smaps", MatchStr: "resident-according-to-smaps", Policy: PolicyCombined},
			traces: []trace.Trace{dot("servo_memory_profiling:resident-according-to-smaps/other 60424192")},
			want:   []Point{{Name: "resident-smaps", Value: 60424192, Kind: Smaps}},
		},
		{
			desc: "Smaps tag beats the generic memory-report pattern",
			// Both patterns match this payload; dispatch order decides.
			filter: Filter{Name: "resident-smaps", MatchStr: "resident"},
			traces: []trace.Trace{dot("servo_memory_profiling:resident-according-to-smaps/other 60424192")},
			want:   nil,
		},
		{
			desc:   "Testcase point with matching case name",
			filter: Filter{Name: "generatehtml", MatchStr: "generatehtml", NoUnitConversion: true},
			traces: []trace.Trace{dot("TESTCASE_PROFILING: generatehtml 1720")},
			want:   []Point{{Name: "generatehtml", Value: 1720, NoUnitConversion: true, Kind: Testcase}},
		},
		{
			desc:   "Testcase point with non-matching case name",
			filter: Filter{Name: "other", MatchStr: "TESTCASE_PROFILING"},
			traces: []trace.Trace{dot("TESTCASE_PROFILING: generatehtml 1720")},
			want:   nil,
		},
		{
			desc:   "Start-sync records are candidates too",
			filter: Filter{Name: "Resident", MatchStr: "resident"},
			traces: []trace.Trace{func() trace.Trace {
				r := dot("servo_memory_profiling:resident 1024")
				r.Marker = trace.StartSync
				return r
			}()},
			want: []Point{{Name: "Resident", Value: 1024, Kind: MemoryReport}},
		},
		{
			desc:   "End-sync records are never candidates",
			filter: Filter{Name: "Resident", MatchStr: "resident"},
			traces: []trace.Trace{func() trace.Trace {
				r := dot("servo_memory_profiling:resident 1024")
				r.Marker = trace.EndSync
				return r
			}()},
			want: nil,
		},
		{
			desc:   "Payload without a recognized tag is skipped",
			filter: Filter{Name: "Resident", MatchStr: "resident"},
			traces: []trace.Trace{dot("resident set size changed")},
			want:   nil,
		},
	}

	for _, test := range tests {
		got, errs := Extract(test.traces, test.filter, targetURL)
		if len(errs) > 0 {
			t.Errorf("%v: Extract returned unexpected errors: %v", test.desc, errs)
			continue
		}
		if diff := cmp.Diff(test.want, got, ignoreTrace); diff != "" {
			t.Errorf("%v: Extract mismatch (-want +got):\n%s", test.desc, diff)
		}
	}
}

func TestExtractPaintTimings(t *testing.T) {
	lcp := Filter{Name: "LargestContentfulPaint", MatchStr: "LargestContentfulPaint", NoUnitConversion: true, Policy: PolicyLargest}
	traces := []trace.Trace{
		dot("LargestContentfulPaint paint_time=CrossProcessInstant { value: 231277222481376 },area=4095"),
	}
	got, errs := Extract(traces, lcp, targetURL)
	if len(errs) > 0 {
		t.Fatalf("Extract returned unexpected errors: %v", errs)
	}
	want := []Point{
		{Name: "LargestContentfulPaint/area", Value: 4095, NoUnitConversion: true, Kind: LargestContentfulPaint},
		{Name: "LargestContentfulPaint/paint_time", Value: 231277222481376, NoUnitConversion: true, Kind: LargestContentfulPaint},
	}
	if diff := cmp.Diff(want, got, ignoreTrace, cmpopts.SortSlices(func(a, b Point) bool { return a.Name < b.Name })); diff != "" {
		t.Errorf("Extract mismatch (-want +got):\n%s", diff)
	}

	fcp := Filter{Name: "FirstContentfulPaint", MatchStr: "FirstContentfulPaint", NoUnitConversion: true}
	traces = []trace.Trace{
		dot("FirstContentfulPaint paint_time=CrossProcessInstant { value: 1000 }"),
	}
	got, errs = Extract(traces, fcp, targetURL)
	if len(errs) > 0 {
		t.Fatalf("Extract returned unexpected errors: %v", errs)
	}
	want = []Point{
		{Name: "FirstContentfulPaint/paint_time", Value: 1000, NoUnitConversion: true, Kind: LargestContentfulPaint},
	}
	if diff := cmp.Diff(want, got, ignoreTrace); diff != "" {
		t.Errorf("Extract mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractPaintErrors(t *testing.T) {
	tests := []struct {
		desc    string
		payload string
	}{
		{"Field without equals sign", "LargestContentfulPaint paint_time,area=4095"},
		{"Missing area field", "LargestContentfulPaint paint_time=CrossProcessInstant { value: 10 }"},
		{"Unparseable wrapped value", "LargestContentfulPaint paint_time=CrossProcessInstant ( value: 10 ),area=4095"},
	}
	f := Filter{Name: "LargestContentfulPaint", MatchStr: "LargestContentfulPaint"}
	for _, test := range tests {
		got, errs := Extract([]trace.Trace{dot(test.payload)}, f, targetURL)
		if len(got) != 0 {
			t.Errorf("%v: Extract produced %d points, want 0", test.desc, len(got))
		}
		if len(errs) != 1 {
			t.Errorf("%v: Extract produced %d errors (%v), want 1", test.desc, len(errs), errs)
		}
	}
}

func TestUnwrapInstant(t *testing.T) {
	tests := []struct {
		desc    string
		input   string
		want    uint64
		wantErr bool
	}{
		{desc: "Bare integer", input: "4095", want: 4095},
		{desc: "Debug-formatted instant", input: "CrossProcessInstant { value: 231277222481376 }", want: 231277222481376},
		{desc: "Renamed wrapper type", input: "MonotonicInstant { value: 7 }", want: 7},
		{desc: "Wrapper without label", input: "Instant { 12 }", want: 12},
		{desc: "No braces", input: "CrossProcessInstant value: 7", wantErr: true},
		{desc: "Empty braces", input: "Instant { }", wantErr: true},
	}
	for _, test := range tests {
		got, err := unwrapInstant(test.input)
		if test.wantErr {
			if err == nil {
				t.Errorf("%v: unwrapInstant(%q) = %d, want error", test.desc, test.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%v: unwrapInstant(%q) returned error: %v", test.desc, test.input, err)
			continue
		}
		if got != test.want {
			t.Errorf("%v: unwrapInstant(%q) = %d, want %d", test.desc, test.input, got, test.want)
		}
	}
}

// Two memory reports matching the same filter under the default policy are an
// ambiguity: everything of that kind is dropped, nothing is picked.
func TestExtractDefaultDuplicateRejection(t *testing.T) {
	f := Filter{Name: "Resident", MatchStr: "resident"}
	traces := []trace.Trace{
		dot("servo_memory_profiling:resident 100"),
		dot("servo_memory_profiling:resident 200"),
	}
	got, errs := Extract(traces, f, targetURL)
	if len(got) != 0 {
		t.Errorf("Extract produced %d points (%v), want 0", len(got), got)
	}
	if len(errs) != 1 {
		t.Errorf("Extract produced %d errors (%v), want 1", len(errs), errs)
	}
}

func TestExtractCombinedAndLargest(t *testing.T) {
	traces := []trace.Trace{
		dot("servo_memory_profiling:url(https://servo.org/)/js 10"),
		dot("servo_memory_profiling:url(https://servo.org/)/js 20"),
		dot("servo_memory_profiling:url(https://servo.org/)/js 5"),
	}

	combined := Filter{Name: "JS", MatchStr: "js", Policy: PolicyCombined}
	got, errs := Extract(traces, combined, targetURL)
	if len(errs) > 0 {
		t.Fatalf("Extract returned unexpected errors: %v", errs)
	}
	want := []Point{{Name: "JS", Value: 35, Kind: Combined}}
	if diff := cmp.Diff(want, got, ignoreTrace); diff != "" {
		t.Errorf("combined: Extract mismatch (-want +got):\n%s", diff)
	}

	largest := Filter{Name: "JS", MatchStr: "js", Policy: PolicyLargest}
	got, errs = Extract(traces, largest, targetURL)
	if len(errs) > 0 {
		t.Fatalf("Extract returned unexpected errors: %v", errs)
	}
	want = []Point{{Name: "JS", Value: 20, Kind: LargestContentfulPaint}}
	if diff := cmp.Diff(want, got, ignoreTrace); diff != "" {
		t.Errorf("largest: Extract mismatch (-want +got):\n%s", diff)
	}
}

// A singleton group under the combined policy keeps its original kind and
// diagnostic back-reference.
func TestExtractCombinedSingleton(t *testing.T) {
	f := Filter{Name: "Explicit", MatchStr: "explicit", Policy: PolicyCombined}
	got, errs := Extract([]trace.Trace{dot("servo_memory_profiling:explicit 42")}, f, targetURL)
	if len(errs) > 0 {
		t.Fatalf("Extract returned unexpected errors: %v", errs)
	}
	if len(got) != 1 || got[0].Kind != MemoryReport || got[0].Trace == nil {
		t.Errorf("Extract = %+v, want one MemoryReport point with its trace attached", got)
	}
}
