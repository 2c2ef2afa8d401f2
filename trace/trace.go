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

// Package trace parses hitrace captures produced by the OpenHarmony kernel
// tracing facility into structured trace records.
package trace

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MarkRE is a regular expression matching one tracing_mark_write line.
//   e.g. org.servo.servo-44962   (  44682) [010] .... 17864.716645: tracing_mark_write: B|44682|ML: do_single_part3_compilation
// Captures with a marker tag outside {B,E,S,F,C} or with out-of-range integer
// fields are per-line parse errors; lines that do not match at all are
// unrelated kernel output and are skipped.
var MarkRE = regexp.MustCompile(`^\s*(?P<name>.*?)-(?P<pid>\d+)\s*\(\s*\d+\)\s*\[(?P<cpu>\d+)\]\s+\S+\s+(?P<secs>\d+)\.(?P<usecs>\d+): tracing_mark_write: (?P<marker>.)\|(?P<seq>\d+?)\|(?P<shorthand>.*?):(?P<function>.*?)\s*$`)

// Marker is the single-character trace marker kind of a record.
type Marker int

// The marker kinds emitted by tracing_mark_write.
const (
	StartSync Marker = iota
	EndSync
	StartAsync
	EndAsync
	Dot
)

var markerTags = map[Marker]string{
	StartSync:  "B",
	EndSync:    "E",
	StartAsync: "S",
	EndAsync:   "F",
	Dot:        "C",
}

var markersByTag = map[string]Marker{
	"B": StartSync,
	"E": EndSync,
	"S": StartAsync,
	"F": EndAsync,
	"C": Dot,
}

// MarkerFromTag converts the single-character tag from the raw format into a
// Marker.
func MarkerFromTag(tag string) (Marker, error) {
	m, ok := markersByTag[tag]
	if !ok {
		return 0, fmt.Errorf("unknown trace marker %q", tag)
	}
	return m, nil
}

// Tag returns the single-character tag used in the raw format.
func (m Marker) Tag() string {
	return markerTags[m]
}

func (m Marker) String() string {
	switch m {
	case StartSync:
		return "StartSync"
	case EndSync:
		return "EndSync"
	case StartAsync:
		return "StartAsync"
	case EndAsync:
		return "EndAsync"
	case Dot:
		return "Dot"
	}
	return fmt.Sprintf("Marker(%d)", int(m))
}

// Timestamp is a monotonic capture timestamp, split into whole seconds and
// microseconds as they appear in the raw line.
type Timestamp struct {
	Sec  uint64
	USec uint64
}

// Sub returns t - o as a signed duration with microsecond precision.
func (t Timestamp) Sub(o Timestamp) time.Duration {
	return time.Duration(int64(t.Sec)-int64(o.Sec))*time.Second +
		time.Duration(int64(t.USec)-int64(o.USec))*time.Microsecond
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%d.%06d", t.Sec, t.USec)
}

// Trace is one parsed tracing_mark_write record. Records are immutable once
// parsed and live only for the duration of one trial run.
type Trace struct {
	// Name of the emitting thread, e.g. org.servo.servo or Constellation.
	Name string
	// PID of the emitting thread.
	PID uint64
	// CPU the thread ran on.
	CPU uint64
	// Timestamp of the record.
	Timestamp Timestamp
	// Marker tells us whether the record is a start, an end or a point.
	Marker Marker
	// Seq is an opaque sequence number; upstream does not document its format.
	Seq string
	// Shorthand is a short code, e.g. H for servoshell.
	Shorthand string
	// Function is the free-form payload after the shorthand. Point extraction
	// reads its sub-structure.
	Function string
}

func (t Trace) String() string {
	return fmt.Sprintf("Trace: %s-%d ... %s: %s", t.Name, t.PID, t.Timestamp, t.Function)
}

// Format renders the record back into the canonical raw line. It is the
// inverse of Parse for records produced by Parse.
func (t Trace) Format() string {
	return fmt.Sprintf("%s-%d   (%7d) [%03d] .... %s: tracing_mark_write: %s|%s|%s:%s",
		t.Name, t.PID, t.PID, t.CPU, t.Timestamp, t.Marker.Tag(), t.Seq, t.Shorthand, t.Function)
}

// ParseLine parses a single capture line. It returns (nil, nil) for lines that
// are not tracing_mark_write records, and an error for lines that match the
// outer shape but carry a malformed marker or integer field.
func ParseLine(line string) (*Trace, error) {
	matches := MarkRE.FindStringSubmatch(line)
	if matches == nil {
		return nil, nil
	}
	result := make(map[string]string)
	for i, name := range MarkRE.SubexpNames() {
		if name != "" {
			result[name] = matches[i]
		}
	}

	marker, err := MarkerFromTag(result["marker"])
	if err != nil {
		return nil, err
	}
	pid, err := strconv.ParseUint(result["pid"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad pid %q: %v", result["pid"], err)
	}
	cpu, err := strconv.ParseUint(result["cpu"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad cpu %q: %v", result["cpu"], err)
	}
	secs, err := strconv.ParseUint(result["secs"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad seconds %q: %v", result["secs"], err)
	}
	usecs, err := strconv.ParseUint(result["usecs"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad microseconds %q: %v", result["usecs"], err)
	}

	return &Trace{
		Name:      result["name"],
		PID:       pid,
		CPU:       cpu,
		Timestamp: Timestamp{Sec: secs, USec: usecs},
		Marker:    marker,
		Seq:       result["seq"],
		Shorthand: result["shorthand"],
		Function:  result["function"],
	}, nil
}

// Parse converts capture lines into trace records. Unmatched lines are
// skipped. Lines matching the outer shape but failing to parse are collected
// as per-line errors carrying the zero-based line index; they never abort the
// whole capture.
func Parse(lines []string) ([]Trace, []error) {
	var traces []Trace
	var errs []error
	for i, l := range lines {
		t, err := ParseLine(l)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %v", i, err))
			continue
		}
		if t != nil {
			traces = append(traces, *t)
		}
	}
	return traces, errs
}

// ContainsAny reports whether the record payload contains any of the given
// substrings.
func (t Trace) ContainsAny(subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(t.Function, s) {
			return true
		}
	}
	return false
}
