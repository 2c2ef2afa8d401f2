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

// Package points extracts scalar measurements from single trace records:
// memory-report values, paint timings and test-case markers.
package points

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"github.com/openharmony-rs/hitrace-bench/trace"
)

// The payload tag substrings that make a record a point candidate.
const (
	memoryProfilingTag = "servo_memory_profiling"
	testcaseTag        = "TESTCASE_PROFILING"
	lcpTag             = "LargestContentfulPaint"
	fcpTag             = "FirstContentfulPaint"

	smapsTag = "resident-according-to-smaps"
)

// Kind classifies which pattern produced a point.
type Kind int

const (
	// MemoryURL is a memory report with an url/iframe attached, like LayoutThread.
	MemoryURL Kind = iota
	// MemoryReport is a simple memory report, corresponding to resident memory most likely.
	MemoryReport
	// Smaps is a resident-according-to-smaps report.
	Smaps
	// Testcase is a test-case marker point.
	Testcase
	// Combined is the sum of several points sharing a derived name.
	Combined
	// LargestContentfulPaint is a paint-timing point.
	LargestContentfulPaint
)

func (k Kind) String() string {
	switch k {
	case MemoryURL:
		return "MemoryUrl"
	case MemoryReport:
		return "MemoryReport"
	case Smaps:
		return "Smaps"
	case Testcase:
		return "Testcase"
	case Combined:
		return "Combined"
	case LargestContentfulPaint:
		return "LargestContentfulPaint"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Policy is the combination rule applied when several point matches share a
// derived name within one run.
type Policy int

const (
	// PolicyDefault rejects duplicate Testcase/MemoryReport matches.
	PolicyDefault Policy = iota
	// PolicyCombined sums values sharing a derived name.
	PolicyCombined
	// PolicyLargest keeps the maximum value per derived name.
	PolicyLargest
)

// Filter is one named point specification.
type Filter struct {
	// Name is used as the derived point name, plus a payload-derived suffix
	// for some kinds.
	Name string
	// MatchStr is substring-matched against the record payload.
	MatchStr string
	// NoUnitConversion marks the value as a dimensionless count rather than a
	// byte quantity.
	NoUnitConversion bool
	// Policy picks the combination rule.
	Policy Policy
}

// Point is one extracted measurement candidate.
type Point struct {
	// Name is the spec name plus an optional payload-derived suffix.
	Name string
	// Value of the point.
	Value uint64
	// NoUnitConversion is copied from the producing filter.
	NoUnitConversion bool
	// Kind of pattern that produced the point.
	Kind Kind
	// Trace backs the point for diagnostics. Nil once points are combined.
	Trace *trace.Trace
}

// The trace format evolved across incompatible sub-variants: older captures
// carry `name value`, newer ones `name|value|seq`. Every family below lists
// one pattern per sub-variant, tried in order, so mixed captures are handled
// line by line.
var (
	// memoryReportREs match simple memory reports. Notice that these also
	// match memory-url and smaps payloads, so they come after those in the
	// dispatch order.
	//   e.g. servo_memory_profiling:resident 270778368
	memoryReportREs = []*regexp.Regexp{
		regexp.MustCompile(`^servo_memory_profiling:(?P<name>.*?)\s(?P<value>\d+)$`),
		regexp.MustCompile(`^servo_memory_profiling:(?P<name>.*?)\|(?P<value>\d+)\|\w*\d+$`),
	}

	// memoryURLREs match reports that contain an url/iframe.
	//   e.g. servo_memory_profiling:url(https://servo.org/)/js/non-heap 262144
	memoryURLREs = []*regexp.Regexp{
		regexp.MustCompile(`^servo_memory_profiling:url\((?P<url>.*?)\)/(?P<fn>.*?)\s(?P<value>\d+)$`),
		regexp.MustCompile(`^servo_memory_profiling:url\((?P<url>.*?)\)/(?P<fn>.*?)\|(?P<value>\d+)\|\w*\d+$`),
	}

	// smapsREs match the resident-according-to-smaps family.
	//   e.g. servo_memory_profiling:resident-according-to-smaps/other 60424192
	smapsREs = []*regexp.Regexp{
		regexp.MustCompile(`^servo_memory_profiling:(?P<tag>resident-according-to-smaps)/(?P<sub>.*)\s(?P<value>\d+)$`),
		regexp.MustCompile(`^servo_memory_profiling:(?P<tag>resident-according-to-smaps)/(?P<sub>.*)\|(?P<value>\d+)\|\w*\d+$`),
	}

	// testcaseREs match test-case marker points.
	//   e.g. TESTCASE_PROFILING: generatehtml 1720
	testcaseREs = []*regexp.Regexp{
		regexp.MustCompile(`^TESTCASE_PROFILING: (?P<case>.*?) (?P<value>\d+)$`),
	}

	// paint timing payloads carry a key=value list whose paint_time value is
	// wrapped in a debug-formatted instant type.
	//   e.g. LargestContentfulPaint paint_time=CrossProcessInstant { value: 231277222481376 },area=4095
	lcpREs = []*regexp.Regexp{
		regexp.MustCompile(`^LargestContentfulPaint\s+(?P<fields>.+)$`),
	}
	fcpREs = []*regexp.Regexp{
		regexp.MustCompile(`^FirstContentfulPaint\s+(?P<fields>.+)$`),
	}
)

// handler turns one regex match into zero or more points. A nil point slice
// with a nil error means the record was inspected and rejected.
type handler func(f Filter, groups map[string]string, t *trace.Trace, targetURL string) ([]Point, error)

// dispatch is evaluated top to bottom with early exit. The patterns are not
// mutually disjoint (the plain memory-report pattern also matches url and
// smaps payloads), so this order carries semantics and must not be reordered.
var dispatch = []struct {
	kind Kind
	res  []*regexp.Regexp
	fn   handler
}{
	{MemoryURL, memoryURLREs, handleMemoryURL},
	{Smaps, smapsREs, handleSmaps},
	{MemoryReport, memoryReportREs, handleMemoryReport},
	{Testcase, testcaseREs, handleTestcase},
	{LargestContentfulPaint, lcpREs, handleLCP},
	{LargestContentfulPaint, fcpREs, handleFCP},
}

// Extract classifies every candidate record of one trial run against the
// filter and returns the extracted points together with the recoverable
// per-record errors. Only Dot and StartSync records whose payload carries one
// of the recognized tags and the filter's match key are considered.
func Extract(traces []trace.Trace, f Filter, targetURL string) ([]Point, []error) {
	var points []Point
	var errs []error
	for i := range traces {
		t := &traces[i]
		if t.Marker != trace.Dot && t.Marker != trace.StartSync {
			continue
		}
		if !t.ContainsAny(memoryProfilingTag, testcaseTag, lcpTag, fcpTag) {
			continue
		}
		if !strings.Contains(t.Function, f.MatchStr) {
			continue
		}
		pts, err := classify(f, t, targetURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("point filter %q: %w", f.Name, err))
			continue
		}
		points = append(points, pts...)
	}

	switch f.Policy {
	case PolicyCombined:
		points = combine(points, Combined, sum)
	case PolicyLargest:
		points = combine(points, LargestContentfulPaint, max)
	default:
		points, errs = removeDuplicates(f, points, errs)
	}
	return points, errs
}

// classify dispatches the record payload to the first matching pattern
// family. Later families are not tried once an earlier one matches.
func classify(f Filter, t *trace.Trace, targetURL string) ([]Point, error) {
	for _, d := range dispatch {
		for _, re := range d.res {
			groups, ok := subexpNames(re, t.Function)
			if !ok {
				continue
			}
			return d.fn(f, groups, t, targetURL)
		}
	}
	return nil, nil
}

// subexpNames returns a mapping of the sub-expression names to values if the
// regexp matches the string.
func subexpNames(re *regexp.Regexp, s string) (map[string]string, bool) {
	matches := re.FindStringSubmatch(s)
	if matches == nil {
		return nil, false
	}
	result := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if name != "" {
			result[name] = matches[i]
		}
	}
	return result, true
}

func parseValue(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse value %q: %v", s, err)
	}
	return v, nil
}

// handleMemoryURL accepts url-attached reports only for the configured target
// url; cross-iframe reports for the same subpath are rejected outright. The
// derived name keeps any subpath segments after the first slash.
func handleMemoryURL(f Filter, groups map[string]string, t *trace.Trace, targetURL string) ([]Point, error) {
	if !strings.Contains(groups["url"], targetURL) {
		return nil, nil
	}
	value, err := parseValue(groups["value"])
	if err != nil {
		return nil, err
	}
	name := f.Name
	if segs := strings.Split(groups["fn"], "/"); len(segs) > 1 {
		name += "/" + strings.Join(segs[1:], "/")
	}
	return []Point{{
		Name:             name,
		Value:            value,
		NoUnitConversion: f.NoUnitConversion,
		Kind:             MemoryURL,
		Trace:            t,
	}}, nil
}

// handleSmaps accepts a smaps report only if the filter's match key is exactly
// the smaps tag, not merely a substring of it.
func handleSmaps(f Filter, groups map[string]string, t *trace.Trace, _ string) ([]Point, error) {
	if groups["tag"] != f.MatchStr {
		return nil, nil
	}
	value, err := parseValue(groups["value"])
	if err != nil {
		return nil, err
	}
	return []Point{{
		Name:             f.Name,
		Value:            value,
		NoUnitConversion: f.NoUnitConversion,
		Kind:             Smaps,
		Trace:            t,
	}}, nil
}

func handleMemoryReport(f Filter, groups map[string]string, t *trace.Trace, _ string) ([]Point, error) {
	value, err := parseValue(groups["value"])
	if err != nil {
		return nil, err
	}
	return []Point{{
		Name:             f.Name,
		Value:            value,
		NoUnitConversion: f.NoUnitConversion,
		Kind:             MemoryReport,
		Trace:            t,
	}}, nil
}

func handleTestcase(f Filter, groups map[string]string, t *trace.Trace, _ string) ([]Point, error) {
	if !strings.Contains(groups["case"], f.MatchStr) {
		return nil, nil
	}
	value, err := parseValue(groups["value"])
	if err != nil {
		return nil, err
	}
	return []Point{{
		Name:             f.Name,
		Value:            value,
		NoUnitConversion: f.NoUnitConversion,
		Kind:             Testcase,
		Trace:            t,
	}}, nil
}

// handleLCP emits two points per match: the paint time and the painted area.
func handleLCP(f Filter, groups map[string]string, t *trace.Trace, _ string) ([]Point, error) {
	fields, err := parseFields(groups["fields"])
	if err != nil {
		return nil, err
	}
	paintTime, err := requireWrapped(fields, "paint_time")
	if err != nil {
		return nil, err
	}
	area, err := requireWrapped(fields, "area")
	if err != nil {
		return nil, err
	}
	return []Point{
		{Name: f.Name + "/paint_time", Value: paintTime, NoUnitConversion: f.NoUnitConversion, Kind: LargestContentfulPaint, Trace: t},
		{Name: f.Name + "/area", Value: area, NoUnitConversion: f.NoUnitConversion, Kind: LargestContentfulPaint, Trace: t},
	}, nil
}

// handleFCP emits the paint time only; first paints carry no area.
func handleFCP(f Filter, groups map[string]string, t *trace.Trace, _ string) ([]Point, error) {
	fields, err := parseFields(groups["fields"])
	if err != nil {
		return nil, err
	}
	paintTime, err := requireWrapped(fields, "paint_time")
	if err != nil {
		return nil, err
	}
	return []Point{
		{Name: f.Name + "/paint_time", Value: paintTime, NoUnitConversion: f.NoUnitConversion, Kind: LargestContentfulPaint, Trace: t},
	}, nil
}

// parseFields splits a comma-separated key=value list. A field without an
// equals sign is a hard error for the record, never silently skipped.
func parseFields(s string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		key, value, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("malformed key=value field %q in %q", part, s)
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields, nil
}

func requireWrapped(fields map[string]string, key string) (uint64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("paint payload has no %q field", key)
	}
	v, err := unwrapInstant(raw)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return v, nil
}

// unwrapInstant extracts the integer out of a debug-formatted instant value
// such as `CrossProcessInstant { value: 231277222481376 }`. The wrapping type
// name changes across trace-format versions, so a bare-integer parse is tried
// first and the fallback only relies on the braces and the value label.
func unwrapInstant(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	open := strings.Index(s, "{")
	close := strings.LastIndex(s, "}")
	if open < 0 || close < open {
		return 0, fmt.Errorf("could not unwrap instant value %q", s)
	}
	inner := s[open+1 : close]
	if _, after, found := strings.Cut(inner, ":"); found {
		inner = after
	}
	v, err := strconv.ParseUint(strings.TrimSpace(inner), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not unwrap instant value %q: %v", s, err)
	}
	return v, nil
}

func sum(values []uint64) uint64 {
	var total uint64
	for _, v := range values {
		total += v
	}
	return total
}

func max(values []uint64) uint64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// combine groups points by derived name and replaces every group of two or
// more with a single point of the given kind whose value is reduce over the
// group. Singleton groups are kept as they are.
func combine(points []Point, kind Kind, reduce func([]uint64) uint64) []Point {
	byName := make(map[string][]Point)
	for _, p := range points {
		byName[p.Name] = append(byName[p.Name], p)
	}
	order := make([]string, 0, len(byName))
	for name := range byName {
		order = append(order, name)
	}
	sort.Strings(order)

	var out []Point
	for _, name := range order {
		group := byName[name]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		values := make([]uint64, len(group))
		for i, p := range group {
			values[i] = p.Value
		}
		out = append(out, Point{
			Name:             name,
			Value:            reduce(values),
			NoUnitConversion: group[0].NoUnitConversion,
			Kind:             kind,
		})
	}
	return out
}

// removeDuplicates enforces the default policy: more than one Testcase or
// MemoryReport match for one filter in one run is a specification ambiguity.
// All points of the offending kind are dropped for this run; picking one
// arbitrarily would silently bias the statistics.
func removeDuplicates(f Filter, points []Point, errs []error) ([]Point, []error) {
	for _, kind := range []Kind{Testcase, MemoryReport} {
		var matching []Point
		for _, p := range points {
			if p.Kind == kind {
				matching = append(matching, p)
			}
		}
		if len(matching) <= 1 {
			continue
		}
		var sources []string
		for _, p := range matching {
			if p.Trace != nil {
				sources = append(sources, p.Trace.String())
			}
		}
		err := fmt.Errorf("point filter %q matched multiple %v traces, discarding: %s",
			f.Name, kind, strings.Join(sources, "; "))
		klog.Error(err)
		errs = append(errs, err)

		kept := points[:0]
		for _, p := range points {
			if p.Kind != kind {
				kept = append(kept, p)
			}
		}
		points = kept
	}
	return points, errs
}
