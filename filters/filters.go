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

// Package filters computes elapsed-time intervals between pairs of trace
// records selected by named start and end predicates.
package filters

import (
	"fmt"
	"strings"
	"time"

	"github.com/openharmony-rs/hitrace-bench/trace"
)

// Field names the trace record attribute a predicate tests.
type Field int

const (
	// FieldFunction tests the free-form payload.
	FieldFunction Field = iota
	// FieldShorthand tests the short code.
	FieldShorthand
	// FieldName tests the thread name.
	FieldName
)

// MatchKind is how a predicate pattern is compared against the field value.
type MatchKind int

const (
	// MatchContains is a substring match.
	MatchContains MatchKind = iota
	// MatchEquals is an exact match.
	MatchEquals
)

// Predicate is a data-described boolean test over a single trace record.
// Predicates are serializable and order-independent: they must hold for a
// record in isolation, never for a position in the capture.
type Predicate struct {
	Field   Field
	Match   MatchKind
	Pattern string
	// And must all hold in addition to the predicate itself.
	And []Predicate
}

// Contains builds a substring predicate on the given field.
func Contains(field Field, pattern string) Predicate {
	return Predicate{Field: field, Match: MatchContains, Pattern: pattern}
}

// Equals builds an exact-match predicate on the given field.
func Equals(field Field, pattern string) Predicate {
	return Predicate{Field: field, Match: MatchEquals, Pattern: pattern}
}

// WithAnd returns a copy of p that additionally requires all qs.
func (p Predicate) WithAnd(qs ...Predicate) Predicate {
	p.And = append(append([]Predicate{}, p.And...), qs...)
	return p
}

// Eval evaluates the predicate against one record.
func (p Predicate) Eval(t *trace.Trace) bool {
	var value string
	switch p.Field {
	case FieldFunction:
		value = t.Function
	case FieldShorthand:
		value = t.Shorthand
	case FieldName:
		value = t.Name
	}

	var ok bool
	switch p.Match {
	case MatchContains:
		ok = strings.Contains(value, p.Pattern)
	case MatchEquals:
		ok = value == p.Pattern
	}
	if !ok {
		return false
	}
	for _, q := range p.And {
		if !q.Eval(t) {
			return false
		}
	}
	return true
}

// Spec is a named interval filter: a start predicate and an end predicate.
// Names are unique within one run configuration.
type Spec struct {
	Name  string
	Start Predicate
	End   Predicate
}

// AmbiguityError reports that a spec did not match exactly one start and one
// end record. Zero means the event never happened; more than one means the
// predicate is ambiguous for this capture.
type AmbiguityError struct {
	Name         string
	StartMatches int
	EndMatches   int
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("filter is not specific or over specific, we got the following number of results: name: %s, first: %d, last: %d",
		e.Name, e.StartMatches, e.EndMatches)
}

// Interval is the per-spec outcome of one trial run. Exactly one of Duration
// and Err is meaningful.
type Interval struct {
	Duration time.Duration
	Err      error
}

// FindIntervals evaluates every spec against the records of one trial run.
// Success requires exactly one start and one end match; the duration is
// end minus start and may be negative if the end record precedes the start
// record chronologically.
func FindIntervals(traces []trace.Trace, specs []Spec) map[string]Interval {
	out := make(map[string]Interval, len(specs))
	for _, spec := range specs {
		out[spec.Name] = findInterval(traces, spec)
	}
	return out
}

func findInterval(traces []trace.Trace, spec Spec) Interval {
	var starts, ends []*trace.Trace
	for i := range traces {
		if spec.Start.Eval(&traces[i]) {
			starts = append(starts, &traces[i])
		}
		if spec.End.Eval(&traces[i]) {
			ends = append(ends, &traces[i])
		}
	}
	if len(starts) != 1 || len(ends) != 1 {
		return Interval{Err: &AmbiguityError{Name: spec.Name, StartMatches: len(starts), EndMatches: len(ends)}}
	}
	return Interval{Duration: ends[0].Timestamp.Sub(starts[0].Timestamp)}
}
