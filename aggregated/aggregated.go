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

// Package aggregated reduces the values gathered across repeated trial runs
// into summary statistics. It has no knowledge of filter or point semantics.
package aggregated

import "errors"

// ErrNoValues is returned when aggregating an empty value list. Callers must
// skip measurement keys with zero successful samples instead of reaching this.
var ErrNoValues = errors.New("cannot aggregate zero values")

// Number covers the two value domains we aggregate: signed durations and
// unsigned counts. The average stays in the input domain, so duration averages
// stay durations and count averages truncate to integer counts.
type Number interface {
	~int64 | ~uint64
}

// Stats is the avg/min/max summary of one measurement across all trial runs.
type Stats[T Number] struct {
	Avg   T
	Min   T
	Max   T
	Count int
}

// AvgMinMax reduces a non-empty value list. The result does not depend on the
// order of the input.
func AvgMinMax[T Number](values []T) (Stats[T], error) {
	if len(values) == 0 {
		return Stats[T]{}, ErrNoValues
	}
	min, max := values[0], values[0]
	var sum T
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	return Stats[T]{
		Avg:   sum / T(len(values)),
		Min:   min,
		Max:   max,
		Count: len(values),
	}, nil
}
