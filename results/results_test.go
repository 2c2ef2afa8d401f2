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

package results

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/openharmony-rs/hitrace-bench/points"
)

func TestAccumulate(t *testing.T) {
	r := New()
	r.AddInterval("Load->Compl", 2*time.Second)
	r.AddInterval("Load->Compl", 3*time.Second)
	r.AddFailure("Surface->LoadStart")
	r.AddPoint(points.Point{Name: "Resident", Value: 100})
	r.AddPoint(points.Point{Name: "Resident", Value: 200})
	r.AddPoint(points.Point{Name: "generatehtml", Value: 1720, NoUnitConversion: true})

	want := &RunResults{
		Intervals: map[string][]time.Duration{"Load->Compl": {2 * time.Second, 3 * time.Second}},
		Failures:  map[string]int{"Surface->LoadStart": 1},
		Points: map[string]*PointValues{
			"Resident":     {Values: []uint64{100, 200}},
			"generatehtml": {NoUnitConversion: true, Values: []uint64{1720}},
		},
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("accumulated results mismatch (-want +got):\n%s", diff)
	}
}

// The unit-conversion flag of a point name is set by the first writer and
// survives conflicting later writers.
func TestAddPointFirstWriterWins(t *testing.T) {
	r := New()
	r.AddPoint(points.Point{Name: "Resident", Value: 1, NoUnitConversion: true})
	r.AddPoint(points.Point{Name: "Resident", Value: 2, NoUnitConversion: false})
	pv := r.Points["Resident"]
	if !pv.NoUnitConversion {
		t.Errorf("NoUnitConversion = false, want first writer's true")
	}
	if diff := cmp.Diff([]uint64{1, 2}, pv.Values); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge(t *testing.T) {
	total := New()
	trial1 := New()
	trial1.AddInterval("Load->Compl", time.Second)
	trial1.AddPoint(points.Point{Name: "Resident", Value: 100})
	trial2 := New()
	trial2.AddInterval("Load->Compl", 3*time.Second)
	trial2.AddFailure("Surface->LoadStart")
	trial2.AddPoint(points.Point{Name: "Resident", Value: 300})

	total.Merge(trial1)
	total.Merge(trial2)

	want := &RunResults{
		Intervals: map[string][]time.Duration{"Load->Compl": {time.Second, 3 * time.Second}},
		Failures:  map[string]int{"Surface->LoadStart": 1},
		Points: map[string]*PointValues{
			"Resident": {Values: []uint64{100, 300}},
		},
	}
	if diff := cmp.Diff(want, total); diff != "" {
		t.Errorf("merged results mismatch (-want +got):\n%s", diff)
	}
}
