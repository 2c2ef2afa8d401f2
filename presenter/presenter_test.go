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

package presenter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/openharmony-rs/hitrace-bench/results"
)

func TestPrint(t *testing.T) {
	color.NoColor = true

	res := results.New()
	res.Intervals["Load->Compl"] = []time.Duration{2 * time.Second, 3 * time.Second}
	res.Intervals["AllFailed"] = nil
	res.Failures["AllFailed"] = 2
	res.Points["Resident"] = &results.PointValues{Values: []uint64{270778368}}
	res.Points["generatehtml"] = &results.PointValues{NoUnitConversion: true, Values: []uint64{1720}}

	var buf bytes.Buffer
	if err := Print(&buf, res, 2, "https://servo.org"); err != nil {
		t.Fatalf("Print returned error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Load->Compl",
		"2.5s",
		"(2) runs (hp:https://servo.org)",
		"AllFailed",
		"Resident",
		"258.2 MiB",
		"generatehtml",
		"1720",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Print output does not contain %q:\n%s", want, out)
		}
	}
}

func TestPrintComputer(t *testing.T) {
	res := results.New()
	res.Intervals["Load->Compl"] = []time.Duration{2500 * time.Millisecond}

	var buf bytes.Buffer
	PrintComputer(&buf, res)
	if want := "Load->Compl: 2.500000, "; !strings.Contains(buf.String(), want) {
		t.Errorf("PrintComputer output %q does not contain %q", buf.String(), want)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v      uint64
		noConv bool
		want   string
	}{
		{1720, true, "1720"},
		{512, false, "512 B"},
		{262144, false, "256.0 KiB"},
		{270778368, false, "258.2 MiB"},
	}
	for _, test := range tests {
		if got := formatValue(test.v, test.noConv); got != test.want {
			t.Errorf("formatValue(%d, %t) = %q, want %q", test.v, test.noConv, got, test.want)
		}
	}
}
