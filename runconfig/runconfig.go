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

// Package runconfig loads run configurations, the serialized filter and
// point-filter descriptions, from YAML or JSON run files.
package runconfig

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/openharmony-rs/hitrace-bench/filters"
	"github.com/openharmony-rs/hitrace-bench/points"
)

// Defaults for run args left unset in a run file.
const (
	DefaultTries       = 1
	DefaultURL         = "https://servo.org"
	DefaultTraceBuffer = 524288
	DefaultSleep       = 10
	DefaultBundleName  = "org.servo.servo"
)

// RunArgs are the per-run knobs of one configuration.
type RunArgs struct {
	// AllTraces prints every parsed trace record before filtering.
	AllTraces bool `json:"all_traces,omitempty"`
	// Tries is the number of trial runs to average over.
	Tries int `json:"tries,omitempty"`
	// URL is the homepage to load. The memory-url discriminator matches
	// against it.
	URL string `json:"url,omitempty"`
	// TraceBuffer is the hitrace buffer size in KB.
	TraceBuffer uint64 `json:"trace_buffer,omitempty"`
	// Sleep is the number of seconds to wait for the page load.
	Sleep uint64 `json:"sleep,omitempty"`
	// BundleName is the app bundle to start.
	BundleName string `json:"bundle_name,omitempty"`
	// TraceFile reads traces from a local capture instead of a device.
	TraceFile string `json:"trace_file,omitempty"`
	// Commands are passed through to the aa start command verbatim.
	Commands []string `json:"commands,omitempty"`
}

// DefaultRunArgs returns the args used when a run file leaves them out.
func DefaultRunArgs() RunArgs {
	return RunArgs{
		Tries:       DefaultTries,
		URL:         DefaultURL,
		TraceBuffer: DefaultTraceBuffer,
		Sleep:       DefaultSleep,
		BundleName:  DefaultBundleName,
	}
}

// FilterDescription is the serialized form of an interval filter. The start
// and end predicates substring-match the payload; the optional shorthand
// fields additionally require an exact shorthand code.
type FilterDescription struct {
	Name           string `json:"name"`
	StartFnPartial string `json:"start_fn_partial"`
	EndFnPartial   string `json:"end_fn_partial"`
	StartShorthand string `json:"start_shorthand,omitempty"`
	EndShorthand   string `json:"end_shorthand,omitempty"`
}

// Spec converts the description into an engine spec.
func (d FilterDescription) Spec() filters.Spec {
	start := filters.Contains(filters.FieldFunction, d.StartFnPartial)
	if d.StartShorthand != "" {
		start = start.WithAnd(filters.Equals(filters.FieldShorthand, d.StartShorthand))
	}
	end := filters.Contains(filters.FieldFunction, d.EndFnPartial)
	if d.EndShorthand != "" {
		end = end.WithAnd(filters.Equals(filters.FieldShorthand, d.EndShorthand))
	}
	return filters.Spec{Name: d.Name, Start: start, End: end}
}

// PointFilterDescription is the serialized form of a point filter.
type PointFilterDescription struct {
	Name             string `json:"name"`
	MatchStr         string `json:"match_str"`
	NoUnitConversion bool   `json:"no_unit_conversion,omitempty"`
	Combined         bool   `json:"combined,omitempty"`
	Largest          bool   `json:"largest,omitempty"`
}

// Filter converts the description into an extractor filter.
func (d PointFilterDescription) Filter() (points.Filter, error) {
	if d.Combined && d.Largest {
		return points.Filter{}, fmt.Errorf("point filter %q selects both combined and largest", d.Name)
	}
	policy := points.PolicyDefault
	if d.Combined {
		policy = points.PolicyCombined
	}
	if d.Largest {
		policy = points.PolicyLargest
	}
	return points.Filter{
		Name:             d.Name,
		MatchStr:         d.MatchStr,
		NoUnitConversion: d.NoUnitConversion,
		Policy:           policy,
	}, nil
}

// RunConfig is one fully resolved configuration, ready for the runner.
type RunConfig struct {
	Args         RunArgs
	Filters      []filters.Spec
	PointFilters []points.Filter
}

// fileEntry is the run-file shape of one configuration.
type fileEntry struct {
	RunArgs      RunArgs                  `json:"run_args"`
	Filters      []FilterDescription      `json:"filters,omitempty"`
	PointFilters []PointFilterDescription `json:"point_filters,omitempty"`
}

// Load reads a run file holding a list of configurations. The file may be
// YAML or JSON. A configuration without a single filter or point filter is a
// configuration error, not an empty run.
func Load(path string) ([]*RunConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read run file %q: %w", path, err)
	}
	var entries []fileEntry
	if err := yaml.UnmarshalStrict(content, &entries); err != nil {
		return nil, fmt.Errorf("could not decode run file %q, please look at the specification: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("run file %q names no runs", path)
	}

	configs := make([]*RunConfig, 0, len(entries))
	for i, entry := range entries {
		cfg, err := entry.resolve()
		if err != nil {
			return nil, fmt.Errorf("run %d in %q: %w", i, path, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (e fileEntry) resolve() (*RunConfig, error) {
	if len(e.Filters) == 0 && len(e.PointFilters) == 0 {
		return nil, fmt.Errorf("you did not specify a filter or point filter")
	}

	args := e.RunArgs
	if args.Tries == 0 {
		args.Tries = DefaultTries
	}
	if args.URL == "" {
		args.URL = DefaultURL
	}
	if args.TraceBuffer == 0 {
		args.TraceBuffer = DefaultTraceBuffer
	}
	if args.Sleep == 0 {
		args.Sleep = DefaultSleep
	}
	if args.BundleName == "" {
		args.BundleName = DefaultBundleName
	}

	cfg := &RunConfig{Args: args}
	seen := make(map[string]bool)
	for _, fd := range e.Filters {
		if fd.Name == "" {
			return nil, fmt.Errorf("filter with empty name")
		}
		if seen[fd.Name] {
			return nil, fmt.Errorf("duplicate filter name %q", fd.Name)
		}
		seen[fd.Name] = true
		cfg.Filters = append(cfg.Filters, fd.Spec())
	}
	for _, pd := range e.PointFilters {
		pf, err := pd.Filter()
		if err != nil {
			return nil, err
		}
		cfg.PointFilters = append(cfg.PointFilters, pf)
	}
	return cfg, nil
}
