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

// The hitrace-bench command runs servoshell on an OpenHarmony device (or
// replays a local capture) and collects timing and memory measurements.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/openharmony-rs/hitrace-bench/bench"
	"github.com/openharmony-rs/hitrace-bench/device"
	"github.com/openharmony-rs/hitrace-bench/presenter"
	"github.com/openharmony-rs/hitrace-bench/results"
	"github.com/openharmony-rs/hitrace-bench/runconfig"
	"github.com/openharmony-rs/hitrace-bench/runner"
)

const benchFile = "bench.json"

type options struct {
	runFile   string
	prepend   string
	bencher   bool
	quiet     bool
	isRooted  bool
	perRun    runconfig.RunArgs
	allTraces bool
}

func newRootCmd() *cobra.Command {
	opts := &options{perRun: runconfig.DefaultRunArgs()}

	cmd := &cobra.Command{
		Use:          "hitrace-bench",
		Short:        "Run servo on an OpenHarmony device and collect timing information",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.perRun.Commands = args
			opts.perRun.AllTraces = opts.allTraces
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.runFile, "run-file", "r", "", "describe runs in a run-file instead of flags")
	cmd.Flags().StringVarP(&opts.prepend, "prepend", "p", "", "string prepended to every benchmark key")
	cmd.Flags().BoolVar(&opts.bencher, "bencher", false, "write bencher output to "+benchFile)
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "keep quiet and only print the raw samples")
	cmd.Flags().BoolVar(&opts.isRooted, "is-rooted", false, "allowed to move files to a directory on the phone")

	cmd.Flags().IntVarP(&opts.perRun.Tries, "tries", "n", runconfig.DefaultTries, "number of tries to average over")
	cmd.Flags().StringVarP(&opts.perRun.URL, "url", "u", runconfig.DefaultURL, "the homepage to load")
	cmd.Flags().Uint64VarP(&opts.perRun.TraceBuffer, "trace-buffer", "t", runconfig.DefaultTraceBuffer, "trace buffer size in KB")
	cmd.Flags().Uint64VarP(&opts.perRun.Sleep, "sleep", "s", runconfig.DefaultSleep, "number of seconds to wait for the page load")
	cmd.Flags().StringVarP(&opts.perRun.BundleName, "bundle-name", "b", runconfig.DefaultBundleName, "name of the app bundle to start")
	cmd.Flags().StringVar(&opts.perRun.TraceFile, "trace-file", "", "read traces from a local capture instead of a device")
	cmd.Flags().BoolVarP(&opts.allTraces, "all-traces", "a", false, "show all parsed traces")

	return cmd
}

// standardFilters are the interval filters used when no run file is given.
func standardFilters() []runconfig.FilterDescription {
	return []runconfig.FilterDescription{
		{
			Name:           "Surface->LoadStart",
			StartFnPartial: "on_surface_created_cb",
			EndFnPartial:   "load status changed Head",
			StartShorthand: "H",
			EndShorthand:   "H",
		},
		{
			Name:           "Load->Compl",
			StartFnPartial: "load status changed Head",
			EndFnPartial:   "PageLoadEndedPrompt",
			StartShorthand: "H",
			EndShorthand:   "H",
		},
	}
}

func loadConfigs(opts *options) ([]*runconfig.RunConfig, error) {
	if opts.runFile != "" {
		return runconfig.Load(opts.runFile)
	}
	cfg := &runconfig.RunConfig{Args: opts.perRun}
	for _, fd := range standardFilters() {
		cfg.Filters = append(cfg.Filters, fd.Spec())
	}
	return []*runconfig.RunConfig{cfg}, nil
}

func source(cfg *runconfig.RunConfig, isRooted bool) (runner.Source, error) {
	if cfg.Args.TraceFile != "" {
		return runner.FileSource{Path: cfg.Args.TraceFile}, nil
	}
	dev := &device.Device{Args: cfg.Args, IsRooted: isRooted}
	reachable, err := dev.IsReachable()
	if err != nil {
		return nil, fmt.Errorf("testing reachability of device: %w", err)
	}
	if !reachable {
		return nil, fmt.Errorf("no phone seems to be reachable")
	}
	return dev, nil
}

func run(ctx context.Context, opts *options) error {
	configs, err := loadConfigs(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i, cfg := range configs {
		src, err := source(cfg, opts.isRooted)
		if err != nil {
			return err
		}
		if !opts.quiet && !opts.bencher {
			fmt.Printf("Running configuration %d of %d\n", i+1, len(configs))
		}

		res := results.New()
		if err := runner.Run(ctx, cfg, src, res); err != nil {
			return err
		}

		switch {
		case opts.bencher:
			if err := bench.Write(benchFile, res, opts.prepend); err != nil {
				return err
			}
		case opts.quiet:
			presenter.PrintComputer(os.Stdout, res)
		default:
			if err := presenter.Print(os.Stdout, res, cfg.Args.Tries, cfg.Args.URL); err != nil {
				return err
			}
		}
	}
	return nil
}

func main() {
	klog.InitFlags(nil)
	if err := newRootCmd().Execute(); err != nil {
		klog.Exit(err)
	}
}
