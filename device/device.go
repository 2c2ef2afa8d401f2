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

// Package device drives an OpenHarmony device over hdc: it starts and stops
// the hitrace capture, launches the app under test and retrieves the raw log.
package device

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/openharmony-rs/hitrace-bench/runconfig"
)

// deviceTracePath is where hitrace writes the capture on the device.
const deviceTracePath = "/data/local/tmp/ohtrace.txt"

// hitrace categories enabled for a capture.
var traceCategories = []string{"app", "graphic", "ohos", "freq", "idle", "memory"}

// runCommand executes the given command and returns its stdout.
func runCommand(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		c := name
		if len(args) > 0 {
			c += " " + strings.Join(args, " ")
		}
		return "", fmt.Errorf("failed to run command %q:\n  %v\n  %s", c, err, stderr.String())
	}
	return stdout.String(), nil
}

// Device is a capture source backed by one connected device.
type Device struct {
	Args runconfig.RunArgs
	// IsRooted allows pushing local files into the app sandbox.
	IsRooted bool

	// hdc overrides the tool name, for tests.
	hdc string
}

func (d *Device) tool() (string, error) {
	name := d.hdc
	if name == "" {
		name = "hdc"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("is hdc in the path? %w", err)
	}
	return path, nil
}

// IsReachable reports whether a device answers. hdc happily succeeds with an
// empty target list when another IDE holds the connection, so emptiness is
// the actual signal.
func (d *Device) IsReachable() (bool, error) {
	hdc, err := d.tool()
	if err != nil {
		return false, err
	}
	out, err := runCommand(hdc, "list", "targets")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// StopTracing finishes a possibly running capture. It is also used to clean
// up after an interrupt.
func (d *Device) StopTracing() error {
	hdc, err := d.tool()
	if err != nil {
		return err
	}
	_, err = runCommand(hdc, "shell", "hitrace",
		"-b", strconv.FormatUint(d.Args.TraceBuffer, 10),
		"--trace_finish", "-o", deviceTracePath)
	if err != nil {
		return fmt.Errorf("could not stop trace: %w", err)
	}
	return nil
}

// appURL resolves the homepage for the ability start. Local files are pushed
// to the device first on rooted devices; non-rooted devices can only read
// from the bundle's resource directory.
func (d *Device) appURL(hdc string) (string, error) {
	if !strings.Contains(d.Args.URL, "file:///") {
		return d.Args.URL, nil
	}
	stem := strings.TrimPrefix(d.Args.URL, "file:///")
	if !d.IsRooted {
		return "file:///data/storage/el1/bundle/servoshell/resources/resfile/" + stem, nil
	}
	inApp := "file:///data/storage/el2/base/cache/" + stem
	onDevice := fmt.Sprintf("/data/app/el2/100/base/%s/cache/%s", d.Args.BundleName, stem)
	klog.Infof("uploading to %s visible as %s", onDevice, inApp)
	if _, err := runCommand(hdc, "file", "send", stem, onDevice); err != nil {
		return "", err
	}
	return inApp, nil
}

// Capture runs one trial on the device and returns the raw capture lines.
// The page-load sleep honors ctx so an interrupt does not hang the trial.
func (d *Device) Capture(ctx context.Context) ([]string, error) {
	hdc, err := d.tool()
	if err != nil {
		return nil, err
	}

	// Stop the app before starting the test.
	if _, err := runCommand(hdc, "shell", "aa", "force-stop", d.Args.BundleName); err != nil {
		return nil, fmt.Errorf("could not execute hdc: %w", err)
	}

	url, err := d.appURL(hdc)
	if err != nil {
		return nil, err
	}

	traceArgs := append([]string{"shell", "hitrace", "-b", strconv.FormatUint(d.Args.TraceBuffer, 10)}, traceCategories...)
	traceArgs = append(traceArgs, "--trace_begin")
	if _, err := runCommand(hdc, traceArgs...); err != nil {
		return nil, fmt.Errorf("could not start trace: %w", err)
	}

	startArgs := []string{
		"shell", "aa", "start",
		"-a", "EntryAbility",
		"-b", d.Args.BundleName,
		"-U", url,
		"--ps=--pref", "js_disable_jit=true",
		"--ps=--tracing-filter", "trace",
		"--psn=--pref=largest_contentful_paint_enabled=true",
	}
	startArgs = append(startArgs, d.Args.Commands...)
	if _, err := runCommand(hdc, startArgs...); err != nil {
		return nil, fmt.Errorf("could not start ability: %w", err)
	}

	klog.Infof("sleeping for %ds", d.Args.Sleep)
	select {
	case <-time.After(time.Duration(d.Args.Sleep) * time.Second):
	case <-ctx.Done():
		if stopErr := d.StopTracing(); stopErr != nil {
			klog.Error(stopErr)
		}
		return nil, ctx.Err()
	}

	// Getting the app pid is a simple test whether the app crashed during the
	// benchmark.
	pid, err := runCommand(hdc, "shell", "pidof", d.Args.BundleName)
	if err != nil {
		return nil, fmt.Errorf("is %q installed? %w", d.Args.BundleName, err)
	}
	if strings.TrimSpace(pid) == "" {
		if stopErr := d.StopTracing(); stopErr != nil {
			klog.Error(stopErr)
		}
		return nil, fmt.Errorf("%s did not start or crashed, please check the application logs", d.Args.BundleName)
	}

	if err := d.StopTracing(); err != nil {
		return nil, err
	}

	local := filepath.Join(os.TempDir(), "app.ftrace")
	klog.Infof("writing ftrace to %s", local)
	if _, err := runCommand(hdc, "file", "recv", deviceTracePath, local); err != nil {
		return nil, fmt.Errorf("could not receive trace: %w", err)
	}

	content, err := os.ReadFile(local)
	if err != nil {
		return nil, fmt.Errorf("could not read received trace: %w", err)
	}
	return strings.Split(string(content), "\n"), nil
}
