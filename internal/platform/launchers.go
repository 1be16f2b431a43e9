// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
)

// SimulatorLauncher opens URLs on iOS simulators through xcrun simctl.
type SimulatorLauncher struct {
	runner CommandRunner
}

// NewSimulatorLauncher creates an iOS simulator launcher.
func NewSimulatorLauncher(runner CommandRunner) *SimulatorLauncher {
	return &SimulatorLauncher{runner: runner}
}

func (l *SimulatorLauncher) Target() Target { return TargetIOS }

// simctlList mirrors the subset of `xcrun simctl list devices -j` we read.
type simctlList struct {
	Devices map[string][]struct {
		UDID  string `json:"udid"`
		Name  string `json:"name"`
		State string `json:"state"`
	} `json:"devices"`
}

func (l *SimulatorLauncher) Devices(ctx context.Context) ([]Device, error) {
	out, err := l.runner.Run(ctx, "xcrun", "simctl", "list", "devices", "-j")
	if err != nil {
		return nil, fmt.Errorf("list simulators: %w", err)
	}

	var list simctlList
	if err := json.Unmarshal(out, &list); err != nil {
		return nil, fmt.Errorf("parse simctl output: %w", err)
	}

	var devices []Device
	for _, group := range list.Devices {
		for _, d := range group {
			devices = append(devices, Device{
				ID:     d.UDID,
				Name:   d.Name,
				Booted: d.State == "Booted",
			})
		}
	}
	return devices, nil
}

func (l *SimulatorLauncher) Open(ctx context.Context, device Device, url string) error {
	target := device.ID
	if target == "" {
		target = "booted"
	}
	if !device.Booted && device.ID != "" {
		// Boot errors for an already-booted device are benign
		l.runner.Run(ctx, "xcrun", "simctl", "boot", device.ID)
	}
	if _, err := l.runner.Run(ctx, "xcrun", "simctl", "openurl", target, url); err != nil {
		return fmt.Errorf("open url on simulator %s: %w", device.Name, err)
	}
	return nil
}

// EmulatorLauncher opens URLs on Android devices and emulators through adb.
type EmulatorLauncher struct {
	runner CommandRunner
}

// NewEmulatorLauncher creates an Android launcher.
func NewEmulatorLauncher(runner CommandRunner) *EmulatorLauncher {
	return &EmulatorLauncher{runner: runner}
}

func (l *EmulatorLauncher) Target() Target { return TargetAndroid }

func (l *EmulatorLauncher) Devices(ctx context.Context) ([]Device, error) {
	out, err := l.runner.Run(ctx, "adb", "devices")
	if err != nil {
		return nil, fmt.Errorf("list android devices: %w", err)
	}

	var devices []Device
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] != "device" {
			continue
		}
		devices = append(devices, Device{ID: fields[0], Name: fields[0], Booted: true})
	}
	return devices, nil
}

func (l *EmulatorLauncher) Open(ctx context.Context, device Device, url string) error {
	args := []string{}
	if device.ID != "" {
		args = append(args, "-s", device.ID)
	}
	args = append(args, "shell", "am", "start", "-a", "android.intent.action.VIEW", "-d", url)
	if _, err := l.runner.Run(ctx, "adb", args...); err != nil {
		return fmt.Errorf("open url on android device %s: %w", device.Name, err)
	}
	return nil
}

// BrowserLauncher opens URLs in the desktop default browser.
type BrowserLauncher struct {
	runner CommandRunner
	goos   string
}

// NewBrowserLauncher creates a web launcher.
func NewBrowserLauncher(runner CommandRunner) *BrowserLauncher {
	return &BrowserLauncher{runner: runner, goos: runtime.GOOS}
}

func (l *BrowserLauncher) Target() Target { return TargetWeb }

func (l *BrowserLauncher) Devices(_ context.Context) ([]Device, error) {
	return []Device{{ID: "browser", Name: "default browser", Booted: true}}, nil
}

func (l *BrowserLauncher) Open(ctx context.Context, _ Device, url string) error {
	var name string
	var args []string
	switch l.goos {
	case "darwin":
		name = "open"
		args = []string{url}
	case "windows":
		name = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", url}
	default:
		name = "xdg-open"
		args = []string{url}
	}
	if _, err := l.runner.Run(ctx, name, args...); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}
