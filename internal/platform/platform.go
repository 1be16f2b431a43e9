// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package platform opens dev server URLs on simulators, emulators and
// browsers.
package platform

import (
	"context"
	"fmt"
	"os/exec"
)

// Target is a launchable platform.
type Target string

const (
	TargetIOS     Target = "ios"
	TargetAndroid Target = "android"
	TargetWeb     Target = "web"
)

// Valid reports whether the target names a supported platform.
func (t Target) Valid() bool {
	switch t {
	case TargetIOS, TargetAndroid, TargetWeb:
		return true
	}
	return false
}

// Runtime classifies what kind of client a URL is opened in.
type Runtime string

const (
	// RuntimeNative is a development client build of the app.
	RuntimeNative Runtime = "native"
	// RuntimeExpo is the Expo Go sandbox client.
	RuntimeExpo Runtime = "expo"
	// RuntimeWeb is a desktop browser.
	RuntimeWeb Runtime = "web"
	// RuntimeCustom is an arbitrary user-supplied scheme.
	RuntimeCustom Runtime = "custom"
)

// Device is one launchable destination for a target platform.
type Device struct {
	ID     string
	Name   string
	Booted bool
}

// DeviceResolver chooses a device from the candidates reported by a
// launcher. A nil resolver picks the first booted device, falling back
// to the first candidate.
type DeviceResolver func(ctx context.Context, candidates []Device) (Device, error)

func defaultResolver(_ context.Context, candidates []Device) (Device, error) {
	if len(candidates) == 0 {
		return Device{}, fmt.Errorf("no devices available")
	}
	for _, d := range candidates {
		if d.Booted {
			return d, nil
		}
	}
	return candidates[0], nil
}

// CommandRunner executes external tooling commands. Tests substitute a
// fake; production uses ExecRunner.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %v: %w (%s)", name, args, err, trimOutput(out))
	}
	return out, nil
}

func trimOutput(out []byte) string {
	const max = 200
	s := string(out)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

// Launcher opens URLs on one target platform.
type Launcher interface {
	// Target returns the platform this launcher serves.
	Target() Target
	// Devices lists launchable destinations.
	Devices(ctx context.Context) ([]Device, error)
	// Open opens the URL on the given device.
	Open(ctx context.Context, device Device, url string) error
}
