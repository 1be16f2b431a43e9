// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package platform

import (
	"context"
	"fmt"
	"sync"
)

// Registry caches launchers per target. Launchers are created on first
// use and kept for the life of the registry; entries are never replaced
// or evicted, so repeated opens reuse the same launcher state.
type Registry struct {
	runner CommandRunner

	mu        sync.Mutex
	launchers map[Target]Launcher
}

// NewRegistry creates a launcher registry backed by the given runner.
// A nil runner uses ExecRunner.
func NewRegistry(runner CommandRunner) *Registry {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Registry{
		runner:    runner,
		launchers: make(map[Target]Launcher),
	}
}

// LauncherFor returns the cached launcher for the target, creating it on
// first use.
func (r *Registry) LauncherFor(target Target) (Launcher, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("unknown platform target %q", target)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if launcher, ok := r.launchers[target]; ok {
		return launcher, nil
	}

	var launcher Launcher
	switch target {
	case TargetIOS:
		launcher = NewSimulatorLauncher(r.runner)
	case TargetAndroid:
		launcher = NewEmulatorLauncher(r.runner)
	case TargetWeb:
		launcher = NewBrowserLauncher(r.runner)
	}

	r.launchers[target] = launcher
	return launcher, nil
}

// Open resolves a device with the resolver and opens the URL on it. A nil
// resolver picks the first booted device, falling back to the first
// candidate.
func (r *Registry) Open(ctx context.Context, target Target, url string, resolver DeviceResolver) (Device, error) {
	launcher, err := r.LauncherFor(target)
	if err != nil {
		return Device{}, err
	}

	devices, err := launcher.Devices(ctx)
	if err != nil {
		return Device{}, err
	}

	if resolver == nil {
		resolver = defaultResolver
	}
	device, err := resolver(ctx, devices)
	if err != nil {
		return Device{}, fmt.Errorf("resolve %s device: %w", target, err)
	}

	if err := launcher.Open(ctx, device, url); err != nil {
		return Device{}, err
	}
	return device, nil
}
