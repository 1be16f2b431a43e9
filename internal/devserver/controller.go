// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package devserver implements the dev-server lifecycle controller.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wingedpig/gantry/internal/events"
	"github.com/wingedpig/gantry/internal/platform"
	"github.com/wingedpig/gantry/internal/session"
	"github.com/wingedpig/gantry/internal/urls"
)

// serverCloseTimeout bounds the wait for the underlying server to close
// during stop.
const serverCloseTimeout = 1000 * time.Millisecond

// State is the controller lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Target is a launchable destination for opening the project.
type Target string

const (
	TargetSimulator Target = "simulator"
	TargetEmulator  Target = "emulator"
	TargetDesktop   Target = "desktop"
)

// platformTarget maps an open target to its platform launcher key.
func (t Target) platformTarget() (platform.Target, bool) {
	switch t {
	case TargetSimulator:
		return platform.TargetIOS, true
	case TargetEmulator:
		return platform.TargetAndroid, true
	case TargetDesktop:
		return platform.TargetWeb, true
	}
	return "", false
}

// platformName returns the runtime platform name used in URLs.
func (t Target) platformName() string {
	switch t {
	case TargetSimulator:
		return "ios"
	case TargetEmulator:
		return "android"
	}
	return "web"
}

// StartOptions configures one start call. Immutable once passed in.
type StartOptions struct {
	Protocol     string       `json:"protocol,omitempty"`
	Mode         string       `json:"mode,omitempty"` // "development" or "production"
	DevClient    bool         `json:"dev_client,omitempty"`
	ManifestType ManifestType `json:"manifest_type,omitempty"`
	MaxWorkers   int          `json:"max_workers,omitempty"`
	Port         int          `json:"port,omitempty"`
	Headless     bool         `json:"headless,omitempty"`
	Minify       bool         `json:"minify,omitempty"`
	ImageEditing bool         `json:"image_editing,omitempty"` // Enables the runtime image-editing tooling
	Location     urls.Options `json:"location"`
}

// Settings is the configuration context threaded into the controller.
// Flags are read here once, never from ambient global state.
type Settings struct {
	ProjectRoot      string
	ProjectName      string
	BundlerName      string
	Offline          bool // Suppresses tunnel start
	TargetNative     bool // False when developing for web only
	InterstitialPage bool // Gates the runtime-selection loading page
	DevClientPackage string
}

// InstanceFactory produces the real server instance. The bundler backend
// behind it is a black box to the controller.
type InstanceFactory interface {
	Produce(ctx context.Context, opts StartOptions) (*Instance, error)
}

// TunnelProvider owns the public tunnel for the dev server.
type TunnelProvider interface {
	Start(ctx context.Context, projectRoot string, port int) error
	Stop(ctx context.Context) error
	ActiveURL() string
}

// SessionRegistrar advertises the dev session to the remote registry.
type SessionRegistrar interface {
	Start(ctx context.Context, desc session.Description)
	Stop() error
}

// PlatformOpener opens URLs on target platforms.
type PlatformOpener interface {
	Open(ctx context.Context, target platform.Target, url string, resolver platform.DeviceResolver) (platform.Device, error)
}

// OpenResult reports what an open operation launched.
type OpenResult struct {
	URL     string           `json:"url"`
	Runtime platform.Runtime `json:"runtime"`
	Device  platform.Device  `json:"device,omitempty"`
}

// Controller owns the dev server instance lifecycle. It composes the
// tunnel, session notifier, URL creator and platform registry, and is
// the only component that mutates the stored instance.
type Controller struct {
	settings Settings
	factory  InstanceFactory
	tunnel   TunnelProvider
	notifier SessionRegistrar
	bus      events.EventBus

	// newRegistry builds the platform registry on first use, which never
	// happens before the server has a resolved port.
	newRegistry func() PlatformOpener

	// watchConfig begins config-file watching, fire and forget.
	watchConfig func() error

	opMu sync.Mutex // serializes start/stop/restart

	mu             sync.RWMutex
	state          State
	instance       *Instance
	lastOpts       StartOptions
	started        bool
	notifierActive bool
	tunnelActive   bool
	urlCreator     *urls.Creator
	registry       PlatformOpener
}

// NewController creates a controller. factory, tunnel and notifier must
// be non-nil; bus may be nil to disable event publication.
func NewController(settings Settings, factory InstanceFactory, tun TunnelProvider, notifier SessionRegistrar, bus events.EventBus) *Controller {
	c := &Controller{
		settings: settings,
		factory:  factory,
		tunnel:   tun,
		notifier: notifier,
		bus:      bus,
		state:    StateStopped,
	}
	c.newRegistry = func() PlatformOpener { return platform.NewRegistry(nil) }
	return c
}

// SetRegistryFactory overrides how the platform registry is built.
func (c *Controller) SetRegistryFactory(fn func() PlatformOpener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.newRegistry = fn
}

// SetConfigWatch installs the fire-and-forget config watch hook invoked
// after each successful start.
func (c *Controller) SetConfigWatch(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchConfig = fn
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Instance returns the current instance, or nil when stopped.
func (c *Controller) Instance() *Instance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.instance
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) publish(eventType string, payload map[string]interface{}) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(context.Background(), events.Event{Type: eventType, Payload: payload}); err != nil {
		log.Printf("DevServer: publish %s: %v", eventType, err)
	}
}

// Start brings up a dev server instance. Any previously running instance
// is stopped first, so repeated starts self-heal instead of leaking
// servers. Returns the adopted instance.
func (c *Controller) Start(ctx context.Context, opts StartOptions) (*Instance, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Instance() != nil {
		if err := c.stopLocked(ctx); err != nil {
			return nil, fmt.Errorf("stop previous instance: %w", err)
		}
	}

	c.setState(StateStarting)

	var inst *Instance
	var err error
	if opts.Headless {
		if opts.Port == 0 {
			c.setState(StateStopped)
			return nil, NewError(CodeConfiguration, "headless start requires an explicit port")
		}
		inst = newHeadlessInstance(opts.Port, opts.Protocol)
	} else {
		inst, err = c.factory.Produce(ctx, opts)
		if err != nil {
			c.setState(StateStopped)
			return nil, err
		}
	}

	c.mu.Lock()
	c.instance = inst
	c.lastOpts = opts
	c.started = true
	c.state = StateRunning
	c.mu.Unlock()

	c.publish(events.EventServerStarted, map[string]interface{}{
		"url":      inst.Location.URL,
		"port":     inst.Location.Port,
		"headless": inst.Headless,
	})

	c.postStart(ctx, opts, inst)
	return inst, nil
}

// postStart runs the best-effort follow-up work after an instance is
// adopted. Tunnel failures are logged and discarded, never surfaced as
// start failures.
func (c *Controller) postStart(ctx context.Context, opts StartOptions, inst *Instance) {
	if opts.Location.HostType == urls.HostTunnel && !c.settings.Offline && c.settings.TargetNative {
		if err := c.tunnel.Start(ctx, c.settings.ProjectRoot, inst.Location.Port); err != nil {
			log.Printf("DevServer: tunnel start failed (continuing without tunnel): %v",
				WrapError(CodeTunnel, err, "start tunnel on port %d", inst.Location.Port))
		} else {
			c.mu.Lock()
			c.tunnelActive = true
			c.mu.Unlock()
			c.publish(events.EventTunnelStarted, map[string]interface{}{
				"url":  c.tunnel.ActiveURL(),
				"port": inst.Location.Port,
			})
		}
	}

	// Restart the session notifier so at most one keep-alive loop runs
	// per project.
	if err := c.notifier.Stop(); err != nil {
		log.Printf("DevServer: stopping stale session notifier: %v", err)
	}
	runtime := "web"
	if c.settings.TargetNative {
		runtime = "native"
	}
	c.notifier.Start(ctx, session.Description{
		SessionName: fmt.Sprintf("%s on %s", c.settings.ProjectName, c.bestURL(inst)),
		URL:         c.bestURL(inst),
		Source:      "desktop",
		Platform:    runtime,
	})
	c.mu.Lock()
	c.notifierActive = true
	c.mu.Unlock()
	c.publish(events.EventSessionStarted, map[string]interface{}{"url": c.bestURL(inst), "runtime": runtime})

	c.mu.RLock()
	watch := c.watchConfig
	c.mu.RUnlock()
	if watch != nil {
		go func() {
			if err := watch(); err != nil {
				log.Printf("DevServer: config watch failed: %v", err)
			}
		}()
	}
}

// bestURL prefers the tunnel URL when one is active.
func (c *Controller) bestURL(inst *Instance) string {
	if u := c.tunnel.ActiveURL(); u != "" {
		return u
	}
	return inst.Location.URL
}

// Stop tears everything down: session notifier first, then the tunnel,
// then the server itself. The notifier and server-close steps surface
// their errors; tunnel errors are logged only. Safe to call when nothing
// is running.
func (c *Controller) Stop(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.stopLocked(ctx)
}

func (c *Controller) stopLocked(ctx context.Context) error {
	c.mu.Lock()
	inst := c.instance
	notifierWasActive := c.notifierActive
	tunnelWasActive := c.tunnelActive
	c.notifierActive = false
	c.tunnelActive = false
	if inst != nil {
		c.state = StateStopping
	}
	c.mu.Unlock()

	var stopErrs []error

	// (a) Session notifier. Errors propagate but never block steps b-c.
	// The stopped event fires only when a notifier was actually running,
	// so a no-op stop stays silent on the bus.
	if err := c.notifier.Stop(); err != nil {
		stopErrs = append(stopErrs, err)
	} else if notifierWasActive {
		c.publish(events.EventSessionStopped, nil)
	}

	// (b) Tunnel. Errors are isolated: logged, never propagated.
	if err := c.tunnel.Stop(ctx); err != nil {
		log.Printf("DevServer: tunnel stop failed: %v", WrapError(CodeTunnel, err, "stop tunnel"))
	} else if tunnelWasActive {
		c.publish(events.EventTunnelStopped, nil)
	}

	// (c) Server close, bounded. The stored instance is cleared even on
	// timeout so the controller cannot wedge permanently.
	if inst != nil {
		done := make(chan error, 1)
		go func() { done <- inst.Server.Close(ctx) }()

		select {
		case err := <-done:
			if err != nil {
				stopErrs = append(stopErrs, fmt.Errorf("close dev server: %w", err))
			}
		case <-time.After(serverCloseTimeout):
			stopErrs = append(stopErrs, NewError(CodeServerCloseTimeout,
				"%s dev server did not close within %s", c.settings.BundlerName, serverCloseTimeout))
		}

		c.mu.Lock()
		c.instance = nil
		c.mu.Unlock()

		c.publish(events.EventServerStopped, map[string]interface{}{
			"url":  inst.Location.URL,
			"port": inst.Location.Port,
		})
	}

	c.setState(StateStopped)
	return errors.Join(stopErrs...)
}

// Restart stops the current instance and starts a new one with the last
// start options. Used by the config-change watcher.
func (c *Controller) Restart(ctx context.Context) (*Instance, error) {
	c.mu.RLock()
	started := c.started
	opts := c.lastOpts
	c.mu.RUnlock()

	if !started {
		return nil, NewError(CodeNotStarted, "cannot restart: dev server was never started")
	}
	return c.Start(ctx, opts)
}

// BroadcastMessage sends a command to all connected runtimes. A no-op
// when no instance is live; headless instances reject all broadcasts.
func (c *Controller) BroadcastMessage(method MessageMethod, params map[string]interface{}) error {
	c.mu.RLock()
	inst := c.instance
	c.mu.RUnlock()

	if inst == nil {
		return nil
	}
	if err := inst.Messages.Broadcast(method, params); err != nil {
		return err
	}
	c.publish(events.EventMessageBroadcast, map[string]interface{}{"method": string(method)})
	return nil
}

// DevServerURL returns the instance URL for the given host type, or
// empty when no instance is live. A localhost host type is synthesized
// from the instance's protocol and port regardless of its recorded URL.
func (c *Controller) DevServerURL(hostType urls.HostType) string {
	c.mu.RLock()
	inst := c.instance
	c.mu.RUnlock()

	if inst == nil {
		return ""
	}
	if hostType == urls.HostLocalhost {
		protocol := inst.Location.Protocol
		if protocol == "" {
			protocol = "http"
		}
		return fmt.Sprintf("%s://localhost:%d", protocol, inst.Location.Port)
	}
	return inst.Location.URL
}

// TunnelURL returns the active public tunnel URL, or empty.
func (c *Controller) TunnelURL() string {
	return c.tunnel.ActiveURL()
}

// creator returns the URL creator, constructing it on first use. It is
// built exactly once per controller lifetime and reused across restarts.
func (c *Controller) creator() (*urls.Creator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.urlCreator != nil {
		return c.urlCreator, nil
	}
	if c.instance == nil {
		return nil, NewError(CodeNotStarted, "dev server is not running")
	}

	c.urlCreator = urls.NewCreator(c.lastOpts.Location, func() int {
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.instance == nil {
			return 0
		}
		return c.instance.Location.Port
	}, c.tunnel.ActiveURL)

	return c.urlCreator, nil
}

// platformRegistry returns the launcher registry, constructing it on
// first use. Construction requires a resolved port.
func (c *Controller) platformRegistry() (PlatformOpener, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.registry != nil {
		return c.registry, nil
	}
	if c.instance == nil || c.instance.Location.Port == 0 {
		return nil, NewError(CodeNotStarted, "dev server has no resolved port yet")
	}
	c.registry = c.newRegistry()
	return c.registry, nil
}

// runtimeClassification decides which launch path a platform open uses.
func (c *Controller) runtimeClassification() platform.Runtime {
	c.mu.RLock()
	devClient := c.lastOpts.DevClient
	c.mu.RUnlock()

	if !c.settings.TargetNative {
		return platform.RuntimeWeb
	}
	if devClient {
		return platform.RuntimeCustom
	}
	return platform.RuntimeExpo
}

// OpenPlatform opens the project on the given target. Desktop opens the
// local URL in the system browser; simulator and emulator targets open
// the URL matching the effective runtime classification.
func (c *Controller) OpenPlatform(ctx context.Context, target Target, resolver platform.DeviceResolver) (OpenResult, error) {
	pt, ok := target.platformTarget()
	if !ok {
		return OpenResult{}, NewError(CodeConfiguration, "unknown open target %q", target)
	}

	if target == TargetDesktop {
		openURL := c.DevServerURL(urls.HostLocalhost)
		if openURL == "" {
			return OpenResult{}, NewError(CodeNotStarted, "dev server is not running")
		}
		registry, err := c.platformRegistry()
		if err != nil {
			return OpenResult{}, err
		}
		device, err := registry.Open(ctx, pt, openURL, resolver)
		if err != nil {
			return OpenResult{}, err
		}
		result := OpenResult{URL: openURL, Runtime: platform.RuntimeWeb, Device: device}
		c.publish(events.EventPlatformOpened, map[string]interface{}{"target": string(target), "url": openURL})
		return result, nil
	}

	runtime := c.runtimeClassification()
	openURL, err := c.urlForRuntime(runtime, target)
	if err != nil {
		return OpenResult{}, err
	}

	registry, err := c.platformRegistry()
	if err != nil {
		return OpenResult{}, err
	}
	device, err := registry.Open(ctx, pt, openURL, resolver)
	if err != nil {
		return OpenResult{}, err
	}

	result := OpenResult{URL: openURL, Runtime: runtime, Device: device}
	c.publish(events.EventPlatformOpened, map[string]interface{}{
		"target":  string(target),
		"runtime": string(runtime),
		"url":     openURL,
	})
	return result, nil
}

// OpenCustomRuntime opens the project in a development client build.
// Only valid when targeting native with the dev-client flag; any other
// classification fails before a platform adapter is constructed.
func (c *Controller) OpenCustomRuntime(ctx context.Context, target Target, launchProps map[string]string, resolver platform.DeviceResolver) (OpenResult, error) {
	pt, ok := target.platformTarget()
	if !ok || target == TargetDesktop {
		return OpenResult{}, NewError(CodeConfiguration, "unknown open target %q", target)
	}

	if runtime := c.runtimeClassification(); runtime != platform.RuntimeCustom {
		return OpenResult{}, NewError(CodeUnsupportedRuntime,
			"custom runtime open requires a native dev-client target (classified %q)", runtime)
	}

	creator, err := c.creator()
	if err != nil {
		return OpenResult{}, err
	}
	openURL := creator.ConstructDevClientURL(urls.Request{})
	if openURL == "" {
		return OpenResult{}, NewError(CodeConfiguration, "no dev-client scheme configured for project %s", c.settings.ProjectName)
	}
	openURL = appendQuery(openURL, launchProps)

	registry, err := c.platformRegistry()
	if err != nil {
		return OpenResult{}, err
	}
	device, err := registry.Open(ctx, pt, openURL, resolver)
	if err != nil {
		return OpenResult{}, err
	}

	result := OpenResult{URL: openURL, Runtime: platform.RuntimeCustom, Device: device}
	c.publish(events.EventPlatformOpened, map[string]interface{}{
		"target":  string(target),
		"runtime": string(platform.RuntimeCustom),
		"url":     openURL,
	})
	return result, nil
}

// ExpoGoURL returns the URL used to open the project in the sandbox
// client on the given target. When the interstitial page is enabled and
// the dev-client package is present in the project, the loading page is
// returned instead of a direct deep link. Empty when the server is not
// running.
func (c *Controller) ExpoGoURL(target Target) string {
	creator, err := c.creator()
	if err != nil {
		return ""
	}

	if c.settings.InterstitialPage && c.devClientInstalled() {
		// Emulators reach the host over the LAN address; simulators
		// share the host loopback.
		hostType := urls.HostLAN
		if target == TargetSimulator {
			hostType = urls.HostLocalhost
		}
		return creator.ConstructLoadingURL(urls.Request{HostType: hostType}, target.platformName())
	}

	return creator.ConstructURL(urls.Request{Scheme: "exp"})
}

// urlForRuntime picks the open URL for a runtime classification.
func (c *Controller) urlForRuntime(runtime platform.Runtime, target Target) (string, error) {
	creator, err := c.creator()
	if err != nil {
		return "", err
	}

	switch runtime {
	case platform.RuntimeWeb:
		return creator.ConstructURL(urls.Request{}), nil
	case platform.RuntimeCustom:
		if u := creator.ConstructDevClientURL(urls.Request{}); u != "" {
			return u, nil
		}
		return "", NewError(CodeConfiguration, "no dev-client scheme configured for project %s", c.settings.ProjectName)
	default:
		return c.ExpoGoURL(target), nil
	}
}

// devClientInstalled reports whether the dev-client companion package is
// resolvable from the project.
func (c *Controller) devClientInstalled() bool {
	if c.settings.DevClientPackage == "" {
		return false
	}
	pkg := filepath.Join(c.settings.ProjectRoot, "node_modules", c.settings.DevClientPackage, "package.json")
	_, err := os.Stat(pkg)
	return err == nil
}

// appendQuery adds launch props as query parameters to a deep link.
func appendQuery(rawURL string, props map[string]string) string {
	if len(props) == 0 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for k, v := range props {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
