// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires together the Gantry components and runs them.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/gantry/internal/api"
	"github.com/wingedpig/gantry/internal/bundler"
	"github.com/wingedpig/gantry/internal/config"
	"github.com/wingedpig/gantry/internal/devserver"
	"github.com/wingedpig/gantry/internal/events"
	"github.com/wingedpig/gantry/internal/session"
	"github.com/wingedpig/gantry/internal/tunnel"
	"github.com/wingedpig/gantry/internal/urls"
	"github.com/wingedpig/gantry/internal/watcher"
)

// App is the main application container.
type App struct {
	mu sync.RWMutex

	configPath string
	version    string
	config     *config.Config

	eventBus      events.EventBus
	backend       *bundler.Backend
	tunnelManager *tunnel.Manager
	notifier      *session.Notifier
	controller    *devserver.Controller
	configWatcher *watcher.ConfigWatcher
	apiServer     *api.Server

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Version    string // Application version string
}

// New creates a new App instance.
func New(opts Options) (*App, error) {
	app := &App{
		configPath: opts.ConfigPath,
		version:    opts.Version,
		done:       make(chan struct{}),
	}

	// Load configuration
	loader := config.NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.config = cfg

	// Override host/port if specified
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}

	// Initialize event bus
	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    config.ParseDuration(cfg.Events.History.MaxAge, time.Hour),
	})

	return app, nil
}

// Initialize sets up all components.
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config

	log.Printf("Project root: %s", cfg.Project.Root)

	// Initialize bundler backend
	var bundlerCommand string
	var bundlerArgs []string
	if len(cfg.Bundler.Command) > 0 {
		bundlerCommand = cfg.Bundler.Command[0]
		bundlerArgs = append(cfg.Bundler.Command[1:], cfg.Bundler.Args...)
	}
	workDir := cfg.Bundler.WorkDir
	if workDir == "" {
		workDir = cfg.Project.Root
	}
	app.backend = bundler.NewBackend(bundler.Config{
		Name:          cfg.Bundler.Name,
		Command:       bundlerCommand,
		Args:          bundlerArgs,
		WorkDir:       workDir,
		Env:           cfg.Bundler.Env,
		ReadyTimeout:  config.ParseDuration(cfg.Bundler.ReadyTimeout, 60*time.Second),
		StopTimeout:   config.ParseDuration(cfg.Bundler.StopTimeout, 10*time.Second),
		LogBufferSize: cfg.Bundler.LogBufferSize,
	})

	// Initialize tunnel manager
	app.tunnelManager = tunnel.NewManager(tunnel.Config{
		Binary:       cfg.Tunnel.Binary,
		Region:       cfg.Tunnel.Region,
		StartTimeout: config.ParseDuration(cfg.Tunnel.StartTimeout, 60*time.Second),
		StopTimeout:  config.ParseDuration(cfg.Tunnel.StopTimeout, 5*time.Second),
	})

	// Initialize session registrar
	app.notifier = session.NewNotifier(session.Config{
		Endpoint: cfg.Session.Endpoint,
		Interval: config.ParseDuration(cfg.Session.Interval, 30*time.Second),
		Timeout:  config.ParseDuration(cfg.Session.Timeout, 10*time.Second),
	}, nil)

	// Initialize dev-server controller
	settings := devserver.Settings{
		ProjectRoot:      cfg.Project.Root,
		ProjectName:      cfg.Project.Name,
		BundlerName:      cfg.Bundler.Name,
		Offline:          cfg.Settings.Offline,
		TargetNative:     cfg.Settings.TargetNative,
		InterstitialPage: cfg.Settings.InterstitialPage,
		DevClientPackage: cfg.Settings.DevClientPackage,
	}
	factory := devserver.NewBundlerFactory(settings, app.backend)
	app.controller = devserver.NewController(settings, factory, app.tunnelManager, app.notifier, app.eventBus)

	// Initialize config watcher
	debounce := config.ParseDuration(cfg.Watch.Debounce, 100*time.Millisecond)
	cw, err := watcher.NewConfigWatcher(app.eventBus, cfg.Project.Root, debounce)
	if err != nil {
		log.Printf("Warning: failed to create config watcher: %v", err)
	} else {
		app.configWatcher = cw
		watchFiles := cfg.Watch.Files
		app.controller.SetConfigWatch(func() error {
			return cw.Watch(watchFiles)
		})
	}

	// Subscribe to config change events for auto-restart
	app.eventBus.Subscribe(events.EventConfigChanged, func(_ context.Context, event events.Event) error {
		file, _ := event.Payload["file"].(string)
		log.Printf("Config file %s changed, restarting dev server...", file)
		// Use background context: the watcher's event context is not tied
		// to the lifetime of the new instance.
		if _, err := app.controller.Restart(context.Background()); err != nil {
			if devserver.HasCode(err, devserver.CodeNotStarted) {
				return nil
			}
			return err
		}
		return nil
	})

	// Initialize API server
	app.apiServer = api.NewServer(
		api.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			TLSCert:      cfg.Server.TLSCert,
			TLSKey:       cfg.Server.TLSKey,
			TLSTailscale: cfg.Server.TLSTailscale,
		},
		api.Dependencies{
			Controller: app.controller,
			Backend:    app.backend,
			EventBus:   app.eventBus,
			Version:    app.version,
		},
	)

	return nil
}

// defaultStartOptions builds start options from the loaded config.
func (app *App) defaultStartOptions() devserver.StartOptions {
	cfg := app.config
	return devserver.StartOptions{
		Mode: "development",
		Port: cfg.Bundler.Port,
		Location: urls.Options{
			Scheme:   cfg.Location.Scheme,
			HostType: urls.HostType(cfg.Location.HostType),
			LanHost:  cfg.Location.LanHost,
			Protocol: cfg.Location.Protocol,
		},
	}
}

// Start starts the dev server with the configured defaults. A failed
// start is not fatal; the server can still be started over the API.
func (app *App) Start(ctx context.Context) error {
	if len(app.config.Bundler.Command) == 0 {
		log.Printf("No bundler command configured, dev server not started")
		return nil
	}
	if _, err := app.controller.Start(ctx, app.defaultStartOptions()); err != nil {
		log.Printf("Warning: failed to start dev server: %v", err)
	}
	return nil
}

// Run starts the app and blocks until shutdown.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := app.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("control API server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			log.Printf("Received signal %v, shutting down...", sig)
		case <-gctx.Done():
		case <-app.done:
			log.Printf("Shutdown requested...")
		}

		return app.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown gracefully shuts down all components.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("Shutting down...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop API server first to stop accepting new requests
	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down API server: %v", err)
		}
	}

	// Stop the dev server. This deregisters the session, stops the
	// tunnel and shuts down the bundler backend.
	if app.controller != nil {
		if err := app.controller.Stop(shutdownCtx); err != nil {
			log.Printf("Error stopping dev server: %v", err)
		}
	}

	// Stop config watcher
	if app.configWatcher != nil {
		if err := app.configWatcher.Close(); err != nil {
			log.Printf("Error closing config watcher: %v", err)
		}
	}

	// Close event bus
	if app.eventBus != nil {
		app.eventBus.Close()
	}

	log.Println("Shutdown complete")
	return nil
}

// Stop signals the app to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}
