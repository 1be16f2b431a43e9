// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api serves the control API for the dev-server controller.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/tailscale/tscert"

	"github.com/wingedpig/gantry/internal/api/handlers"
	"github.com/wingedpig/gantry/internal/api/middleware"
	"github.com/wingedpig/gantry/internal/bundler"
	"github.com/wingedpig/gantry/internal/devserver"
	"github.com/wingedpig/gantry/internal/events"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host         string
	Port         int
	TLSCert      string // Path to TLS certificate file
	TLSKey       string // Path to TLS private key file
	TLSTailscale bool   // Use the Tailscale daemon for certificates
}

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Controller *devserver.Controller
	Backend    *bundler.Backend
	EventBus   events.EventBus
	Version    string
}

// NewRouter creates the control API router.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)

	// API v1 routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Dev-server lifecycle handlers
	serverHandler := handlers.NewServerHandler(deps.Controller)
	api.HandleFunc("/server", serverHandler.Status).Methods("GET")
	api.HandleFunc("/server/start", serverHandler.Start).Methods("POST")
	api.HandleFunc("/server/stop", serverHandler.Stop).Methods("POST")
	api.HandleFunc("/server/restart", serverHandler.Restart).Methods("POST")
	api.HandleFunc("/server/message", serverHandler.Broadcast).Methods("POST")
	api.HandleFunc("/server/urls", serverHandler.URLs).Methods("GET")
	api.HandleFunc("/server/open", serverHandler.Open).Methods("POST")

	// Bundler process handlers
	if deps.Backend != nil {
		bundlerHandler := handlers.NewBundlerHandler(deps.Backend)
		api.HandleFunc("/bundler", bundlerHandler.Status).Methods("GET")
		api.HandleFunc("/bundler/logs", bundlerHandler.Logs).Methods("GET")
		api.HandleFunc("/bundler/logs/stream", bundlerHandler.StreamLogs).Methods("GET")
	}

	// Event handlers
	eventHandler := handlers.NewEventHandler(deps.EventBus)
	api.HandleFunc("/events", eventHandler.History).Methods("GET")
	api.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")

	// Version
	version := deps.Version
	api.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		handlers.WriteJSON(w, http.StatusOK, map[string]string{"version": version})
	}).Methods("GET")

	return r
}

// Server represents the control API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
}

// NewServer creates a new control API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{
		router: NewRouter(deps),
		cfg:    cfg,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe starts the server. TLS can come from the Tailscale
// daemon or from a configured cert/key pair.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	if s.cfg.TLSTailscale {
		s.server.TLSConfig = &tls.Config{
			GetCertificate: tscert.GetCertificate,
		}
		log.Printf("Control API listening on https://%s (Tailscale TLS)", addr)
		return s.server.ListenAndServeTLS("", "")
	}

	certPath, keyPath, err := resolveTLSPair(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	if certPath != "" {
		log.Printf("Control API listening on https://%s (TLS enabled)", addr)
		return s.server.ListenAndServeTLS(certPath, keyPath)
	}

	log.Printf("Control API listening on http://%s", addr)
	return s.server.ListenAndServe()
}

// resolveTLSPair expands and validates the configured cert/key pair.
// Both empty means plain HTTP; only one set is a configuration error.
func resolveTLSPair(certPath, keyPath string) (string, string, error) {
	if certPath == "" && keyPath == "" {
		return "", "", nil
	}
	if certPath == "" || keyPath == "" {
		return "", "", fmt.Errorf("both tls_cert and tls_key must be specified (got cert=%q, key=%q)", certPath, keyPath)
	}

	certPath = expandHome(certPath)
	keyPath = expandHome(keyPath)

	if _, err := os.Stat(certPath); err != nil {
		return "", "", fmt.Errorf("tls_cert file not found: %s", certPath)
	}
	if _, err := os.Stat(keyPath); err != nil {
		return "", "", fmt.Errorf("tls_key file not found: %s", keyPath)
	}

	return certPath, keyPath, nil
}

func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Println("Shutting down control API...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
