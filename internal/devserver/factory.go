// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wingedpig/gantry/internal/bundler"
	"github.com/wingedpig/gantry/internal/urls"
)

// BundlerFactory produces real server instances. The public port is
// served in-process: manifest and loading endpoints plus the message
// socket are handled here, and everything else is reverse-proxied to the
// bundler child process on an internal port.
type BundlerFactory struct {
	settings Settings
	backend  *bundler.Backend
}

// NewBundlerFactory creates an instance factory backed by the given
// bundler process supervisor.
func NewBundlerFactory(settings Settings, backend *bundler.Backend) *BundlerFactory {
	return &BundlerFactory{settings: settings, backend: backend}
}

// Backend exposes the underlying bundler supervisor for log access.
func (f *BundlerFactory) Backend() *bundler.Backend {
	return f.backend
}

// Produce starts the bundler on an internal port and brings up the
// public server in front of it.
func (f *BundlerFactory) Produce(ctx context.Context, opts StartOptions) (*Instance, error) {
	publicPort := opts.Port
	if publicPort == 0 {
		p, err := bundler.FreePort()
		if err != nil {
			return nil, err
		}
		publicPort = p
	}

	internalPort, err := bundler.FreePort()
	if err != nil {
		return nil, err
	}

	if err := f.backend.Start(ctx, internalPort); err != nil {
		return nil, err
	}

	protocol := opts.Protocol
	if protocol == "" {
		protocol = "http"
	}
	host := "localhost"
	if opts.Location.HostType == urls.HostLAN && opts.Location.LanHost != "" {
		host = opts.Location.LanHost
	}
	location := Location{
		URL:      fmt.Sprintf("%s://%s:%d", protocol, host, publicPort),
		Port:     publicPort,
		Protocol: protocol,
		Host:     host,
	}

	hub := NewMessageHub()
	middleware, err := NewManifestHandler(opts.ManifestType, ManifestOptions{
		ProjectName: f.settings.ProjectName,
		Scheme:      opts.Location.Scheme,
		ServerURL:   func() string { return location.URL },
	})
	if err != nil {
		f.backend.Stop(context.Background())
		return nil, err
	}

	upstream := &url.URL{Scheme: "http", Host: net.JoinHostPort("127.0.0.1", strconv.Itoa(internalPort))}
	handler := newFrontHandler(middleware, hub, upstream)

	server := &http.Server{Handler: handler}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", publicPort))
	if err != nil {
		f.backend.Stop(context.Background())
		return nil, fmt.Errorf("listen on port %d: %w", publicPort, err)
	}

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("DevServer: serve error on port %d: %v", publicPort, err)
		}
	}()

	return &Instance{
		Server:     &frontServerHandle{server: server, backend: f.backend, hub: hub},
		Location:   location,
		Middleware: middleware,
		Messages:   hub,
	}, nil
}

// frontServerHandle closes the public server, the message hub and the
// bundler child.
type frontServerHandle struct {
	server  *http.Server
	backend *bundler.Backend
	hub     *MessageHub
}

func (h *frontServerHandle) Close(ctx context.Context) error {
	h.hub.Close()
	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown public server: %w", err)
	}
	return h.backend.Stop(ctx)
}

// frontHandler routes the public port: manifest at the root, gantry
// endpoints and the message socket in-process, everything else proxied
// to the bundler.
type frontHandler struct {
	middleware http.Handler
	hub        *MessageHub
	upstream   *url.URL
	proxy      *httputil.ReverseProxy
}

func newFrontHandler(middleware http.Handler, hub *MessageHub, upstream *url.URL) *frontHandler {
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.FlushInterval = -1 // Immediate flushing for streaming

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = upstream.Host
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		log.Printf("DevServer: proxy error [%s -> %s]: %v", req.URL.Path, upstream.Host, err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	return &frontHandler{middleware: middleware, hub: hub, upstream: upstream, proxy: proxy}
}

func (h *frontHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/message":
		h.hub.ServeHTTP(w, r)
	case r.URL.Path == "/" || strings.HasPrefix(r.URL.Path, "/_gantry/"):
		h.middleware.ServeHTTP(w, r)
	case isWebSocket(r):
		h.tunnelWebSocket(w, r)
	default:
		h.proxy.ServeHTTP(w, r)
	}
}

func isWebSocket(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// tunnelWebSocket forwards a websocket upgrade to the bundler by
// hijacking the client connection and copying bytes both ways.
func (h *frontHandler) tunnelWebSocket(w http.ResponseWriter, r *http.Request) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	upstreamConn, err := dialer.Dial("tcp", h.upstream.Host)
	if err != nil {
		log.Printf("DevServer: websocket proxy: failed to connect to %s: %v", h.upstream.Host, err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		upstreamConn.Close()
		http.Error(w, "WebSocket hijack not supported", http.StatusInternalServerError)
		return
	}
	clientConn, clientBuf, err := hijacker.Hijack()
	if err != nil {
		upstreamConn.Close()
		log.Printf("DevServer: websocket proxy: hijack failed: %v", err)
		return
	}

	// Replay the upgrade request to the bundler
	if err := r.Write(upstreamConn); err != nil {
		clientConn.Close()
		upstreamConn.Close()
		log.Printf("DevServer: websocket proxy: failed to write request to upstream: %v", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		io.Copy(clientConn, upstreamConn)
		clientConn.Close()
	}()

	go func() {
		defer wg.Done()
		if clientBuf.Reader.Buffered() > 0 {
			buffered := make([]byte, clientBuf.Reader.Buffered())
			clientBuf.Read(buffered)
			upstreamConn.Write(buffered)
		}
		io.Copy(upstreamConn, clientConn)
		upstreamConn.Close()
	}()

	wg.Wait()
}
