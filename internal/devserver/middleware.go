// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package devserver

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
)

// ManifestType selects which manifest format the server speaks.
type ManifestType string

const (
	ManifestExpoUpdates ManifestType = "expo-updates"
	ManifestClassic     ManifestType = "classic"
)

// ManifestOptions parameterizes a manifest handler.
type ManifestOptions struct {
	ProjectName string
	Scheme      string
	ServerURL   func() string // Current base URL of the instance
}

// manifestRegistry is the closed set of manifest handlers. Selection
// happens by enum key at start time; unknown keys are a configuration
// error.
var manifestRegistry = map[ManifestType]func(ManifestOptions) http.Handler{
	ManifestExpoUpdates: newExpoUpdatesManifest,
	ManifestClassic:     newClassicManifest,
}

// NewManifestHandler returns the middleware for the given manifest type.
func NewManifestHandler(typ ManifestType, opts ManifestOptions) (http.Handler, error) {
	if typ == "" {
		typ = ManifestExpoUpdates
	}
	factory, ok := manifestRegistry[typ]
	if !ok {
		return nil, NewError(CodeConfiguration, "unknown manifest type %q", typ)
	}

	mux := http.NewServeMux()
	mux.Handle("/", factory(opts))
	mux.HandleFunc("/_gantry/loading", serveLoadingPage)
	mux.HandleFunc("/_gantry/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "running", "name": opts.ProjectName})
	})
	return mux, nil
}

func newExpoUpdatesManifest(opts ManifestOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		platform := r.Header.Get("expo-platform")
		if platform == "" {
			platform = r.URL.Query().Get("platform")
		}
		base := opts.ServerURL()
		manifest := map[string]interface{}{
			"id":             fmt.Sprintf("%s-development", opts.ProjectName),
			"runtimeVersion": "exposed",
			"launchAsset": map[string]string{
				"key":         "bundle",
				"contentType": "application/javascript",
				"url":         fmt.Sprintf("%s/index.bundle?platform=%s&dev=true", base, platform),
			},
			"extra": map[string]interface{}{
				"expoClient": map[string]string{
					"name":   opts.ProjectName,
					"scheme": opts.Scheme,
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("expo-protocol-version", "1")
		json.NewEncoder(w).Encode(manifest)
	})
}

func newClassicManifest(opts ManifestOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		platform := r.URL.Query().Get("platform")
		base := opts.ServerURL()
		manifest := map[string]interface{}{
			"name":      opts.ProjectName,
			"slug":      opts.ProjectName,
			"scheme":    opts.Scheme,
			"bundleUrl": fmt.Sprintf("%s/index.bundle?platform=%s&dev=true", base, platform),
			"developer": map[string]string{"tool": "gantry"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(manifest)
	})
}

// serveLoadingPage renders the interstitial runtime-selection page shown
// before a device picks between the sandbox client and a dev build.
func serveLoadingPage(w http.ResponseWriter, r *http.Request) {
	// The page is reachable over LAN and tunnel URLs; never reflect the
	// query parameter unescaped.
	platform := html.EscapeString(r.URL.Query().Get("platform"))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Opening project...</title></head>
<body>
<h1>Opening project on %s</h1>
<p>Choose how to open this project: in a development build or in the sandbox client.</p>
</body>
</html>
`, platform)
}
