// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wingedpig/gantry/internal/devserver"
	"github.com/wingedpig/gantry/internal/urls"
)

// ServerHandler handles dev-server lifecycle API requests.
type ServerHandler struct {
	controller *devserver.Controller
}

// NewServerHandler creates a new server handler.
func NewServerHandler(controller *devserver.Controller) *ServerHandler {
	return &ServerHandler{controller: controller}
}

// statusResponse is the GET /server payload.
type statusResponse struct {
	State     devserver.State `json:"state"`
	URL       string          `json:"url,omitempty"`
	LocalURL  string          `json:"local_url,omitempty"`
	TunnelURL string          `json:"tunnel_url,omitempty"`
	Port      int             `json:"port,omitempty"`
	Headless  bool            `json:"headless,omitempty"`
}

// Status returns the current controller state and URLs.
func (h *ServerHandler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		State:     h.controller.State(),
		TunnelURL: h.controller.TunnelURL(),
	}
	if inst := h.controller.Instance(); inst != nil {
		resp.URL = inst.Location.URL
		resp.LocalURL = h.controller.DevServerURL(urls.HostLocalhost)
		resp.Port = inst.Location.Port
		resp.Headless = inst.Headless
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Start starts the dev server with the posted options.
func (h *ServerHandler) Start(w http.ResponseWriter, r *http.Request) {
	var opts devserver.StartOptions
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid start options: "+err.Error())
			return
		}
	}

	inst, err := h.controller.Start(r.Context(), opts)
	if err != nil {
		WriteDevServerError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, statusResponse{
		State:     h.controller.State(),
		URL:       inst.Location.URL,
		LocalURL:  h.controller.DevServerURL(urls.HostLocalhost),
		TunnelURL: h.controller.TunnelURL(),
		Port:      inst.Location.Port,
		Headless:  inst.Headless,
	})
}

// Stop stops the dev server.
func (h *ServerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Stop(r.Context()); err != nil {
		WriteDevServerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, statusResponse{State: h.controller.State()})
}

// Restart restarts the dev server with its last start options.
func (h *ServerHandler) Restart(w http.ResponseWriter, r *http.Request) {
	inst, err := h.controller.Restart(r.Context())
	if err != nil {
		WriteDevServerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, statusResponse{
		State: h.controller.State(),
		URL:   inst.Location.URL,
		Port:  inst.Location.Port,
	})
}

// broadcastRequest is the POST /server/message payload.
type broadcastRequest struct {
	Method devserver.MessageMethod `json:"method"`
	Params map[string]interface{}  `json:"params,omitempty"`
}

// Broadcast sends a command to all connected runtimes.
func (h *ServerHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid broadcast request: "+err.Error())
		return
	}
	if !req.Method.Valid() {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "unsupported message method "+string(req.Method))
		return
	}

	if err := h.controller.BroadcastMessage(req.Method, req.Params); err != nil {
		WriteDevServerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"method": string(req.Method)})
}

// urlsResponse is the GET /server/urls payload.
type urlsResponse struct {
	Local  string `json:"local,omitempty"`
	LAN    string `json:"lan,omitempty"`
	Tunnel string `json:"tunnel,omitempty"`
	ExpoGo string `json:"expo_go,omitempty"`
}

// URLs returns the addressable URLs of the running server.
func (h *ServerHandler) URLs(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, urlsResponse{
		Local:  h.controller.DevServerURL(urls.HostLocalhost),
		LAN:    h.controller.DevServerURL(urls.HostLAN),
		Tunnel: h.controller.TunnelURL(),
		ExpoGo: h.controller.ExpoGoURL(devserver.TargetEmulator),
	})
}

// openRequest is the POST /server/open payload.
type openRequest struct {
	Target      devserver.Target  `json:"target"`
	Custom      bool              `json:"custom,omitempty"`
	LaunchProps map[string]string `json:"launch_props,omitempty"`
}

// Open launches the project on a simulator, emulator or the desktop
// browser.
func (h *ServerHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid open request: "+err.Error())
		return
	}

	var result devserver.OpenResult
	var err error
	if req.Custom {
		result, err = h.controller.OpenCustomRuntime(r.Context(), req.Target, req.LaunchProps, nil)
	} else {
		result, err = h.controller.OpenPlatform(r.Context(), req.Target, nil)
	}
	if err != nil {
		WriteDevServerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
