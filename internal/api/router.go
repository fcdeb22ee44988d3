package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/cul-bridge/internal/bridges/cul"
)

// Health status values reported by GET /api/v1/health.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{address}", s.handleGetDevice)
		})

		r.Post("/decode", s.handleDecode)
		r.Get("/stream", s.handleStream)
	})

	return r
}

// handleHealth reports whether the loop is running and the bus is
// connected. Degraded health is served with 503 so it can back a probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	mqttConnected := s.mqtt != nil && s.mqtt.IsConnected()
	running := s.bridge.Running()

	status, code := healthOK, http.StatusOK
	if !running || !mqttConnected {
		status, code = healthDegraded, http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":         status,
		"version":        s.version,
		"bridge_running": running,
		"mqtt_connected": mqttConnected,
		"devices":        s.bridge.DeviceCount(),
		"stream_clients": s.hub.ClientCount(),
	})
}

// handleStats returns the bridge counters.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Stats())
}

// handleListDevices returns the registry in registration order.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	entries := s.registry.Entries()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": entries,
		"count":   len(entries),
	})
}

// handleGetDevice returns a single device by remapped address.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !cul.ValidDeviceAddress(address) {
		writeBadRequest(w, "address must be 4 digits in the range 1-4")
		return
	}

	entry, ok := s.registry.Lookup(address)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DecodeRequest is the body of POST /api/v1/decode.
type DecodeRequest struct {
	Frame string `json:"frame"`
}

// DecodeResponse reports a decoded frame and the registry match, if any.
type DecodeResponse struct {
	Telegram cul.Telegram       `json:"telegram"`
	Device   *cul.RegistryEntry `json:"device,omitempty"`
}

// handleDecode decodes a raw frame without touching the bus. The frame
// terminator is optional.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Frame == "" {
		writeBadRequest(w, "frame is required")
		return
	}

	t, err := cul.ParseFrame(strings.TrimRight(req.Frame, "\r\n") + "\r\n")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeDecode, err.Error())
		return
	}

	resp := DecodeResponse{Telegram: t}
	if entry, ok := s.registry.Lookup(t.DeviceAddress); ok {
		resp.Device = &entry
	}
	writeJSON(w, http.StatusOK, resp)
}
