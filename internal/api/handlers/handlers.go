// Package handlers implements the HTTP handlers for the fact resolver API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/axonops/fact-resolver/internal/engine"
	"github.com/axonops/fact-resolver/internal/facts"
)

// Handler holds the HTTP handlers for the engine API.
type Handler struct {
	engine *engine.Engine
}

// New creates a new Handler.
func New(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthCheck handles GET /.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LivenessCheck handles GET /health/live.
func (h *Handler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ReadinessCheck handles GET /health/ready.
func (h *Handler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !h.engine.IsHealthy(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// GetSchema handles GET /api/schema: a snapshot of the fact schema registry.
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Schema())
}

// RunRequest is the POST /api/run request body.
type RunRequest struct {
	Inputs        map[string]any `json:"inputs"`
	RequiredFacts []string       `json:"required_facts"`
}

// RunResponse is the POST /api/run response body.
type RunResponse struct {
	Facts map[string]any `json:"facts"`
	Trace []string       `json:"trace"`
}

// Run handles POST /api/run: seed the context with the caller's inputs,
// drive the planner, and return the resolved facts plus the execution trace.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	result, err := h.engine.Run(r.Context(), req.Inputs, req.RequiredFacts)
	if err != nil {
		if errors.Is(err, facts.ErrUnknownFact) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	resp := RunResponse{
		Facts: make(map[string]any, len(result.Facts)),
		Trace: result.Trace,
	}
	if resp.Trace == nil {
		resp.Trace = []string{}
	}
	for k, v := range result.Facts {
		resp.Facts[k] = renderValue(v)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Explain handles GET /api/explain: descriptors for every resolver.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"resolvers": h.engine.Explain()})
}

// renderValue returns the value unchanged when it is JSON-encodable, and its
// string representation otherwise.
func renderValue(v any) any {
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
