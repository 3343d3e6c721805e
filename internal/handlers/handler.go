// Package handlers implements the admin HTTP endpoints: health, stats, and
// read-only agent/server listings for the UI shell.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rknell/vibe-coder-sub002/internal/config"
	"github.com/rknell/vibe-coder-sub002/internal/models"
)

// Handler contains shared dependencies for all admin handlers.
type Handler struct {
	reg *models.Registry
	cfg *config.Config
}

// NewHandler creates a new Handler.
func NewHandler(reg *models.Registry, cfg *config.Config) *Handler {
	return &Handler{reg: reg, cfg: cfg}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
