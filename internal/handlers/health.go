package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"` // "pass" or "fail"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health verifies the data directories are writable. There is no database
// behind this service; the filesystem is the persistence layer.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]Check{
		"agents_dir":  checkWritable(h.cfg.AgentsDir()),
		"servers_dir": checkWritable(h.cfg.ServersDir()),
		"data_dir":    checkWritable(h.cfg.DataDir),
	}

	status := "healthy"
	statusCode := http.StatusOK
	for _, c := range checks {
		if c.Status != "pass" {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
			break
		}
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Version:   version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// checkWritable verifies dir exists (creating it if needed) and accepts a
// probe file.
func checkWritable(dir string) Check {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{Status: "fail", Message: err.Error()}
	}
	probe := filepath.Join(dir, ".health-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return Check{Status: "fail", Message: err.Error()}
	}
	_ = os.Remove(probe)
	return Check{Status: "pass"}
}

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Root handles the root endpoint.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{Name: "vibecoder", Version: version})
}
