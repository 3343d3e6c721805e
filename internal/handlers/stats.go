package handlers

import (
	"net/http"
	"time"
)

// AgentSummary is one row in the admin agent listing.
type AgentSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsActive     bool   `json:"is_active"`
	Status       string `json:"status"`
	UnreadInbox  int    `json:"unread_inbox"`
	PendingTodos int    `json:"pending_todos"`
	LastActiveAt string `json:"last_active_at"`
}

// Stats returns aggregate counts across all agents and servers.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.reg.Stats())
}

// ListAgents returns a read-only summary of every agent.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents := h.reg.Agents()
	out := make([]AgentSummary, 0, len(agents))
	for _, a := range agents {
		c := a.Content()
		out = append(out, AgentSummary{
			ID:           a.ID(),
			Name:         a.Name(),
			IsActive:     a.IsActive(),
			Status:       string(a.Status()),
			UnreadInbox:  len(c.UnreadInbox()),
			PendingTodos: len(c.PendingTodos()),
			LastActiveAt: a.LastActiveAt().Format(time.RFC3339),
		})
	}
	h.JSON(w, http.StatusOK, out)
}
