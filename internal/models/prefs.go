package models

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"time"

	"github.com/rs/zerolog"

	"github.com/rknell/vibe-coder-sub002/internal/observer"
	"github.com/rknell/vibe-coder-sub002/internal/store"
)

// LayoutPreferences persists UI preferences. Unlike agents and servers this
// data is best-effort: saves are asynchronous, retried, and never surface
// errors; loads fall back to the .backup copy.
type LayoutPreferences struct {
	theme           string
	panelWidths     map[string]float64
	sidebarExpanded bool
	selectedAgentID string
	updatedAt       time.Time

	events observer.Notifier
	files  *store.FileStore
	path   string
	log    zerolog.Logger
}

const defaultTheme = "dark"

// NewLayoutPreferences returns defaults bound to path.
func NewLayoutPreferences(files *store.FileStore, path string, log zerolog.Logger) *LayoutPreferences {
	return &LayoutPreferences{
		theme:           defaultTheme,
		panelWidths:     map[string]float64{},
		sidebarExpanded: true,
		updatedAt:       time.Now().UTC(),
		files:           files,
		path:            path,
		log:             log,
	}
}

// Theme returns the selected theme.
func (p *LayoutPreferences) Theme() string { return p.theme }

// PanelWidth returns the stored width for panel, or 0 when unset.
func (p *LayoutPreferences) PanelWidth(panel string) float64 { return p.panelWidths[panel] }

// SidebarExpanded reports the sidebar state.
func (p *LayoutPreferences) SidebarExpanded() bool { return p.sidebarExpanded }

// SelectedAgentID returns the last selected agent, or empty.
func (p *LayoutPreferences) SelectedAgentID() string { return p.selectedAgentID }

// Subscribe registers fn for preference change events.
func (p *LayoutPreferences) Subscribe(fn func(observer.Event)) func() {
	return p.events.Subscribe(fn)
}

// SetTheme updates the theme and schedules a best-effort save.
func (p *LayoutPreferences) SetTheme(ctx context.Context, theme string) {
	if p.theme == theme {
		return
	}
	p.theme = theme
	p.changed(ctx)
}

// SetPanelWidth stores a panel width and schedules a best-effort save.
func (p *LayoutPreferences) SetPanelWidth(ctx context.Context, panel string, width float64) {
	p.panelWidths[panel] = width
	p.changed(ctx)
}

// SetSidebarExpanded updates the sidebar state.
func (p *LayoutPreferences) SetSidebarExpanded(ctx context.Context, expanded bool) {
	if p.sidebarExpanded == expanded {
		return
	}
	p.sidebarExpanded = expanded
	p.changed(ctx)
}

// SetSelectedAgentID records the active agent selection.
func (p *LayoutPreferences) SetSelectedAgentID(ctx context.Context, agentID string) {
	if p.selectedAgentID == agentID {
		return
	}
	p.selectedAgentID = agentID
	p.changed(ctx)
}

func (p *LayoutPreferences) changed(ctx context.Context) {
	now := time.Now().UTC()
	if now.After(p.updatedAt) {
		p.updatedAt = now
	}
	p.events.Notify("layout", observer.KindPreferences)
	p.scheduleSave(ctx)
}

// scheduleSave enqueues an asynchronous write with the backup discipline.
// Preferences are not critical data: failures are logged, never thrown.
func (p *LayoutPreferences) scheduleSave(ctx context.Context) {
	data, err := marshalIndent(p)
	if err != nil {
		p.log.Error().Err(err).Msg("layout preferences marshal failed")
		return
	}
	if err := p.files.WriteBestEffort(ctx, "layout_preferences", p.path, data); err != nil {
		p.log.Warn().Err(err).Msg("layout preferences save not enqueued")
	}
}

// Load reads preferences from disk, falling back to the backup copy. A
// missing file leaves the defaults in place and is not an error.
func (p *LayoutPreferences) Load() error {
	data, err := p.files.ReadWithFallback(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &PersistenceError{Op: "load", Path: p.path, Err: err}
	}

	var j layoutPreferencesJSON
	if err := json.Unmarshal(data, &j); err != nil {
		// Corrupt preferences are abandoned, not fatal.
		p.log.Warn().Err(err).Str("path", p.path).Msg("layout preferences corrupt, using defaults")
		return nil
	}

	if j.Theme != "" {
		p.theme = j.Theme
	}
	if j.PanelWidths != nil {
		p.panelWidths = j.PanelWidths
	}
	p.sidebarExpanded = j.SidebarExpanded
	p.selectedAgentID = j.SelectedAgentID
	if !j.UpdatedAt.IsZero() {
		p.updatedAt = j.UpdatedAt
	}
	return nil
}

type layoutPreferencesJSON struct {
	Theme           string             `json:"theme"`
	PanelWidths     map[string]float64 `json:"panel_widths"`
	SidebarExpanded bool               `json:"sidebar_expanded"`
	SelectedAgentID string             `json:"selected_agent_id,omitempty"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// MarshalJSON round-trips every field.
func (p *LayoutPreferences) MarshalJSON() ([]byte, error) {
	return json.Marshal(layoutPreferencesJSON{
		Theme:           p.theme,
		PanelWidths:     p.panelWidths,
		SidebarExpanded: p.sidebarExpanded,
		SelectedAgentID: p.selectedAgentID,
		UpdatedAt:       p.updatedAt,
	})
}
