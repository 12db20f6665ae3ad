package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/benchlink-core/internal/device"
	"github.com/nerrad567/benchlink-core/internal/valve"
	"github.com/nerrad567/benchlink-core/internal/valve/models"
)

// ModelSummary is one catalog entry in the model list.
type ModelSummary struct {
	Name        string       `json:"name"`
	Kind        valve.Kind   `json:"kind"`
	Description string       `json:"description,omitempty"`
	Positions   int          `json:"positions"`
	Ports       []valve.Port `json:"ports"`
	Labels      []string     `json:"labels"`
	Source      string       `json:"source"`
}

// ModelDetail adds the raw tables and the derived connections.
type ModelDetail struct {
	ModelSummary
	Stator      [][]valve.Port              `json:"stator"`
	Rotor       [][][]valve.Channel         `json:"rotor"`
	Connections []device.PositionConnections `json:"connections"`
}

func modelSummary(e *models.Entry) ModelSummary {
	return ModelSummary{
		Name:        e.Model.Name,
		Kind:        e.Model.Kind,
		Description: e.Model.Description,
		Positions:   e.Geometry.Positions(),
		Ports:       e.Geometry.Ports(),
		Labels:      e.Labels.Labels(),
		Source:      e.Source,
	}
}

// handleListModels returns every model in the catalog.
func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	if s.catalog == nil {
		writeJSON(w, http.StatusOK, map[string]any{"models": []ModelSummary{}, "count": 0})
		return
	}
	entries := s.catalog.List()
	out := make([]ModelSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, modelSummary(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": out,
		"count":  len(out),
	})
}

// handleGetModel returns one model with its per-position connections.
func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeNotFound(w, "model catalog is not available")
		return
	}
	e, err := s.catalog.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, err, nil)
		return
	}

	g := e.Geometry
	conns := make([]device.PositionConnections, 0, g.Positions())
	for pos := 0; pos < g.Positions(); pos++ {
		groups, _ := g.ConnectionsAt(pos)
		label, _ := e.Labels.Label(pos)
		conns = append(conns, device.PositionConnections{Index: pos, Label: label, Groups: groups})
	}

	writeJSON(w, http.StatusOK, ModelDetail{
		ModelSummary: modelSummary(e),
		Stator:       g.Stator(),
		Rotor:        g.Rotor(),
		Connections:  conns,
	})
}
