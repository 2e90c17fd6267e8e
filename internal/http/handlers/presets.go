package handlers

import (
	"net/http"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/presets"
)

type presetView struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Defaults map[string]any `json:"defaults"`
	Cost     int64          `json:"cost"`
}

// PresetsList exposes the preset catalogue. Prompt templates stay
// server-side; clients only choose a preset and supply a scene.
func (a *App) PresetsList(w http.ResponseWriter, r *http.Request) {
	all := presets.List()
	out := make([]presetView, 0, len(all))
	for _, p := range all {
		out = append(out, presetView{
			ID:       p.ID,
			Title:    p.Title,
			Provider: string(p.Provider),
			Model:    p.ModelRef,
			Defaults: p.Defaults,
			Cost:     p.Cost,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"presets": out})
}
