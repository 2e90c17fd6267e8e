// Package presets holds the static generation preset registry: each
// preset binds a user-facing style to a provider, model and default
// parameter set, plus the prompt template the scene text is rendered into.
package presets

import (
	"sort"
	"strings"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
)

const defaultScene = "a cinematic realistic shot, film-like contrast"

var registry = map[string]domain.Preset{
	"vfx_plate_locked": {
		ID:             "vfx_plate_locked",
		Title:          "VFX Plate — Locked Camera",
		Provider:       domain.ProviderReplicate,
		ModelRef:       "kwaivgi/kling-v2.6",
		PromptTemplate: "cinematic realistic {scene}, locked camera, stable composition, film-like contrast",
		NegativePrompt: "flicker, jitter, warping, distortion, extra objects, text, watermark, logo",
		Defaults: map[string]any{
			"duration":       5,
			"aspect_ratio":   "16:9",
			"generate_audio": false,
		},
		Cost: 1,
	},
	"vfx_micro_handheld": {
		ID:             "vfx_micro_handheld",
		Title:          "VFX Plate — Micro Handheld",
		Provider:       domain.ProviderReplicate,
		ModelRef:       "kwaivgi/kling-v2.6",
		PromptTemplate: "cinematic realistic {scene}, very subtle handheld feel, stable framing",
		NegativePrompt: "strong shake, flicker, jitter, warping, distortion, extra objects, text, watermark, logo",
		Defaults: map[string]any{
			"duration":       5,
			"aspect_ratio":   "16:9",
			"generate_audio": false,
		},
		Cost: 1,
	},
	"kling_v26": {
		ID:             "kling_v26",
		Title:          "Kling v2.6 (base)",
		Provider:       domain.ProviderReplicate,
		ModelRef:       "kwaivgi/kling-v2.6",
		PromptTemplate: "{scene}",
		Defaults: map[string]any{
			"duration":       5,
			"aspect_ratio":   "16:9",
			"generate_audio": false,
		},
		Cost: 1,
	},
	"vfx_video_restyle": {
		ID:             "vfx_video_restyle",
		Title:          "VFX Video Restyle",
		Provider:       domain.ProviderFal,
		ModelRef:       "fal-ai/video-restyle",
		PromptTemplate: "{scene}",
		Defaults: map[string]any{
			"keep_original_sound": true,
		},
		Cost: 2,
	},
}

// Resolve looks a preset up by id.
func Resolve(id string) (*domain.Preset, error) {
	preset, ok := registry[strings.TrimSpace(id)]
	if !ok {
		return nil, domain.ErrUnknownPreset
	}
	return &preset, nil
}

// List returns all presets in stable id order.
func List() []domain.Preset {
	out := make([]domain.Preset, 0, len(registry))
	for _, p := range registry {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RenderPrompt substitutes the scene text into the preset's template. An
// empty scene falls back to the stock cinematic description.
func RenderPrompt(preset *domain.Preset, scene string) string {
	scene = strings.TrimSpace(scene)
	if scene == "" {
		scene = defaultScene
	}
	template := preset.PromptTemplate
	if template == "" {
		template = "{scene}"
	}
	return strings.TrimSpace(strings.ReplaceAll(template, "{scene}", scene))
}

// MergeParameters overlays request overrides onto the preset defaults
// without mutating either map.
func MergeParameters(preset *domain.Preset, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(preset.Defaults)+len(overrides))
	for k, v := range preset.Defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
