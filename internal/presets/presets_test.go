package presets

import (
	"errors"
	"testing"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
)

func TestResolveKnownPreset(t *testing.T) {
	preset, err := Resolve("vfx_plate_locked")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if preset.Provider != domain.ProviderReplicate {
		t.Fatalf("provider = %s", preset.Provider)
	}
	if preset.ModelRef != "kwaivgi/kling-v2.6" {
		t.Fatalf("model ref = %q", preset.ModelRef)
	}
	if preset.Defaults["duration"] != 5 {
		t.Fatalf("defaults = %#v", preset.Defaults)
	}
}

func TestResolveUnknownPreset(t *testing.T) {
	if _, err := Resolve("nope"); !errors.Is(err, domain.ErrUnknownPreset) {
		t.Fatalf("err = %v, want ErrUnknownPreset", err)
	}
}

func TestRenderPromptSubstitutesScene(t *testing.T) {
	preset, err := Resolve("vfx_plate_locked")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got := RenderPrompt(preset, "rain over neon streets")
	want := "cinematic realistic rain over neon streets, locked camera, stable composition, film-like contrast"
	if got != want {
		t.Fatalf("prompt = %q, want %q", got, want)
	}
}

func TestRenderPromptEmptySceneFallsBack(t *testing.T) {
	preset, err := Resolve("kling_v26")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := RenderPrompt(preset, "  "); got != defaultScene {
		t.Fatalf("prompt = %q", got)
	}
}

func TestMergeParametersOverridesWithoutMutation(t *testing.T) {
	preset, err := Resolve("vfx_plate_locked")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	merged := MergeParameters(preset, map[string]any{"duration": 10})
	if merged["duration"] != 10 {
		t.Fatalf("override lost: %#v", merged)
	}
	if merged["aspect_ratio"] != "16:9" {
		t.Fatalf("default lost: %#v", merged)
	}
	if preset.Defaults["duration"] != 5 {
		t.Fatalf("preset defaults mutated: %#v", preset.Defaults)
	}
}

func TestListIsStable(t *testing.T) {
	a := List()
	b := List()
	if len(a) == 0 || len(a) != len(b) {
		t.Fatalf("list lengths: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("unstable order at %d: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}
