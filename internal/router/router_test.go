package router

import (
	"path/filepath"
	"testing"
)

func TestGetModelSmallDiffOverridesExplicitConfig(t *testing.T) {
	r := New(DefaultConfig())
	model := r.GetModel("security", 10)
	if model != "claude-haiku-4-5-20251001" {
		t.Fatalf("expected small diff to force the small model, got %s", model)
	}
}

func TestGetModelLargeDiffHighStakes(t *testing.T) {
	r := New(DefaultConfig())
	if m := r.GetModel("security", 600); m != "claude-opus-4-6" {
		t.Fatalf("expected large high-stakes model for security, got %s", m)
	}
	if m := r.GetModel("maintainability", 600); m != "claude-sonnet-4-5-20250929" {
		t.Fatalf("expected large-other model for non-high-stakes reviewer, got %s", m)
	}
}

func TestGetModelMediumDiffUsesExplicitConfig(t *testing.T) {
	r := New(DefaultConfig())
	if m := r.GetModel("maintainability", 200); m != "claude-haiku-4-5-20251001" {
		t.Fatalf("expected explicit reviewer config in medium band, got %s", m)
	}
}

func TestGetModelUnknownReviewerFallsBackToDefault(t *testing.T) {
	r := New(DefaultConfig())
	if m := r.GetModel("unknown-reviewer", 200); m != "claude-sonnet-4-5-20250929" {
		t.Fatalf("expected default model for unknown reviewer, got %s", m)
	}
}

func TestGetCrossCheckModel(t *testing.T) {
	r := New(DefaultConfig())
	if m := r.GetCrossCheckModel(); m != "claude-haiku-4-5-20251001" {
		t.Fatalf("expected cross-check model, got %s", m)
	}
}

func TestEstimateCost(t *testing.T) {
	r := New(DefaultConfig())
	cost := r.EstimateCost("security", 1000, 500, 600)
	// security at diff=600 (large, high-stakes) -> claude-opus-4-6: input 0.015/1k, output 0.075/1k
	want := 1.0*0.015 + 0.5*0.075
	if cost < want-0.0001 || cost > want+0.0001 {
		t.Fatalf("expected cost ~%v, got %v", want, cost)
	}
}

func TestLoadFallsBackToDefaultsWhenMissing(t *testing.T) {
	r := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if m := r.GetModel("security", 200); m != "claude-opus-4-6" {
		t.Fatalf("expected default config reviewer mapping, got %s", m)
	}
}
