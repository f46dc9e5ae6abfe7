package reviewerconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeReviewer(t *testing.T, root, id, prompt, knowledge string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "PROMPT.md"), []byte(prompt), 0644); err != nil {
		t.Fatal(err)
	}
	if knowledge != "" {
		if err := os.WriteFile(filepath.Join(dir, "KNOWLEDGE.md"), []byte(knowledge), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func setupReviewers(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, id := range ReviewerIDs {
		writeReviewer(t, root, id, "You are the "+id+" reviewer.\n", "")
	}
	return root
}

func TestLoadAllRequiresExistingDirectory(t *testing.T) {
	if _, err := LoadAll(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatalf("expected error for missing reviewers directory")
	}
}

func TestLoadMissingPromptErrors(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "security"), 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(root, "security", nil); err == nil {
		t.Fatalf("expected error for missing PROMPT.md")
	}
}

func TestLoadUnknownReviewerErrors(t *testing.T) {
	root := setupReviewers(t)
	if _, err := Load(root, "style", nil); err == nil {
		t.Fatalf("expected error for unknown reviewer id")
	}
}

func TestLoadDefaultsKnowledgeToEmpty(t *testing.T) {
	root := setupReviewers(t)
	cfg, err := Load(root, "security", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Knowledge != "" {
		t.Fatalf("expected empty knowledge, got %q", cfg.Knowledge)
	}
}

func TestParseTemperatureFromPrompt(t *testing.T) {
	root := t.TempDir()
	writeReviewer(t, root, "security", "# Security Reviewer\n\n## Temperature\n0.2\n\n## Focus\nSQL injection.\n", "")
	cfg, err := Load(root, "security", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Temperature != 0.2 {
		t.Fatalf("expected temperature 0.2, got %v", cfg.Temperature)
	}
}

func TestParseTemperatureFallsBackToDefault(t *testing.T) {
	root := t.TempDir()
	writeReviewer(t, root, "performance", "# Performance Reviewer\nNo temperature section.\n", "")
	cfg, err := Load(root, "performance", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Temperature != defaultTemperatures["performance"] {
		t.Fatalf("expected default temperature %v, got %v", defaultTemperatures["performance"], cfg.Temperature)
	}
}

func TestIsRelevantNilDiffFilesAlwaysTrue(t *testing.T) {
	if !IsRelevant("security", nil) {
		t.Fatalf("expected nil diff files to always mark relevant")
	}
}

func TestIsRelevantMaintainabilityAlwaysTrue(t *testing.T) {
	if !IsRelevant("maintainability", []string{"README.md"}) {
		t.Fatalf("expected maintainability to always be relevant")
	}
}

func TestIsRelevantSecurityMatchesExtension(t *testing.T) {
	if !IsRelevant("security", []string{"app.py"}) {
		t.Fatalf("expected security to be relevant for .py files")
	}
	if IsRelevant("security", []string{"README.md"}) {
		t.Fatalf("expected security to be irrelevant for .md-only diffs")
	}
}

func TestLoadAllGatesRelevance(t *testing.T) {
	root := setupReviewers(t)
	configs, err := LoadAll(root, []string{"README.md"})
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	for _, c := range configs {
		if c.ID == "maintainability" && !c.Relevant {
			t.Fatalf("expected maintainability relevant")
		}
		if c.ID == "security" && c.Relevant {
			t.Fatalf("expected security irrelevant for markdown-only diff")
		}
	}
}
