package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reviewcore/internal/router"
)

func writeReviewer(t *testing.T, root, id, prompt string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "PROMPT.md"), []byte(prompt), 0644); err != nil {
		t.Fatal(err)
	}
}

func setupReviewers(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, id := range []string{"security", "correctness", "performance", "maintainability", "reliability"} {
		writeReviewer(t, root, id, "You are the "+id+" reviewer.\n")
	}
	return root
}

func TestPrepareReviewTasksSanitizesBackticks(t *testing.T) {
	root := setupReviewers(t)
	tasks, err := PrepareReviewTasks(root, PrepareOptions{
		Files:       []string{"app.py"},
		DiffContent: "some ```evil fence``` content",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	for _, task := range tasks {
		if strings.Contains(task.Prompt, "```evil") {
			t.Fatalf("expected backtick fence neutralized in prompt for %s", task.ReviewerID)
		}
	}
}

func TestPrepareReviewTasksTruncatesLargeDiff(t *testing.T) {
	root := setupReviewers(t)
	big := strings.Repeat("a", maxDiffChars+1000)
	tasks, err := PrepareReviewTasks(root, PrepareOptions{Files: []string{"app.py"}, DiffContent: big})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	found := false
	for _, task := range tasks {
		if strings.Contains(task.Prompt, "[… truncated …]") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected truncation marker in at least one task prompt")
	}
}

func TestPrepareReviewTasksSingleModelOverridesRouter(t *testing.T) {
	root := setupReviewers(t)
	r := router.New(router.DefaultConfig())
	tasks, err := PrepareReviewTasks(root, PrepareOptions{
		Files:       []string{"app.py"},
		ModelRouter: r,
		SingleModel: "claude-opus-4-6",
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	for _, task := range tasks {
		if !task.HasModel || task.Model != "claude-opus-4-6" {
			t.Fatalf("expected single_model override for %s, got %q", task.ReviewerID, task.Model)
		}
	}
}

func TestPrepareReviewTasksOmitsModelWithoutRouterOrSingleModel(t *testing.T) {
	root := setupReviewers(t)
	tasks, err := PrepareReviewTasks(root, PrepareOptions{Files: []string{"app.py"}})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	for _, task := range tasks {
		if task.HasModel {
			t.Fatalf("expected no model key for %s", task.ReviewerID)
		}
	}
}

func TestParseResultsEmptyResponse(t *testing.T) {
	results := ParseResults([]RawResponse{{ReviewerID: "security", Response: "   "}})
	if len(results) != 1 || results[0].Passed || results[0].Score != 0 {
		t.Fatalf("expected failed empty-response result, got %+v", results)
	}
}

func TestParseResultsJSONArray(t *testing.T) {
	response := `[{"file": "app.py", "severity": 8, "category": "injection"}]
SUMMARY: found a sql injection risk
SCORE: 3.5`
	results := ParseResults([]RawResponse{{ReviewerID: "security", Response: response}})
	r := results[0]
	if len(r.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(r.Findings))
	}
	if r.Score != 3.5 {
		t.Fatalf("expected score 3.5, got %v", r.Score)
	}
	if r.Passed {
		t.Fatalf("expected passed=false for score below 7")
	}
	if r.Summary != "found a sql injection risk" {
		t.Fatalf("unexpected summary: %q", r.Summary)
	}
}

func TestParseResultsNoFindingsDefaultsScoreTen(t *testing.T) {
	results := ParseResults([]RawResponse{{ReviewerID: "correctness", Response: "[]\nNo issues at all."}})
	r := results[0]
	if r.Score != 10.0 || !r.Passed {
		t.Fatalf("expected score 10 passed=true, got %+v", r)
	}
}

func TestParseResultsFencedJSONObjectFallback(t *testing.T) {
	response := "```json\n{\"file\": \"a.py\", \"severity\": 9, \"category\": \"x\"}\n```\n"
	results := ParseResults([]RawResponse{{ReviewerID: "security", Response: response}})
	if len(results[0].Findings) != 1 {
		t.Fatalf("expected 1 finding extracted from fenced block, got %d", len(results[0].Findings))
	}
}

func TestParseResultsScoreFallsBackFromMaxSeverity(t *testing.T) {
	response := `[{"file": "a.py", "severity": 9, "category": "x"}]`
	results := ParseResults([]RawResponse{{ReviewerID: "security", Response: response}})
	if results[0].Score != 1.0 {
		t.Fatalf("expected score 10-9=1.0, got %v", results[0].Score)
	}
}

func TestParseResultsExtractsFindingFieldsVerbatim(t *testing.T) {
	response := `[{"file": "app.py", "line_start": 12, "severity": 6, "category": "style", "description": "line too long"}]
SUMMARY: minor style nit
SCORE: 8`
	results := ParseResults([]RawResponse{{ReviewerID: "maintainability", Response: response}})

	want := map[string]any{
		"file":        "app.py",
		"line_start":  float64(12),
		"severity":    float64(6),
		"category":    "style",
		"description": "line too long",
	}
	got := results[0].Findings[0]
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("finding fields mismatch (-want +got):\n%s", diff)
	}
}
