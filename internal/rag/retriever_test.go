package rag

import (
	"strings"
	"testing"
)

func TestDeriveQueryExtractsFilePaths(t *testing.T) {
	diff := "--- a/app.py\n+++ b/app.py\n@@ -1,3 +1,4 @@\n+def validate_input(s):\n+    return True\n"
	q := deriveQuery(diff)
	if q == "" {
		t.Fatalf("expected a non-empty derived query")
	}
	if !strings.Contains(q, "app.py") {
		t.Fatalf("expected query to include file path, got %q", q)
	}
	if !strings.Contains(q, "validate_input") {
		t.Fatalf("expected query to include python def name, got %q", q)
	}
}

func TestDeriveQueryFallsBackToRawDiff(t *testing.T) {
	diff := "no recognizable patterns here"
	q := deriveQuery(diff)
	if q != diff {
		t.Fatalf("expected fallback to raw diff text, got %q", q)
	}
}

func TestFormatKnowledgeSectionEmptyOnZeroBudget(t *testing.T) {
	results := []TaggedResult{{Text: "some knowledge", SourceTier: TierGlobal, Score: 0.9}}
	if got := FormatKnowledgeSection(results, 0); got != "" {
		t.Fatalf("expected empty string for zero budget, got %q", got)
	}
}

func TestFormatKnowledgeSectionEmptyOnNoResults(t *testing.T) {
	if got := FormatKnowledgeSection(nil, 100); got != "" {
		t.Fatalf("expected empty string for no results, got %q", got)
	}
}

func TestFormatKnowledgeSectionTagsTiers(t *testing.T) {
	results := []TaggedResult{
		{Text: "global fact", SourceTier: TierGlobal, Score: 0.9},
		{Text: "project fact", SourceTier: TierProject, Score: 0.8},
	}
	out := FormatKnowledgeSection(results, 1000)
	if !strings.Contains(out, "[global] global fact") {
		t.Fatalf("expected global-tagged line, got %q", out)
	}
	if !strings.Contains(out, "[project] project fact") {
		t.Fatalf("expected project-tagged line, got %q", out)
	}
}

func TestFormatKnowledgeSectionRespectsTokenBudget(t *testing.T) {
	var results []TaggedResult
	for i := 0; i < 1000; i++ {
		results = append(results, TaggedResult{Text: "a fairly long knowledge fact repeated many times over", SourceTier: TierGlobal, Score: 0.5})
	}
	out := FormatKnowledgeSection(results, 10) // 40 char budget
	if len(out) > 200 {
		t.Fatalf("expected output to be truncated by token budget, got length %d", len(out))
	}
}
