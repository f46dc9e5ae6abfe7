package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reviewcore/internal/engine"
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

func TestPrepareReviewProducesFiveTasks(t *testing.T) {
	root := setupReviewers(t)
	tasks, err := PrepareReview(Request{TaskID: "t1", Files: []string{"app.py"}}, Options{ReviewersDir: root})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(tasks) != 5 {
		t.Fatalf("expected 5 tasks, got %d", len(tasks))
	}
}

func TestFinalizeReviewWritesReportAndPasses(t *testing.T) {
	root := setupReviewers(t)
	outDir := t.TempDir()

	responses := []engine.RawResponse{
		{ReviewerID: "security", Response: "[]\nSUMMARY: clean\nSCORE: 9.0"},
		{ReviewerID: "correctness", Response: "[]\nSUMMARY: clean\nSCORE: 9.0"},
	}

	result, err := FinalizeReview(context.Background(), Request{TaskID: "t1", Files: []string{"app.py"}}, responses, outDir, Options{ReviewersDir: root, SkipValidation: true})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !result.Passed {
		t.Fatalf("expected passed result, got %+v", result.Consensus)
	}
	data, err := os.ReadFile(result.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(data), "PASSED") {
		t.Fatalf("expected PASSED in report, got %s", data)
	}
}

func TestFinalizeReviewDedupesAndFails(t *testing.T) {
	root := setupReviewers(t)
	outDir := t.TempDir()

	finding := `[{"file": "app.py", "line_start": 10, "category": "sql_injection", "severity": 9.5, "confidence": 9.0, "description": "SQL injection via string concat"}]`
	responses := []engine.RawResponse{
		{ReviewerID: "security", Response: finding + "\nSUMMARY: found a critical issue\nSCORE: 1.0"},
		{ReviewerID: "reliability", Response: finding + "\nSUMMARY: confirmed\nSCORE: 1.0"},
	}

	result, err := FinalizeReview(context.Background(), Request{TaskID: "t2", Files: []string{"app.py"}}, responses, outDir, Options{ReviewersDir: root, SkipValidation: true})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.Passed {
		t.Fatalf("expected failed result for critical security finding, got %+v", result.Consensus)
	}
	if len(result.Consensus.Findings) != 1 {
		t.Fatalf("expected findings deduped to 1, got %d", len(result.Consensus.Findings))
	}
	if result.Consensus.Findings[0].Finding.K != 2 {
		t.Fatalf("expected k=2 after deduplicating both reviewers, got %d", result.Consensus.Findings[0].Finding.K)
	}
}

func TestFinalizeReviewRejectsRelativeOutputPath(t *testing.T) {
	root := setupReviewers(t)
	_, err := FinalizeReview(context.Background(), Request{TaskID: "t3"}, nil, "relative/path", Options{ReviewersDir: root, SkipValidation: true})
	if err == nil {
		t.Fatalf("expected error for relative output path")
	}
}

func TestFinalizeReviewRejectsSensitiveOutputPath(t *testing.T) {
	root := setupReviewers(t)
	_, err := FinalizeReview(context.Background(), Request{TaskID: "t4"}, nil, "/etc/reviewcore-reports", Options{ReviewersDir: root, SkipValidation: true})
	if err == nil {
		t.Fatalf("expected error for sensitive output path")
	}
}
