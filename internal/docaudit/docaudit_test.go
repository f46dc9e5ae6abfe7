package docaudit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAuditDetectsExactPathMention(t *testing.T) {
	dir := t.TempDir()
	docsRoot := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docsRoot, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docsRoot, "guide.md"), []byte("See src/app.py for the entrypoint."), 0644); err != nil {
		t.Fatal(err)
	}

	report := Audit("task-1", []string{"src/app.py"}, "", docsRoot)
	if len(report.Gaps) != 1 || report.Gaps[0].Confidence != "high" {
		t.Fatalf("expected 1 high-confidence gap, got %+v", report.Gaps)
	}
}

func TestAuditNoDocsDirYieldsNoGaps(t *testing.T) {
	report := Audit("task-1", []string{"src/app.py"}, "", filepath.Join(t.TempDir(), "missing-docs"))
	if len(report.Gaps) != 0 {
		t.Fatalf("expected no gaps when docs root is missing, got %+v", report.Gaps)
	}
	if !strings.Contains(report.Summary, "No documentation gaps detected") {
		t.Fatalf("unexpected summary: %q", report.Summary)
	}
}

func TestAuditDetectsMissingDocstring(t *testing.T) {
	dir := t.TempDir()
	pyPath := filepath.Join(dir, "app.py")
	if err := os.WriteFile(pyPath, []byte("def handle_request(req):\n    return True\n"), 0644); err != nil {
		t.Fatal(err)
	}
	diff := "--- a/app.py\n+++ b/app.py\n+def handle_request(req):\n+    return True\n"

	report := Audit("task-1", []string{pyPath}, diff, filepath.Join(dir, "docs"))
	if len(report.MissingDocstrings) != 1 {
		t.Fatalf("expected 1 missing docstring, got %+v", report.MissingDocstrings)
	}
}

func TestAuditRecognizesPresentDocstring(t *testing.T) {
	dir := t.TempDir()
	pyPath := filepath.Join(dir, "app.py")
	if err := os.WriteFile(pyPath, []byte("def handle_request(req):\n    \"\"\"Handle an inbound request.\"\"\"\n    return True\n"), 0644); err != nil {
		t.Fatal(err)
	}
	diff := "+def handle_request(req):\n"

	report := Audit("task-1", []string{pyPath}, diff, filepath.Join(dir, "docs"))
	if len(report.MissingDocstrings) != 0 {
		t.Fatalf("expected no missing docstrings, got %+v", report.MissingDocstrings)
	}
}

func TestAuditEmptyDiffYieldsNoMissingDocstrings(t *testing.T) {
	report := Audit("task-1", []string{"app.py"}, "", filepath.Join(t.TempDir(), "docs"))
	if len(report.MissingDocstrings) != 0 {
		t.Fatalf("expected no missing docstrings for empty diff, got %+v", report.MissingDocstrings)
	}
}
