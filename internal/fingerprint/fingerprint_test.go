package fingerprint

import "testing"

func TestComputeBucketsNearbyLines(t *testing.T) {
	a := Compute("main.go", 10, "security")
	b := Compute("main.go", 11, "security")
	c := Compute("main.go", 20, "security")

	if a != b {
		t.Fatalf("expected lines 10 and 11 to share a fingerprint bucket")
	}
	if a == c {
		t.Fatalf("expected lines 10 and 20 to fall in different buckets")
	}
}

func TestComputeDiffersByCategory(t *testing.T) {
	a := Compute("main.go", 10, "security")
	b := Compute("main.go", 10, "style")
	if a == b {
		t.Fatalf("expected different categories to produce different fingerprints")
	}
}

func TestDeduplicateDropsMalformed(t *testing.T) {
	findings := []Finding{
		{File: "", LineStart: 5, Category: "bug"},
		{File: "a.go", LineStart: 0, Category: "bug"},
		{File: "a.go", LineStart: 5, Category: "", Severity: 1},
		{File: "a.go", LineStart: 5, Category: "bug", Severity: 6, ReviewerID: "security"},
	}
	results := Deduplicate(findings)
	if len(results) != 1 {
		t.Fatalf("expected malformed findings to be dropped, got %d groups", len(results))
	}
}

func TestDeduplicateMergeMonotonicity(t *testing.T) {
	findings := []Finding{
		{File: "app.py", LineStart: 42, LineEnd: 42, Category: "sql-injection", Severity: 8, Confidence: 9, Description: "raw SQL concat", ReviewerID: "security"},
		{File: "app.py", LineStart: 43, LineEnd: 43, Category: "sql-injection", Severity: 7.5, Confidence: 8, Description: "unescaped input", ReviewerID: "correctness"},
	}
	results := Deduplicate(findings)
	if len(results) != 1 {
		t.Fatalf("expected the two findings to merge into one bucket, got %d", len(results))
	}
	g := results[0]
	if g.Severity != 8 {
		t.Fatalf("expected merged severity to be the group max (8), got %v", g.Severity)
	}
	if g.Confidence != 9 {
		t.Fatalf("expected merged confidence to be the group max (9), got %v", g.Confidence)
	}
	if g.K != 2 {
		t.Fatalf("expected k=2 distinct reviewers, got %d", g.K)
	}
	if len(g.ReviewerIDs) != 2 {
		t.Fatalf("expected 2 distinct reviewer ids, got %d", len(g.ReviewerIDs))
	}
}

func TestDeduplicateSortsBySeverityDescending(t *testing.T) {
	findings := []Finding{
		{File: "a.go", LineStart: 5, Category: "bug", Severity: 3, ReviewerID: "style"},
		{File: "b.go", LineStart: 40, Category: "bug", Severity: 9, ReviewerID: "security"},
	}
	results := Deduplicate(findings)
	if len(results) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(results))
	}
	if results[0].Severity < results[1].Severity {
		t.Fatalf("expected results sorted by descending severity")
	}
}

func TestDeduplicateEmpty(t *testing.T) {
	results := Deduplicate(nil)
	if len(results) != 0 {
		t.Fatalf("expected empty input to yield no groups")
	}
}
