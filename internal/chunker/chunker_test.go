package chunker

import "testing"

const sampleKnowledge = `# KNOWLEDGE.md -- Security Reviewer
## Patterns Found
- [2024-01-15] SQL built via string concatenation (Source: app.py:42)
- [2024-02-01] Missing CSRF token validation

## False Positives to Avoid
- [2024-01-20] Parameterized queries flagged incorrectly (Source: db.py:10)

## Incidents Prevented

## Repository-Specific Rules
some freeform text that is not an entry

## Codebase Context
- [2024-03-01] Uses bcrypt for password hashing (Source: auth.py:5)
`

func TestParseExtractsEntriesWithSource(t *testing.T) {
	chunks := Parse(sampleKnowledge)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	if chunks[0].Source != "app.py:42" {
		t.Fatalf("expected source app.py:42, got %s", chunks[0].Source)
	}
	if chunks[0].Section != SectionPatternsFound {
		t.Fatalf("expected PatternsFound section, got %s", chunks[0].Section)
	}
}

func TestParseDefaultsSourceToUnknown(t *testing.T) {
	chunks := Parse(sampleKnowledge)
	var found bool
	for _, c := range chunks {
		if c.Text == "Missing CSRF token validation" {
			found = true
			if c.Source != "unknown" {
				t.Fatalf("expected default source 'unknown', got %s", c.Source)
			}
		}
	}
	if !found {
		t.Fatalf("expected to find the CSRF entry")
	}
}

func TestParseEmptySectionProducesNoChunks(t *testing.T) {
	chunks := Parse(sampleKnowledge)
	for _, c := range chunks {
		if c.Section == SectionIncidentsPrevented {
			t.Fatalf("expected no chunks from the empty Incidents Prevented section")
		}
	}
}

func TestParseSkipsUnrecognizedLines(t *testing.T) {
	chunks := Parse(sampleKnowledge)
	for _, c := range chunks {
		if c.Text == "some freeform text that is not an entry" {
			t.Fatalf("expected freeform non-entry lines to be skipped")
		}
	}
}

func TestParseEmptyContent(t *testing.T) {
	chunks := Parse("")
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks from empty content")
	}
}
