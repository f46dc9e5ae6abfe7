// Package chunker splits a reviewer's KNOWLEDGE.md file into dated, sourced
// atomic entries for the Knowledge Pipeline to embed and index.
package chunker

import (
	"bufio"
	"regexp"
	"strings"
	"time"

	"reviewcore/internal/logging"
)

// Section is one of the five fixed KNOWLEDGE.md sections.
type Section string

const (
	SectionPatternsFound           Section = "Patterns Found"
	SectionFalsePositivesToAvoid   Section = "False Positives to Avoid"
	SectionIncidentsPrevented      Section = "Incidents Prevented"
	SectionRepositorySpecificRules Section = "Repository-Specific Rules"
	SectionCodebaseContext         Section = "Codebase Context"
)

// Chunk is a single dated, sourced entry parsed from a KNOWLEDGE.md section.
type Chunk struct {
	Section Section
	Date    time.Time
	Text    string
	Source  string
}

var (
	sectionHeaderRe = regexp.MustCompile(`^##\s+(.+)$`)
	entryRe         = regexp.MustCompile(`^-\s*\[(\d{4}-\d{2}-\d{2})\]\s*(.+)$`)
	sourceSuffixRe  = regexp.MustCompile(`\(Source:\s*([^)]+)\)\s*$`)
)

var knownSections = map[string]Section{
	string(SectionPatternsFound):           SectionPatternsFound,
	string(SectionFalsePositivesToAvoid):   SectionFalsePositivesToAvoid,
	string(SectionIncidentsPrevented):      SectionIncidentsPrevented,
	string(SectionRepositorySpecificRules): SectionRepositorySpecificRules,
	string(SectionCodebaseContext):         SectionCodebaseContext,
}

// Parse splits markdown content into Chunks. Parsing is lenient:
// unrecognized lines are skipped, and empty sections produce no chunks.
func Parse(content string) []Chunk {
	var chunks []Chunk
	var currentSection Section
	inKnownSection := false

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()

		if m := sectionHeaderRe.FindStringSubmatch(line); m != nil {
			title := strings.TrimSpace(m[1])
			if sec, ok := knownSections[title]; ok {
				currentSection = sec
				inKnownSection = true
			} else {
				inKnownSection = false
			}
			continue
		}

		if !inKnownSection {
			continue
		}

		m := entryRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		date, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}

		rest := m[2]
		source := "unknown"
		if sm := sourceSuffixRe.FindStringSubmatch(rest); sm != nil {
			source = strings.TrimSpace(sm[1])
			rest = strings.TrimSpace(sourceSuffixRe.ReplaceAllString(rest, ""))
		}

		chunks = append(chunks, Chunk{
			Section: currentSection,
			Date:    date,
			Text:    strings.TrimSpace(rest),
			Source:  source,
		})
	}

	logging.ChunkerDebug("parsed %d chunks from knowledge content", len(chunks))
	return chunks
}
