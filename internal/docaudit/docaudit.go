// Package docaudit implements the Documentation Gap Auditor: an
// analysis-only, fail-open component that flags documentation files which
// may need updating for a set of changed source files, and functions or
// classes added in a diff without a docstring. It never modifies files and
// never blocks a review.
package docaudit

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"reviewcore/internal/logging"
)

// DocGap is one documentation file that may need updating.
type DocGap struct {
	DocFile     string
	Reason      string
	ChangedFile string
	Confidence  string
}

// Report is the result of one documentation gap analysis run.
type Report struct {
	TaskID             string
	Gaps               []DocGap
	MissingDocstrings  []string
	Summary            string
}

var keyDocs = []string{"CLAUDE.md", "docs/README.md"}

// Audit analyzes changed files against docsRoot's markdown files and
// returns a report. It never returns an error; internal failures degrade
// to an empty, fail-open result with an explanatory summary.
func Audit(taskID string, files []string, diffContent, docsRoot string) (report Report) {
	defer func() {
		if r := recover(); r != nil {
			logging.DocAuditError("doc audit panicked for task %s, returning empty result: %v", taskID, r)
			report = Report{TaskID: taskID, Summary: "Doc audit unavailable (fail-open)."}
		}
	}()

	gaps := findDocGaps(files, docsRoot)
	missing := findMissingDocstrings(files, diffContent)

	return Report{
		TaskID:            taskID,
		Gaps:              gaps,
		MissingDocstrings: missing,
		Summary:           buildSummary(gaps, missing),
	}
}

func findDocGaps(files []string, docsRoot string) []DocGap {
	if docsRoot == "" {
		docsRoot = "docs"
	}

	var docFiles []string
	_ = filepath.WalkDir(docsRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || d == nil || d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".md") {
			docFiles = append(docFiles, path)
		}
		return nil
	})
	for _, key := range keyDocs {
		if info, err := os.Stat(key); err == nil && !info.IsDir() {
			docFiles = append(docFiles, key)
		}
	}
	if len(docFiles) == 0 {
		return nil
	}

	var gaps []DocGap
	for _, changed := range files {
		moduleName := strings.TrimSuffix(filepath.Base(changed), filepath.Ext(changed))

		for _, docPath := range docFiles {
			data, err := os.ReadFile(docPath)
			if err != nil {
				continue
			}
			content := string(data)

			switch {
			case strings.Contains(content, changed):
				gaps = append(gaps, DocGap{
					DocFile:     docPath,
					Reason:      fmt.Sprintf("Exact path %q found in doc", changed),
					ChangedFile: changed,
					Confidence:  "high",
				})
			case len(moduleName) > 3 && strings.Contains(strings.ToLower(content), strings.ToLower(moduleName)):
				gaps = append(gaps, DocGap{
					DocFile:     docPath,
					Reason:      fmt.Sprintf("Module name %q mentioned in doc", moduleName),
					ChangedFile: changed,
					Confidence:  "medium",
				})
			}
		}
	}
	return gaps
}

var (
	addedDefRe   = regexp.MustCompile(`^(?:async\s+)?def\s+(\w+)`)
	addedClassRe = regexp.MustCompile(`^class\s+(\w+)`)
	defLineRe    = regexp.MustCompile(`^(?:async\s+)?def\s+(\w+)\s*\(`)
	classLineRe  = regexp.MustCompile(`^class\s+(\w+)`)
)

func findMissingDocstrings(files []string, diffContent string) []string {
	if strings.TrimSpace(diffContent) == "" {
		return nil
	}

	addedNames := map[string]bool{}
	for _, line := range strings.Split(diffContent, "\n") {
		if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
			continue
		}
		stripped := strings.TrimSpace(line[1:])
		if m := addedDefRe.FindStringSubmatch(stripped); m != nil {
			addedNames[m[1]] = true
		}
		if m := addedClassRe.FindStringSubmatch(stripped); m != nil {
			addedNames[m[1]] = true
		}
	}
	if len(addedNames) == 0 {
		return nil
	}

	var missing []string
	for _, path := range files {
		if filepath.Ext(path) != ".py" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		missing = append(missing, scanPythonFileForMissingDocstrings(path, string(data), addedNames)...)
	}
	return missing
}

// scanPythonFileForMissingDocstrings heuristically detects a missing
// docstring: the first non-blank line after a def/class header is not a
// triple-quoted string.
func scanPythonFileForMissingDocstrings(path, content string, addedNames map[string]bool) []string {
	lines := strings.Split(content, "\n")
	var missing []string

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		var name, kind string
		if m := defLineRe.FindStringSubmatch(trimmed); m != nil {
			name, kind = m[1], "def"
		} else if m := classLineRe.FindStringSubmatch(trimmed); m != nil {
			name, kind = m[1], "class"
		} else {
			continue
		}
		if !addedNames[name] {
			continue
		}

		hasDocstring := false
		for j := i + 1; j < len(lines); j++ {
			next := strings.TrimSpace(lines[j])
			if next == "" {
				continue
			}
			hasDocstring = strings.HasPrefix(next, `"""`) || strings.HasPrefix(next, "'''")
			break
		}
		if !hasDocstring {
			missing = append(missing, fmt.Sprintf("%s:%d: %s %s", path, i+1, kind, name))
		}
	}
	return missing
}

func buildSummary(gaps []DocGap, missing []string) string {
	var parts []string
	if len(gaps) > 0 {
		high, med := 0, 0
		for _, g := range gaps {
			switch g.Confidence {
			case "high":
				high++
			case "medium":
				med++
			}
		}
		parts = append(parts, fmt.Sprintf("%d doc file(s) may need updating (%d high, %d medium confidence)", len(gaps), high, med))
	} else {
		parts = append(parts, "No documentation gaps detected")
	}
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("%d function(s)/class(es) missing docstrings", len(missing)))
	}
	return strings.Join(parts, ". ") + "."
}
