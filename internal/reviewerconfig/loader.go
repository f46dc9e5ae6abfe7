// Package reviewerconfig loads the five fixed specialist reviewer
// configurations from their PROMPT.md/KNOWLEDGE.md files and gates their
// relevance against a changed-file list.
package reviewerconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"reviewcore/internal/logging"
)

// ReviewerIDs is the fixed set of five specialist reviewer lenses.
var ReviewerIDs = []string{"security", "correctness", "performance", "maintainability", "reliability"}

var defaultTemperatures = map[string]float64{
	"security":        0.3,
	"correctness":     0.5,
	"performance":     0.4,
	"maintainability": 0.6,
	"reliability":     0.4,
}

// domainExtensions gates relevance: a reviewer is relevant to a diff iff any
// changed file's extension is in its set, or the set contains "*".
var domainExtensions = map[string]map[string]bool{
	"security": extSet(".py", ".js", ".ts", ".go", ".java", ".rb", ".php", ".sh", ".sql", ".yml", ".yaml", ".json", ".env", ".toml"),
	"correctness": extSet(".py", ".js", ".ts", ".go", ".java", ".rb", ".rs", ".c", ".cpp", ".cs"),
	"performance": extSet(".py", ".js", ".ts", ".go", ".java", ".rs", ".sql", ".c", ".cpp"),
	"maintainability": {"*": true},
	"reliability": extSet(".py", ".js", ".ts", ".go", ".java", ".rs", ".c", ".cpp"),
}

func extSet(exts ...string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[e] = true
	}
	return set
}

// Config is a loaded reviewer's configuration.
type Config struct {
	ID          string
	Prompt      string
	Knowledge   string
	Temperature float64
	Relevant    bool
}

var temperatureRe = regexp.MustCompile(`(?m)##\s+Temperature\s*\n+\s*([\d.]+)`)

func parseTemperature(promptContent string, fallback float64) float64 {
	m := temperatureRe.FindStringSubmatch(promptContent)
	if m == nil {
		return fallback
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return fallback
	}
	return v
}

// IsRelevant reports whether a reviewer is relevant to the given changed
// files. A nil diffFiles list means every reviewer is relevant.
func IsRelevant(reviewerID string, diffFiles []string) bool {
	if len(diffFiles) == 0 {
		return true
	}
	exts, ok := domainExtensions[reviewerID]
	if !ok || exts["*"] {
		return true
	}
	for _, f := range diffFiles {
		if exts[strings.ToLower(filepath.Ext(f))] {
			return true
		}
	}
	return false
}

// Load loads reviewer id's configuration from reviewersDir/id/. PROMPT.md
// is required; its absence is an error. KNOWLEDGE.md is optional and
// defaults to "". diffFiles may be nil, in which case the reviewer is
// always marked relevant.
func Load(reviewersDir, id string, diffFiles []string) (*Config, error) {
	found := false
	for _, known := range ReviewerIDs {
		if known == id {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("unknown reviewer %q: valid reviewers are %v", id, ReviewerIDs)
	}

	dir := filepath.Join(reviewersDir, id)
	promptPath := filepath.Join(dir, "PROMPT.md")
	promptBytes, err := os.ReadFile(promptPath)
	if err != nil {
		return nil, fmt.Errorf("PROMPT.md not found for reviewer %q: %w", id, err)
	}

	knowledge := ""
	if kb, err := os.ReadFile(filepath.Join(dir, "KNOWLEDGE.md")); err == nil {
		knowledge = string(kb)
	}

	prompt := string(promptBytes)
	return &Config{
		ID:          id,
		Prompt:      prompt,
		Knowledge:   knowledge,
		Temperature: parseTemperature(prompt, defaultTemperatures[id]),
		Relevant:    IsRelevant(id, diffFiles),
	}, nil
}

// LoadAll loads every fixed reviewer id under reviewersDir, gated by
// diffFiles relevance. It errors if reviewersDir does not exist, or if any
// reviewer's PROMPT.md is missing.
func LoadAll(reviewersDir string, diffFiles []string) ([]*Config, error) {
	if _, err := os.Stat(reviewersDir); err != nil {
		return nil, fmt.Errorf("reviewers directory not found: %s: %w", reviewersDir, err)
	}

	configs := make([]*Config, 0, len(ReviewerIDs))
	for _, id := range ReviewerIDs {
		cfg, err := Load(reviewersDir, id, diffFiles)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	logging.Reviewer("loaded %d reviewer configs from %s", len(configs), reviewersDir)
	return configs, nil
}
