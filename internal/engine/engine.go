// Package engine implements the two-phase Reviewer Engine: phase 1 composes
// sanitized per-reviewer prompts, phase 2 parses the raw text responses an
// external dispatcher collected back into structured results.
package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"reviewcore/internal/logging"
	"reviewcore/internal/reviewerconfig"
	"reviewcore/internal/router"
)

var reviewerNames = map[string]string{
	"security":        "Security Reviewer",
	"correctness":     "Correctness Reviewer",
	"performance":     "Performance Reviewer",
	"maintainability": "Maintainability Reviewer",
	"reliability":     "Reliability Reviewer",
}

func reviewerName(id string) string {
	if name, ok := reviewerNames[id]; ok {
		return name
	}
	return strings.Title(id) + " Reviewer"
}

const maxDiffChars = 50_000

var tripleBacktickRe = regexp.MustCompile("```")

// sanitize neutralizes triple-backtick fence-escaping attempts and truncates
// overlong diff/knowledge text before it is embedded in a prompt.
func sanitize(text string) string {
	text = tripleBacktickRe.ReplaceAllString(text, "` ` `")
	if len(text) > maxDiffChars {
		text = text[:maxDiffChars] + "\n[… truncated …]\n"
	}
	return text
}

// Property is a statement the review should verify, alongside the findings.
type Property struct {
	Type      string
	Statement string
}

// KnowledgeRetriever supplies a pre-formatted knowledge section for a
// reviewer/diff pair. *rag.Retriever implements it directly through its
// FormatForReviewer method.
type KnowledgeRetriever interface {
	FormatForReviewer(reviewerID, diffContent string) string
}

// Task is one reviewer's prepared request, ready for an external dispatcher
// to execute against an LLM.
type Task struct {
	ReviewerID   string
	ReviewerName string
	Prompt       string
	Temperature  float64
	Relevant     bool
	TokenCount   int
	Model        string
	HasModel     bool
}

// PrepareOptions configures phase 1 prompt composition.
type PrepareOptions struct {
	Files       []string
	DiffContent string
	Properties  []Property
	Retriever   KnowledgeRetriever
	ModelRouter *router.Router
	SingleModel string
}

// PrepareReviewTasks builds one task spec per fixed reviewer, loading
// configs from reviewersDir and gating relevance against opts.Files.
func PrepareReviewTasks(reviewersDir string, opts PrepareOptions) ([]Task, error) {
	configs, err := reviewerconfig.LoadAll(reviewersDir, opts.Files)
	if err != nil {
		return nil, err
	}

	diffLines := 0
	if opts.DiffContent != "" {
		diffLines = len(strings.Split(opts.DiffContent, "\n"))
	}

	// Each reviewer's prompt is independent and, when opts.Retriever is set,
	// may issue its own knowledge-store query — fan these out concurrently
	// rather than paying their latency serially.
	tasks := make([]Task, len(configs))
	var g errgroup.Group
	for i, cfg := range configs {
		i, cfg := i, cfg
		g.Go(func() error {
			prompt := buildTaskPrompt(cfg, opts)
			tokenCount := len(prompt) / 4

			task := Task{
				ReviewerID:   cfg.ID,
				ReviewerName: reviewerName(cfg.ID),
				Prompt:       prompt,
				Temperature:  cfg.Temperature,
				Relevant:     cfg.Relevant,
				TokenCount:   tokenCount,
			}
			switch {
			case opts.SingleModel != "":
				task.Model, task.HasModel = opts.SingleModel, true
			case opts.ModelRouter != nil:
				task.Model, task.HasModel = opts.ModelRouter.GetModel(cfg.ID, diffLines), true
			}
			tasks[i] = task
			return nil
		})
	}
	_ = g.Wait() // buildTaskPrompt never errors; kept for the fan-out shape

	totalTokens := 0
	relevantCount := 0
	for _, t := range tasks {
		totalTokens += t.TokenCount
		if t.Relevant {
			relevantCount++
		}
	}

	logging.Reviewer("prepared %d review tasks (%d relevant, ~%d total tokens)", len(tasks), relevantCount, totalTokens)
	return tasks, nil
}

func buildTaskPrompt(cfg *reviewerconfig.Config, opts PrepareOptions) string {
	var parts []string
	parts = append(parts, cfg.Prompt)

	diff := sanitize(opts.DiffContent)

	switch {
	case opts.Retriever != nil && opts.DiffContent != "":
		if section := opts.Retriever.FormatForReviewer(cfg.ID, opts.DiffContent); section != "" {
			parts = append(parts, "\n---\n", section)
		}
	case cfg.Knowledge != "":
		parts = append(parts, "\n---\n", "# Repository Knowledge\n", sanitize(cfg.Knowledge))
	}

	parts = append(parts, "\n---\n", "# Files to Review\n")
	if len(opts.Files) > 0 {
		for _, f := range opts.Files {
			parts = append(parts, "- `"+f+"`")
		}
	} else {
		parts = append(parts, "No files specified.")
	}

	if opts.DiffContent != "" {
		parts = append(parts, "\n# Diff\n", "```diff", diff, "```")
	}

	if len(opts.Properties) > 0 {
		parts = append(parts, "\n# Properties to Verify\n")
		for _, p := range opts.Properties {
			parts = append(parts, fmt.Sprintf("- **%s**: %s", p.Type, p.Statement))
		}
	}

	parts = append(parts, "\n---\n", "# Instructions\n",
		"Analyze the files and diff above according to your domain. "+
			"Return your findings as a JSON array of objects using the Output Format "+
			"defined in your prompt. If you find no issues, return an empty array `[]`.\n"+
			"After the findings array, provide a brief summary line starting with "+
			"`SUMMARY:` and a score line starting with `SCORE:` (0-10).")

	return strings.Join(parts, "\n")
}

// Result is one reviewer's parsed, structured output.
type Result struct {
	ReviewerID   string
	ReviewerName string
	Score        float64
	Passed       bool
	Findings     []map[string]any
	Summary      string
	Relevant     bool
	TokenCount   int
}

// RawResponse is the external dispatcher's raw text output for one reviewer.
type RawResponse struct {
	ReviewerID string
	Response   string
}

const maxResponseChars = 500_000

var (
	jsonArrayRe   = regexp.MustCompile(`(?s)\[.*?\]`)
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	bareBlockRe   = regexp.MustCompile(`\{[^{}]*\}`)
	scoreRe       = regexp.MustCompile(`SCORE:\s*([\d.]+)`)
	summaryRe     = regexp.MustCompile(`SUMMARY:\s*(.+)`)
)

// ParseResults parses every raw dispatcher response into a structured
// Result, never failing the batch on a single malformed response.
func ParseResults(responses []RawResponse) []Result {
	results := make([]Result, 0, len(responses))
	for _, item := range responses {
		id := item.ReviewerID
		if id == "" {
			id = "unknown"
		}
		name := reviewerName(id)

		if strings.TrimSpace(item.Response) == "" {
			results = append(results, Result{
				ReviewerID:   id,
				ReviewerName: name,
				Score:        0,
				Passed:       false,
				Summary:      "No response received from reviewer.",
				Relevant:     true,
			})
			continue
		}

		response := item.Response
		if len(response) > maxResponseChars {
			response = response[:maxResponseChars]
		}

		findings := parseFindings(response)
		score := extractScore(findings, response)
		summary := extractSummary(findings, response, id)

		results = append(results, Result{
			ReviewerID:   id,
			ReviewerName: name,
			Score:        score,
			Passed:       score >= 7.0,
			Findings:     findings,
			Summary:      summary,
			Relevant:     true,
		})
	}
	return results
}

func parseFindings(response string) []map[string]any {
	if m := jsonArrayRe.FindString(response); m != "" {
		if parsed, ok := parseJSONArray(m); ok && len(parsed) > 0 {
			return parsed
		}
	}

	var findings []map[string]any
	blocks := fencedBlockRe.FindAllStringSubmatch(response, -1)
	if len(blocks) == 0 {
		for _, m := range bareBlockRe.FindAllString(response, -1) {
			blocks = append(blocks, []string{m, m})
		}
	}
	for _, b := range blocks {
		if obj, ok := parseJSONObject(b[1]); ok {
			findings = append(findings, obj)
		}
	}
	return findings
}

func parseJSONArray(text string) ([]map[string]any, bool) {
	var raw []any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}
	findings := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			findings = append(findings, obj)
		}
	}
	return findings, true
}

func parseJSONObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

func extractScore(findings []map[string]any, response string) float64 {
	if m := scoreRe.FindStringSubmatch(response); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			if v < 0 {
				v = 0
			}
			if v > 10 {
				v = 10
			}
			return v
		}
	}
	if len(findings) == 0 {
		return 10.0
	}
	maxSeverity := 0.0
	for _, f := range findings {
		if s := severityOf(f); s > maxSeverity {
			maxSeverity = s
		}
	}
	score := 10.0 - maxSeverity
	if score < 0 {
		score = 0
	}
	return score
}

func severityOf(f map[string]any) float64 {
	v, ok := f["severity"]
	if !ok {
		return 1
	}
	switch n := v.(type) {
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return 1
}

func extractSummary(findings []map[string]any, response, reviewerID string) string {
	if m := summaryRe.FindStringSubmatch(response); m != nil {
		return strings.TrimSpace(m[1])
	}
	title := strings.Title(reviewerID)
	if len(findings) == 0 {
		return title + " review: no issues found."
	}
	highSev := 0
	for _, f := range findings {
		if severityOf(f) >= 7 {
			highSev++
		}
	}
	if highSev > 0 {
		return fmt.Sprintf("%s review: %d finding(s), %d high severity.", title, len(findings), highSev)
	}
	return fmt.Sprintf("%s review: %d finding(s).", title, len(findings))
}
