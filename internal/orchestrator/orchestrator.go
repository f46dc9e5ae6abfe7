// Package orchestrator drives the prepare→dispatch→parse→dedupe→validate→
// score→report pipeline that composes the Reviewer Engine, Fingerprinter,
// Finding Validator, and Consensus Score calculator into one review run.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"reviewcore/internal/bypass"
	"reviewcore/internal/consensus"
	"reviewcore/internal/docaudit"
	"reviewcore/internal/engine"
	"reviewcore/internal/fingerprint"
	"reviewcore/internal/logging"
	"reviewcore/internal/router"
	"reviewcore/internal/validator"
)

// Request is one review run's input.
type Request struct {
	TaskID     string
	Files      []string
	Diff       string
	Properties []engine.Property
}

// Result is one review run's final outcome.
type Result struct {
	TaskID     string
	Consensus  consensus.Result
	ReportPath string
	Passed     bool
	DocAudit   *docaudit.Report
}

// Options configures an orchestrator run.
type Options struct {
	ReviewersDir     string
	ModelRouter      *router.Router
	SingleModel      string
	Retriever        engine.KnowledgeRetriever
	ValidatorOptions validator.Options
	SkipValidation   bool
	DocsRoot         string
}

// PrepareReview runs Reviewer Engine phase 1, producing one task per fixed
// reviewer for an external dispatcher to execute.
func PrepareReview(request Request, opts Options) ([]engine.Task, error) {
	return engine.PrepareReviewTasks(opts.ReviewersDir, engine.PrepareOptions{
		Files:       request.Files,
		DiffContent: request.Diff,
		Properties:  request.Properties,
		Retriever:   opts.Retriever,
		ModelRouter: opts.ModelRouter,
		SingleModel: opts.SingleModel,
	})
}

// FinalizeReview runs Reviewer Engine phase 2 plus the fingerprint→validate→
// consensus pipeline, renders a markdown report under outputDir, and
// returns the Result.
func FinalizeReview(ctx context.Context, request Request, responses []engine.RawResponse, outputDir string, opts Options) (*Result, error) {
	if err := validateOutputPath(outputDir); err != nil {
		return nil, err
	}

	reviewerResults := engine.ParseResults(responses)

	var findings []fingerprint.Finding
	for _, rr := range reviewerResults {
		for _, f := range rr.Findings {
			findings = append(findings, findingFromMap(rr.ReviewerID, f))
		}
	}

	deduped := fingerprint.Deduplicate(findings)

	var validated []validator.ValidatedFinding
	if opts.SkipValidation {
		for _, d := range deduped {
			validated = append(validated, validator.ValidatedFinding{
				Finding:    d,
				Status:     validator.StatusUnverified,
				Confidence: d.Confidence,
				Weight:     validator.Weight(validator.StatusUnverified),
			})
		}
	} else {
		vopts := opts.ValidatorOptions
		vopts.SkipCrossCheck = true
		for _, d := range deduped {
			validated = append(validated, validator.Validate(ctx, vopts, d))
		}
	}

	result := consensus.Calculate(validated)

	var docReport *docaudit.Report
	if opts.DocsRoot != "" {
		r := docaudit.Audit(request.TaskID, request.Files, request.Diff, opts.DocsRoot)
		docReport = &r
	}

	reportPath := filepath.Join(outputDir, fmt.Sprintf("REVIEW-%s.md", request.TaskID))
	report := renderReport(request, reviewerResults, result, docReport)
	if err := os.MkdirAll(filepath.Dir(reportPath), 0755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(reportPath, []byte(report), 0644); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	logging.Orchestrator("finalized review %s: tier=%s passed=%v report=%s", request.TaskID, result.Tier, result.Passed, reportPath)

	return &Result{
		TaskID:     request.TaskID,
		Consensus:  result,
		ReportPath: reportPath,
		Passed:     result.Passed,
		DocAudit:   docReport,
	}, nil
}

func findingFromMap(reviewerID string, m map[string]any) fingerprint.Finding {
	f := fingerprint.Finding{ReviewerID: reviewerID}
	if v, ok := m["file"].(string); ok {
		f.File = v
	}
	f.LineStart = intOf(m["line_start"])
	f.LineEnd = intOf(m["line_end"])
	if f.LineEnd == 0 {
		f.LineEnd = f.LineStart
	}
	if v, ok := m["category"].(string); ok {
		f.Category = v
	}
	f.Severity = floatOf(m["severity"])
	f.Confidence = floatOf(m["confidence"])
	if f.Confidence == 0 {
		f.Confidence = 1.0
	}
	if v, ok := m["description"].(string); ok {
		f.Description = v
	}
	if v, ok := m["remediation"].(string); ok {
		f.Remediation = v
	}
	return f
}

func intOf(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return 0
}

func floatOf(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return 0
}

var sensitiveDirs = []string{"/etc", "/bin", "/sbin", "/usr/bin", "/usr/sbin", "/System"}

// validateOutputPath rejects non-absolute paths and paths under sensitive
// system roots, and creates any missing parent directory.
func validateOutputPath(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("output path must be absolute: %s", path)
	}
	resolved, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	home, _ := os.UserHomeDir()
	blocked := append([]string{}, sensitiveDirs...)
	if home != "" {
		blocked = append(blocked, filepath.Join(home, ".ssh"), filepath.Join(home, ".aws"))
	}
	for _, s := range blocked {
		if resolved == s || strings.HasPrefix(resolved, s+string(filepath.Separator)) {
			return fmt.Errorf("cannot write to sensitive directory: %s", resolved)
		}
	}

	if err := os.MkdirAll(resolved, 0755); err != nil {
		return fmt.Errorf("cannot create output directory %s: %w", resolved, err)
	}
	return nil
}

func renderReport(request Request, reviewerResults []engine.Result, result consensus.Result, docReport *docaudit.Report) string {
	var b strings.Builder

	status := "FAILED"
	if result.Passed {
		status = "PASSED"
	}

	fmt.Fprintf(&b, "# Review Result: %s\n\n", status)
	fmt.Fprintf(&b, "**Task:** %s\n\n", request.TaskID)
	fmt.Fprintf(&b, "**Consensus Score:** %.2f (%s)\n\n", result.CS, result.Tier)
	fmt.Fprintf(&b, "%s\n\n", result.Summary)

	b.WriteString("## Reviewer Summaries\n\n")
	byID := map[string]engine.Result{}
	for _, rr := range reviewerResults {
		byID[rr.ReviewerID] = rr
	}
	for _, id := range []string{"security", "correctness", "performance", "maintainability", "reliability"} {
		rr, ok := byID[id]
		if !ok {
			fmt.Fprintf(&b, "- **%s**: skipped (not relevant)\n", id)
			continue
		}
		if !rr.Relevant {
			fmt.Fprintf(&b, "- **%s**: skipped (not relevant)\n", rr.ReviewerName)
			continue
		}
		fmt.Fprintf(&b, "- **%s** (score %.1f): %s\n", rr.ReviewerName, rr.Score, rr.Summary)
	}

	b.WriteString("\n## Findings\n\n")
	if len(result.Findings) == 0 {
		b.WriteString("No findings.\n")
	} else {
		b.WriteString("| File:Line | Category | Severity | Confidence | k | Tier | Description |\n")
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for _, f := range result.Findings {
			fmt.Fprintf(&b, "| %s:%d | %s | %.1f | %.2f | %d | %s | %s |\n",
				f.Finding.File, f.Finding.LineStart, f.Finding.Category, f.Finding.Severity,
				f.Confidence, f.Finding.K, f.Tier, f.Finding.Description)
		}
	}

	if result.MinorityProtectionApplied {
		b.WriteString("\n> **Minority Protection Rule applied**: a high-confidence security/reliability finding set a score floor regardless of aggregate consensus.\n")
	}

	b.WriteString("\n## Documentation Audit\n\n")
	if docReport == nil {
		b.WriteString("Not run for this review.\n")
	} else {
		fmt.Fprintf(&b, "%s\n", docReport.Summary)
		for _, gap := range docReport.Gaps {
			fmt.Fprintf(&b, "- %s: %s (changed: %s, confidence %.2f)\n", gap.DocFile, gap.Reason, gap.ChangedFile, gap.Confidence)
		}
	}

	return b.String()
}

// CreateBypass records an emergency bypass for a task that could not
// complete a normal review, delegating to the bypass package.
func CreateBypass(auditPath, taskID, reason, bypassedBy string, csResult *consensus.Result) (bypass.Record, error) {
	return bypass.Create(auditPath, taskID, reason, bypassedBy, csResult)
}
