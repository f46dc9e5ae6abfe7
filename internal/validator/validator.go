// Package validator implements the three-layer Finding Validator: structural
// line verification, an LLM cross-check hook, and a historical pattern
// match against the Knowledge Retriever. Every layer fails open — an
// internal failure logs and leaves the finding in its prior state, it
// never aborts validation.
package validator

import (
	"context"
	"fmt"
	"strings"

	"reviewcore/internal/fingerprint"
	"reviewcore/internal/logging"
)

// Status is the outcome of validating a deduplicated finding.
type Status string

const (
	StatusVerified             Status = "VERIFIED"
	StatusUnverified           Status = "UNVERIFIED"
	StatusDisputed             Status = "DISPUTED"
	StatusHistoricallyRejected Status = "HISTORICALLY_REJECTED"
)

// weightMap is a deterministic, pure function of Status (the consensus
// scorer's P7 weight-determinism guarantee).
var weightMap = map[Status]float64{
	StatusVerified:             1.0,
	StatusUnverified:           0.5,
	StatusDisputed:             0.2,
	StatusHistoricallyRejected: 0.0,
}

// Weight returns the scoring weight for a validation status.
func Weight(s Status) float64 {
	return weightMap[s]
}

// ValidatedFinding is a deduplicated finding plus the validator's verdict.
type ValidatedFinding struct {
	Finding         fingerprint.DeduplicatedFinding
	Status          Status
	Confidence      float64
	ValidationNotes []string
	Weight          float64
}

// FileReader reads a source file's lines for structural validation.
// Production callers back this with os.ReadFile; tests stub it.
type FileReader func(path string) ([]string, error)

// Retriever is the narrow interface the historical layer needs from the
// Knowledge Retriever (internal/rag.Retriever satisfies this).
type Retriever interface {
	Search(ctx context.Context, query string, topK int) ([]RetrievedChunk, error)
}

// RetrievedChunk mirrors the text the historical layer scans for
// "accepted"/"rejected" markers.
type RetrievedChunk struct {
	Text string
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 10 {
		return 10
	}
	return c
}

// layer1Structural verifies that the finding's line actually exists, is
// non-blank, and — for Python files — is not a pure comment line.
func layer1Structural(readFile FileReader, f fingerprint.DeduplicatedFinding, confidence float64) (Status, float64, string) {
	if readFile == nil {
		return StatusVerified, confidence, ""
	}

	lines, err := readFile(f.File)
	if err != nil {
		return StatusUnverified, confidence / 2, fmt.Sprintf("structural: could not read %s: %v", f.File, err)
	}

	idx := f.LineStart - 1
	if idx < 0 || idx >= len(lines) {
		return StatusUnverified, confidence / 2, fmt.Sprintf("structural: line %d out of range for %s", f.LineStart, f.File)
	}

	line := strings.TrimSpace(lines[idx])
	if line == "" {
		return StatusUnverified, confidence / 2, "structural: cited line is blank"
	}

	if strings.HasSuffix(f.File, ".py") && strings.HasPrefix(line, "#") {
		return StatusUnverified, confidence / 2, "structural: cited line is a pure comment"
	}

	return StatusVerified, confidence, ""
}

// CrossCheckTask is what a caller dispatches to a cheap model for Layer 2.
type CrossCheckTask struct {
	Model  string
	Prompt string
}

// CrossCheckModel is the fixed cheap model used for Layer 2 verification,
// matching the Model Router's validation_cross_check default.
const CrossCheckModel = "claude-haiku-4-5-20251001"

// BuildCrossCheckTask prepares the cheap-model verification prompt for a
// finding. The validator never executes this itself — the caller is free
// to skip it, batch it, or route it elsewhere.
func BuildCrossCheckTask(f fingerprint.DeduplicatedFinding, snippet string) CrossCheckTask {
	prompt := fmt.Sprintf(
		"You are verifying a code review finding. Answer YES or NO on the first line: does this finding accurately describe a real issue in the snippet?\n\nFinding category: %s\n%s\n\nCode (lines %d-%d):\n%s",
		f.Category, f.Description, f.LineStart, f.LineEnd, snippet,
	)
	return CrossCheckTask{Model: CrossCheckModel, Prompt: prompt}
}

// ApplyCrossCheckResult parses a Layer 2 response. Parsing is case
// insensitive on the first non-empty line: NO disputes the finding at 0.3x
// confidence, YES or anything unrecognized leaves status unchanged.
func ApplyCrossCheckResult(status Status, confidence float64, response string) (Status, float64) {
	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.EqualFold(trimmed, "NO") {
			return StatusDisputed, clampConfidence(confidence * 0.3)
		}
		return status, clampConfidence(confidence)
	}
	return status, clampConfidence(confidence)
}

// layer3Historical queries the retriever with the finding's category and
// description for prior treatment of similar findings; findings with no
// reviewer IDs skip this layer. "rejected" anywhere
// in the results overrides to HISTORICALLY_REJECTED; otherwise "accepted"
// boosts confidence 1.2x (capped at 10.0). Empty results leave state
// unchanged.
func layer3Historical(ctx context.Context, retriever Retriever, f fingerprint.DeduplicatedFinding, status Status, confidence float64) (Status, float64, string) {
	if retriever == nil || len(f.ReviewerIDs) == 0 {
		return status, confidence, ""
	}

	query := f.Category + " " + f.Description
	chunks, err := retriever.Search(ctx, query, 5)
	if err != nil {
		logging.ValidatorWarn("historical layer: retriever search failed, leaving status unchanged: %v", err)
		return status, confidence, ""
	}
	if len(chunks) == 0 {
		return status, confidence, ""
	}

	hasRejected, hasAccepted := false, false
	for _, c := range chunks {
		lower := strings.ToLower(c.Text)
		if strings.Contains(lower, "rejected") {
			hasRejected = true
		}
		if strings.Contains(lower, "accepted") {
			hasAccepted = true
		}
	}

	if hasRejected {
		return StatusHistoricallyRejected, confidence, "historical: matched a previously rejected finding"
	}
	if hasAccepted {
		return status, clampConfidence(confidence * 1.2), "historical: matched a previously accepted finding"
	}
	return status, confidence, ""
}

// Options controls which layers Validate runs.
type Options struct {
	ReadFile       FileReader
	Retriever      Retriever
	SkipCrossCheck bool // Layer 2 is never executed inline regardless; this only gates whether a caller should bother building the task
}

// Validate runs Layer 1 (structural) and Layer 3 (historical) against a
// deduplicated finding. Layer 2 is exposed separately via
// BuildCrossCheckTask/ApplyCrossCheckResult since dispatching to a model is
// an orchestration concern, not the validator's — see Options.SkipCrossCheck
// for whether the orchestrator should bother.
func Validate(ctx context.Context, opts Options, f fingerprint.DeduplicatedFinding) ValidatedFinding {
	confidence := clampConfidence(f.Confidence)
	var notes []string

	status, confidence, note := layer1Structural(opts.ReadFile, f, confidence)
	if note != "" {
		notes = append(notes, note)
	}

	status, confidence, note = layer3Historical(ctx, opts.Retriever, f, status, confidence)
	if note != "" {
		notes = append(notes, note)
	}

	logging.Validator("finding %s validated as %s (confidence=%.2f)", f.Fingerprint, status, confidence)

	return ValidatedFinding{
		Finding:         f,
		Status:          status,
		Confidence:      confidence,
		ValidationNotes: notes,
		Weight:          Weight(status),
	}
}
