// Package drift scans reviewer KNOWLEDGE.md files for staleness, bloat,
// internal contradictions, and references to files that no longer exist,
// and watches the reviewers root for live changes via fsnotify.
package drift

import (
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/fsnotify/fsnotify"

	"reviewcore/internal/chunker"
	"reviewcore/internal/logging"
)

// SignalType classifies a drift finding.
type SignalType string

const (
	SignalStale          SignalType = "stale"
	SignalBloated        SignalType = "bloated"
	SignalContradictory  SignalType = "contradictory"
	SignalOrphaned       SignalType = "orphaned"
)

// Severity is the drift signal's impact level.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Signal is a single drift finding against one reviewer's knowledge file.
type Signal struct {
	ReviewerID string
	SignalType SignalType
	Severity   Severity
	Detail     string
}

const staleDays = 90
const bloatedEntryCount = 50

var sourceFileStemRe = regexp.MustCompile(`^([^:]+)`)

// stem strips the trailing ":line" from a "Source:" reference, e.g.
// "app/db.py:42" -> "app/db.py". The extension is kept: it's part of the
// file path, not the line locator.
func stem(source string) string {
	return sourceFileStemRe.FindString(source)
}

// ScanReviewer checks one reviewer's KNOWLEDGE.md for all four drift
// signal types.
func ScanReviewer(reviewerID, knowledgePath, projectRoot string, now time.Time) []Signal {
	data, err := os.ReadFile(knowledgePath)
	if err != nil {
		return nil
	}

	chunks := chunker.Parse(string(data))
	var signals []Signal

	if len(chunks) > bloatedEntryCount {
		signals = append(signals, Signal{
			ReviewerID: reviewerID,
			SignalType: SignalBloated,
			Severity:   SeverityHigh,
			Detail:     "knowledge file has more than 50 entries",
		})
	}

	patternsFound := map[string]bool{}
	falsePositives := map[string]bool{}

	for _, c := range chunks {
		if now.Sub(c.Date) > staleDays*24*time.Hour {
			signals = append(signals, Signal{
				ReviewerID: reviewerID,
				SignalType: SignalStale,
				Severity:   SeverityMedium,
				Detail:     "entry dated " + c.Date.Format("2006-01-02") + " is older than 90 days",
			})
		}

		if c.Source != "unknown" && c.Source != "" {
			s := stem(c.Source)
			switch c.Section {
			case chunker.SectionPatternsFound:
				patternsFound[s] = true
			case chunker.SectionFalsePositivesToAvoid:
				falsePositives[s] = true
			}

			if projectRoot != "" {
				if _, err := os.Stat(filepath.Join(projectRoot, s)); os.IsNotExist(err) {
					signals = append(signals, Signal{
						ReviewerID: reviewerID,
						SignalType: SignalOrphaned,
						Severity:   SeverityLow,
						Detail:     "referenced file does not exist: " + s,
					})
				}
			}
		}
	}

	for s := range patternsFound {
		if falsePositives[s] {
			signals = append(signals, Signal{
				ReviewerID: reviewerID,
				SignalType: SignalContradictory,
				Severity:   SeverityHigh,
				Detail:     s + " appears in both Patterns Found and False Positives to Avoid",
			})
		}
	}

	return signals
}

// Recommendation is the aggregate verdict across a reviewer's signals.
type Recommendation string

const (
	RecommendationHealthy     Recommendation = "healthy"
	RecommendationNeedsReview Recommendation = "needs_review"
	RecommendationNeedsPrune  Recommendation = "needs_pruning"
)

// Recommend aggregates a reviewer's signals into one recommendation: any
// contradictory signal wins, else any bloated/stale wins, else healthy.
func Recommend(signals []Signal) Recommendation {
	hasContradictory, hasBloatedOrStale := false, false
	for _, s := range signals {
		switch s.SignalType {
		case SignalContradictory:
			hasContradictory = true
		case SignalBloated, SignalStale:
			hasBloatedOrStale = true
		}
	}
	switch {
	case hasContradictory:
		return RecommendationNeedsReview
	case hasBloatedOrStale:
		return RecommendationNeedsPrune
	default:
		return RecommendationHealthy
	}
}

// Report is the result of scanning every reviewer under a reviewers root.
type Report struct {
	Signals      []Signal
	HealthyCount int
}

// ScanAll scans every <reviewer_id>/KNOWLEDGE.md under reviewersRoot.
func ScanAll(reviewersRoot, projectRoot string, now time.Time) Report {
	var report Report

	entries, err := os.ReadDir(reviewersRoot)
	if err != nil {
		logging.DriftWarn("failed to read reviewers root %s: %v", reviewersRoot, err)
		return report
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		reviewerID := entry.Name()
		knowledgePath := filepath.Join(reviewersRoot, reviewerID, "KNOWLEDGE.md")
		signals := ScanReviewer(reviewerID, knowledgePath, projectRoot, now)
		if len(signals) == 0 {
			report.HealthyCount++
		}
		report.Signals = append(report.Signals, signals...)
	}

	logging.Drift("drift scan found %d signal(s) across %d reviewer(s)", len(report.Signals), len(entries))
	return report
}

// Watcher watches a reviewers root for KNOWLEDGE.md changes and invokes
// onChange with the affected reviewer id whenever a file is written.
type Watcher struct {
	fsw *fsnotify.Watcher
}

// NewWatcher starts watching every reviewer directory under reviewersRoot.
func NewWatcher(reviewersRoot string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(reviewersRoot)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			_ = fsw.Add(filepath.Join(reviewersRoot, entry.Name()))
		}
	}

	return &Watcher{fsw: fsw}, nil
}

// Run blocks, invoking onChange(reviewerID) whenever a KNOWLEDGE.md file is
// written, until stop is closed.
func (w *Watcher) Run(stop <-chan struct{}, onChange func(reviewerID string)) {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Base(event.Name) != "KNOWLEDGE.md" {
				continue
			}
			reviewerID := filepath.Base(filepath.Dir(event.Name))
			onChange(reviewerID)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.DriftWarn("watcher error: %v", err)
		case <-stop:
			return
		}
	}
}

// Close releases the underlying file watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
