// Package fingerprint deduplicates findings that multiple reviewers raise
// independently against the same region of code.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"reviewcore/internal/logging"
)

// Finding is a single reviewer's raw finding.
type Finding struct {
	File        string
	LineStart   int
	LineEnd     int
	Category    string
	Severity    float64
	Confidence  float64
	Description string
	Remediation string
	ReviewerID  string
}

// valid reports whether a raw finding has the minimum fields required to
// fingerprint it. Malformed entries are dropped, never abort the batch.
func (f Finding) valid() bool {
	return f.File != "" && f.Category != "" && f.LineStart > 0
}

// lineBucketSize groups nearby line numbers into the same fingerprint
// bucket so two reviewers flagging the same defect a line or two apart
// still dedupe. Matches floor(line_start/3)*3.
const lineBucketSize = 3

func lineBucket(lineStart int) int {
	return (lineStart / lineBucketSize) * lineBucketSize
}

// Compute returns the stable fingerprint for a finding: SHA-256 of its
// file, a coarse line bucket, and its category.
func Compute(file string, lineStart int, category string) string {
	raw := fmt.Sprintf("%s:%d:%s", file, lineBucket(lineStart), category)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// DeduplicatedFinding is the merged result of one or more reviewers
// independently raising the same underlying issue.
type DeduplicatedFinding struct {
	Fingerprint string
	File        string
	LineStart   int
	LineEnd     int
	Category    string
	Severity    float64
	Confidence  float64
	Description string
	Descriptions []string
	Remediation  []string
	ReviewerIDs  []string
	K            int
}

// Deduplicate groups raw findings by fingerprint, merges each group, and
// returns the result sorted by severity descending. Malformed findings are
// dropped with a log rather than aborting the batch. Complexity is linear
// in the number of input findings.
func Deduplicate(findings []Finding) []DeduplicatedFinding {
	order := []string{}
	groups := make(map[string][]Finding)

	for _, f := range findings {
		if !f.valid() {
			logging.FingerprintDebug("dropping malformed finding: %+v", f)
			continue
		}
		fp := Compute(f.File, f.LineStart, f.Category)
		if _, ok := groups[fp]; !ok {
			order = append(order, fp)
		}
		groups[fp] = append(groups[fp], f)
	}

	results := make([]DeduplicatedFinding, 0, len(order))
	for _, fp := range order {
		results = append(results, merge(fp, groups[fp]))
	}

	// Stable sort by severity descending (bubble sort: dedup results are a
	// handful per review, never worth pulling in sort.Slice for).
	for i := 0; i < len(results); i++ {
		for j := 0; j < len(results)-1-i; j++ {
			if results[j+1].Severity > results[j].Severity {
				results[j], results[j+1] = results[j+1], results[j]
			}
		}
	}

	logging.Fingerprint("deduplicated %d findings into %d groups", len(findings), len(results))
	return results
}

// merge combines a fingerprint-matched group into one DeduplicatedFinding.
// severity/confidence take the group max; file/line_end/description come
// from the highest-severity member; descriptions/remediation/reviewer_ids
// are order-preserving deduped unions; k counts distinct reviewers.
func merge(fp string, group []Finding) DeduplicatedFinding {
	// Stable sort by severity descending so the highest-severity member is
	// first and dedup-bucket merging is deterministic given a stable input.
	for i := 0; i < len(group); i++ {
		for j := 0; j < len(group)-1-i; j++ {
			if group[j+1].Severity > group[j].Severity {
				group[j], group[j+1] = group[j+1], group[j]
			}
		}
	}

	primary := group[0]

	var maxSeverity, maxConfidence float64
	var descriptions, remediation, reviewerIDs []string
	seenDesc := make(map[string]bool)
	seenRem := make(map[string]bool)
	seenReviewer := make(map[string]bool)

	for _, f := range group {
		if f.Severity > maxSeverity {
			maxSeverity = f.Severity
		}
		if f.Confidence > maxConfidence {
			maxConfidence = f.Confidence
		}
		if f.Description != "" && !seenDesc[f.Description] {
			seenDesc[f.Description] = true
			descriptions = append(descriptions, f.Description)
		}
		if f.Remediation != "" && !seenRem[f.Remediation] {
			seenRem[f.Remediation] = true
			remediation = append(remediation, f.Remediation)
		}
		if f.ReviewerID != "" && !seenReviewer[f.ReviewerID] {
			seenReviewer[f.ReviewerID] = true
			reviewerIDs = append(reviewerIDs, f.ReviewerID)
		}
	}

	return DeduplicatedFinding{
		Fingerprint:  fp,
		File:         primary.File,
		LineStart:    primary.LineStart,
		LineEnd:      primary.LineEnd,
		Category:     primary.Category,
		Severity:     maxSeverity,
		Confidence:   maxConfidence,
		Description:  primary.Description,
		Descriptions: descriptions,
		Remediation:  remediation,
		ReviewerIDs:  reviewerIDs,
		K:            len(reviewerIDs),
	}
}
