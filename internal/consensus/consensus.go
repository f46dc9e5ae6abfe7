// Package consensus computes the Consensus Score (CS) from validated,
// deduplicated findings and applies the Minority Protection Rule for
// high-severity security/reliability findings.
package consensus

import (
	"fmt"

	"reviewcore/internal/fingerprint"
	"reviewcore/internal/logging"
	"reviewcore/internal/validator"
)

// Tier is the classification bucket a Consensus Score (or an individual
// R_i) falls into.
type Tier string

const (
	TierInformational Tier = "informational"
	TierModerate       Tier = "moderate"
	TierImportant      Tier = "important"
	TierCritical       Tier = "critical"
)

// Classify is a total function [0,10] -> {informational, moderate,
// important, critical}.
func Classify(score float64) Tier {
	switch {
	case score < 4:
		return TierInformational
	case score < 7:
		return TierModerate
	case score < 9:
		return TierImportant
	default:
		return TierCritical
	}
}

// ReviewerCount is the fixed number of specialist reviewers the formula
// normalizes against.
const ReviewerCount = 5

// minorityProtectionReviewers are the reviewer lenses whose high-severity
// findings can trigger the Minority Protection Rule.
var minorityProtectionReviewers = map[string]bool{
	"security":    true,
	"reliability": true,
}

// minorityProtectionRMaxThreshold and the MPR formula's constants are fixed
// by the scoring contract, not configurable per review.
const minorityProtectionRMaxThreshold = 8.5

// ScoredFinding pairs a validated finding with its per-finding risk score.
type ScoredFinding struct {
	Finding    fingerprint.DeduplicatedFinding
	Status     validator.Status
	Confidence float64
	RI         float64
	Tier       Tier
}

// Result is the outcome of scoring a full batch of validated findings.
type Result struct {
	CS                        float64
	Tier                      Tier
	Findings                  []ScoredFinding
	RBar                      float64
	RMax                      float64
	KTotal                    int
	N                         int
	Passed                    bool
	MinorityProtectionApplied bool
	Summary                   string
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Calculate computes the Consensus Score from a set of validated findings.
// Empty input yields CS=0, R_bar=0, R_max=0, k_total=0, tier=informational,
// passed=true.
func Calculate(validated []validator.ValidatedFinding) Result {
	if len(validated) == 0 {
		return Result{
			Tier:    TierInformational,
			Passed:  true,
			N:       ReviewerCount,
			Summary: "CS=0.00 (informational): 0 finding(s), review passed",
		}
	}

	scored := make([]ScoredFinding, 0, len(validated))
	var sumRI, maxRI float64
	var kTotal int

	for _, v := range validated {
		ri := clamp(v.Finding.Severity*v.Confidence/10.0, 0, 10)
		scored = append(scored, ScoredFinding{
			Finding:    v.Finding,
			Status:     v.Status,
			Confidence: v.Confidence,
			RI:         ri,
			Tier:       Classify(ri),
		})
		sumRI += ri
		if ri > maxRI {
			maxRI = ri
		}
		kTotal += v.Finding.K
	}

	rBar := sumRI / float64(len(scored))
	rMax := maxRI
	n := ReviewerCount

	cs := 0.5*rBar + 0.3*rBar*(float64(kTotal)/float64(n)) + 0.2*rMax

	csFinal, mprApplied := applyMinorityProtection(scored, rMax, cs)

	sortScoredFindings(scored)

	tier := Classify(csFinal)
	passed := tier == TierInformational || tier == TierModerate

	result := Result{
		CS:                        csFinal,
		Tier:                      tier,
		Findings:                  scored,
		RBar:                      rBar,
		RMax:                      rMax,
		KTotal:                    kTotal,
		N:                         n,
		Passed:                    passed,
		MinorityProtectionApplied: mprApplied,
	}
	result.Summary = summarize(result)

	logging.Consensus("CS=%.2f tier=%s passed=%v mpr=%v findings=%d", csFinal, tier, passed, mprApplied, len(scored))
	return result
}

// applyMinorityProtection identifies the finding that produced R_max; if its
// reviewer set intersects {security, reliability}, R_max >= 8.5, and k >= 1,
// CS_final = max(CS, 0.7*R_max + 2.0). MPR examines only the R_max finding's
// reviewer set — a high-value finding from a non-protected domain never
// triggers it, even if a protected-domain reviewer flagged something else
// at a lower R_i.
func applyMinorityProtection(scored []ScoredFinding, rMax, cs float64) (float64, bool) {
	if rMax < minorityProtectionRMaxThreshold {
		return cs, false
	}

	var rMaxFinding *ScoredFinding
	for i := range scored {
		if scored[i].RI == rMax {
			rMaxFinding = &scored[i]
			break
		}
	}
	if rMaxFinding == nil || rMaxFinding.Finding.K < 1 {
		return cs, false
	}

	protected := false
	for _, id := range rMaxFinding.Finding.ReviewerIDs {
		if minorityProtectionReviewers[id] {
			protected = true
			break
		}
	}
	if !protected {
		return cs, false
	}

	floor := 0.7*rMax + 2.0
	if floor > cs {
		return floor, true
	}
	// Still "applied" in the sense the rule's conditions were met, but the
	// raw CS already dominates; P5 (MPR monotonicity) only requires
	// CS_final >= CS_raw, which holds either way.
	return cs, true
}

// sortScoredFindings sorts by R_i descending, ties broken by
// (file, line_start, category).
func sortScoredFindings(scored []ScoredFinding) {
	for i := 0; i < len(scored); i++ {
		for j := i + 1; j < len(scored); j++ {
			if less(scored[j], scored[i]) {
				scored[i], scored[j] = scored[j], scored[i]
			}
		}
	}
}

func less(a, b ScoredFinding) bool {
	if a.RI != b.RI {
		return a.RI > b.RI
	}
	if a.Finding.File != b.Finding.File {
		return a.Finding.File < b.Finding.File
	}
	if a.Finding.LineStart != b.Finding.LineStart {
		return a.Finding.LineStart < b.Finding.LineStart
	}
	return a.Finding.Category < b.Finding.Category
}

func summarize(r Result) string {
	status := "passed"
	if !r.Passed {
		status = "FAILED"
	}
	suffix := ""
	if r.MinorityProtectionApplied {
		suffix = ", minority protection applied"
	}
	return fmt.Sprintf("CS=%.2f (%s): %d finding(s), review %s%s", r.CS, r.Tier, len(r.Findings), status, suffix)
}
