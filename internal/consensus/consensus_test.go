package consensus

import (
	"math"
	"testing"

	"reviewcore/internal/fingerprint"
	"reviewcore/internal/validator"
)

func vf(severity, confidence float64, k int, reviewerIDs []string) validator.ValidatedFinding {
	return validator.ValidatedFinding{
		Finding: fingerprint.DeduplicatedFinding{
			Severity:    severity,
			Confidence:  confidence,
			K:           k,
			ReviewerIDs: reviewerIDs,
		},
		Status:     validator.StatusVerified,
		Confidence: confidence,
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 0.01 }

func TestCalculateEmptyYieldsZero(t *testing.T) {
	r := Calculate(nil)
	if r.CS != 0 || r.Tier != TierInformational || !r.Passed {
		t.Fatalf("expected CS=0, informational, passed=true, got %+v", r)
	}
}

// S1 — Single security finding triggers MPR.
func TestS1SingleSecurityFindingTriggersMPR(t *testing.T) {
	findings := []validator.ValidatedFinding{
		vf(9.5, 10.0, 1, []string{"security"}),
	}
	r := Calculate(findings)
	if !approx(r.RMax, 9.5) {
		t.Fatalf("expected R_max=9.5, got %v", r.RMax)
	}
	if !approx(r.CS, 8.65) {
		t.Fatalf("expected CS_final=8.65, got %v", r.CS)
	}
	if r.Tier != TierImportant {
		t.Fatalf("expected tier=important, got %s", r.Tier)
	}
	if r.Passed {
		t.Fatalf("expected passed=false")
	}
	if !r.MinorityProtectionApplied {
		t.Fatalf("expected minority_protection_applied=true")
	}
}

// S2 — Two-reviewer agreement.
func TestS2TwoReviewerAgreement(t *testing.T) {
	findings := []validator.ValidatedFinding{
		vf(9.5, 9.0, 3, []string{"correctness", "performance", "maintainability"}),
		vf(6.0, 7.0, 2, []string{"maintainability", "reliability"}),
	}
	r := Calculate(findings)
	if !approx(r.RBar, 6.375) {
		t.Fatalf("expected R_bar=6.375, got %v", r.RBar)
	}
	if !approx(r.RMax, 8.55) {
		t.Fatalf("expected R_max=8.55, got %v", r.RMax)
	}
	if r.KTotal != 5 {
		t.Fatalf("expected k_total=5, got %d", r.KTotal)
	}
	if !approx(r.CS, 6.81) {
		t.Fatalf("expected CS=6.81, got %v", r.CS)
	}
	if r.Tier != TierModerate {
		t.Fatalf("expected tier=moderate, got %s", r.Tier)
	}
	if !r.Passed {
		t.Fatalf("expected passed=true")
	}
}

// S5 — MPR only fires on the max-R_i finding.
func TestS5MPROnlyFiresOnMaxFinding(t *testing.T) {
	findings := []validator.ValidatedFinding{
		vf(2.5, 10.0, 1, []string{"security"}),    // R_i = 2.5
		vf(9.5, 10.0, 1, []string{"performance"}), // R_i = 9.5 = R_max, not protected
	}
	r := Calculate(findings)
	if r.MinorityProtectionApplied {
		t.Fatalf("expected minority_protection_applied=false when R_max owner is not security/reliability")
	}
}

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  Tier
	}{
		{0, TierInformational},
		{3.99, TierInformational},
		{4, TierModerate},
		{6.99, TierModerate},
		{7, TierImportant},
		{8.99, TierImportant},
		{9, TierCritical},
		{10, TierCritical},
	}
	for _, c := range cases {
		if got := Classify(c.score); got != c.want {
			t.Fatalf("classify(%v) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestMPRMonotonicity(t *testing.T) {
	// When MPR fires, CS_final >= CS_raw; when it does not, CS_final == CS_raw (P5).
	fires := Calculate([]validator.ValidatedFinding{vf(9.5, 10.0, 1, []string{"security"})})
	if fires.CS < 7.22 {
		t.Fatalf("expected CS_final >= CS_raw when MPR fires, got %v", fires.CS)
	}

	noFire := Calculate([]validator.ValidatedFinding{vf(3.0, 5.0, 1, []string{"style"})})
	raw := 0.5*1.5 + 0.3*1.5*(1.0/5.0) + 0.2*1.5
	if !approx(noFire.CS, raw) {
		t.Fatalf("expected CS_final == CS_raw when MPR does not fire, got %v want %v", noFire.CS, raw)
	}
}

func TestSortedByRIDescendingThenTiebreak(t *testing.T) {
	findings := []validator.ValidatedFinding{
		{Finding: fingerprint.DeduplicatedFinding{File: "b.go", LineStart: 10, Category: "bug", Severity: 5, Confidence: 5}, Confidence: 5},
		{Finding: fingerprint.DeduplicatedFinding{File: "a.go", LineStart: 5, Category: "bug", Severity: 9, Confidence: 9}, Confidence: 9},
	}
	r := Calculate(findings)
	if r.Findings[0].Finding.File != "a.go" {
		t.Fatalf("expected highest R_i finding first, got %s", r.Findings[0].Finding.File)
	}
}
