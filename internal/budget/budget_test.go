package budget

import (
	"testing"

	"reviewcore/internal/router"
)

func TestClassifyComplexityBoundaries(t *testing.T) {
	auto := router.DefaultConfig().AutoRouting
	cases := []struct {
		lines int
		want  Complexity
	}{
		{0, ComplexitySmall},
		{auto.SmallDiffLines - 1, ComplexitySmall},
		{auto.SmallDiffLines, ComplexityMedium},
		{auto.LargeDiffLines - 1, ComplexityMedium},
		{auto.LargeDiffLines, ComplexityLarge},
		{auto.LargeDiffLines*2 - 1, ComplexityLarge},
		{auto.LargeDiffLines * 2, ComplexityExtraLarge},
	}
	for _, c := range cases {
		if got := ClassifyComplexity(c.lines, auto); got != c.want {
			t.Errorf("lines=%d: expected %s, got %s", c.lines, c.want, got)
		}
	}
}

func TestNewBudgetUsesDefaultAllocation(t *testing.T) {
	b := NewBudget("task-1", ComplexityMedium)
	if b.BudgetTotal != 1000 || b.BudgetInput != 700 || b.BudgetOutput != 300 {
		t.Fatalf("unexpected default budget: %+v", b)
	}
}

func TestRecordUsageTracksWarnedAndExceeded(t *testing.T) {
	b := NewBudget("task-1", ComplexitySmall)
	b.RecordUsage(120, 50) // 170/200 = 85%, crosses the 80% warn threshold
	if !b.Warned {
		t.Fatalf("expected warned at 85%% usage: %+v", b)
	}
	if b.Exceeded {
		t.Fatalf("did not expect exceeded yet: %+v", b)
	}

	b2 := NewBudget("task-2", ComplexitySmall)
	b2.RecordUsage(150, 100)
	if !b2.Exceeded {
		t.Fatalf("expected exceeded after surpassing total budget: %+v", b2)
	}
}

func TestIsApproachingLimitZeroBudget(t *testing.T) {
	b := Budget{}
	if b.IsApproachingLimit(0.8) {
		t.Fatalf("expected zero-budget task to never approach the limit")
	}
}
