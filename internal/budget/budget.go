// Package budget tracks per-review token and cost budgets, classifying
// task complexity from diff size and warning when usage approaches the
// allotted budget.
package budget

import (
	"reviewcore/internal/logging"
	"reviewcore/internal/router"
)

// Complexity buckets a review task by diff size.
type Complexity string

const (
	ComplexitySmall      Complexity = "S"
	ComplexityMedium     Complexity = "M"
	ComplexityLarge      Complexity = "L"
	ComplexityExtraLarge Complexity = "XL"
)

var defaultBudgets = map[Complexity]struct{ Input, Output, Total int }{
	ComplexitySmall:      {150, 50, 200},
	ComplexityMedium:     {700, 300, 1000},
	ComplexityLarge:      {1750, 750, 2500},
	ComplexityExtraLarge: {3500, 1500, 5000},
}

// ClassifyComplexity derives a task's complexity from its diff line count,
// using the same small/large thresholds the Model Router uses for
// diff-size-based routing.
func ClassifyComplexity(diffLines int, auto router.AutoRouting) Complexity {
	switch {
	case diffLines < auto.SmallDiffLines:
		return ComplexitySmall
	case diffLines < auto.LargeDiffLines:
		return ComplexityMedium
	case diffLines < auto.LargeDiffLines*2:
		return ComplexityLarge
	default:
		return ComplexityExtraLarge
	}
}

// Budget tracks one review task's token budget and actual usage.
type Budget struct {
	TaskID       string
	Complexity   Complexity
	BudgetTotal  int
	BudgetInput  int
	BudgetOutput int
	ActualInput  int
	ActualOutput int
	ActualTotal  int
	Warned       bool
	Exceeded     bool
}

// NewBudget creates a Budget for taskID sized by complexity's default
// allocation.
func NewBudget(taskID string, complexity Complexity) Budget {
	d := defaultBudgets[complexity]
	return Budget{
		TaskID:       taskID,
		Complexity:   complexity,
		BudgetTotal:  d.Total,
		BudgetInput:  d.Input,
		BudgetOutput: d.Output,
	}
}

// RecordUsage adds input/output token usage to the budget and updates the
// warned/exceeded flags in place.
func (b *Budget) RecordUsage(input, output int) {
	b.ActualInput += input
	b.ActualOutput += output
	b.ActualTotal = b.ActualInput + b.ActualOutput

	if b.IsApproachingLimit(0.8) && !b.Warned {
		b.Warned = true
		logging.BudgetWarn("task %s approaching token budget: %.0f%% used", b.TaskID, b.UsagePercentage())
	}
	if b.ActualTotal > b.BudgetTotal {
		b.Exceeded = true
	}
}

// UsagePercentage returns actual usage as a percentage of the total budget.
func (b *Budget) UsagePercentage() float64 {
	if b.BudgetTotal == 0 {
		return 0
	}
	return (float64(b.ActualTotal) / float64(b.BudgetTotal)) * 100
}

// IsApproachingLimit reports whether usage has crossed threshold (as a
// fraction, e.g. 0.8 for 80%) of the total budget.
func (b *Budget) IsApproachingLimit(threshold float64) bool {
	return b.UsagePercentage() >= threshold*100
}
