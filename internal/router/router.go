// Package router implements the Model Router: per-reviewer model selection
// based on diff size, with hardcoded fallbacks when no routing config file
// is present.
package router

import (
	"encoding/json"
	"os"

	"reviewcore/internal/logging"
)

// AutoRouting controls diff-size-based model selection.
type AutoRouting struct {
	SmallDiffLines        int      `json:"small_diff_lines"`
	LargeDiffLines        int      `json:"large_diff_lines"`
	SmallModel            string   `json:"small_model"`
	MediumModel           string   `json:"medium_model"`
	LargeHighStakesModel  string   `json:"large_high_stakes_model"`
	LargeOtherModel       string   `json:"large_other_model"`
	HighStakesReviewers   []string `json:"high_stakes_reviewers"`
}

// Config is the JSON shape consumed by the Model Router.
type Config struct {
	Default               string            `json:"default"`
	Reviewers             map[string]string `json:"reviewers"`
	ValidationCrossCheck  string            `json:"validation_cross_check"`
	AutoRouting           AutoRouting       `json:"auto_routing"`
}

// ModelPricing is a per-1K-token USD rate for a model.
type ModelPricing struct {
	Input  float64
	Output float64
}

// modelCosts mirrors the original router's pricing table. Out-of-pack
// pricing data, hardcoded the same way the source hardcodes it.
var modelCosts = map[string]ModelPricing{
	"claude-opus-4-6":             {Input: 0.015, Output: 0.075},
	"claude-sonnet-4-5-20250929":  {Input: 0.003, Output: 0.015},
	"claude-haiku-4-5-20251001":   {Input: 0.00025, Output: 0.00125},
}

// DefaultConfig returns the hardcoded routing defaults, used when no JSON
// config file is present or it fails to parse.
func DefaultConfig() Config {
	return Config{
		Default: "claude-sonnet-4-5-20250929",
		Reviewers: map[string]string{
			"security":        "claude-opus-4-6",
			"correctness":     "claude-sonnet-4-5-20250929",
			"performance":     "claude-sonnet-4-5-20250929",
			"maintainability": "claude-haiku-4-5-20251001",
			"reliability":     "claude-opus-4-6",
		},
		ValidationCrossCheck: "claude-haiku-4-5-20251001",
		AutoRouting: AutoRouting{
			SmallDiffLines:       50,
			LargeDiffLines:       500,
			SmallModel:           "claude-haiku-4-5-20251001",
			MediumModel:          "claude-sonnet-4-5-20250929",
			LargeHighStakesModel: "claude-opus-4-6",
			LargeOtherModel:      "claude-sonnet-4-5-20250929",
			HighStakesReviewers:  []string{"security", "reliability"},
		},
	}
}

// Router picks an LLM model per reviewer given diff size.
type Router struct {
	config Config
}

// Load reads the routing config from path, falling back to DefaultConfig
// if the file is missing or fails to parse.
func Load(path string) *Router {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Router("model routing config not found at %s, using built-in defaults", path)
		} else {
			logging.RouterWarn("failed to read model routing config %s: %v, using built-in defaults", path, err)
		}
		return &Router{config: cfg}
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		logging.RouterWarn("failed to parse model routing config %s: %v, using built-in defaults", path, err)
		return &Router{config: cfg}
	}

	if loaded.Default == "" {
		loaded.Default = cfg.Default
	}
	if loaded.Reviewers == nil {
		loaded.Reviewers = cfg.Reviewers
	}
	if loaded.ValidationCrossCheck == "" {
		loaded.ValidationCrossCheck = cfg.ValidationCrossCheck
	}
	if loaded.AutoRouting.SmallDiffLines == 0 && loaded.AutoRouting.LargeDiffLines == 0 {
		loaded.AutoRouting = cfg.AutoRouting
	}

	return &Router{config: loaded}
}

// New builds a Router from an explicit config (e.g. for tests), bypassing
// file loading.
func New(cfg Config) *Router {
	return &Router{config: cfg}
}

// GetModel returns the recommended model for reviewerID given diffLines.
//
// Priority:
//  1. diffLines < small_diff_lines -> small_model for every reviewer
//     (overrides explicit config).
//  2. diffLines >= large_diff_lines -> large_high_stakes_model if reviewerID
//     is high-stakes, else large_other_model.
//  3. Otherwise (medium band) -> reviewers[reviewerID] if present, else
//     default. Unknown reviewer IDs fall through to default.
func (r *Router) GetModel(reviewerID string, diffLines int) string {
	ar := r.config.AutoRouting

	if diffLines < ar.SmallDiffLines {
		return orDefault(ar.SmallModel, r.config.Default)
	}

	if diffLines >= ar.LargeDiffLines {
		if contains(ar.HighStakesReviewers, reviewerID) {
			return orDefault(ar.LargeHighStakesModel, r.config.Default)
		}
		return orDefault(ar.LargeOtherModel, r.config.Default)
	}

	if model, ok := r.config.Reviewers[reviewerID]; ok {
		return model
	}
	return r.config.Default
}

// GetCrossCheckModel always returns the configured Layer 2 validation model.
func (r *Router) GetCrossCheckModel() string {
	return orDefault(r.config.ValidationCrossCheck, r.config.Default)
}

// EstimateCost estimates USD cost for a reviewer's call at the given token
// counts, pricing the model that GetModel picks for reviewerID at diffLines.
// A model missing from the pricing table is priced as the default model.
func (r *Router) EstimateCost(reviewerID string, promptTokens, completionTokens int, diffLines int) float64 {
	model := r.GetModel(reviewerID, diffLines)
	pricing, ok := modelCosts[model]
	if !ok {
		pricing = modelCosts[r.config.Default]
	}
	inputCost := (float64(promptTokens) / 1000) * pricing.Input
	outputCost := (float64(completionTokens) / 1000) * pricing.Output
	return inputCost + outputCost
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
