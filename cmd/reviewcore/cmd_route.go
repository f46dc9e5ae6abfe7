package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reviewcore/internal/reviewerconfig"
	"reviewcore/internal/router"
)

var (
	routeDiffLines       int
	routeConfigPath      string
	routePromptTokens    int
	routeCompletionTokens int
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Dry-run model routing for every reviewer at a given diff size",
	RunE: func(cmd *cobra.Command, args []string) error {
		var rt *router.Router
		if routeConfigPath != "" {
			rt = router.Load(routeConfigPath)
		} else {
			rt = router.New(router.DefaultConfig())
		}

		fmt.Printf("%-16s %-30s %s\n", "reviewer", "model", "est_cost_usd")
		for _, id := range reviewerconfig.ReviewerIDs {
			model := rt.GetModel(id, routeDiffLines)
			cost := rt.EstimateCost(id, routePromptTokens, routeCompletionTokens, routeDiffLines)
			fmt.Printf("%-16s %-30s %.6f\n", id, model, cost)
		}
		fmt.Printf("%-16s %-30s -\n", "cross-check", rt.GetCrossCheckModel())
		return nil
	},
}

func init() {
	routeCmd.Flags().IntVar(&routeDiffLines, "diff-lines", 0, "Number of changed lines in the diff")
	routeCmd.Flags().StringVar(&routeConfigPath, "config", "", "Path to a routing config JSON file (default: built-in)")
	routeCmd.Flags().IntVar(&routePromptTokens, "prompt-tokens", 1000, "Assumed prompt token count for cost estimation")
	routeCmd.Flags().IntVar(&routeCompletionTokens, "completion-tokens", 500, "Assumed completion token count for cost estimation")
}
