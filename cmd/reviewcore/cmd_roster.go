package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"reviewcore/internal/reviewerconfig"
)

var rosterFiles []string

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "List the fixed reviewer roster, their temperature, and relevance",
	RunE: func(cmd *cobra.Command, args []string) error {
		configs, err := reviewerconfig.LoadAll(reviewersDir, rosterFiles)
		if err != nil {
			return err
		}

		type entry struct {
			ID          string  `json:"id"`
			Temperature float64 `json:"temperature"`
			Relevant    bool    `json:"relevant"`
			HasKnowledge bool   `json:"has_knowledge"`
		}
		out := make([]entry, 0, len(configs))
		for _, c := range configs {
			out = append(out, entry{ID: c.ID, Temperature: c.Temperature, Relevant: c.Relevant, HasKnowledge: c.Knowledge != ""})
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	},
}

func init() {
	rosterCmd.Flags().StringArrayVar(&rosterFiles, "file", nil, "A changed file path to gate relevance against (repeatable, default: all relevant)")
}
