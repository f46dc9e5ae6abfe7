package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"reviewcore/internal/chunker"
	"reviewcore/internal/embedding"
	"reviewcore/internal/retrieval"
	"reviewcore/internal/vectorstore"
)

var (
	contextDiffFile      string
	contextTopN          int
	contextPopulateIndex bool
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Discover files related to a diff beyond the changed set, for project-tier RAG",
	Long: `context runs the tiered context builder against a diff or issue
description: Tier 1 pulls files explicitly mentioned in the text, Tier 2
keyword-matches the rest of the workspace, Tier 3 follows import edges out
of tiers 1-2, and Tier 4 expands via symbol-definition search. This widens
what a reviewer's project-tier knowledge index covers beyond the files a
diff already touches.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}

		diff, err := readDiff(contextDiffFile)
		if err != nil {
			return err
		}
		if diff == "" {
			return fmt.Errorf("--diff-file is required")
		}

		builder := retrieval.NewTieredContextBuilder(retrieval.DefaultTieredContextConfig(ws))
		tc, err := builder.BuildContext(context.Background(), diff)
		if err != nil {
			return fmt.Errorf("build tiered context: %w", err)
		}

		topFiles := tc.GetTopFiles(contextTopN)
		if !contextPopulateIndex {
			return json.NewEncoder(os.Stdout).Encode(topFiles)
		}

		counts, err := populateProjectIndex(ws, topFiles)
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(counts)
	},
}

// populateProjectIndex chunks each discovered file at function/method
// granularity (tree-sitter where a grammar is wired in, fixed-size windows
// otherwise) and embeds them into a fresh project-tier index, reporting
// how many chunks each file contributed. The index itself is rebuilt per
// invocation and not persisted — see ProjectIndex's doc comment.
func populateProjectIndex(workspaceRoot string, files []retrieval.ContextFile) (map[string]int, error) {
	cfg := embedding.DefaultConfig()
	if appConfig != nil {
		cfg.Provider = appConfig.Embedding.Provider
		cfg.OllamaEndpoint = appConfig.Embedding.OllamaEndpoint
		cfg.OllamaModel = appConfig.Embedding.OllamaModel
		cfg.GenAIModel = appConfig.Embedding.GenAIModel
		cfg.GenAIAPIKey = appConfig.Embedding.GenAIAPIKey
		cfg.TaskType = appConfig.Embedding.TaskType
	}

	engine, err := embedding.NewEngine(cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedding engine: %w", err)
	}

	index := vectorstore.NewProjectIndex(engine)
	ctx := context.Background()
	counts := make(map[string]int, len(files))

	for _, f := range files {
		rel := f.FilePath
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(workspaceRoot, rel)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", rel, err)
			continue
		}
		chunks := chunker.ChunkSource(rel, string(data))
		for _, c := range chunks {
			if _, err := index.Add(ctx, vectorstore.KnowledgeChunk{
				Content:    c.Content,
				SourceFile: c.SourceFile,
				StartLine:  c.StartLine,
				EndLine:    c.EndLine,
			}); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to embed chunk from %s:%d: %v\n", rel, c.StartLine, err)
				continue
			}
		}
		counts[rel] = len(chunks)
	}

	return counts, nil
}

func init() {
	contextCmd.Flags().StringVar(&contextDiffFile, "diff-file", "", "Path to a unified diff or issue description")
	contextCmd.Flags().IntVar(&contextTopN, "top", 20, "Max number of files to report")
	contextCmd.Flags().BoolVar(&contextPopulateIndex, "index", false, "Chunk and embed discovered files into an in-memory project-tier index, reporting chunk counts instead of file scores")
}
