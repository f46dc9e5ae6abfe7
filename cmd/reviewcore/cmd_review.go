package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reviewcore/internal/embedding"
	"reviewcore/internal/engine"
	"reviewcore/internal/orchestrator"
	"reviewcore/internal/rag"
	"reviewcore/internal/router"
	"reviewcore/internal/vectorstore"
)

var (
	reviewTaskID      string
	reviewFiles       []string
	reviewDiffFile    string
	reviewOutDir      string
	reviewResponses   string
	reviewSingleModel string
	reviewSkipValid   bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Run the review pipeline against the fixed reviewer roster",
}

var reviewPrepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Phase 1: build task specs for an external LLM dispatcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		diff, err := readDiff(reviewDiffFile)
		if err != nil {
			return err
		}

		retriever, closeRetriever, err := openGlobalRetriever()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: global knowledge tier unavailable, reviewers get no retrieved knowledge: %v\n", err)
		}
		if closeRetriever != nil {
			defer closeRetriever()
		}

		tasks, err := orchestrator.PrepareReview(orchestrator.Request{
			TaskID: reviewTaskID,
			Files:  reviewFiles,
			Diff:   diff,
		}, orchestrator.Options{
			ReviewersDir: reviewersDir,
			ModelRouter:  router.New(router.DefaultConfig()),
			SingleModel:  reviewSingleModel,
			Retriever:    retriever,
		})
		if err != nil {
			return err
		}

		return json.NewEncoder(os.Stdout).Encode(tasks)
	},
}

var reviewFinalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Phase 2: parse dispatcher responses and compute the consensus result",
	RunE: func(cmd *cobra.Command, args []string) error {
		diff, err := readDiff(reviewDiffFile)
		if err != nil {
			return err
		}

		responses, err := readResponses(reviewResponses)
		if err != nil {
			return err
		}

		result, err := orchestrator.FinalizeReview(context.Background(), orchestrator.Request{
			TaskID: reviewTaskID,
			Files:  reviewFiles,
			Diff:   diff,
		}, responses, reviewOutDir, orchestrator.Options{
			ReviewersDir:   reviewersDir,
			SkipValidation: reviewSkipValid,
		})
		if err != nil {
			return err
		}

		fmt.Printf("task=%s tier=%s cs=%.2f passed=%v report=%s\n",
			result.TaskID, result.Consensus.Tier, result.Consensus.CS, result.Passed, result.ReportPath)

		if !result.Passed {
			os.Exit(1)
		}
		return nil
	},
}

// openGlobalRetriever opens the configured global knowledge store and wraps
// it in a rag.Retriever, for PrepareOptions.Retriever. Returns a nil
// retriever (not an error) when no global_db_path is configured or the file
// does not yet exist — reviewers then fall back to their static
// KNOWLEDGE.md.
func openGlobalRetriever() (engine.KnowledgeRetriever, func(), error) {
	if appConfig == nil || appConfig.RAG.GlobalDBPath == "" {
		return nil, nil, nil
	}
	if _, err := os.Stat(appConfig.RAG.GlobalDBPath); err != nil {
		return nil, nil, nil
	}

	embCfg := embedding.DefaultConfig()
	embCfg.Provider = appConfig.Embedding.Provider
	embCfg.OllamaEndpoint = appConfig.Embedding.OllamaEndpoint
	embCfg.OllamaModel = appConfig.Embedding.OllamaModel
	embCfg.GenAIModel = appConfig.Embedding.GenAIModel
	embCfg.GenAIAPIKey = appConfig.Embedding.GenAIAPIKey
	embCfg.TaskType = appConfig.Embedding.TaskType

	embEngine, err := embedding.NewEngine(embCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create embedding engine: %w", err)
	}

	store, err := vectorstore.Open(appConfig.RAG.GlobalDBPath, embEngine)
	if err != nil {
		return nil, nil, fmt.Errorf("open global knowledge store: %w", err)
	}

	ragEngine, err := rag.NewEngine(store, appConfig.RAG.GlobalDBPath+".hashes.json")
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("create rag engine: %w", err)
	}

	retriever := rag.NewRetriever(rag.RetrieverConfig{
		TopK:        appConfig.RAG.MaxGlobalHits,
		TokenBudget: 500,
	}, ragEngine, nil)

	return retriever, func() { store.Close() }, nil
}

func readDiff(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read diff file %s: %w", path, err)
	}
	return string(data), nil
}

func readResponses(path string) ([]engine.RawResponse, error) {
	if path == "" {
		return nil, fmt.Errorf("--responses is required: a JSON array of {reviewer_id, response} from an external dispatcher")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read responses file %s: %w", path, err)
	}
	var responses []engine.RawResponse
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, fmt.Errorf("parse responses file %s: %w", path, err)
	}
	return responses, nil
}

func init() {
	for _, c := range []*cobra.Command{reviewPrepareCmd, reviewFinalizeCmd} {
		c.Flags().StringVar(&reviewTaskID, "task-id", "", "Review task identifier")
		c.Flags().StringArrayVar(&reviewFiles, "file", nil, "A changed file path (repeatable)")
		c.Flags().StringVar(&reviewDiffFile, "diff-file", "", "Path to a unified diff file")
		c.MarkFlagRequired("task-id")
	}
	reviewPrepareCmd.Flags().StringVar(&reviewSingleModel, "single-model", "", "Force this model for every reviewer, overriding routing")

	reviewFinalizeCmd.Flags().StringVar(&reviewOutDir, "output-dir", "", "Directory to write REVIEW-<task-id>.md into")
	reviewFinalizeCmd.Flags().StringVar(&reviewResponses, "responses", "", "Path to a JSON array of {reviewer_id, response} dispatcher results")
	reviewFinalizeCmd.Flags().BoolVar(&reviewSkipValid, "skip-validation", false, "Skip the Finding Validator and treat findings as UNVERIFIED")
	reviewFinalizeCmd.MarkFlagRequired("output-dir")

	reviewCmd.AddCommand(reviewPrepareCmd, reviewFinalizeCmd)
}
