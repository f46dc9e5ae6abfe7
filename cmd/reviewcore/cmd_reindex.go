package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"reviewcore/internal/embedding"
	"reviewcore/internal/rag"
	"reviewcore/internal/vectorstore"
)

var (
	reindexDBPath       string
	reindexEmbedProvider string
	reindexOllamaModel  string
	reindexGenAIKey     string
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the global knowledge tier from <reviewers-dir>/<id>/KNOWLEDGE.md",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := embedding.DefaultConfig()
		if appConfig != nil {
			cfg.Provider = appConfig.Embedding.Provider
			cfg.OllamaEndpoint = appConfig.Embedding.OllamaEndpoint
			cfg.OllamaModel = appConfig.Embedding.OllamaModel
			cfg.GenAIModel = appConfig.Embedding.GenAIModel
			cfg.GenAIAPIKey = appConfig.Embedding.GenAIAPIKey
			cfg.TaskType = appConfig.Embedding.TaskType
		}
		if cmd.Flags().Changed("embedding-provider") {
			cfg.Provider = reindexEmbedProvider
		}
		if reindexOllamaModel != "" {
			cfg.OllamaModel = reindexOllamaModel
		}
		if reindexGenAIKey != "" {
			cfg.GenAIAPIKey = reindexGenAIKey
		}

		engine, err := embedding.NewEngine(cfg)
		if err != nil {
			return fmt.Errorf("create embedding engine: %w", err)
		}

		dbPath := reindexDBPath
		if !cmd.Flags().Changed("db") && appConfig != nil && appConfig.RAG.GlobalDBPath != "" {
			dbPath = appConfig.RAG.GlobalDBPath
		}

		store, err := vectorstore.Open(dbPath, engine)
		if err != nil {
			return fmt.Errorf("open knowledge store: %w", err)
		}
		defer store.Close()

		hashPath := dbPath + ".hashes.json"
		ragEngine, err := rag.NewEngine(store, hashPath)
		if err != nil {
			return fmt.Errorf("create rag engine: %w", err)
		}

		counts, err := ragEngine.IndexAll(context.Background(), reviewersDir)
		if err != nil {
			return err
		}

		for id, n := range counts {
			fmt.Printf("%-16s %d chunks\n", id, n)
		}
		return nil
	},
}

func init() {
	reindexCmd.Flags().StringVar(&reindexDBPath, "db", filepath.Join(".", "reviewcore-knowledge.db"), "Path to the global knowledge SQLite database")
	reindexCmd.Flags().StringVar(&reindexEmbedProvider, "embedding-provider", "ollama", "Embedding provider: ollama or genai")
	reindexCmd.Flags().StringVar(&reindexOllamaModel, "ollama-model", "", "Override the Ollama embedding model")
	reindexCmd.Flags().StringVar(&reindexGenAIKey, "genai-api-key", "", "GenAI API key (required when --embedding-provider=genai)")
}
