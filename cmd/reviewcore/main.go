// Package main implements the reviewcore CLI: the external collaborator
// that drives review requests against the core consensus engine.
//
// This file is the entry point and command registration hub. Individual
// subcommands live in their own cmd_*.go files:
//
//   - cmd_review.go   - review prepare/finalize
//   - cmd_roster.go   - roster (reviewer configs and relevance)
//   - cmd_route.go    - route (model routing dry run)
//   - cmd_bypass.go   - bypass create/list/check
//   - cmd_reindex.go  - reindex (global knowledge tier)
//   - cmd_context.go  - context (tiered project-file discovery)
//   - cmd_diff.go     - diff (compute a unified diff between two trees)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reviewcore/internal/config"
	"reviewcore/internal/logging"
)

var (
	verbose      bool
	workspace    string
	reviewersDir string
	configPath   string

	logger    *zap.Logger
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "reviewcore",
	Short: "Multi-reviewer consensus code review engine",
	Long: `reviewcore runs a diff through five fixed specialist reviewers
(security, correctness, performance, maintainability, reliability),
deduplicates and validates their findings, and computes a consensus
score with minority protection for high-confidence security and
reliability findings.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize file logging: %v\n", err)
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		appConfig = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&reviewersDir, "reviewers-dir", "reviewers", "Path to the reviewer roster (PROMPT.md/KNOWLEDGE.md per id)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "reviewcore.yaml", "Path to the reviewcore YAML config file (missing file falls back to defaults)")

	rootCmd.AddCommand(
		reviewCmd,
		rosterCmd,
		routeCmd,
		bypassCmd,
		reindexCmd,
		contextCmd,
		diffCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
