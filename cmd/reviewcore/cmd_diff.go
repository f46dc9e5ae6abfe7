package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"reviewcore/internal/diff"
)

var (
	diffOldPath string
	diffNewPath string
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compute a unified diff between two file trees, for feeding into 'review prepare'",
	RunE: func(cmd *cobra.Command, args []string) error {
		oldFiles, err := collectFiles(diffOldPath)
		if err != nil {
			return err
		}
		newFiles, err := collectFiles(diffNewPath)
		if err != nil {
			return err
		}

		seen := map[string]bool{}
		var rel []string
		for r := range oldFiles {
			if !seen[r] {
				seen[r] = true
				rel = append(rel, r)
			}
		}
		for r := range newFiles {
			if !seen[r] {
				seen[r] = true
				rel = append(rel, r)
			}
		}

		for i := 0; i < len(rel); i++ {
			for j := i + 1; j < len(rel); j++ {
				if rel[j] < rel[i] {
					rel[i], rel[j] = rel[j], rel[i]
				}
			}
		}

		for _, r := range rel {
			oldContent := oldFiles[r]
			newContent := newFiles[r]
			if oldContent == newContent {
				continue
			}

			fd := diff.ComputeDiff(r, r, oldContent, newContent)
			fmt.Printf("--- a/%s\n", r)
			fmt.Printf("+++ b/%s\n", r)
			for _, hunk := range fd.Hunks {
				fmt.Printf("@@ -%d,%d +%d,%d @@\n", hunk.OldStart, hunk.OldCount, hunk.NewStart, hunk.NewCount)
				for _, line := range hunk.Lines {
					switch line.Type {
					case diff.LineAdded:
						fmt.Printf("+%s\n", line.Content)
					case diff.LineRemoved:
						fmt.Printf("-%s\n", line.Content)
					default:
						fmt.Printf(" %s\n", line.Content)
					}
				}
			}
		}
		return nil
	},
}

func collectFiles(root string) (map[string]string, error) {
	files := map[string]string{}
	if root == "" {
		return files, nil
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(root)
		if err != nil {
			return nil, err
		}
		files[filepath.Base(root)] = string(data)
		return files, nil
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		files[rel] = string(data)
		return nil
	})
	return files, err
}

func init() {
	diffCmd.Flags().StringVar(&diffOldPath, "old", "", "Old file or directory")
	diffCmd.Flags().StringVar(&diffNewPath, "new", "", "New file or directory")
	diffCmd.MarkFlagRequired("old")
	diffCmd.MarkFlagRequired("new")
}
