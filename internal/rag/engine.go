// Package rag implements the per-tier RAG Engine (index/query a single
// KNOWLEDGE.md collection) and the two-tier Knowledge Retriever that merges
// global and project results for a reviewer's prompt.
package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"reviewcore/internal/chunker"
	"reviewcore/internal/logging"
	"reviewcore/internal/vectorstore"
)

// Engine indexes and queries one tier's knowledge collections. Each
// reviewer gets its own collection, named "reviewer_<id>" in the
// underlying store's metadata.
type Engine struct {
	mu        sync.Mutex
	store     *vectorstore.Store
	hashPath  string
	fileHashes map[string]string
}

// NewEngine opens (or creates) an Engine backed by store, tracking indexed
// file hashes in a sibling JSON file at hashPath.
func NewEngine(store *vectorstore.Store, hashPath string) (*Engine, error) {
	e := &Engine{store: store, hashPath: hashPath, fileHashes: map[string]string{}}

	if data, err := os.ReadFile(hashPath); err == nil {
		_ = json.Unmarshal(data, &e.fileHashes)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read file hashes: %w", err)
	}

	return e, nil
}

func hashFile(path string) (string, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), data, nil
}

// NeedsReindex reports whether path's current content hash differs from
// the last indexed hash for reviewerID.
func (e *Engine) NeedsReindex(reviewerID, path string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	hash, _, err := hashFile(path)
	if err != nil {
		return true
	}
	return e.fileHashes[reviewerID] != hash
}

// Index parses path's KNOWLEDGE.md content, embeds and upserts each chunk
// into the collection "reviewer_<id>", and records the file's hash.
func (e *Engine) Index(ctx context.Context, reviewerID, path string) (int, error) {
	hash, data, err := hashFile(path)
	if err != nil {
		return 0, fmt.Errorf("read knowledge file: %w", err)
	}

	chunks := chunker.Parse(string(data))
	stored := 0
	for _, c := range chunks {
		kc := vectorstore.KnowledgeChunk{
			Content:    c.Text,
			SourceFile: path,
			Metadata: map[string]interface{}{
				"reviewer_id": reviewerID,
				"collection":  "reviewer_" + reviewerID,
				"section":     string(c.Section),
				"source":      c.Source,
				"date":        c.Date.Format("2006-01-02"),
			},
		}
		if _, err := e.store.Store(ctx, kc); err != nil {
			logging.RAGWarn("failed to index chunk from %s: %v", path, err)
			continue
		}
		stored++
	}

	e.mu.Lock()
	e.fileHashes[reviewerID] = hash
	e.mu.Unlock()
	if err := e.persistHashes(); err != nil {
		logging.RAGWarn("failed to persist file hashes: %v", err)
	}

	logging.RAG("indexed %d chunks for reviewer %s from %s", stored, reviewerID, path)
	return stored, nil
}

func (e *Engine) persistHashes() error {
	e.mu.Lock()
	data, err := json.MarshalIndent(e.fileHashes, "", "  ")
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(e.hashPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(e.hashPath, data, 0644)
}

// Query returns the top-k chunks most relevant to text for reviewerID.
func (e *Engine) Query(ctx context.Context, reviewerID, text string, topK int) ([]vectorstore.ScoredChunk, error) {
	results, err := e.store.Search(ctx, text, topK*4) // over-fetch, then filter by collection
	if err != nil {
		return nil, err
	}

	collection := "reviewer_" + reviewerID
	filtered := make([]vectorstore.ScoredChunk, 0, topK)
	for _, r := range results {
		if r.Chunk.Metadata == nil {
			continue
		}
		if c, ok := r.Chunk.Metadata["collection"].(string); ok && c == collection {
			filtered = append(filtered, r)
			if len(filtered) == topK {
				break
			}
		}
	}
	return filtered, nil
}

// IndexAll indexes every <reviewerID>/KNOWLEDGE.md found directly under
// root.
func (e *Engine) IndexAll(ctx context.Context, root string) (map[string]int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read reviewers root: %w", err)
	}

	counts := make(map[string]int)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		reviewerID := entry.Name()
		path := filepath.Join(root, reviewerID, "KNOWLEDGE.md")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		n, err := e.Index(ctx, reviewerID, path)
		if err != nil {
			logging.RAGWarn("failed to index %s: %v", path, err)
			continue
		}
		counts[reviewerID] = n
	}
	return counts, nil
}
