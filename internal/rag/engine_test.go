package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"reviewcore/internal/embedding"
	"reviewcore/internal/vectorstore"
)

type stubEngine struct{}

func (stubEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 4)
	for i, r := range text {
		v[i%4] += float32(r % 7)
	}
	return v, nil
}
func (stubEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := stubEngine{}.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}
func (stubEngine) Dimensions() int { return 4 }
func (stubEngine) Name() string    { return "stub" }

var _ embedding.EmbeddingEngine = stubEngine{}

func TestEngineIndexAndQuery(t *testing.T) {
	dir := t.TempDir()
	store, err := vectorstore.Open(filepath.Join(dir, "knowledge.db"), stubEngine{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	engine, err := NewEngine(store, filepath.Join(dir, "file_hashes.json"))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	kbPath := filepath.Join(dir, "KNOWLEDGE.md")
	content := "## Patterns Found\n- [2024-01-01] SQL injection via string concat (Source: app.py:10)\n"
	if err := os.WriteFile(kbPath, []byte(content), 0644); err != nil {
		t.Fatalf("write knowledge file: %v", err)
	}

	if !engine.NeedsReindex("security", kbPath) {
		t.Fatalf("expected reindex needed for a never-indexed file")
	}

	n, err := engine.Index(context.Background(), "security", kbPath)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 chunk indexed, got %d", n)
	}

	if engine.NeedsReindex("security", kbPath) {
		t.Fatalf("expected no reindex needed after indexing unchanged content")
	}

	results, err := engine.Query(context.Background(), "security", "SQL injection", 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result scoped to the security collection, got %d", len(results))
	}
}
