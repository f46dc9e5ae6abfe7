package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	dim int
	vec func(text string) []float32
}

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec(text), nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vec(t)
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return f.dim }
func (f *fakeEngine) Name() string    { return "fake" }

// hashVec turns text into a deterministic low-dimensional vector so
// similarity comparisons are stable across test runs without a real model.
func hashVec(text string) []float32 {
	v := make([]float32, 4)
	for i, r := range text {
		v[i%4] += float32(r % 13)
	}
	return v
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	engine := &fakeEngine{dim: 4, vec: hashVec}
	store, err := Open(filepath.Join(t.TempDir(), "knowledge.db"), engine)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreAndSearch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Store(ctx, KnowledgeChunk{
		Content:    "func validateInput(s string) error { return nil }",
		SourceFile: "validate.go",
		StartLine:  1,
		EndLine:    3,
		Metadata:   map[string]interface{}{"language": "go"},
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	results, err := store.Search(ctx, "func validateInput(s string) error { return nil }", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "validate.go", results[0].Chunk.SourceFile)
}

func TestStoreBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chunks := []KnowledgeChunk{
		{Content: "package main", SourceFile: "a.go", StartLine: 1, EndLine: 1},
		{Content: "import \"fmt\"", SourceFile: "a.go", StartLine: 2, EndLine: 2},
	}
	stored, err := store.StoreBatch(ctx, chunks)
	require.NoError(t, err)
	require.Equal(t, 2, stored)
}

func TestSearchWithoutEmbeddingEngineFallsBackToKeyword(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "knowledge.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.Store(ctx, KnowledgeChunk{Content: "special marker token", SourceFile: "x.go"})
	require.NoError(t, err)

	results, err := store.Search(ctx, "marker", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestEncodeDecodeFloat32Roundtrip(t *testing.T) {
	vec := []float32{0.1, -0.2, 3.5, 42}
	encoded := encodeFloat32Slice(vec)
	decoded, err := decodeFloat32Slice(encoded)
	require.NoError(t, err)
	require.Equal(t, vec, decoded)
}
