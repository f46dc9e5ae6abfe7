package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/hnsw"

	"reviewcore/internal/embedding"
	"reviewcore/internal/logging"
)

// ProjectIndex is the project-tier knowledge index: an in-memory HNSW graph
// rebuilt each session from the current working tree, rather than persisted
// like the global Store. It trades durability for being always fresh and
// cheap to throw away when the project changes underneath it.
type ProjectIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[int64]
	chunks map[int64]KnowledgeChunk
	engine embedding.EmbeddingEngine
	nextID int64
}

// NewProjectIndex creates an empty project-tier index backed by engine.
func NewProjectIndex(engine embedding.EmbeddingEngine) *ProjectIndex {
	g := hnsw.NewGraph[int64]()
	return &ProjectIndex{
		graph:  g,
		chunks: make(map[int64]KnowledgeChunk),
		engine: engine,
	}
}

// Add embeds and inserts a chunk, returning its assigned ID.
func (p *ProjectIndex) Add(ctx context.Context, chunk KnowledgeChunk) (int64, error) {
	if p.engine == nil {
		return 0, fmt.Errorf("project index has no embedding engine configured")
	}
	vec, err := p.engine.Embed(ctx, chunk.Content)
	if err != nil {
		return 0, fmt.Errorf("embed chunk from %s: %w", chunk.SourceFile, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	chunk.ID = id
	p.chunks[id] = chunk
	p.graph.Add(hnsw.MakeNode(id, vec))
	return id, nil
}

// Reset discards the entire in-memory index, e.g. when rebuilding after a
// drift event invalidates the project tier.
func (p *ProjectIndex) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graph = hnsw.NewGraph[int64]()
	p.chunks = make(map[int64]KnowledgeChunk)
	p.nextID = 0
}

// Search returns the top-k chunks most similar to query.
func (p *ProjectIndex) Search(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	if p.engine == nil {
		return nil, fmt.Errorf("project index has no embedding engine configured")
	}
	queryVec, err := p.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.chunks) == 0 {
		return nil, nil
	}

	neighbors := p.graph.Search(queryVec, k)
	results := make([]ScoredChunk, 0, len(neighbors))
	for _, n := range neighbors {
		chunk, ok := p.chunks[n.Key]
		if !ok {
			continue
		}
		sim, err := embedding.CosineSimilarity(queryVec, n.Value)
		if err != nil {
			logging.StoreWarn("cosine similarity failed for project chunk %d: %v", n.Key, err)
			continue
		}
		results = append(results, ScoredChunk{Chunk: chunk, Similarity: sim})
	}
	return results, nil
}

// Len reports how many chunks are currently indexed.
func (p *ProjectIndex) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.chunks)
}
