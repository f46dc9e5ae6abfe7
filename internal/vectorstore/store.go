// Package vectorstore persists knowledge chunks and their embeddings for the
// Knowledge Pipeline, and serves nearest-neighbor queries for the Knowledge
// Retriever. It backs the global (cross-project) knowledge tier; the
// project tier lives in-memory (see ProjectIndex).
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"reviewcore/internal/embedding"
	"reviewcore/internal/logging"
)

// KnowledgeChunk is a single unit of retrievable knowledge: a chunk of code,
// documentation, or a past review finding, plus its source location.
type KnowledgeChunk struct {
	ID         int64
	Content    string
	SourceFile string
	StartLine  int
	EndLine    int
	Metadata   map[string]interface{}
	CreatedAt  time.Time
}

// ScoredChunk is a KnowledgeChunk returned from a similarity query, carrying
// the similarity score that produced the ranking.
type ScoredChunk struct {
	Chunk      KnowledgeChunk
	Similarity float64
}

// Store is the global knowledge vector store: SQLite-backed persistence of
// chunks plus their embeddings, with an ANN index when the sqlite_vec build
// tag is set and a brute-force fallback otherwise.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	engine embedding.EmbeddingEngine
	dim    int

	vecIndex annIndex // nil unless an ANN backend registered itself via init()
}

// annIndex is implemented by optional ANN backends (see sqlite_vec.go, which
// is only compiled in with the sqlite_vec build tag).
type annIndex interface {
	Upsert(id int64, vec []float32) error
	Search(vec []float32, limit int) ([]annHit, error)
	Ready() bool
}

type annHit struct {
	ID         int64
	Similarity float64
}

var registerANNIndex func(db *sql.DB, dim int) (annIndex, error)

// Open creates (or opens) the SQLite-backed knowledge store at path.
func Open(path string, engine embedding.EmbeddingEngine) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "vectorstore.Open")
	defer timer.Stop()

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply knowledge schema: %w", err)
	}

	s := &Store{db: db, engine: engine}
	if engine != nil {
		s.dim = engine.Dimensions()
	}

	if registerANNIndex != nil && s.dim > 0 {
		idx, err := registerANNIndex(db, s.dim)
		if err != nil {
			logging.StoreWarn("sqlite-vec ANN index unavailable, falling back to brute force: %v", err)
		} else {
			s.vecIndex = idx
			go s.backfillANN()
		}
	}

	return s, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chunks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	content     TEXT NOT NULL,
	source_file TEXT NOT NULL,
	start_line  INTEGER NOT NULL,
	end_line    INTEGER NOT NULL,
	metadata    TEXT,
	embedding   BLOB,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chunks_source_file ON chunks(source_file);
`

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Store embeds and persists a knowledge chunk. If the store has no embedding
// engine configured, the chunk is persisted without a vector and will only
// be reachable via keyword fallback search.
func (s *Store) Store(ctx context.Context, chunk KnowledgeChunk) (int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "vectorstore.Store")
	defer timer.Stop()

	var vecBytes []byte
	if s.engine != nil {
		vec, err := s.engine.Embed(ctx, chunk.Content)
		if err != nil {
			logging.StoreWarn("embedding failed for chunk from %s: %v (storing without vector)", chunk.SourceFile, err)
		} else {
			vecBytes = encodeFloat32Slice(vec)
		}
	}

	metaJSON, _ := json.Marshal(chunk.Metadata)

	s.mu.Lock()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (content, source_file, start_line, end_line, metadata, embedding) VALUES (?, ?, ?, ?, ?, ?)`,
		chunk.Content, chunk.SourceFile, chunk.StartLine, chunk.EndLine, string(metaJSON), vecBytes,
	)
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("insert chunk: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	if s.vecIndex != nil && vecBytes != nil {
		vec, _ := decodeFloat32Slice(vecBytes)
		if err := s.vecIndex.Upsert(id, vec); err != nil {
			logging.StoreWarn("ANN index upsert failed for chunk %d: %v", id, err)
		}
	}

	return id, nil
}

// StoreBatch embeds and persists multiple chunks, tolerating individual
// embedding failures (those chunks are stored without a vector).
func (s *Store) StoreBatch(ctx context.Context, chunks []KnowledgeChunk) (int, error) {
	stored := 0
	for _, c := range chunks {
		if _, err := s.Store(ctx, c); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, nil
}

// Search returns the top-`limit` chunks most similar to query, using the ANN
// index when available and falling back to an in-process brute-force scan
// otherwise. Falls back further to keyword search if no embedding engine is
// configured.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		limit = 10
	}

	if s.engine == nil {
		return s.searchKeyword(ctx, query, limit)
	}

	queryVec, err := s.engine.Embed(ctx, query)
	if err != nil {
		logging.StoreWarn("query embedding failed, falling back to keyword search: %v", err)
		return s.searchKeyword(ctx, query, limit)
	}

	if s.vecIndex != nil && s.vecIndex.Ready() {
		hits, err := s.vecIndex.Search(queryVec, limit)
		if err == nil {
			return s.hydrate(ctx, hits)
		}
		logging.StoreWarn("ANN search failed, falling back to brute force: %v", err)
	}

	return s.searchBruteForce(ctx, queryVec, limit)
}

func (s *Store) searchBruteForce(ctx context.Context, queryVec []float32, limit int) ([]ScoredChunk, error) {
	timer := logging.StartTimer(logging.CategoryStore, "vectorstore.searchBruteForce")
	defer timer.Stop()

	rows, err := s.db.QueryContext(ctx, `SELECT id, content, source_file, start_line, end_line, metadata, embedding, created_at FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		chunk, vecBytes, err := scanChunk(rows)
		if err != nil {
			continue
		}
		vec, err := decodeFloat32Slice(vecBytes)
		if err != nil {
			continue
		}
		sim, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			continue
		}
		results = append(results, ScoredChunk{Chunk: chunk, Similarity: sim})
	}

	sortScoredChunksDescending(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store) searchKeyword(ctx context.Context, query string, limit int) ([]ScoredChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, source_file, start_line, end_line, metadata, embedding, created_at FROM chunks WHERE content LIKE ? LIMIT ?`,
		"%"+query+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}
	defer rows.Close()

	var results []ScoredChunk
	for rows.Next() {
		chunk, _, err := scanChunk(rows)
		if err != nil {
			continue
		}
		results = append(results, ScoredChunk{Chunk: chunk, Similarity: 0})
	}
	return results, nil
}

func (s *Store) hydrate(ctx context.Context, hits []annHit) ([]ScoredChunk, error) {
	results := make([]ScoredChunk, 0, len(hits))
	for _, h := range hits {
		row := s.db.QueryRowContext(ctx,
			`SELECT id, content, source_file, start_line, end_line, metadata, embedding, created_at FROM chunks WHERE id = ?`, h.ID)
		chunk, _, err := scanChunkRow(row)
		if err != nil {
			continue
		}
		results = append(results, ScoredChunk{Chunk: chunk, Similarity: h.Similarity})
	}
	return results, nil
}

// backfillANN indexes any chunks persisted before the ANN backend was
// registered. Runs in a background goroutine so startup is never blocked by
// a large existing knowledge base.
func (s *Store) backfillANN() {
	rows, err := s.db.Query(`SELECT id, embedding FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		logging.StoreWarn("ANN backfill query failed: %v", err)
		return
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id int64
		var vecBytes []byte
		if err := rows.Scan(&id, &vecBytes); err != nil {
			continue
		}
		vec, err := decodeFloat32Slice(vecBytes)
		if err != nil {
			continue
		}
		if err := s.vecIndex.Upsert(id, vec); err == nil {
			count++
		}
	}
	logging.Store("ANN backfill complete: indexed %d chunks", count)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(rows *sql.Rows) (KnowledgeChunk, []byte, error) {
	return scanChunkRow(rows)
}

func scanChunkRow(row rowScanner) (KnowledgeChunk, []byte, error) {
	var c KnowledgeChunk
	var metaJSON sql.NullString
	var vecBytes []byte
	var createdAt time.Time

	if err := row.Scan(&c.ID, &c.Content, &c.SourceFile, &c.StartLine, &c.EndLine, &metaJSON, &vecBytes, &createdAt); err != nil {
		return c, nil, err
	}
	c.CreatedAt = createdAt
	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &c.Metadata)
	}
	return c, vecBytes, nil
}

func encodeFloat32Slice(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeFloat32Slice(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}

func sortScoredChunksDescending(results []ScoredChunk) {
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].Similarity > results[i].Similarity {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
}
