//go:build sqlite_vec && cgo

package vectorstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"reviewcore/internal/logging"
)

// driverName is the database/sql driver used when the sqlite_vec build tag
// is set: mattn/go-sqlite3, the only driver sqlite-vec's cgo extension can
// auto-load into.
const driverName = "sqlite3"

func init() {
	vec.Auto()
	registerANNIndex = newSQLiteVecIndex
}

// sqliteVecIndex is an ANN backend for the global knowledge store, built on
// the sqlite-vec vec0 virtual table. It is only compiled in with
// `-tags sqlite_vec` on a cgo-enabled build; plain builds fall back to the
// brute-force scan in store.go.
type sqliteVecIndex struct {
	db  *sql.DB
	dim int
}

func newSQLiteVecIndex(db *sql.DB, dim int) (annIndex, error) {
	createTable := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(embedding float[%d])`, dim)
	if _, err := db.Exec(createTable); err != nil {
		return nil, fmt.Errorf("create vec0 table: %w", err)
	}
	logging.Store("sqlite-vec ANN index ready (dim=%d)", dim)
	return &sqliteVecIndex{db: db, dim: dim}, nil
}

func (idx *sqliteVecIndex) Ready() bool { return idx.db != nil }

func (idx *sqliteVecIndex) Upsert(id int64, v []float32) error {
	raw, err := vec.SerializeFloat32(v)
	if err != nil {
		return fmt.Errorf("serialize vector: %w", err)
	}
	_, err = idx.db.Exec(`INSERT OR REPLACE INTO vec_chunks(rowid, embedding) VALUES (?, ?)`, id, raw)
	if err != nil {
		return fmt.Errorf("upsert vec row %d: %w", id, err)
	}
	return nil
}

func (idx *sqliteVecIndex) Search(v []float32, limit int) ([]annHit, error) {
	raw, err := vec.SerializeFloat32(v)
	if err != nil {
		return nil, fmt.Errorf("serialize query vector: %w", err)
	}

	rows, err := idx.db.Query(
		`SELECT rowid, distance FROM vec_chunks WHERE embedding MATCH ? AND k = ? ORDER BY distance`,
		raw, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("vec0 knn query: %w", err)
	}
	defer rows.Close()

	var hits []annHit
	for rows.Next() {
		var id int64
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			continue
		}
		// vec0's default metric is L2 distance; convert to a similarity-like
		// score so callers can treat it the same as cosine similarity.
		hits = append(hits, annHit{ID: id, Similarity: 1.0 / (1.0 + distance)})
	}
	return hits, nil
}
