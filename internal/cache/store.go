// Package cache keeps embeddings on disk so unchanged text is not sent to
// the service twice.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gptrag/aoai/internal/db"
)

// Store persists embeddings keyed by deployment and input text.
type Store struct {
	conn *sql.DB
}

// NewStore creates a Store backed by the given DB.
func NewStore(database *db.DB) *Store {
	return &Store{conn: database.Conn()}
}

// Key derives the cache key for text embedded by model.
func Key(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached embedding, if any.
func (s *Store) Get(model, text string) ([]float32, bool, error) {
	key := Key(model, text)

	var blob []byte
	err := s.conn.QueryRow(`SELECT vector FROM embeddings WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}

	if _, err := s.conn.Exec(`UPDATE embeddings SET hits = hits + 1 WHERE key = ?`, key); err != nil {
		return nil, false, fmt.Errorf("cache: record hit: %w", err)
	}
	return blobToFloat32Slice(blob), true, nil
}

// Put stores vec as the embedding of text under model.
func (s *Store) Put(model, text string, vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	_, err := s.conn.Exec(
		`INSERT INTO embeddings (key, model, dimension, vector) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			created_at = CURRENT_TIMESTAMP`,
		Key(model, text), model, len(vec), float32SliceToBlob(vec),
	)
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// Stats summarises the cache contents.
type Stats struct {
	Entries int
	Hits    int
}

// Stats returns entry and hit totals.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.conn.QueryRow(`SELECT COUNT(*), COALESCE(SUM(hits), 0) FROM embeddings`).Scan(&st.Entries, &st.Hits)
	if err != nil {
		return st, fmt.Errorf("cache: stats: %w", err)
	}
	return st, nil
}

// Prune deletes entries created more than olderThan ago and returns how many
// were removed.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02 15:04:05")
	res, err := s.conn.Exec(`DELETE FROM embeddings WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: prune: %w", err)
	}
	return res.RowsAffected()
}

// float32SliceToBlob serialises a float32 slice to a little-endian byte blob.
func float32SliceToBlob(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func blobToFloat32Slice(b []byte) []float32 {
	result := make([]float32, len(b)/4)
	for i := range result {
		result[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return result
}
