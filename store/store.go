package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// ColorRecord is a fully analyzed color as persisted.
type ColorRecord struct {
	ID          string    `json:"id"`
	Hex         string    `json:"hex"`
	L           float64   `json:"l"`
	C           float64   `json:"c"`
	H           float64   `json:"h"`
	Alpha       float64   `json:"alpha"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Source      string    `json:"source"`
	Embedding   []float32 `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	AccessCount int       `json:"access_count"`
}

// SimilarRecord pairs a stored record with its cosine similarity to a query
// embedding.
type SimilarRecord struct {
	ColorRecord
	Similarity float64 `json:"similarity"`
}

// ColorStore is the persistence interface for analyzed colors.
type ColorStore interface {
	// SaveRecord upserts a record keyed by hex. Repeated saves bump the
	// access count and refresh metadata.
	SaveRecord(ctx context.Context, rec ColorRecord) error

	// GetByHex retrieves a record by its canonical hex key.
	GetByHex(ctx context.Context, hex string) (ColorRecord, bool, error)

	// Nearest returns up to limit stored records ranked by cosine
	// similarity to the query embedding, most similar first.
	Nearest(ctx context.Context, embedding []float32, limit int) ([]SimilarRecord, error)

	// ListRecords returns a page of records, newest first.
	ListRecords(ctx context.Context, limit, offset int) ([]ColorRecord, error)

	// CountRecords returns the total number of stored records.
	CountRecords(ctx context.Context) (int, error)

	// CleanupOlderThan removes records older than the given duration and
	// returns how many were deleted.
	CleanupOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)

	// Close closes the store.
	Close() error
}

// LogEntry is one row of the analysis log.
type LogEntry struct {
	ID        int       `json:"id"`
	RequestID string    `json:"request_id"`
	Hex       string    `json:"hex"`
	Operation string    `json:"operation"`
	Source    string    `json:"source"` // cache, model, fallback
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// AnalysisLog records what the service did per request, for the /v1/logs
// endpoint.
type AnalysisLog interface {
	InsertLog(ctx context.Context, entry LogEntry) error
	GetLogs(ctx context.Context, limit, offset int) ([]LogEntry, error)
	GetLogsCount(ctx context.Context) (int, error)
	ClearLogs(ctx context.Context) error
}

// Log retention bounds for the in-memory store.
const (
	DefaultMaxLogEntries = 5000
)

// encodeEmbedding packs a float32 vector into little-endian bytes for
// storage in a bytea column.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// decodeEmbedding is the inverse of encodeEmbedding.
func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
