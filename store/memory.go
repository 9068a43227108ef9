package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/huetone/chromind/embedding"
)

// MemoryStore implements ColorStore and AnalysisLog in process memory. It
// is the fallback when the database is disabled or unreachable at startup.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]*ColorRecord // keyed by hex
	logs       []LogEntry
	nextLogID  int
	maxLogSize int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]*ColorRecord),
		nextLogID:  1,
		maxLogSize: DefaultMaxLogEntries,
	}
}

// SaveRecord upserts a record keyed by hex.
func (m *MemoryStore) SaveRecord(_ context.Context, rec ColorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.records[rec.Hex]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		rec.AccessCount = existing.AccessCount + 1
	} else {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.CreatedAt = time.Now()
		rec.AccessCount = 1
	}

	m.records[rec.Hex] = &rec
	return nil
}

// GetByHex retrieves a record. Reads never touch the access count; only
// SaveRecord upserts bump it, so the count means "times analyzed".
func (m *MemoryStore) GetByHex(_ context.Context, hex string) (ColorRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[hex]
	if !ok {
		return ColorRecord{}, false, nil
	}
	return *rec, true, nil
}

// Nearest ranks all stored records by cosine similarity.
func (m *MemoryStore) Nearest(_ context.Context, emb []float32, limit int) ([]SimilarRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]SimilarRecord, 0, len(m.records))
	for _, rec := range m.records {
		if len(rec.Embedding) == 0 {
			continue
		}
		result = append(result, SimilarRecord{
			ColorRecord: *rec,
			Similarity:  embedding.Cosine(emb, rec.Embedding),
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Similarity > result[j].Similarity })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListRecords returns a page of records, newest first.
func (m *MemoryStore) ListRecords(_ context.Context, limit, offset int) ([]ColorRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]ColorRecord, 0, len(m.records))
	for _, rec := range m.records {
		all = append(all, *rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// CountRecords returns the number of stored records.
func (m *MemoryStore) CountRecords(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// CleanupOlderThan removes records older than the given duration.
func (m *MemoryStore) CleanupOlderThan(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	var removed int64
	for hex, rec := range m.records {
		if rec.CreatedAt.Before(cutoff) {
			delete(m.records, hex)
			removed++
		}
	}
	return removed, nil
}

// InsertLog appends a log entry, dropping the oldest entries past the
// retention bound.
func (m *MemoryStore) InsertLog(_ context.Context, entry LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.ID = m.nextLogID
	m.nextLogID++
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	m.logs = append(m.logs, entry)
	if len(m.logs) > m.maxLogSize {
		m.logs = m.logs[len(m.logs)-m.maxLogSize:]
	}
	return nil
}

// GetLogs retrieves log entries, newest first.
func (m *MemoryStore) GetLogs(_ context.Context, limit, offset int) ([]LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []LogEntry
	for i := len(m.logs) - 1 - offset; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		result = append(result, m.logs[i])
	}
	return result, nil
}

// GetLogsCount returns the number of retained log entries.
func (m *MemoryStore) GetLogsCount(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logs), nil
}

// ClearLogs removes all log entries.
func (m *MemoryStore) ClearLogs(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = nil
	return nil
}

// Close implements ColorStore. The memory store holds no resources.
func (m *MemoryStore) Close() error {
	return nil
}
