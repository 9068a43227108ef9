package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/huetone/chromind/embedding"
)

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// PostgresStore implements ColorStore and AnalysisLog on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens the connection pool, verifies connectivity and
// ensures the schema exists.
func NewPostgresStore(ctx context.Context, config DatabaseConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.MaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTablesIfNotExist(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func createTablesIfNotExist(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS color_records (
		id UUID PRIMARY KEY,
		hex VARCHAR(9) NOT NULL UNIQUE,
		l DOUBLE PRECISION NOT NULL,
		c DOUBLE PRECISION NOT NULL,
		h DOUBLE PRECISION NOT NULL,
		alpha DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		name VARCHAR(200) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		tags TEXT[] NOT NULL DEFAULT '{}',
		source VARCHAR(20) NOT NULL,
		embedding BYTEA,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		last_accessed_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		access_count INTEGER DEFAULT 1
	);

	-- Create indexes for better performance
	CREATE INDEX IF NOT EXISTS idx_color_records_hex ON color_records(hex);
	CREATE INDEX IF NOT EXISTS idx_color_records_created_at ON color_records(created_at);
	CREATE INDEX IF NOT EXISTS idx_color_records_name ON color_records(name);

	CREATE TABLE IF NOT EXISTS analysis_log (
		id SERIAL PRIMARY KEY,
		request_id VARCHAR(40) NOT NULL,
		hex VARCHAR(9) NOT NULL,
		operation VARCHAR(40) NOT NULL,
		source VARCHAR(20) NOT NULL,
		status INTEGER NOT NULL,
		timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_analysis_log_timestamp ON analysis_log(timestamp);
	CREATE INDEX IF NOT EXISTS idx_analysis_log_hex ON analysis_log(hex);
	`

	_, err := db.ExecContext(ctx, query)
	return err
}

// SaveRecord upserts a record keyed by hex.
func (p *PostgresStore) SaveRecord(ctx context.Context, rec ColorRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	query := `
	INSERT INTO color_records (id, hex, l, c, h, alpha, name, description, tags, source, embedding, created_at, last_accessed_at, access_count)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW(), 1)
	ON CONFLICT (hex)
	DO UPDATE SET
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		tags = EXCLUDED.tags,
		source = EXCLUDED.source,
		embedding = EXCLUDED.embedding,
		last_accessed_at = NOW(),
		access_count = color_records.access_count + 1
	`

	_, err := p.db.ExecContext(ctx, query,
		rec.ID, rec.Hex, rec.L, rec.C, rec.H, rec.Alpha,
		rec.Name, rec.Description, pq.Array(rec.Tags), rec.Source,
		encodeEmbedding(rec.Embedding))
	return err
}

// GetByHex retrieves a record. Reads never touch the access count; only
// SaveRecord upserts bump it, so the count means "times analyzed".
func (p *PostgresStore) GetByHex(ctx context.Context, hex string) (ColorRecord, bool, error) {
	query := `
	SELECT id, hex, l, c, h, alpha, name, description, tags, source, embedding, created_at, access_count
	FROM color_records
	WHERE hex = $1
	`

	rec, err := scanRecord(p.db.QueryRowContext(ctx, query, hex))
	if err != nil {
		if err == sql.ErrNoRows {
			return ColorRecord{}, false, nil
		}
		return ColorRecord{}, false, err
	}
	return rec, true, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (ColorRecord, error) {
	var rec ColorRecord
	var tags pq.StringArray
	var blob []byte

	err := row.Scan(&rec.ID, &rec.Hex, &rec.L, &rec.C, &rec.H, &rec.Alpha,
		&rec.Name, &rec.Description, &tags, &rec.Source, &blob,
		&rec.CreatedAt, &rec.AccessCount)
	if err != nil {
		return ColorRecord{}, err
	}

	rec.Tags = []string(tags)
	if len(blob) > 0 {
		emb, err := decodeEmbedding(blob)
		if err != nil {
			return ColorRecord{}, fmt.Errorf("record %s: %w", rec.Hex, err)
		}
		rec.Embedding = emb
	}
	return rec, nil
}

// nearestCandidateLimit bounds how many rows are pulled for in-process
// cosine ranking.
const nearestCandidateLimit = 2048

// Nearest fetches recent candidates and ranks them by cosine similarity in
// process. At this table size a full ranking pass beats maintaining an ANN
// index.
func (p *PostgresStore) Nearest(ctx context.Context, emb []float32, limit int) ([]SimilarRecord, error) {
	query := `
	SELECT id, hex, l, c, h, alpha, name, description, tags, source, embedding, created_at, access_count
	FROM color_records
	WHERE embedding IS NOT NULL
	ORDER BY last_accessed_at DESC
	LIMIT $1
	`

	rows, err := p.db.QueryContext(ctx, query, nearestCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var result []SimilarRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		result = append(result, SimilarRecord{
			ColorRecord: rec,
			Similarity:  embedding.Cosine(emb, rec.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidates: %w", err)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Similarity > result[j].Similarity })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListRecords returns a page of records, newest first.
func (p *PostgresStore) ListRecords(ctx context.Context, limit, offset int) ([]ColorRecord, error) {
	query := `
	SELECT id, hex, l, c, h, alpha, name, description, tags, source, embedding, created_at, access_count
	FROM color_records
	ORDER BY created_at DESC
	LIMIT $1 OFFSET $2
	`

	rows, err := p.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []ColorRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// CountRecords returns the total number of stored records.
func (p *PostgresStore) CountRecords(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM color_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// CleanupOlderThan removes records older than the given duration.
func (p *PostgresStore) CleanupOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
	DELETE FROM color_records
	WHERE created_at < NOW() - ($1 || ' seconds')::INTERVAL
	`

	result, err := p.db.ExecContext(ctx, query, int(olderThan.Seconds()))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// InsertLog appends one analysis-log row.
func (p *PostgresStore) InsertLog(ctx context.Context, entry LogEntry) error {
	query := `
	INSERT INTO analysis_log (request_id, hex, operation, source, status, timestamp)
	VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := p.db.ExecContext(ctx, query,
		entry.RequestID, entry.Hex, entry.Operation, entry.Source, entry.Status)
	if err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}
	return nil
}

// GetLogs retrieves log entries, newest first.
func (p *PostgresStore) GetLogs(ctx context.Context, limit, offset int) ([]LogEntry, error) {
	query := `
	SELECT id, request_id, hex, operation, source, status, timestamp
	FROM analysis_log
	ORDER BY timestamp DESC
	LIMIT $1 OFFSET $2
	`

	rows, err := p.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Hex, &e.Operation, &e.Source, &e.Status, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		logs = append(logs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}
	return logs, nil
}

// GetLogsCount returns the total number of log entries.
func (p *PostgresStore) GetLogsCount(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_log`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get logs count: %w", err)
	}
	return count, nil
}

// ClearLogs removes all log entries.
func (p *PostgresStore) ClearLogs(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM analysis_log`)
	if err != nil {
		return fmt.Errorf("failed to clear logs: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
