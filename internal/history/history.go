// Package history persists one record per extraction run in a local
// SQLite database. The stats collector aggregates over these records; the
// raw input text is never stored, only its hash and size.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one completed extraction.
type Record struct {
	ID               string         `json:"id"`
	Timestamp        string         `json:"timestamp"`
	TextHash         string         `json:"text_hash"`
	TextLength       int            `json:"text_length"`
	EntityCount      int            `json:"entity_count"`
	EventCount       int            `json:"event_count"`
	ByType           map[string]int `json:"by_type"`
	ProcessingTimeMs float64        `json:"processing_time_ms"`
	CacheHit         bool           `json:"cache_hit"`
	Degraded         bool           `json:"degraded"`
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path with WAL
// mode enabled. The parent directory is created.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS extractions (
	id TEXT PRIMARY KEY,
	timestamp TEXT NOT NULL,
	text_hash TEXT NOT NULL,
	text_length INTEGER NOT NULL,
	entity_count INTEGER NOT NULL,
	event_count INTEGER NOT NULL,
	by_type TEXT NOT NULL,
	processing_time_ms REAL NOT NULL,
	cache_hit INTEGER NOT NULL DEFAULT 0,
	degraded INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_extractions_timestamp ON extractions(timestamp);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Append stores the record, assigning ID and Timestamp when unset.
func (s *Store) Append(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	byType, err := json.Marshal(rec.ByType)
	if err != nil {
		return Record{}, fmt.Errorf("encode by_type: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO extractions
	(id, timestamp, text_hash, text_length, entity_count, event_count, by_type, processing_time_ms, cache_hit, degraded)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp, rec.TextHash, rec.TextLength,
		rec.EntityCount, rec.EventCount, string(byType),
		rec.ProcessingTimeMs, boolInt(rec.CacheHit), boolInt(rec.Degraded))
	if err != nil {
		return Record{}, fmt.Errorf("insert extraction: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, timestamp, text_hash, text_length, entity_count, event_count, by_type, processing_time_ms, cache_hit, degraded
FROM extractions ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var byType string
		var cacheHit, degraded int
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.TextHash, &rec.TextLength,
			&rec.EntityCount, &rec.EventCount, &byType,
			&rec.ProcessingTimeMs, &cacheHit, &degraded); err != nil {
			return nil, err
		}
		if byType != "" {
			if err := json.Unmarshal([]byte(byType), &rec.ByType); err != nil {
				return nil, fmt.Errorf("decode by_type for %s: %w", rec.ID, err)
			}
		}
		rec.CacheHit = cacheHit != 0
		rec.Degraded = degraded != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count reports the total number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM extractions`).Scan(&n)
	return n, err
}

// Prune deletes records older than the cutoff and reports how many went.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM extractions WHERE timestamp < ?`,
		olderThan.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
