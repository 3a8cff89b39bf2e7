package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// SQLiteCache stores fetched remote media bodies keyed by URL.
type SQLiteCache struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteCache(path string) (*SQLiteCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &SQLiteCache{db: db, now: time.Now}, nil
}

func (c *SQLiteCache) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_cache (
			url TEXT PRIMARY KEY,
			content_type TEXT NOT NULL DEFAULT '',
			body BLOB NOT NULL,
			size INTEGER NOT NULL,
			fetched_ts TEXT NOT NULL,
			last_used_ts TEXT NOT NULL,
			hits INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS fetch_cache_last_used ON fetch_cache(last_used_ts);`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (c *SQLiteCache) Put(ctx context.Context, url, contentType string, body []byte) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	ts := c.now().UTC().Format(timeLayout)
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO fetch_cache(url, content_type, body, size, fetched_ts, last_used_ts)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			content_type = excluded.content_type,
			body = excluded.body,
			size = excluded.size,
			fetched_ts = excluded.fetched_ts,
			last_used_ts = excluded.last_used_ts
	`, url, contentType, body, len(body), ts, ts)
	return err
}

// Get returns the cached body for url and records the hit.
func (c *SQLiteCache) Get(ctx context.Context, url string) ([]byte, bool, error) {
	var body []byte
	err := c.db.QueryRowContext(ctx, `SELECT body FROM fetch_cache WHERE url = ?`, url).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if _, err := c.db.ExecContext(ctx, `UPDATE fetch_cache SET hits = hits + 1, last_used_ts = ? WHERE url = ?`, c.now().UTC().Format(timeLayout), url); err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func (c *SQLiteCache) Has(ctx context.Context, url string) (bool, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM fetch_cache WHERE url = ?`, url).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

type CacheStats struct {
	Entries int
	Bytes   int64
	Hits    int
}

func (s CacheStats) String() string {
	return fmt.Sprintf("%d cached (%s, %d hits)", s.Entries, humanize.Bytes(uint64(s.Bytes)), s.Hits)
}

func (c *SQLiteCache) Stats(ctx context.Context) (CacheStats, error) {
	var out CacheStats
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(SUM(size), 0), COALESCE(SUM(hits), 0) FROM fetch_cache`).
		Scan(&out.Entries, &out.Bytes, &out.Hits)
	return out, err
}

// Prune evicts least recently used entries until the cache holds at most
// maxBytes. It returns the number of evicted entries.
func (c *SQLiteCache) Prune(ctx context.Context, maxBytes int64) (int, error) {
	stats, err := c.Stats(ctx)
	if err != nil {
		return 0, err
	}
	if stats.Bytes <= maxBytes {
		return 0, nil
	}
	rows, err := c.db.QueryContext(ctx, `SELECT url, size FROM fetch_cache ORDER BY last_used_ts ASC, url ASC`)
	if err != nil {
		return 0, err
	}
	var victims []string
	total := stats.Bytes
	for rows.Next() && total > maxBytes {
		var (
			url  string
			size int64
		)
		if err := rows.Scan(&url, &size); err != nil {
			_ = rows.Close()
			return 0, err
		}
		victims = append(victims, url)
		total -= size
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()
	for _, url := range victims {
		if _, err := c.db.ExecContext(ctx, `DELETE FROM fetch_cache WHERE url = ?`, url); err != nil {
			return 0, err
		}
	}
	return len(victims), nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
