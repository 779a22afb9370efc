package resourcecache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/liftlog/internal/domain"
	"github.com/doeshing/liftlog/internal/ports"
)

// SQLiteStore persists named response caches in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open creates (or opens) the cache database at path.
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open resource cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init resource cache: %w", err)
	}
	return store, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS caches (
		name TEXT PRIMARY KEY,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		cache TEXT NOT NULL,
		method TEXT NOT NULL,
		url TEXT NOT NULL,
		status INTEGER NOT NULL,
		header TEXT NOT NULL,
		body BLOB,
		stored_at TEXT NOT NULL,
		PRIMARY KEY (cache, method, url)
	)`,
}

func (s *SQLiteStore) init() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Match looks a request up in one named cache.
func (s *SQLiteStore) Match(ctx context.Context, cache string, key domain.RequestKey) (*domain.CachedResponse, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT status, header, body, stored_at FROM entries
		WHERE cache = ? AND method = ? AND url = ?`, cache, key.Method, key.URL)
	return scanEntry(row)
}

// MatchAny looks a request up in every cache, in cache creation order.
func (s *SQLiteStore) MatchAny(ctx context.Context, key domain.RequestKey) (*domain.CachedResponse, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT e.status, e.header, e.body, e.stored_at
		FROM entries e JOIN caches c ON c.name = e.cache
		WHERE e.method = ? AND e.url = ?
		ORDER BY c.rowid ASC LIMIT 1`, key.Method, key.URL)
	return scanEntry(row)
}

// Put stores resp under key in cache, replacing any previous entry.
func (s *SQLiteStore) Put(ctx context.Context, cache string, key domain.RequestKey, resp *domain.CachedResponse) error {
	if resp == nil {
		return errors.New("put: nil response")
	}
	header, err := json.Marshal(resp.Header)
	if err != nil {
		return err
	}
	storedAt := resp.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO caches (name, created_at) VALUES (?, ?)`,
		cache, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO entries
		(cache, method, url, status, header, body, stored_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cache, key.Method, key.URL, resp.StatusCode, string(header), resp.Body,
		storedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes one entry and reports whether it existed.
func (s *SQLiteStore) Delete(ctx context.Context, cache string, key domain.RequestKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE cache = ? AND method = ? AND url = ?`,
		cache, key.Method, key.URL)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CacheNames lists caches in creation order.
func (s *SQLiteStore) CacheNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM caches ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteCache drops a cache and all of its entries.
func (s *SQLiteStore) DeleteCache(ctx context.Context, cache string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE cache = ?`, cache); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM caches WHERE name = ?`, cache); err != nil {
		return err
	}
	return tx.Commit()
}

// Generations summarizes every cache with its entry count and payload size.
func (s *SQLiteStore) Generations(ctx context.Context) ([]domain.CacheGeneration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT c.name, COUNT(e.url), COALESCE(SUM(LENGTH(e.body)), 0)
		FROM caches c LEFT JOIN entries e ON e.cache = c.name
		GROUP BY c.name ORDER BY c.rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var gens []domain.CacheGeneration
	for rows.Next() {
		var g domain.CacheGeneration
		if err := rows.Scan(&g.Name, &g.Entries, &g.Bytes); err != nil {
			return nil, err
		}
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanEntry(row *sql.Row) (*domain.CachedResponse, bool, error) {
	var (
		resp     domain.CachedResponse
		header   string
		storedAt string
	)
	if err := row.Scan(&resp.StatusCode, &header, &resp.Body, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	resp.Header = http.Header{}
	if err := json.Unmarshal([]byte(header), &resp.Header); err != nil {
		return nil, false, fmt.Errorf("decode cached header: %w", err)
	}
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	if t, err := time.Parse(time.RFC3339Nano, storedAt); err == nil {
		resp.StoredAt = t
	}
	return &resp, true, nil
}

var _ ports.ResourceStore = (*SQLiteStore)(nil)
