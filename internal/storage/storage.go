// Package storage persists window.localStorage in a SQLite database under the
// engine's cache path, one row per origin and key.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	// Pure-Go SQLite driver for database/sql.
	_ "github.com/glebarez/sqlite"
)

// QuotaBytes caps the key and value bytes one origin may hold.
const QuotaBytes = 5 << 20

// ErrQuotaExceeded is returned by Set when the origin would exceed QuotaBytes.
var ErrQuotaExceeded = errors.New("storage: quota exceeded")

const schema = `CREATE TABLE IF NOT EXISTS local_storage (
	origin TEXT NOT NULL,
	key    TEXT NOT NULL,
	value  TEXT NOT NULL,
	PRIMARY KEY (origin, key)
)`

// Store is a localStorage database shared by every origin.
type Store struct {
	db   *sql.DB
	Path string
}

// Open opens (or creates) the store at {cachePath}/Local Storage/localstorage.sqlite3.
// An empty cachePath yields an in-memory store.
func Open(cachePath string) (*Store, error) {
	if cachePath == "" {
		return OpenMemory()
	}
	dir := filepath.Join(cachePath, "Local Storage")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	path := filepath.Join(dir, "localstorage.sqlite3")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening storage %q: %w", path, err)
	}
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	return initStore(db, path)
}

// OpenMemory creates a store that vanishes on Close.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory storage: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return initStore(db, ":memory:")
}

func initStore(db *sql.DB, path string) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating storage schema: %w", err)
	}
	return &Store{db: db, Path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Area returns the view of the store belonging to origin.
func (s *Store) Area(origin string) *Area {
	return &Area{store: s, origin: origin}
}

// Area is one origin's localStorage.
type Area struct {
	store  *Store
	origin string
}

// Origin returns the origin the area is scoped to.
func (a *Area) Origin() string { return a.origin }

func (a *Area) Get(key string) (string, bool, error) {
	var v string
	err := a.store.db.QueryRow(
		"SELECT value FROM local_storage WHERE origin = ? AND key = ?", a.origin, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %q: %w", key, err)
	}
	return v, true, nil
}

func (a *Area) Set(key, value string) error {
	tx, err := a.store.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var used int64
	if err := tx.QueryRow(
		"SELECT COALESCE(SUM(LENGTH(CAST(key AS BLOB)) + LENGTH(CAST(value AS BLOB))), 0) FROM local_storage WHERE origin = ? AND key <> ?",
		a.origin, key,
	).Scan(&used); err != nil {
		return fmt.Errorf("measuring usage: %w", err)
	}
	if used+int64(len(key)+len(value)) > QuotaBytes {
		return ErrQuotaExceeded
	}
	if _, err := tx.Exec(
		"INSERT INTO local_storage (origin, key, value) VALUES (?, ?, ?) ON CONFLICT(origin, key) DO UPDATE SET value = excluded.value",
		a.origin, key, value,
	); err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return tx.Commit()
}

func (a *Area) Delete(key string) error {
	_, err := a.store.db.Exec("DELETE FROM local_storage WHERE origin = ? AND key = ?", a.origin, key)
	return err
}

func (a *Area) Clear() error {
	_, err := a.store.db.Exec("DELETE FROM local_storage WHERE origin = ?", a.origin)
	return err
}

// Keys returns the origin's keys in sorted order.
func (a *Area) Keys() ([]string, error) {
	rows, err := a.store.db.Query("SELECT key FROM local_storage WHERE origin = ? ORDER BY key", a.origin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
