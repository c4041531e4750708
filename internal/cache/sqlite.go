package cache

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	errs "mediafetch/pkg/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    collection   TEXT NOT NULL,
    url          TEXT NOT NULL,
    committed_at DATETIME NOT NULL,
    PRIMARY KEY (collection, url)
);
`

// SQLiteStore keeps cache entries in a single SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) cache.db under dir
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Storage("create cache directory", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "cache.db"))
	if err != nil {
		return nil, errs.Storage("open cache database", err)
	}
	// one writer at a time avoids SQLITE_BUSY between concurrent commits
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errs.Storage("initialize cache schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (URLSet, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT url FROM cache_entries WHERE collection = ?`, key)
	if err != nil {
		return nil, errs.Storage("query cache", err)
	}
	defer rows.Close()

	set := URLSet{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, errs.Storage("scan cache row", err)
		}
		set.Add(u)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Storage("read cache rows", err)
	}
	return set, nil
}

func (s *SQLiteStore) Commit(ctx context.Context, key string, urls []string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage("begin cache transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO cache_entries (collection, url, committed_at) VALUES (?, ?, ?)`)
	if err != nil {
		return errs.Storage("prepare cache insert", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, key, u, now); err != nil {
			return errs.Storage("insert cache entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Storage("commit cache transaction", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE collection = ?`, key); err != nil {
		return errs.Storage("clear cache", err)
	}
	return nil
}

func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return errs.Storage("clear cache", err)
	}
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT collection FROM cache_entries ORDER BY collection`)
	if err != nil {
		return nil, errs.Storage("list cache keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errs.Storage("scan cache key", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
