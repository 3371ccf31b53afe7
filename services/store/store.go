// Package store persists media and streams in SQLite. Streams are
// deduplicated by info-hash; a blocked stream stays blocked no matter how
// many scrapers rediscover it.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store wraps the database connection.
type Store struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the SQLite database at path and applies pending
// migrations.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_foreign_keys=ON", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// jsonColumn marshals a value for storage in a TEXT column. nil slices and
// maps encode as their empty literal so scans never see NULL.
func jsonColumn(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		switch v.(type) {
		case map[string]float64, map[string]string:
			return "{}"
		default:
			return "[]"
		}
	}
	return string(data)
}

func fromJSONColumn(data string, out interface{}) {
	if data == "" {
		return
	}
	// Corrupt column data degrades to the zero value rather than failing
	// the whole query.
	_ = json.Unmarshal([]byte(data), out)
}
