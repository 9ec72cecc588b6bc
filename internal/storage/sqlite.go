package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/animerec/internal/config"
	"github.com/hyperjump/animerec/internal/models"
)

const savedAtKey = "saved_at"

// SQLiteStore keeps the snapshot in a SQLite database. Records are stored with
// their catalog position; the save time lives in a meta row written in the same
// transaction, so it plays the role of the JSON file's modification time.
type SQLiteStore struct {
	db   *sql.DB
	path string
	opts storeOptions
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string, opts ...StoreOption) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath, opts: newStoreOptions(opts)}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS catalog_records (
		position INTEGER PRIMARY KEY,
		id INTEGER NOT NULL,
		title TEXT NOT NULL,
		title_english TEXT NOT NULL DEFAULT '',
		title_japanese TEXT NOT NULL DEFAULT '',
		title_synonyms TEXT NOT NULL DEFAULT '',
		synopsis TEXT NOT NULL DEFAULT '',
		genres TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_catalog_records_id ON catalog_records(id);

	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// IsFresh reports whether a snapshot was saved no longer than the max age ago.
func (s *SQLiteStore) IsFresh(ctx context.Context) bool {
	saved, ok := s.LastModified(ctx)
	if !ok {
		return false
	}
	return isFresh(saved, s.opts.now(), s.opts.maxAge)
}

// LastModified returns the time of the last successful Save.
func (s *SQLiteStore) LastModified(ctx context.Context) (time.Time, bool) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cache_meta WHERE key = ?`, savedAtKey).Scan(&value)
	if err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Load returns the saved records in catalog order, or false when nothing was saved.
func (s *SQLiteStore) Load(ctx context.Context) (models.CatalogSet, bool) {
	if _, ok := s.LastModified(ctx); !ok {
		return nil, false
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, title_english, title_japanese, title_synonyms, synopsis, genres, image_url
		 FROM catalog_records ORDER BY position`,
	)
	if err != nil {
		return nil, false
	}
	defer rows.Close()

	records := models.CatalogSet{}
	for rows.Next() {
		var r models.CatalogRecord
		if err := rows.Scan(&r.ID, &r.Title, &r.TitleEnglish, &r.TitleJapanese,
			&r.TitleSynonyms, &r.Synopsis, &r.Genres, &r.ImageURL); err != nil {
			return nil, false
		}
		records = append(records, r)
	}
	if rows.Err() != nil {
		return nil, false
	}
	return records, true
}

// Save replaces all records and stamps the save time in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, records models.CatalogSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO catalog_records
		 (position, id, title, title_english, title_japanese, title_synonyms, synopsis, genres, image_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, i, r.ID, r.Title, r.TitleEnglish, r.TitleJapanese,
			r.TitleSynonyms, r.Synopsis, r.Genres, r.ImageURL); err != nil {
			return fmt.Errorf("insert record %d: %w", r.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		savedAtKey, s.opts.now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("stamp save time: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// Backend returns "sqlite".
func (s *SQLiteStore) Backend() string { return config.CacheBackendSQLite }

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
