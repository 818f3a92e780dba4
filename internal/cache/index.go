package cache

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// IndexEntry is one persisted cache record: a fingerprint and the on-disk
// locations of its compiled artifact and retained source.
type IndexEntry struct {
	Fingerprint  string
	Target       string
	Symbol       string
	ArtifactPath string
	SourcePath   string
	Profile      string
	CreatedAt    time.Time
	AccessedAt   time.Time
}

// Index is the durable artifact index inside the on-disk cache location.
// It survives process restarts so warm fingerprints rebind without
// recompiling. SQLite in WAL mode, single writer.
type Index struct {
	db *sql.DB
}

// OpenIndex creates or opens the index database at path. Idempotent.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to index: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the index database.
func (ix *Index) Close() error {
	if ix.db == nil {
		return nil
	}
	return ix.db.Close()
}

// Upsert records an entry, replacing any previous row for the fingerprint
// wholesale.
func (ix *Index) Upsert(e IndexEntry) error {
	_, err := ix.db.Exec(`
		INSERT INTO entries
		(fingerprint, target, symbol, artifact_path, source_path, profile, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			target = excluded.target,
			symbol = excluded.symbol,
			artifact_path = excluded.artifact_path,
			source_path = excluded.source_path,
			profile = excluded.profile,
			accessed_at = excluded.accessed_at
	`,
		e.Fingerprint, e.Target, e.Symbol, e.ArtifactPath, e.SourcePath,
		e.Profile, e.CreatedAt.UnixNano(), e.AccessedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return nil
}

// Touch bumps an entry's recency marker.
func (ix *Index) Touch(fingerprint string, at time.Time) error {
	_, err := ix.db.Exec(
		`UPDATE entries SET accessed_at = ? WHERE fingerprint = ?`,
		at.UnixNano(), fingerprint,
	)
	if err != nil {
		return fmt.Errorf("touch entry: %w", err)
	}
	return nil
}

// Get returns the entry for a fingerprint, if recorded.
func (ix *Index) Get(fingerprint string) (IndexEntry, bool, error) {
	row := ix.db.QueryRow(`
		SELECT fingerprint, target, symbol, artifact_path, source_path, profile, created_at, accessed_at
		FROM entries WHERE fingerprint = ?
	`, fingerprint)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return IndexEntry{}, false, nil
	}
	if err != nil {
		return IndexEntry{}, false, fmt.Errorf("get entry: %w", err)
	}
	return e, true, nil
}

// All returns every entry, most recently used first.
func (ix *Index) All() ([]IndexEntry, error) {
	rows, err := ix.db.Query(`
		SELECT fingerprint, target, symbol, artifact_path, source_path, profile, created_at, accessed_at
		FROM entries ORDER BY accessed_at DESC, fingerprint
	`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []IndexEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes an entry's row.
func (ix *Index) Delete(fingerprint string) error {
	if _, err := ix.db.Exec(`DELETE FROM entries WHERE fingerprint = ?`, fingerprint); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Clear removes every row.
func (ix *Index) Clear() error {
	if _, err := ix.db.Exec(`DELETE FROM entries`); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (IndexEntry, error) {
	var e IndexEntry
	var created, accessed int64
	err := r.Scan(
		&e.Fingerprint, &e.Target, &e.Symbol, &e.ArtifactPath,
		&e.SourcePath, &e.Profile, &created, &accessed,
	)
	if err != nil {
		return IndexEntry{}, err
	}
	e.CreatedAt = time.Unix(0, created)
	e.AccessedAt = time.Unix(0, accessed)
	return e, nil
}
