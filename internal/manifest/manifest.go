// Package manifest tracks which build generation last wrote each output so
// outputs of deleted sources can be swept.
package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// FileName is the database name inside the output state directory.
const FileName = "manifest.db"

// Entry is one tracked output.
type Entry struct {
	Output     string
	Source     string
	Generation int64
}

// Manifest is a generation-tagged output manifest stored in SQLite.
type Manifest struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the manifest at dbPath. Use ":memory:" in tests.
func Open(dbPath string) (*Manifest, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("create manifest dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	m := &Manifest{db: db}
	if err := m.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return m, nil
}

func (m *Manifest) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS outputs (
		path TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		generation INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outputs_generation ON outputs(generation);
	CREATE INDEX IF NOT EXISTS idx_outputs_source ON outputs(source);
	CREATE TABLE IF NOT EXISTS state (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`
	_, err := m.db.Exec(schema)
	return err
}

// Close releases the database.
func (m *Manifest) Close() error {
	return m.db.Close()
}

// NextGeneration advances and returns the build generation counter.
func (m *Manifest) NextGeneration(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES ('generation', 1)
		ON CONFLICT(key) DO UPDATE SET value = value + 1`)
	if err != nil {
		return 0, fmt.Errorf("advance generation: %w", err)
	}
	var gen int64
	if err := m.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = 'generation'`).Scan(&gen); err != nil {
		return 0, fmt.Errorf("read generation: %w", err)
	}
	return gen, nil
}

// Record tags every entry's output with gen.
func (m *Manifest) Record(ctx context.Context, gen int64, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outputs (path, source, generation) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET source = excluded.source, generation = excluded.generation`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Output, e.Source, gen); err != nil {
			return fmt.Errorf("record %s: %w", e.Output, err)
		}
	}
	return tx.Commit()
}

// Stale lists outputs last written before gen, ordered by path.
func (m *Manifest) Stale(ctx context.Context, gen int64) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query(ctx, `SELECT path, source, generation FROM outputs WHERE generation < ? ORDER BY path`, gen)
}

// BySource lists the outputs produced from the given sources, ordered by path.
func (m *Manifest) BySource(ctx context.Context, sources []string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, src := range sources {
		es, err := m.query(ctx, `SELECT path, source, generation FROM outputs WHERE source = ? ORDER BY path`, src)
		if err != nil {
			return nil, err
		}
		out = append(out, es...)
	}
	return out, nil
}

func (m *Manifest) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := m.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Output, &e.Source, &e.Generation); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Sweep deletes the given outputs from outputRoot and forgets them. Files
// already gone are ignored and emptied directories are removed. It returns
// the output paths that were forgotten.
func (m *Manifest) Sweep(ctx context.Context, outputRoot string, entries []Entry) ([]string, error) {
	var removed []string
	var errs []error
	for _, e := range entries {
		abs := filepath.Join(outputRoot, filepath.FromSlash(e.Output))
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		pruneEmptyDirs(outputRoot, filepath.Dir(abs))
		removed = append(removed, e.Output)
	}

	if len(removed) > 0 {
		m.mu.Lock()
		defer m.mu.Unlock()
		tx, err := m.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		for _, p := range removed {
			if _, err := tx.ExecContext(ctx, `DELETE FROM outputs WHERE path = ?`, p); err != nil {
				return nil, fmt.Errorf("forget %s: %w", p, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
	}
	return removed, errors.Join(errs...)
}

func pruneEmptyDirs(root, dir string) {
	root = filepath.Clean(root)
	for dir = filepath.Clean(dir); dir != root && len(dir) > len(root); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			return
		}
	}
}
