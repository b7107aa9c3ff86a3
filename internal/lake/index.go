package lake

import (
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Index is a secondary timestamp→offset cache accelerating Range over
// an otherwise-linear mmap scan. It is never the source of truth: if
// it is stale, dropped, or rebuilt from scratch, Range still produces
// correct results, only more slowly (spec.md §8's cache-not-truth
// invariant, carried over from the core data model into this
// supplement).
type Index struct {
	db *sql.DB
}

// OpenIndex opens (creating if needed) the sqlite index at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("lake: open index: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("lake: set WAL mode: %w", err)
	}
	idx := &Index{db: db}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("lake: migrate index: %w", err)
	}
	return idx, nil
}

func (idx *Index) Close() error {
	return idx.db.Close()
}

func (idx *Index) migrate() error {
	if _, err := idx.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		var applied int
		if err := idx.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", f).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", f, err)
		}
		if applied > 0 {
			continue
		}
		content, err := migrationsFS.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		tx, err := idx.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for %s: %w", f, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", f); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", f, err)
		}
	}
	return nil
}

// Record stores a timestamp→offset mapping after a successful write.
func (idx *Index) Record(timestampMs, offset uint64) error {
	_, err := idx.db.Exec(`INSERT INTO lake_offsets (timestamp_ms, file_offset) VALUES (?, ?)`, timestampMs, offset)
	return err
}

// Lookup returns the largest recorded offset for a timestamp <= ts, so
// Range can skip straight to the first page that might contain ts
// rather than scanning from the start of the file.
func (idx *Index) Lookup(ts uint64) (uint64, bool, error) {
	var offset uint64
	err := idx.db.QueryRow(
		`SELECT file_offset FROM lake_offsets WHERE timestamp_ms <= ? ORDER BY timestamp_ms DESC LIMIT 1`, ts,
	).Scan(&offset)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return offset, true, nil
}
