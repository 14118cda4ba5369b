// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: store/line_store.go
// Summary: SQLite FTS5 line index used to prefilter document search.
//
// Provides substring candidate lookup over a snapshot of the document with:
//   - Async snapshot writes on a background goroutine (latest snapshot wins)
//   - Trigram FTS5 matching for queries of 3+ characters
//   - LIKE fallback for shorter queries
//   - The buffer version of the indexed snapshot, so callers can tell
//     whether candidates still describe the live document
//   - A per-session owner token recorded with the version, so a store
//     shared by several editors never reports another session's snapshot
//     as its own

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrForeignSnapshot is returned by CandidateLines when the stored snapshot
// was written by another session.
var ErrForeignSnapshot = errors.New("store: snapshot belongs to another session")

// Config holds configuration for the line store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BatchSize is the number of rows inserted per prepared-statement batch.
	// Default: 500
	BatchSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:    dbPath,
		BatchSize: 500,
	}
}

// snapshot is a queued copy of the document.
type snapshot struct {
	version int64
	lines   []string
}

// LineStore indexes document snapshots for substring lookup.
type LineStore struct {
	config  Config
	db      *sql.DB
	session string

	snapCh  chan snapshot
	stopCh  chan struct{}
	doneCh  chan struct{}
	flushCh chan chan struct{}

	mu sync.RWMutex
}

// Current schema version - increment this when schema changes require reindexing
const schemaVersion = 2

const lineStoreSchema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);

-- Single row naming the session and document version of the stored lines
CREATE TABLE IF NOT EXISTS snapshot_owner (
    id INTEGER PRIMARY KEY CHECK (id = 0),
    session TEXT NOT NULL,
    version INTEGER NOT NULL
);

-- One row per document line; id is the 0-based line number
CREATE TABLE IF NOT EXISTS lines (
    id INTEGER PRIMARY KEY,
    content TEXT NOT NULL
);
`

// FTS schema - separate so it can be rebuilt on version changes
const lineStoreFTSSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS lines_fts USING fts5(
    content,
    content='lines',
    content_rowid='id',
    tokenize='trigram'
);

CREATE TRIGGER IF NOT EXISTS lines_ai AFTER INSERT ON lines BEGIN
    INSERT INTO lines_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS lines_ad AFTER DELETE ON lines BEGIN
    INSERT INTO lines_fts(lines_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;
`

// Open opens (or creates) the line store at dbPath.
func Open(dbPath string) (*LineStore, error) {
	return OpenWithConfig(DefaultConfig(dbPath))
}

// OpenWithConfig opens the line store with custom configuration.
func OpenWithConfig(config Config) (*LineStore, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}

	dir := filepath.Dir(config.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dsn := config.DBPath +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=cache_size(-8000)" + // 8MB cache
		"&_pragma=temp_store(MEMORY)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec(lineStoreSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := migrateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to check schema version: %w", err)
	}
	if _, err := db.Exec(lineStoreFTSSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create FTS schema: %w", err)
	}

	ls := &LineStore{
		config:  config,
		db:      db,
		session: uuid.NewString(),
		snapCh:  make(chan snapshot, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		flushCh: make(chan chan struct{}),
	}
	go ls.snapshotWriter()
	return ls, nil
}

// migrateSchema drops stale FTS tables and content when the schema
// version changed. Snapshots are rewritten on demand, so no rebuild is needed.
func migrateSchema(db *sql.DB) error {
	var current int
	if err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&current); err != nil {
		current = 0
	}
	if current == schemaVersion {
		return nil
	}

	log.Printf("[LINE_STORE] Migrating schema from version %d to %d", current, schemaVersion)
	migrations := []string{
		"DROP TRIGGER IF EXISTS lines_ai",
		"DROP TRIGGER IF EXISTS lines_ad",
		"DROP TABLE IF EXISTS lines_fts",
		"DELETE FROM lines",
		"DROP TABLE IF EXISTS meta",
		"DELETE FROM snapshot_owner",
		"DELETE FROM schema_version",
	}
	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed on '%s': %w", stmt, err)
		}
	}
	if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}

// snapshotWriter runs in a background goroutine and writes queued snapshots.
func (ls *LineStore) snapshotWriter() {
	defer close(ls.doneCh)

	for {
		select {
		case snap := <-ls.snapCh:
			ls.write(snap)

		case done := <-ls.flushCh:
			select {
			case snap := <-ls.snapCh:
				ls.write(snap)
			default:
			}
			close(done)

		case <-ls.stopCh:
			select {
			case snap := <-ls.snapCh:
				ls.write(snap)
			default:
			}
			return
		}
	}
}

// write replaces the stored document with snap in a single transaction.
func (ls *LineStore) write(snap snapshot) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	tx, err := ls.db.Begin()
	if err != nil {
		log.Printf("[LINE_STORE] Failed to begin transaction: %v", err)
		return
	}
	if _, err := tx.Exec("DELETE FROM lines"); err != nil {
		log.Printf("[LINE_STORE] Failed to clear lines: %v", err)
		tx.Rollback()
		return
	}

	stmt, err := tx.Prepare("INSERT INTO lines (id, content) VALUES (?, ?)")
	if err != nil {
		log.Printf("[LINE_STORE] Failed to prepare statement: %v", err)
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for i, line := range snap.lines {
		if line == "" {
			continue
		}
		if _, err := stmt.Exec(i, line); err != nil {
			log.Printf("[LINE_STORE] Failed to insert line %d: %v", i, err)
			tx.Rollback()
			return
		}
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO snapshot_owner (id, session, version) VALUES (0, ?, ?)", ls.session, snap.version); err != nil {
		log.Printf("[LINE_STORE] Failed to record version: %v", err)
		tx.Rollback()
		return
	}
	if err := tx.Commit(); err != nil {
		log.Printf("[LINE_STORE] Failed to commit snapshot: %v", err)
		return
	}
}

// Snapshot queues lines as the document content at version. A snapshot
// still waiting to be written is replaced. lines must not be modified
// afterwards.
func (ls *LineStore) Snapshot(version int64, lines []string) {
	snap := snapshot{version: version, lines: lines}
	for {
		select {
		case ls.snapCh <- snap:
			return
		default:
		}
		select {
		case <-ls.snapCh:
		default:
		}
	}
}

// IndexedVersion returns the document version of the stored snapshot, or -1
// if the stored lines were not written by this session.
func (ls *LineStore) IndexedVersion() int64 {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	version, err := ls.ownedVersion(ls.db)
	if err != nil {
		if !errors.Is(err, ErrForeignSnapshot) {
			log.Printf("[LINE_STORE] Failed to read snapshot owner: %v", err)
		}
		return -1
	}
	return version
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

// ownedVersion returns the stored snapshot version, or ErrForeignSnapshot
// when no snapshot of this session is stored.
func (ls *LineStore) ownedVersion(q queryRower) (int64, error) {
	var session string
	var version int64
	err := q.QueryRow("SELECT session, version FROM snapshot_owner WHERE id = 0").Scan(&session, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, ErrForeignSnapshot
	}
	if err != nil {
		return -1, err
	}
	if session != ls.session {
		return -1, ErrForeignSnapshot
	}
	return version, nil
}

// CandidateLines returns the ascending line numbers that may contain query.
// Matching is case-insensitive, so the result is a superset of the lines
// containing query with exact case. Callers must verify every candidate.
// It fails with ErrForeignSnapshot when another session replaced the lines.
func (ls *LineStore) CandidateLines(query string) ([]int, error) {
	if query == "" {
		return nil, nil
	}

	ls.mu.RLock()
	defer ls.mu.RUnlock()

	// Owner check and lookup read the same database snapshot.
	tx, err := ls.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("candidate lookup failed: %w", err)
	}
	defer tx.Rollback()
	if _, err := ls.ownedVersion(tx); err != nil {
		return nil, err
	}

	var rows *sql.Rows

	// Trigram tokenizer requires at least 3 characters to produce a trigram.
	if len([]rune(query)) < 3 {
		likePattern := "%" + strings.ReplaceAll(strings.ReplaceAll(strings.ReplaceAll(query, `\`, `\\`), "%", `\%`), "_", `\_`) + "%"
		rows, err = tx.Query(`
			SELECT id FROM lines
			WHERE content LIKE ? ESCAPE '\'
			ORDER BY id ASC
		`, likePattern)
	} else {
		quotedQuery := `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
		rows, err = tx.Query(`
			SELECT rowid FROM lines_fts
			WHERE lines_fts MATCH ?
			ORDER BY rowid ASC
		`, quotedQuery)
	}
	if err != nil {
		return nil, fmt.Errorf("candidate lookup failed: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// LineCount returns the number of non-empty lines in the stored snapshot.
func (ls *LineStore) LineCount() (int, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	var n int
	err := ls.db.QueryRow("SELECT COUNT(*) FROM lines").Scan(&n)
	return n, err
}

// Flush blocks until the pending snapshot, if any, is written.
func (ls *LineStore) Flush() error {
	done := make(chan struct{})
	select {
	case ls.flushCh <- done:
		<-done
	case <-ls.stopCh:
	}
	return nil
}

// Close writes the pending snapshot and closes the database.
func (ls *LineStore) Close() error {
	close(ls.stopCh)
	<-ls.doneCh
	return ls.db.Close()
}
