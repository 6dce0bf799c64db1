package frecency

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, no CGO

	amerrors "github.com/fastfind/filepick/internal/errors"
	"github.com/fastfind/filepick/internal/index"
)

// flushRetry governs retries of a single Flush transaction against
// SQLITE_BUSY from WAL checkpoint contention with a concurrent reader -
// the busy_timeout pragma handles most of this inside the driver, this
// is a second line of defense around the whole transaction.
var flushRetry = amerrors.RetryConfig{
	MaxRetries:   2,
	InitialDelay: 20 * time.Millisecond,
	MaxDelay:     200 * time.Millisecond,
	Multiplier:   4.0,
	Jitter:       true,
}

const schemaVersion = 1

// Config tunes Store's behavior.
type Config struct {
	// FlushInterval is how often the dirty-record buffer is written to
	// disk. Zero uses a 5 second default.
	FlushInterval time.Duration

	// RecordTTL is how long a record whose path is absent from the index
	// is kept before Prune removes it. Zero uses a 30 day default.
	RecordTTL time.Duration

	// CacheSizeMB is the SQLite page cache size. Zero uses a 64 MB default.
	CacheSizeMB int
}

func (c Config) withDefaults() Config {
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Second
	}
	if c.RecordTTL <= 0 {
		c.RecordTTL = 30 * 24 * time.Hour
	}
	if c.CacheSizeMB <= 0 {
		c.CacheSizeMB = 64
	}
	return c
}

// Store is the persistent access/modification history backing the
// search engine's frecency_boost term. One Store owns one db_path
// directory; a second process opening the same directory is rejected by
// dirLock rather than silently corrupting the database.
type Store struct {
	mu           sync.Mutex
	db           *sql.DB
	dir          string
	lock         *dirLock
	cfg          Config
	logger       *slog.Logger
	records      map[string]*record
	dirty        map[string]struct{}
	dirtyDeletes []string

	stopFlush chan struct{}
	flushDone chan struct{}
	closed    bool
}

// Open initializes (or reopens) the store rooted at dir. It fails loudly
// if dir is unwritable or already locked by another process.
func Open(dir string, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("frecency: create db directory: %w", err)
	}

	lock := newDirLock(dir)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("frecency: db directory %s is locked by another process", dir)
	}

	dbPath := filepath.Join(dir, "frecency.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("frecency: open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		fmt.Sprintf("PRAGMA cache_size = -%d", cfg.CacheSizeMB*1024), // negative = KiB
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("frecency: set pragma %q: %w", p, err)
		}
	}

	s := &Store{
		db:        db,
		dir:       dir,
		lock:      lock,
		cfg:       cfg,
		logger:    logger,
		records:   make(map[string]*record),
		dirty:     make(map[string]struct{}),
		stopFlush: make(chan struct{}),
		flushDone: make(chan struct{}),
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("frecency: init schema: %w", err)
	}
	if err := s.loadAll(); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("frecency: load records: %w", err)
	}

	go s.flushLoop()
	return s, nil
}

func (s *Store) initSchema() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);
	CREATE TABLE IF NOT EXISTS frecency_records (
		path TEXT PRIMARY KEY,
		access_events TEXT NOT NULL,
		last_seen INTEGER NOT NULL DEFAULT 0,
		last_modified INTEGER NOT NULL DEFAULT 0,
		dirty INTEGER NOT NULL DEFAULT 0
	);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(`INSERT INTO schema_version(version) VALUES (?)`, schemaVersion)
		return err
	case err != nil:
		return err
	case version != schemaVersion:
		s.logger.Warn("frecency_schema_version_mismatch",
			slog.Int("found", version), slog.Int("expected", schemaVersion))
		if _, err := s.db.Exec(`DELETE FROM frecency_records`); err != nil {
			return err
		}
		_, err = s.db.Exec(`UPDATE schema_version SET version = ?`, schemaVersion)
		return err
	}
	return nil
}

func (s *Store) loadAll() error {
	rows, err := s.db.Query(`SELECT path, access_events, last_seen, last_modified, dirty FROM frecency_records`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var path, eventsCSV string
		var lastSeen, lastModified int64
		var dirtyInt int
		if err := rows.Scan(&path, &eventsCSV, &lastSeen, &lastModified, &dirtyInt); err != nil {
			return err
		}
		s.records[path] = &record{
			Path:         path,
			AccessEvents: parseEventsCSV(eventsCSV),
			LastSeen:     lastSeen,
			LastModified: lastModified,
			Dirty:        dirtyInt != 0,
		}
	}
	return rows.Err()
}

func parseEventsCSV(csv string) []int64 {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func formatEventsCSV(events []int64) string {
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = strconv.FormatInt(e, 10)
	}
	return strings.Join(parts, ",")
}

// RecordAccess notes one access to absPath now. It never fails the
// caller: after Close the event is silently dropped.
func (s *Store) RecordAccess(absPath string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	r, ok := s.records[absPath]
	if !ok {
		r = &record{Path: absPath}
		s.records[absPath] = r
	}
	r.addAccess(at.Unix())
	s.dirty[absPath] = struct{}{}
}

// RecordModification notes absPath's last-observed on-disk modification
// time, feeding the modification-recency signal. Scanner calls this for
// every file it upserts. The git-dirty bit is owned by RefreshAll, which
// resolves it from the index's git status - a plain filesystem event can
// never clear a dirty flag a git refresh set.
func (s *Store) RecordModification(absPath string, modTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	r, ok := s.records[absPath]
	if !ok {
		r = &record{Path: absPath}
		s.records[absPath] = r
	}
	if modTime.Unix() > r.LastModified {
		r.LastModified = modTime.Unix()
		s.dirty[absPath] = struct{}{}
	}
}

// ScoresFor returns the current access/modification/total scores for
// absPath. A path with no record returns the zero value, which Scanner
// treats as "no history yet" rather than an error.
func (s *Store) ScoresFor(absPath string) index.FrecencyScores {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.records[absPath]
	now := time.Now()
	return index.FrecencyScores{
		Access:       r.accessScore(now),
		Modification: r.modificationScore(now),
	}
}

// RefreshAll recomputes the modification signal for every entry in
// snapshot in one pass - the bulk counterpart to RecordModification,
// run by the Coordinator after each git status refresh - and returns the
// per-id scores ready to hand to Index.ApplyFrecencyScores. Records are
// only marked for flush when their persisted state actually changed, so
// the background poll doesn't rewrite the whole table every interval.
func (s *Store) RefreshAll(snapshot []*index.FileEntry) map[int64]index.FrecencyScores {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	now := time.Now()
	for _, entry := range snapshot {
		r, ok := s.records[entry.AbsolutePath]
		if !ok {
			r = &record{Path: entry.AbsolutePath}
			s.records[entry.AbsolutePath] = r
			s.dirty[entry.AbsolutePath] = struct{}{}
		}
		if entry.ModifiedTime.Unix() > r.LastModified {
			r.LastModified = entry.ModifiedTime.Unix()
			s.dirty[entry.AbsolutePath] = struct{}{}
		}
		if d := isDirtyStatus(entry.GitStatus); r.Dirty != d {
			r.Dirty = d
			s.dirty[entry.AbsolutePath] = struct{}{}
		}
	}
	out := make(map[int64]index.FrecencyScores, len(snapshot))
	for _, entry := range snapshot {
		r := s.records[entry.AbsolutePath]
		out[entry.ID] = index.FrecencyScores{
			Access:       r.accessScore(now),
			Modification: r.modificationScore(now),
		}
	}
	s.mu.Unlock()
	return out
}

func isDirtyStatus(status index.GitStatus) bool {
	switch status {
	case index.StatusModified, index.StatusStagedModified, index.StatusStagedNew,
		index.StatusUntracked, index.StatusRenamed:
		return true
	default:
		return false
	}
}

// Prune drops records older than the configured TTL whose path is not in
// liveAbsPaths - files that vanished from the index a long time ago, as
// opposed to a base-path switch the user may return to.
func (s *Store) Prune(liveAbsPaths map[string]struct{}) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.cfg.RecordTTL).Unix()
	removed := 0
	for path, r := range s.records {
		if _, live := liveAbsPaths[path]; live {
			continue
		}
		if r.LastSeen < cutoff && r.LastModified < cutoff {
			delete(s.records, path)
			delete(s.dirty, path)
			s.dirtyDeletes = append(s.dirtyDeletes, path)
			removed++
		}
	}
	return removed
}

func (s *Store) flushLoop() {
	defer close(s.flushDone)
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				s.logger.Warn("frecency_flush_failed", slog.String("error", err.Error()))
			}
		case <-s.stopFlush:
			return
		}
	}
}

// Flush writes every dirty record to disk in one transaction.
func (s *Store) Flush() error {
	s.mu.Lock()
	if len(s.dirty) == 0 && len(s.dirtyDeletes) == 0 {
		s.mu.Unlock()
		return nil
	}
	toWrite := make([]*record, 0, len(s.dirty))
	for path := range s.dirty {
		if r, ok := s.records[path]; ok {
			toWrite = append(toWrite, r)
		}
	}
	toDelete := s.dirtyDeletes
	s.dirty = make(map[string]struct{})
	s.dirtyDeletes = nil
	s.mu.Unlock()

	return amerrors.Retry(context.Background(), flushRetry, func() error {
		return s.writeBatch(toWrite, toDelete)
	})
}

// writeBatch commits one transaction containing every pending upsert and
// delete. Retried as a whole by Flush on transient write failures.
func (s *Store) writeBatch(toWrite []*record, toDelete []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.Prepare(`
		INSERT INTO frecency_records(path, access_events, last_seen, last_modified, dirty)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			access_events = excluded.access_events,
			last_seen = excluded.last_seen,
			last_modified = excluded.last_modified,
			dirty = excluded.dirty
	`)
	if err != nil {
		return err
	}
	defer upsert.Close()

	for _, r := range toWrite {
		dirtyInt := 0
		if r.Dirty {
			dirtyInt = 1
		}
		if _, err := upsert.Exec(r.Path, formatEventsCSV(r.AccessEvents), r.LastSeen, r.LastModified, dirtyInt); err != nil {
			return err
		}
	}

	if len(toDelete) > 0 {
		del, err := tx.Prepare(`DELETE FROM frecency_records WHERE path = ?`)
		if err != nil {
			return err
		}
		defer del.Close()
		for _, path := range toDelete {
			if _, err := del.Exec(path); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Close flushes pending writes, stops the background flusher, and
// releases the directory lock. Safe to call once; a second call is a
// no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopFlush)
	<-s.flushDone

	flushErr := s.Flush()
	closeErr := s.db.Close()
	lockErr := s.lock.Unlock()

	for _, err := range []error{flushErr, closeErr, lockErr} {
		if err != nil {
			return err
		}
	}
	return nil
}
