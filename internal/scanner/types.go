package scanner

import (
	"time"

	"github.com/fastfind/filepick/internal/index"
)

// gitignoreCacheSize bounds the per-directory gitignore matcher cache,
// mirroring the corpus's fixed-size LRU guard against unbounded growth in
// long-running watch sessions.
const gitignoreCacheSize = 1000

// Config tunes how Scanner walks and watches a base path. Zero values are
// replaced by WithDefaults.
type Config struct {
	// FollowSymlinks controls whether symlink entries are indexed; each is
	// indexed as a file with the link's own metadata. The walk never
	// descends into symlinked directories. Off by default.
	FollowSymlinks bool

	// IncludePatterns restricts indexing to matching files when non-empty
	// (gitignore syntax, checked against the base-relative path).
	IncludePatterns []string

	// ExcludePatterns are additional gitignore-syntax patterns applied on
	// top of .gitignore/.git/info/exclude/global excludes.
	ExcludePatterns []string

	// DisableGitignore turns off honoring of .gitignore chains,
	// .git/info/exclude, and the global excludes file. Off by default,
	// i.e. all three are honored.
	DisableGitignore bool

	// Workers bounds the parallel stat/insert pool used during the
	// initial walk and rescans.
	Workers int

	// MaxFiles is a soft cap on indexed file count; zero means unlimited.
	MaxFiles int

	// WatchDebounce is the coalescing window passed to the filesystem
	// watcher.
	WatchDebounce time.Duration

	// PollInterval is the fallback polling cadence when fsnotify can't
	// attach.
	PollInterval time.Duration
}

// WithDefaults fills zero fields with sensible defaults.
func (c Config) WithDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.WatchDebounce <= 0 {
		c.WatchDebounce = 100 * time.Millisecond
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	return c
}

// FrecencyStore is the narrow slice of the frecency store the scanner
// needs: initial scores for a freshly discovered path, and a way to feed
// each file's observed mtime into the modification-recency signal.
// Defined here (rather than imported from package frecency) to keep the
// dependency direction leaves-first.
type FrecencyStore interface {
	ScoresFor(absPath string) index.FrecencyScores
	RecordModification(absPath string, modTime time.Time)
}

// noopFrecencyStore is used when the scanner is constructed without a
// frecency store (e.g. standalone tests).
type noopFrecencyStore struct{}

func (noopFrecencyStore) ScoresFor(string) index.FrecencyScores { return index.FrecencyScores{} }
func (noopFrecencyStore) RecordModification(string, time.Time)  {}

// defaultExcludeDirs are always skipped regardless of gitignore content.
var defaultExcludeDirs = []string{
	"node_modules", ".git", "vendor", "__pycache__", "dist", "build",
}
