// Package index holds the in-memory FileEntry store: the single source of
// truth queried by the search engine and decorated asynchronously by the
// frecency store and git monitor.
package index

import "time"

// GitStatus classifies a FileEntry's position relative to the nearest git
// worktree. Entries are StatusUnknown until the first git refresh; entries
// outside any worktree are then reported StatusClean.
type GitStatus string

const (
	StatusUnknown        GitStatus = "unknown"
	StatusClean          GitStatus = "clean"
	StatusUntracked      GitStatus = "untracked"
	StatusModified       GitStatus = "modified"
	StatusDeleted        GitStatus = "deleted"
	StatusRenamed        GitStatus = "renamed"
	StatusStagedNew      GitStatus = "staged_new"
	StatusStagedModified GitStatus = "staged_modified"
	StatusStagedDeleted  GitStatus = "staged_deleted"
	StatusIgnored        GitStatus = "ignored"
)

// Weights controls how the two frecency sub-scores blend into
// TotalFrecencyScore. Both must be non-negative; see config.FrecencyConfig
// for how the coordinator derives these from user configuration.
type Weights struct {
	Access       float64
	Modification float64
}

// DefaultWeights favors access history over raw mtime churn, which is
// noisy during rebuilds.
var DefaultWeights = Weights{Access: 6, Modification: 4}

// FileEntry is one indexed regular file. Instances are owned exclusively by
// Index; callers outside this package see the shared entries returned from
// Snapshot/List/LookupByPath and must not mutate them - state changes always
// go back through Index's mutation methods, which swap in a new entry rather
// than editing one in place, so snapshots stay point-in-time.
type FileEntry struct {
	ID           int64
	AbsolutePath string
	RelativePath string
	Name         string
	Extension    string
	Directory    string
	Size         int64
	ModifiedTime time.Time
	AccessedTime time.Time

	GitStatus GitStatus

	AccessFrecencyScore       int
	ModificationFrecencyScore int
	TotalFrecencyScore        int

	IsCurrentFile bool

	// generation is stamped from Index.BeginGeneration during each Scanner
	// scan; entries whose generation doesn't match the index's current
	// generation at the end of a scan pass are considered gone and pruned.
	generation uint64
}

// Metadata is the set of stat-derived fields a caller supplies when
// inserting or upserting a path. Index computes Name/Extension/Directory
// from the path itself.
type Metadata struct {
	Size         int64
	ModifiedTime time.Time
	AccessedTime time.Time
}

// FrecencyScores is the per-file output of the frecency store's scoring
// function, applied back into the index in one serialized pass.
type FrecencyScores struct {
	Access       int
	Modification int
}

// Total blends the two sub-scores using w.
func (s FrecencyScores) Total(w Weights) int {
	total := w.Access*float64(s.Access) + w.Modification*float64(s.Modification)
	if total < 0 {
		return 0
	}
	return int(total + 0.5)
}

// Progress is the transient state of an in-flight or just-completed scan.
type Progress struct {
	ScannedFilesCount int
	IsScanning        bool
	Err               error
}

// PathHandle is the stable, cross-component-safe reference to an indexed
// file: an assigned id plus its canonical absolute path. Components other
// than Index hold these instead of *FileEntry pointers.
type PathHandle struct {
	ID           int64
	AbsolutePath string
}
