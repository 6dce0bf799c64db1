package index

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Index holds the set of FileEntry for the current base path. Reads
// (Snapshot, List, LookupByPath, Len) take a read lock just long enough to
// copy *FileEntry pointers out of the live maps; because every mutation
// swaps in a brand-new *FileEntry rather than editing one in place, a
// pointer handed to a reader is never mutated out from under it and a
// snapshot is always a consistent point-in-time view. Mutators
// (Insert/Update/Remove/ApplyGitStatus/ApplyFrecencyScores) serialize
// against each other and against reads via the same RWMutex.
type Index struct {
	mu sync.RWMutex

	basePath   string
	byID       map[int64]*FileEntry
	byPath     map[string]int64
	nextID     int64
	generation uint64

	currentFile string

	weights Weights
}

// New creates an empty Index rooted at basePath.
func New(basePath string, weights Weights) *Index {
	return &Index{
		basePath: basePath,
		byID:     make(map[int64]*FileEntry),
		byPath:   make(map[string]int64),
		weights:  weights,
	}
}

// BasePath returns the directory the index is currently rooted at.
func (idx *Index) BasePath() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.basePath
}

// Reset empties the index and re-roots it at newBasePath, as used by
// restart_in_path. The generation counter and id sequence are not reused,
// so stale handles from the previous base can never alias a new entry.
func (idx *Index) Reset(newBasePath string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.basePath = newBasePath
	idx.byID = make(map[int64]*FileEntry)
	idx.byPath = make(map[string]int64)
	idx.currentFile = ""
	idx.generation++
}

func splitPath(basePath, absPath string) (relPath, name, ext, dir string) {
	rel, err := filepath.Rel(basePath, absPath)
	if err != nil {
		rel = absPath
	}
	rel = filepath.ToSlash(rel)
	name = filepath.Base(rel)
	ext = strings.ToLower(filepath.Ext(name))
	dir = filepath.ToSlash(filepath.Dir(rel))
	if dir == "." {
		dir = ""
	}
	return rel, name, ext, dir
}

// Insert creates a new FileEntry for absPath. It is an error - a programmer
// error per the invariant that a path is indexed exactly once - to insert a
// path that's already present; callers that aren't sure should use Upsert.
func (idx *Index) Insert(absPath string, meta Metadata) (*FileEntry, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.byPath[absPath]; exists {
		return nil, fmt.Errorf("index: duplicate insert for %s", absPath)
	}
	return idx.insertLocked(absPath, meta, idx.generation), nil
}

func (idx *Index) insertLocked(absPath string, meta Metadata, generation uint64) *FileEntry {
	rel, name, ext, dir := splitPath(idx.basePath, absPath)
	idx.nextID++
	id := idx.nextID
	entry := &FileEntry{
		ID:           id,
		AbsolutePath: absPath,
		RelativePath: rel,
		Name:         name,
		Extension:    ext,
		Directory:    dir,
		Size:         meta.Size,
		ModifiedTime: meta.ModifiedTime,
		AccessedTime: meta.AccessedTime,
		GitStatus:    StatusUnknown,
		generation:   generation,
	}
	idx.byID[id] = entry
	idx.byPath[absPath] = id
	return entry
}

// Upsert inserts absPath if absent, or refreshes its stat-derived fields and
// generation marker if present. It is the primitive Scanner uses for both
// the initial walk and rescan's delta pass: a still-present
// file gets its generation bumped to the current run so PruneGeneration
// knows to keep it.
func (idx *Index) Upsert(absPath string, meta Metadata) *FileEntry {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if id, exists := idx.byPath[absPath]; exists {
		old := idx.byID[id]
		next := *old
		next.Size = meta.Size
		next.ModifiedTime = meta.ModifiedTime
		next.AccessedTime = meta.AccessedTime
		next.generation = idx.generation
		idx.byID[id] = &next
		return &next
	}
	return idx.insertLocked(absPath, meta, idx.generation)
}

// Update applies patch to a copy of the entry identified by id and
// publishes the copy in place of the original. Returns an error if id is
// unknown - a missing id is a programmer error, not a race.
func (idx *Index) Update(id int64, patch func(*FileEntry)) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	old, ok := idx.byID[id]
	if !ok {
		return fmt.Errorf("index: update of unknown id %d", id)
	}
	next := *old
	patch(&next)
	idx.byID[id] = &next
	return nil
}

// Remove deletes the entry identified by id.
func (idx *Index) Remove(id int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	entry, ok := idx.byID[id]
	if !ok {
		return fmt.Errorf("index: remove of unknown id %d", id)
	}
	delete(idx.byID, id)
	delete(idx.byPath, entry.AbsolutePath)
	return nil
}

// RemoveByPath deletes the entry at absPath, if any, and reports whether it
// existed. Unlike Remove this is not an error when the path is absent,
// since filesystem delete events can race a prior removal.
func (idx *Index) RemoveByPath(absPath string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	id, ok := idx.byPath[absPath]
	if !ok {
		return false
	}
	delete(idx.byID, id)
	delete(idx.byPath, absPath)
	return true
}

// BeginGeneration bumps and returns the generation marker a rescan should
// stamp onto every entry it still observes on disk.
func (idx *Index) BeginGeneration() uint64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.generation++
	return idx.generation
}

// PruneGeneration removes every entry whose generation marker doesn't match
// gen and returns their ids, so a caller (Scanner) can know what vanished.
func (idx *Index) PruneGeneration(gen uint64) []int64 {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var removed []int64
	for id, entry := range idx.byID {
		if entry.generation != gen {
			removed = append(removed, id)
			delete(idx.byID, id)
			delete(idx.byPath, entry.AbsolutePath)
		}
	}
	return removed
}

// LookupByPath returns the entry at absPath, if indexed.
func (idx *Index) LookupByPath(absPath string) (*FileEntry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	id, ok := idx.byPath[absPath]
	if !ok {
		return nil, false
	}
	return idx.byID[id], true
}

// List returns a point-in-time slice of every indexed entry. Because
// entries are swapped rather than edited in place, the returned pointers
// remain valid snapshots even after subsequent mutations.
func (idx *Index) List() []*FileEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*FileEntry, 0, len(idx.byID))
	for _, entry := range idx.byID {
		out = append(out, entry)
	}
	return out
}

// Snapshot returns a point-in-time view of the index; the search engine
// scores against the returned slice for the whole query.
func (idx *Index) Snapshot() []*FileEntry {
	return idx.List()
}

// Len returns the number of indexed entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.byID)
}

// SetCurrentFile marks absPath (or clears the mark when absPath is empty)
// as the caller's current buffer, consumed by the next query's
// current-file penalty. A nil/empty argument clears any previous mark.
func (idx *Index) SetCurrentFile(absPath string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.currentFile = absPath
}

// CurrentFile returns the currently marked path, if any.
func (idx *Index) CurrentFile() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.currentFile
}

// IterForGitRefresh returns every indexed (id, absolute path) pair, the
// shape GitMonitor needs to enumerate status without touching FileEntry
// internals directly.
func (idx *Index) IterForGitRefresh() []PathHandle {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]PathHandle, 0, len(idx.byID))
	for id, entry := range idx.byID {
		out = append(out, PathHandle{ID: id, AbsolutePath: entry.AbsolutePath})
	}
	return out
}

// ApplyGitStatus updates the GitStatus field of every entry named in
// updates in a single serialized pass, and returns the count of entries
// whose status actually changed.
func (idx *Index) ApplyGitStatus(updates map[int64]GitStatus) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	changed := 0
	for id, status := range updates {
		old, ok := idx.byID[id]
		if !ok || old.GitStatus == status {
			continue
		}
		next := *old
		next.GitStatus = status
		idx.byID[id] = &next
		changed++
	}
	return changed
}

// ApplyFrecencyScores updates the access/modification/total frecency fields
// of every entry named in updates in a single serialized pass.
func (idx *Index) ApplyFrecencyScores(updates map[int64]FrecencyScores) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	changed := 0
	for id, scores := range updates {
		old, ok := idx.byID[id]
		if !ok {
			continue
		}
		total := scores.Total(idx.weights)
		if old.AccessFrecencyScore == scores.Access && old.ModificationFrecencyScore == scores.Modification && old.TotalFrecencyScore == total {
			continue
		}
		next := *old
		next.AccessFrecencyScore = scores.Access
		next.ModificationFrecencyScore = scores.Modification
		next.TotalFrecencyScore = total
		idx.byID[id] = &next
		changed++
	}
	return changed
}

// Weights returns the configured frecency blend weights.
func (idx *Index) Weights() Weights {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.weights
}
