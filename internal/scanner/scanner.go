// Package scanner walks a base path into the index and keeps it converged
// against filesystem churn.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/fastfind/filepick/internal/gitignore"
	"github.com/fastfind/filepick/internal/index"
	"github.com/fastfind/filepick/internal/watcher"
)

// Scanner discovers indexable files under a base path and keeps the Index
// converged against filesystem and .gitignore changes.
type Scanner struct {
	idx       *index.Index
	frecency  FrecencyStore
	cfg       Config
	logger    *slog.Logger
	onMutated func() // optional hook fired after a batch of index mutations (e.g. to nudge GitMonitor)

	gitignoreCache *lru.Cache[string, *gitignore.Matcher]

	// includeMatcher/excludeMatcher are compiled once from the config
	// pattern lists; recompiling per candidate would dominate a large walk.
	// globalMatcher carries git's global excludes file, resolved once at
	// construction (it lives outside the watched tree, so edits to it are
	// picked up on the next process start, not mid-session).
	includeMatcher *gitignore.Matcher
	excludeMatcher *gitignore.Matcher
	globalMatcher  *gitignore.Matcher

	mu          sync.Mutex // serializes Start/Rescan/RestartInPath/Stop
	basePath    string
	watch       *watcher.HybridWatcher
	watchCancel context.CancelFunc
	scanCancel  atomic.Pointer[context.CancelFunc]

	scanning     atomic.Bool
	scannedCount atomic.Int64
	scanErr      atomic.Pointer[error]
	initialDone  chan struct{}
	doneOnce     sync.Once
}

// New creates a Scanner. frecency may be nil, in which case freshly
// discovered files start with zero frecency scores.
func New(idx *index.Index, frecency FrecencyStore, cfg Config, logger *slog.Logger) (*Scanner, error) {
	cfg = cfg.WithDefaults()
	if frecency == nil {
		frecency = noopFrecencyStore{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cache, err := lru.New[string, *gitignore.Matcher](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("scanner: create gitignore cache: %w", err)
	}
	s := &Scanner{
		idx:            idx,
		frecency:       frecency,
		cfg:            cfg,
		logger:         logger,
		gitignoreCache: cache,
		initialDone:    make(chan struct{}),
	}
	if len(cfg.IncludePatterns) > 0 {
		s.includeMatcher = gitignore.New()
		for _, p := range cfg.IncludePatterns {
			s.includeMatcher.AddPattern(p)
		}
	}
	if len(cfg.ExcludePatterns) > 0 {
		s.excludeMatcher = gitignore.New()
		for _, p := range cfg.ExcludePatterns {
			s.excludeMatcher.AddPattern(p)
		}
	}
	if !cfg.DisableGitignore {
		if path := gitignore.GlobalExcludesPath(); path != "" {
			if _, err := os.Stat(path); err == nil {
				m := gitignore.New()
				if err := m.AddFromFile(path, ""); err == nil {
					s.globalMatcher = m
				}
			}
		}
	}
	return s, nil
}

// OnMutated registers a callback invoked after the initial scan, each
// rescan, and each incremental batch. Used by the coordinator to nudge
// GitMonitor without the scanner importing it directly.
func (s *Scanner) OnMutated(fn func()) { s.onMutated = fn }

func (s *Scanner) notifyMutated() {
	if s.onMutated != nil {
		s.onMutated()
	}
}

// Start runs the initial scan of basePath and then starts the background
// watcher. It returns once the initial scan has completed; the scan
// itself runs synchronously from the caller's perspective, only the
// watcher is fire-and-forget.
func (s *Scanner) Start(ctx context.Context, basePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return fmt.Errorf("scanner: resolve base path: %w", err)
	}
	info, err := os.Stat(absBase)
	if err != nil {
		return fmt.Errorf("scanner: stat base path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("scanner: base path is not a directory: %s", absBase)
	}
	s.basePath = absBase
	s.idx.Reset(absBase)

	if err := s.runScan(ctx, absBase); err != nil {
		return err
	}

	s.doneOnce.Do(func() { close(s.initialDone) })

	return s.startWatcherLocked(ctx)
}

// runScan performs one full walk of basePath, upserting every indexable
// file and bumping the index's generation so Rescan-style pruning can
// follow even on the very first pass.
func (s *Scanner) runScan(ctx context.Context, basePath string) error {
	s.scanning.Store(true)
	s.scannedCount.Store(0)
	s.scanErr.Store(nil)
	defer s.scanning.Store(false)

	scanCtx, cancel := context.WithCancel(ctx)
	s.scanCancel.Store(&cancel)
	defer cancel()

	gen := s.idx.BeginGeneration()
	s.gitignoreCache.Purge()

	g, gctx := errgroup.WithContext(scanCtx)
	g.SetLimit(s.cfg.Workers)

	walkErr := filepath.WalkDir(basePath, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		default:
		}
		if err != nil {
			s.logger.Warn("scan: unreadable path", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if path == basePath {
			return nil
		}
		rel, relErr := filepath.Rel(basePath, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.shouldSkipDir(rel, basePath) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !s.cfg.FollowSymlinks {
			return nil
		}
		if s.shouldSkipFile(rel, basePath) {
			return nil
		}
		if s.cfg.MaxFiles > 0 && int(s.scannedCount.Load()) >= s.cfg.MaxFiles {
			return nil
		}

		absPath := path
		g.Go(func() error {
			dinfo, infoErr := d.Info()
			if infoErr != nil {
				return nil
			}
			meta := index.Metadata{
				Size:         dinfo.Size(),
				ModifiedTime: dinfo.ModTime(),
				AccessedTime: accessTime(dinfo),
			}
			s.idx.Upsert(absPath, meta)
			s.frecency.RecordModification(absPath, meta.ModifiedTime)
			scores := s.frecency.ScoresFor(absPath)
			if entry, ok := s.idx.LookupByPath(absPath); ok {
				s.idx.ApplyFrecencyScores(map[int64]index.FrecencyScores{entry.ID: scores})
			}
			s.scannedCount.Add(1)
			return nil
		})
		return nil
	})

	groupErr := g.Wait()
	s.idx.PruneGeneration(gen)
	s.notifyMutated()

	if walkErr != nil && walkErr != context.Canceled {
		err := fmt.Errorf("scanner: walk failed: %w", walkErr)
		s.scanErr.Store(&err)
		return err
	}
	if groupErr != nil && groupErr != context.Canceled {
		err := fmt.Errorf("scanner: scan cancelled: %w", groupErr)
		s.scanErr.Store(&err)
		return err
	}
	return nil
}

// Rescan performs a delta scan: every still-present file is marked with
// the new generation, new files are inserted, and at the end anything
// carrying the old generation is pruned. Equivalent to runScan, exposed
// separately so the Coordinator's scan_files() can trigger it without
// restarting the watcher.
func (s *Scanner) Rescan(ctx context.Context) error {
	s.mu.Lock()
	basePath := s.basePath
	s.mu.Unlock()
	if basePath == "" {
		return fmt.Errorf("scanner: not started")
	}
	return s.runScan(ctx, basePath)
}

// CancelScan requests cooperative cancellation of any in-flight scan. The
// scan observes this at directory/goroutine boundaries and exits promptly;
// it does not affect future scans.
func (s *Scanner) CancelScan() {
	if cancel := s.scanCancel.Load(); cancel != nil {
		(*cancel)()
	}
}

// GetProgress reports the current scan state.
func (s *Scanner) GetProgress() index.Progress {
	var err error
	if e := s.scanErr.Load(); e != nil {
		err = *e
	}
	return index.Progress{
		ScannedFilesCount: int(s.scannedCount.Load()),
		IsScanning:        s.scanning.Load(),
		Err:               err,
	}
}

// WaitForInitialScan blocks until the first scan completes or timeout
// elapses, returning whether it completed in time. A zero/negative timeout
// waits forever.
func (s *Scanner) WaitForInitialScan(timeout time.Duration) bool {
	if timeout <= 0 {
		<-s.initialDone
		return true
	}
	select {
	case <-s.initialDone:
		return true
	case <-time.After(timeout):
		return false
	}
}

// RestartInPath drains the watcher, empties the index, and performs a
// fresh initial scan rooted at newBase.
func (s *Scanner) RestartInPath(ctx context.Context, newBase string) error {
	s.mu.Lock()
	if s.watch != nil {
		_ = s.watch.Stop()
		s.watch = nil
	}
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	s.doneOnce = sync.Once{}
	s.initialDone = make(chan struct{})
	s.mu.Unlock()

	return s.Start(ctx, newBase)
}

// Stop drains the watcher and leaves the index as last converged. Safe to
// call more than once.
func (s *Scanner) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watch == nil {
		return nil
	}
	err := s.watch.Stop()
	s.watch = nil
	return err
}

// startWatcherLocked starts the incremental filesystem watcher. Caller
// must hold s.mu.
func (s *Scanner) startWatcherLocked(ctx context.Context) error {
	opts := watcher.Options{
		DebounceWindow:  s.cfg.WatchDebounce,
		PollInterval:    s.cfg.PollInterval,
		EventBufferSize: 1000,
		IgnorePatterns:  s.cfg.ExcludePatterns,
	}
	hw, err := watcher.NewHybridWatcher(opts)
	if err != nil {
		return fmt.Errorf("scanner: create watcher: %w", err)
	}
	s.watch = hw

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go func() {
		if startErr := hw.Start(watchCtx, s.basePath); startErr != nil && startErr != context.Canceled {
			s.logger.Warn("watcher stopped", slog.String("error", startErr.Error()))
		}
	}()

	go s.consumeEvents(watchCtx, hw)

	return nil
}

// consumeEvents applies debounced batches of filesystem events to the
// index. Events for the same path arrive in filesystem order within a
// batch; across paths ordering is not guaranteed.
func (s *Scanner) consumeEvents(ctx context.Context, hw *watcher.HybridWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-hw.Events():
			if !ok {
				return
			}
			s.applyBatch(ctx, batch)
		case err, ok := <-hw.Errors():
			if !ok {
				return
			}
			s.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (s *Scanner) applyBatch(ctx context.Context, batch []watcher.FileEvent) {
	mutated := false
	for _, ev := range batch {
		if ev.IsDir {
			continue
		}
		switch ev.Operation {
		case watcher.OpGitignoreChange, watcher.OpConfigChange:
			s.gitignoreCache.Purge()
			go func() { _ = s.Rescan(ctx) }()
			continue
		}
		if s.applyEvent(ev) {
			mutated = true
		}
	}
	if mutated {
		s.notifyMutated()
	}
}

func (s *Scanner) applyEvent(ev watcher.FileEvent) bool {
	absPath := filepath.Join(s.basePath, filepath.FromSlash(ev.Path))
	switch ev.Operation {
	case watcher.OpDelete:
		return s.idx.RemoveByPath(absPath)
	case watcher.OpRename:
		if ev.OldPath != "" {
			s.idx.RemoveByPath(filepath.Join(s.basePath, filepath.FromSlash(ev.OldPath)))
		}
		return s.upsertOne(absPath)
	case watcher.OpCreate, watcher.OpModify:
		return s.upsertOne(absPath)
	default:
		return false
	}
}

func (s *Scanner) upsertOne(absPath string) bool {
	rel, relErr := filepath.Rel(s.basePath, absPath)
	if relErr != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if s.shouldSkipFile(rel, s.basePath) {
		s.idx.RemoveByPath(absPath)
		return true
	}
	info, err := os.Lstat(absPath)
	if err != nil {
		// Vanished between event and stat; treat as delete.
		return s.idx.RemoveByPath(absPath)
	}
	if info.Mode()&fs.ModeSymlink != 0 && !s.cfg.FollowSymlinks {
		return false
	}
	if info.IsDir() {
		return false
	}
	meta := index.Metadata{Size: info.Size(), ModifiedTime: info.ModTime(), AccessedTime: accessTime(info)}
	entry := s.idx.Upsert(absPath, meta)
	s.frecency.RecordModification(absPath, meta.ModifiedTime)
	scores := s.frecency.ScoresFor(absPath)
	s.idx.ApplyFrecencyScores(map[int64]index.FrecencyScores{entry.ID: scores})
	return true
}

// shouldSkipDir reports whether a directory should not be descended into:
// hidden dotdirs, the fixed exclude list, and gitignore matches.
func (s *Scanner) shouldSkipDir(rel, basePath string) bool {
	base := filepath.Base(rel)
	if strings.HasPrefix(base, ".") {
		return true
	}
	for _, d := range defaultExcludeDirs {
		if base == d {
			return true
		}
	}
	if !s.cfg.DisableGitignore && s.isGitignored(rel, basePath) {
		return true
	}
	return false
}

// shouldSkipFile reports whether a regular file should not be indexed:
// hidden dotfiles, configured include/exclude patterns, and gitignore
// matches.
func (s *Scanner) shouldSkipFile(rel, basePath string) bool {
	base := filepath.Base(rel)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if s.includeMatcher != nil && !s.includeMatcher.Match(rel, false) {
		return true
	}
	if s.excludeMatcher != nil && s.excludeMatcher.Match(rel, false) {
		return true
	}
	if !s.cfg.DisableGitignore && s.isGitignored(rel, basePath) {
		return true
	}
	return false
}

// isGitignored checks rel (relative to basePath) against the global
// excludes file, the root .gitignore plus every nested .gitignore along
// its directory chain, and .git/info/exclude at the root.
func (s *Scanner) isGitignored(rel, basePath string) bool {
	if s.globalMatcher != nil && s.globalMatcher.Match(rel, false) {
		return true
	}
	if m := s.gitignoreMatcher(basePath, ""); m != nil && m.Match(rel, false) {
		return true
	}
	if m := s.excludeFileMatcher(basePath); m != nil && m.Match(rel, false) {
		return true
	}

	dir := filepath.Dir(rel)
	if dir == "." {
		return false
	}
	parts := strings.Split(dir, "/")
	cur := basePath
	curRel := ""
	for _, part := range parts {
		cur = filepath.Join(cur, part)
		if curRel == "" {
			curRel = part
		} else {
			curRel = curRel + "/" + part
		}
		if m := s.gitignoreMatcher(cur, curRel); m != nil && m.Match(rel, false) {
			return true
		}
	}
	return false
}

func (s *Scanner) gitignoreMatcher(dir, base string) *gitignore.Matcher {
	if m, ok := s.gitignoreCache.Get(dir); ok {
		return m
	}
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	m := gitignore.New()
	if err := m.AddFromFile(path, base); err != nil {
		return nil
	}
	s.gitignoreCache.Add(dir, m)
	return m
}

func (s *Scanner) excludeFileMatcher(basePath string) *gitignore.Matcher {
	const cacheKey = "\x00git-info-exclude"
	if m, ok := s.gitignoreCache.Get(cacheKey); ok {
		return m
	}
	path := filepath.Join(basePath, ".git", "info", "exclude")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	m := gitignore.New()
	if err := m.AddFromFile(path, ""); err != nil {
		return nil
	}
	s.gitignoreCache.Add(cacheKey, m)
	return m
}
