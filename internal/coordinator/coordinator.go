// Package coordinator wires Index, Scanner, SearchEngine, FrecencyStore
// and GitMonitor into the engine's single external surface. Every
// exported method is a thin, synchronous adapter: it validates
// arguments, reaches into the owned components, and returns a
// serializable result or a typed *errors.FilepickError.
package coordinator

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fastfind/filepick/internal/config"
	"github.com/fastfind/filepick/internal/errors"
	"github.com/fastfind/filepick/internal/frecency"
	"github.com/fastfind/filepick/internal/gitstatus"
	"github.com/fastfind/filepick/internal/index"
	"github.com/fastfind/filepick/internal/scanner"
	"github.com/fastfind/filepick/internal/search"
)

// Coordinator is the process-wide lifecycle owner. Construct one with
// New; call InitDB and then InitFilePicker to stand up the background
// services against a base path, and CleanupFilePicker to tear everything
// down.
type Coordinator struct {
	mu  sync.RWMutex
	cfg *config.Config
	log *slog.Logger

	idx       *index.Index
	scan      *scanner.Scanner
	engine    *search.Engine
	frecStore *frecency.Store
	git       *gitstatus.Monitor

	initialized bool
	dbPath      string
}

// New constructs an uninitialized Coordinator. logger may be nil, in
// which case a discarding logger is used - the engine never owns the
// host's console.
func New(cfg *config.Config, logger *slog.Logger) *Coordinator {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return &Coordinator{cfg: cfg, log: logger}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// dbOpenRetry covers the narrow window where a previous process's dirLock
// hasn't been released yet (e.g. the MCP client restarted the server
// faster than the OS reclaimed the flock). Derived from the package's
// default backoff curve with a tighter ceiling, since this blocks
// InitDB's caller synchronously.
var dbOpenRetry = func() errors.RetryConfig {
	cfg := errors.DefaultRetryConfig()
	cfg.MaxRetries = 2
	cfg.InitialDelay = 50 * time.Millisecond
	cfg.MaxDelay = 400 * time.Millisecond
	return cfg
}()

// InitDB opens (or creates) the frecency database directory. Must be
// called before InitFilePicker.
func (c *Coordinator) InitDB(dbPath string, createIfMissing bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frecStore != nil {
		return nil
	}
	if !createIfMissing {
		if _, err := filepath.Abs(dbPath); err != nil {
			return errors.NewInitError("invalid db path", err)
		}
	}
	store, err := errors.RetryWithResult(context.Background(), dbOpenRetry, func() (*frecency.Store, error) {
		return frecency.Open(dbPath, frecency.Config{
			RecordTTL:   parseDuration(c.cfg.Frecency.RecordTTL),
			CacheSizeMB: c.cfg.Performance.SQLiteCacheMB,
		}, c.log)
	})
	if err != nil {
		return errors.NewInitError("failed to open frecency database", err)
	}
	c.frecStore = store
	c.dbPath = dbPath
	return nil
}

// parseDuration returns the zero duration for empty or malformed config
// strings, letting each component fall back to its own default.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// InitFilePicker points the engine at basePath, starting the Scanner's
// synchronous initial scan followed by its background watcher, and the
// GitMonitor's background poll. Returns a StateError wrapper if InitDB
// hasn't been called yet - frecency lookups need a store.
func (c *Coordinator) InitFilePicker(ctx context.Context, basePath string) error {
	c.mu.Lock()
	if c.frecStore == nil {
		c.mu.Unlock()
		return errors.NewStateError("init_file_picker called before init_db", nil)
	}
	if c.initialized {
		c.mu.Unlock()
		return errors.NewStateError("file picker already initialized", nil)
	}

	absBase, err := filepath.Abs(basePath)
	if err != nil {
		c.mu.Unlock()
		return errors.NewInitError("invalid base path", err)
	}

	c.idx = index.New(absBase, index.Weights{
		Access:       c.cfg.Frecency.AccessWeight,
		Modification: c.cfg.Frecency.ModificationWeight,
	})
	c.engine = search.New(c.idx, search.Config{
		DefaultMaxResults:   c.cfg.Search.DefaultMaxResults,
		DefaultMaxThreads:   c.cfg.Search.DefaultMaxThreads,
		AcceptanceThreshold: c.cfg.Search.AcceptanceThreshold,
		SpecialFilenames:    c.cfg.Search.SpecialFilenames,
	})
	c.git = gitstatus.New(c.idx, absBase, gitstatus.Config{}, c.log)
	c.git.OnStatusApplied(syncFrecencyScores(c.frecStore, c.idx))

	sc, err := scanner.New(c.idx, c.frecStore, scanner.Config{
		FollowSymlinks:  c.cfg.Paths.FollowSymlinks,
		IncludePatterns: c.cfg.Paths.Include,
		ExcludePatterns: c.cfg.Paths.Exclude,
		Workers:         c.cfg.Performance.IndexWorkers,
		MaxFiles:        c.cfg.Performance.MaxFiles,
		WatchDebounce:   parseDuration(c.cfg.Performance.WatchDebounce),
	}, c.log)
	if err != nil {
		c.mu.Unlock()
		return errors.NewInitError("failed to construct scanner", err)
	}
	c.scan = sc
	c.scan.OnMutated(func() {
		go c.git.Nudge(context.Background())
	})
	c.mu.Unlock()

	if err := sc.Start(ctx, absBase); err != nil {
		return errors.NewInitError("initial scan failed", err)
	}

	if _, err := c.git.RefreshStatus(ctx); err != nil {
		c.log.Warn("initial_git_refresh_failed", slog.String("error", err.Error()))
	}
	c.git.StartBackgroundMonitor(ctx)

	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
	return nil
}

// RestartIndexInPath tears down the scanner/watcher and re-runs the
// initial scan rooted at newBase, reusing the same Index, SearchEngine,
// FrecencyStore, and a freshly opened GitMonitor for the new worktree.
func (c *Coordinator) RestartIndexInPath(ctx context.Context, newBase string) error {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return errors.NewStateError("restart_index_in_path called before init", nil)
	}
	c.git.StopBackgroundMonitor()
	absBase, err := filepath.Abs(newBase)
	if err != nil {
		c.mu.Unlock()
		return errors.NewInitError("invalid base path", err)
	}
	c.git = gitstatus.New(c.idx, absBase, gitstatus.Config{}, c.log)
	c.git.OnStatusApplied(syncFrecencyScores(c.frecStore, c.idx))
	c.mu.Unlock()

	if err := c.scan.RestartInPath(ctx, absBase); err != nil {
		return errors.NewScanError("restart scan failed", err)
	}

	if _, err := c.git.RefreshStatus(ctx); err != nil {
		c.log.Warn("restart_git_refresh_failed", slog.String("error", err.Error()))
	}
	c.git.StartBackgroundMonitor(ctx)
	return nil
}

// ScanFiles triggers an explicit rescan of the current base path.
func (c *Coordinator) ScanFiles(ctx context.Context) error {
	sc, err := c.requireScanner()
	if err != nil {
		return err
	}
	if err := sc.Rescan(ctx); err != nil {
		return errors.NewScanError("rescan failed", err)
	}
	return nil
}

// CancelScan requests cooperative cancellation of any in-flight scan.
func (c *Coordinator) CancelScan() error {
	sc, err := c.requireScanner()
	if err != nil {
		return err
	}
	sc.CancelScan()
	return nil
}

// GetScanProgress reports the current scan counters.
func (c *Coordinator) GetScanProgress() (index.Progress, error) {
	sc, err := c.requireScanner()
	if err != nil {
		return index.Progress{}, err
	}
	return sc.GetProgress(), nil
}

// WaitForInitialScan blocks up to timeout for the initial scan to
// finish, returning whether it did.
func (c *Coordinator) WaitForInitialScan(timeout time.Duration) (bool, error) {
	sc, err := c.requireScanner()
	if err != nil {
		return false, err
	}
	return sc.WaitForInitialScan(timeout), nil
}

// FuzzySearchFiles ranks the current index snapshot against query.
func (c *Coordinator) FuzzySearchFiles(ctx context.Context, query string, maxResults, maxThreads int, currentFile string) (search.Result, error) {
	c.mu.RLock()
	engine := c.engine
	initialized := c.initialized
	c.mu.RUnlock()
	if !initialized {
		return search.Result{}, errors.NewStateError("fuzzy_search_files called before init", nil)
	}
	if maxResults < 0 {
		return search.Result{}, errors.NewQueryError("max_results must be non-negative", nil)
	}
	opts := search.Options{
		MaxResults:  maxResults,
		MaxThreads:  maxThreads,
		CurrentFile: currentFile,
	}
	// maxResults == 0 still reports TotalMatched/TotalFiles, just no items.
	// The engine treats a zero MaxResults as "use the default", so score
	// with the smallest real cap and drop the items afterwards.
	countOnly := maxResults == 0
	if countOnly {
		opts.MaxResults = 1
	}
	res, err := engine.Search(ctx, query, opts)
	if err != nil {
		return search.Result{}, err
	}
	if countOnly {
		res.Items = nil
		res.Scores = nil
	}
	return res, nil
}

// TrackAccess records a user-initiated access to absolutePath, feeding
// the frecency store's access-recency signal.
func (c *Coordinator) TrackAccess(absolutePath string) error {
	c.mu.RLock()
	store := c.frecStore
	c.mu.RUnlock()
	if store == nil {
		return errors.NewStateError("track_access called before init_db", nil)
	}
	store.RecordAccess(absolutePath, time.Now())
	return nil
}

// RefreshGitStatus forces an immediate git status enumeration pass.
func (c *Coordinator) RefreshGitStatus(ctx context.Context) (int, error) {
	c.mu.RLock()
	mon := c.git
	c.mu.RUnlock()
	if mon == nil {
		return 0, errors.NewStateError("refresh_git_status called before init", nil)
	}
	count, err := mon.RefreshStatus(ctx)
	if err != nil {
		return 0, errors.NewGitUnavailable("git status refresh failed", err)
	}
	return count, nil
}

// StopBackgroundMonitor stops the GitMonitor's poll loop. Returns
// whether a monitor was running to stop.
func (c *Coordinator) StopBackgroundMonitor() bool {
	c.mu.RLock()
	mon := c.git
	c.mu.RUnlock()
	if mon == nil {
		return false
	}
	mon.StopBackgroundMonitor()
	return true
}

// CleanupFilePicker tears down every owned resource. Idempotent and
// safe to call during shutdown even if Init never completed.
func (c *Coordinator) CleanupFilePicker() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	if c.git != nil {
		c.git.StopBackgroundMonitor()
	}
	if c.scan != nil {
		if err := c.scan.Stop(); err != nil && firstErr == nil {
			firstErr = errors.NewStateError("scanner stop failed", err)
		}
	}
	if c.frecStore != nil {
		if err := c.frecStore.Close(); err != nil && firstErr == nil {
			firstErr = errors.NewPersistError("frecency store close failed", err)
		}
	}

	c.idx = nil
	c.scan = nil
	c.engine = nil
	c.frecStore = nil
	c.git = nil
	c.initialized = false
	return firstErr
}

// syncFrecencyScores builds the GitMonitor's post-refresh hook: it folds
// each entry's mtime and resolved git-dirty bit into the frecency store,
// then applies the recomputed scores back onto the index. store and idx
// are captured directly so the background poll never has to touch the
// Coordinator's own mutex.
func syncFrecencyScores(store *frecency.Store, idx *index.Index) func() {
	return func() {
		idx.ApplyFrecencyScores(store.RefreshAll(idx.Snapshot()))
	}
}

func (c *Coordinator) requireScanner() (*scanner.Scanner, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return nil, errors.NewStateError("operation requires an initialized file picker", nil)
	}
	return c.scan, nil
}

// IsScanning reports whether a scan is currently in flight.
func (c *Coordinator) IsScanning() bool {
	c.mu.RLock()
	sc := c.scan
	c.mu.RUnlock()
	if sc == nil {
		return false
	}
	return sc.GetProgress().IsScanning
}
