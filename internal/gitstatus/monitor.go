// Package gitstatus attaches per-file git status to Index entries,
// using go-git's porcelain status enumeration instead of shelling out
// to a git binary.
package gitstatus

import (
	"context"
	goerrors "errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"

	"github.com/fastfind/filepick/internal/errors"
	"github.com/fastfind/filepick/internal/gitignore"
	"github.com/fastfind/filepick/internal/index"
)

// ErrNoStatusAvailable is returned when the circuit is open and no prior
// successful status enumeration exists to fall back on.
var ErrNoStatusAvailable = goerrors.New("gitstatus: no status snapshot available")

// Config tunes the background monitor's poll cadence and retry budget.
type Config struct {
	PollInterval time.Duration
	MaxFailures  int
	ResetTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 3
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	return c
}

// Monitor resolves git status for every entry in idx and keeps it
// current. If no git worktree is found at or above the index's base
// path, every entry is simply reported clean.
type Monitor struct {
	idx    *index.Index
	logger *slog.Logger
	cfg    Config

	mu         sync.Mutex
	repo       *gogit.Repository
	repoRoot   string
	ignores    *gitignore.Matcher
	breaker    *errors.CircuitBreaker
	lastStatus gogit.Status

	// onApplied is fired after each successful status pass; the
	// coordinator hooks the frecency store's git-dirty recompute here.
	onApplied func()

	stop chan struct{}
	done chan struct{}
}

// New opens (or fails to find) the git worktree containing basePath and
// returns a Monitor ready to refresh idx.
func New(idx *index.Index, basePath string, cfg Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	m := &Monitor{
		idx:     idx,
		logger:  logger,
		cfg:     cfg,
		breaker: errors.NewCircuitBreaker("gitstatus", errors.WithMaxFailures(cfg.MaxFailures), errors.WithResetTimeout(cfg.ResetTimeout)),
	}

	repo, err := gogit.PlainOpenWithOptions(basePath, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		logger.Info("gitstatus_no_worktree", slog.String("base_path", basePath), slog.String("reason", err.Error()))
		return m
	}
	wt, err := repo.Worktree()
	if err != nil {
		logger.Warn("gitstatus_worktree_unavailable", slog.String("error", err.Error()))
		return m
	}
	m.repo = repo
	m.repoRoot = wt.Filesystem.Root()
	m.ignores = loadIgnoreChain(m.repoRoot)
	return m
}

func loadIgnoreChain(repoRoot string) *gitignore.Matcher {
	matcher := gitignore.New()
	// Global excludes first: lowest precedence, so a repo .gitignore's
	// negations still win under last-match-wins.
	if p := gitignore.GlobalExcludesPath(); p != "" {
		_ = matcher.AddFromFile(p, "")
	}
	_ = matcher.AddFromFile(filepath.Join(repoRoot, ".gitignore"), "")
	_ = matcher.AddFromFile(filepath.Join(repoRoot, ".git", "info", "exclude"), "")
	return matcher
}

// OnStatusApplied registers fn to run after every successful RefreshStatus
// pass, including the background poll's. Must be set before the monitor
// starts refreshing.
func (m *Monitor) OnStatusApplied(fn func()) { m.onApplied = fn }

func (m *Monitor) notifyApplied() {
	if m.onApplied != nil {
		m.onApplied()
	}
}

// RefreshStatus enumerates status for every indexed path and applies the
// changes to the Index in one serialized pass, returning the count of
// entries whose status changed.
func (m *Monitor) RefreshStatus(ctx context.Context) (int, error) {
	handles := m.idx.IterForGitRefresh()
	if len(handles) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	repo := m.repo
	m.mu.Unlock()

	if repo == nil {
		updates := make(map[int64]index.GitStatus, len(handles))
		for _, h := range handles {
			updates[h.ID] = index.StatusClean
		}
		changed := m.idx.ApplyGitStatus(updates)
		m.notifyApplied()
		return changed, nil
	}

	status, err := errors.ExecuteWithFallback(m.breaker,
		func() (gogit.Status, error) {
			wt, err := repo.Worktree()
			if err != nil {
				return nil, err
			}
			return wt.Status()
		},
		func() (gogit.Status, error) {
			m.mu.Lock()
			stale := m.lastStatus
			m.mu.Unlock()
			if stale == nil {
				return nil, ErrNoStatusAvailable
			}
			m.logger.Debug("gitstatus_serving_stale_snapshot")
			return stale, nil
		},
	)
	if err != nil {
		m.logger.Warn("gitstatus_refresh_failed", slog.String("error", err.Error()))
		return 0, err
	}

	m.mu.Lock()
	m.lastStatus = status
	root := m.repoRoot
	ignores := m.ignores
	m.mu.Unlock()

	updates := make(map[int64]index.GitStatus, len(handles))
	for _, h := range handles {
		rel, err := filepath.Rel(root, h.AbsolutePath)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if ignores != nil && ignores.Match(rel, false) {
			updates[h.ID] = index.StatusIgnored
			continue
		}
		fs, ok := status[rel]
		if !ok {
			updates[h.ID] = index.StatusClean
			continue
		}
		updates[h.ID] = translate(fs)
	}
	changed := m.idx.ApplyGitStatus(updates)
	m.notifyApplied()
	return changed, nil
}

func translate(fs *gogit.FileStatus) index.GitStatus {
	switch {
	case fs.Worktree == gogit.Untracked:
		return index.StatusUntracked
	case fs.Staging == gogit.Added:
		return index.StatusStagedNew
	case fs.Staging == gogit.Renamed:
		return index.StatusRenamed
	case fs.Staging == gogit.Modified:
		return index.StatusStagedModified
	case fs.Staging == gogit.Deleted:
		return index.StatusStagedDeleted
	case fs.Worktree == gogit.Modified:
		return index.StatusModified
	case fs.Worktree == gogit.Deleted:
		return index.StatusDeleted
	case fs.Worktree == gogit.Renamed:
		return index.StatusRenamed
	default:
		return index.StatusClean
	}
}

// HasWorktree reports whether a git repository was found at init time.
func (m *Monitor) HasWorktree() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.repo != nil
}

// StartBackgroundMonitor begins a slow poll loop that re-runs
// RefreshStatus as a safety net against missed filesystem events. Events
// from Scanner should also trigger Nudge directly for faster turnaround.
func (m *Monitor) StartBackgroundMonitor(ctx context.Context) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	m.stop = stop
	m.done = done
	m.mu.Unlock()

	go m.pollLoop(ctx, stop, done)
}

func (m *Monitor) pollLoop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := m.RefreshStatus(ctx); err != nil {
				m.logger.Debug("gitstatus_poll_failed", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			return
		case <-stop:
			return
		}
	}
}

// StopBackgroundMonitor stops the poll loop, if running. Safe to call
// more than once.
func (m *Monitor) StopBackgroundMonitor() {
	m.mu.Lock()
	stop := m.stop
	done := m.done
	m.stop = nil
	m.done = nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Nudge triggers an out-of-band refresh, ignoring errors beyond logging
// them - intended to be wired to Scanner.OnMutated so status catches up
// shortly after a filesystem event rather than waiting for the next poll.
func (m *Monitor) Nudge(ctx context.Context) {
	if _, err := m.RefreshStatus(ctx); err != nil {
		m.logger.Debug("gitstatus_nudge_failed", slog.String("error", err.Error()))
	}
}
