// Package watcher is the Scanner's incremental-update source: it
// watches the base path for create/modify/delete/rename
// events after the initial scan completes and keeps the Index converged
// against filesystem churn without re-walking the whole tree.
//
// Two watching strategies share one Debouncer and output channel:
//   - HybridWatcher: fsnotify for the common case. The choice is made once,
//     in NewHybridWatcher; a directory fsnotify cannot watch makes Start
//     return an error, with no per-subtree fallback to polling.
//   - PollingWatcher: pure stat-based diffing, used for the whole tree when
//     an fsnotify watcher cannot be created at all.
//
// Bursts of events for the same path - an editor's write-then-rename save,
// or git touching a dozen files during a checkout - collapse through the
// Debouncer before the Scanner ever sees them, inside a ~50-150ms
// coalescing window.
//
// The Scanner is the only consumer:
//
//	hw, err := watcher.NewHybridWatcher(watcher.Options{DebounceWindow: s.cfg.WatchDebounce})
//	if err != nil {
//	    return err
//	}
//	go hw.Start(ctx, basePath)
//	for batch := range hw.Events() {
//	    s.applyBatch(ctx, batch)
//	}
package watcher
