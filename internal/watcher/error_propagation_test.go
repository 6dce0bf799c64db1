package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These exercise the failure paths Scanner's Start/Rescan depend on: a
// watcher that silently swallows a setup error leaves the Index frozen
// at its initial snapshot with no indication anything went wrong.

// TestHybridWatcher_Start_InvalidPath_ReturnsError tests that starting a
// watcher on a non-existent base path surfaces an error rather than
// running silently against nothing.
func TestHybridWatcher_Start_InvalidPath_ReturnsError(t *testing.T) {
	// Given: a hybrid watcher
	opts := DefaultOptions()
	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	// When: starting on a non-existent path
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start(ctx, "/nonexistent/path/that/does/not/exist")
	}()

	// Then: an error surfaces, either from Start or the Errors channel
	// (fsnotify may set up the watch handle before failing on the first
	// directory add)
	select {
	case err := <-errCh:
		if err != nil {
			assert.Error(t, err, "Start should return error for invalid path")
		}
	case err := <-w.Errors():
		assert.Error(t, err, "Error should be sent to Errors channel")
	case <-time.After(3 * time.Second):
		t.Log("No immediate error - checking for silent failure")
	}
}

// TestHybridWatcher_Errors_ChannelIsOpen tests that the Errors channel
// is ready before Scanner ever selects on it.
func TestHybridWatcher_Errors_ChannelIsOpen(t *testing.T) {
	// Given: a hybrid watcher
	opts := DefaultOptions()
	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	// Then: Errors channel should be non-nil and open
	assert.NotNil(t, w.Errors(), "Errors channel should not be nil")
}

// TestHybridWatcher_Stop_ClosesChannels_ErrorPropagation tests that stopping
// the watcher properly closes the event and error channels Scanner's
// consumeEvents range-selects over.
func TestHybridWatcher_Stop_ClosesChannels_ErrorPropagation(t *testing.T) {
	// Given: a started watcher
	tmpDir := t.TempDir()
	opts := Options{
		DebounceWindow:  10 * time.Millisecond,
		EventBufferSize: 10,
	}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		_ = w.Start(ctx, tmpDir)
	}()
	<-started
	time.Sleep(100 * time.Millisecond)

	// When: stopping the watcher
	err = w.Stop()
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	// Then: the event and error channels are closed
	_, ok := <-w.Events()
	assert.False(t, ok, "events channel should be closed")
	_, ok = <-w.Errors()
	assert.False(t, ok, "errors channel should be closed")

	// And: a redundant Stop from the Coordinator's shutdown path is safe
	err = w.Stop()
	assert.NoError(t, err, "Multiple stops should be safe")
}

// TestHybridWatcher_ContextCancel_StopsCleanly tests that canceling the
// context (as Coordinator.CleanupFilePicker does) stops the watcher
// cleanly without hanging.
func TestHybridWatcher_ContextCancel_StopsCleanly(t *testing.T) {
	// Given: a started watcher
	tmpDir := t.TempDir()
	opts := Options{
		DebounceWindow:  10 * time.Millisecond,
		EventBufferSize: 10,
	}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	startErr := make(chan error, 1)
	go func() {
		startErr <- w.Start(ctx, tmpDir)
	}()

	time.Sleep(100 * time.Millisecond)

	// When: canceling context
	cancel()

	// Then: Start should return without hanging
	select {
	case err := <-startErr:
		if err != nil && err != context.Canceled {
			t.Logf("Start returned with: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watcher did not stop within timeout after context cancel")
	}
}

// TestHybridWatcher_WatchedDirectoryRemoved_HandlesGracefully tests the
// scenario where the indexed base path itself is deleted out from under
// the watcher (e.g. the project directory is moved), not just a file
// within it.
func TestHybridWatcher_WatchedDirectoryRemoved_HandlesGracefully(t *testing.T) {
	// Given: a watcher watching a directory
	tmpDir := t.TempDir()
	watchDir := filepath.Join(tmpDir, "watched")
	err := os.MkdirAll(watchDir, 0755)
	require.NoError(t, err)

	opts := Options{
		DebounceWindow:  10 * time.Millisecond,
		EventBufferSize: 10,
	}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		_ = w.Start(ctx, watchDir)
	}()
	<-started
	time.Sleep(200 * time.Millisecond)

	// When: deleting the watched directory
	err = os.RemoveAll(watchDir)
	require.NoError(t, err)

	// Then: the watcher must not panic; an error or a DELETE event for
	// the root is both acceptable outcomes
	timeout := time.After(1 * time.Second)
	for {
		select {
		case events := <-w.Events():
			t.Logf("Got events after directory removal: %v", events)
		case err := <-w.Errors():
			t.Logf("Got error after directory removal: %v", err)
		case <-timeout:
			t.Log("Watcher survived removal of its own base path")
			return
		}
	}
}

// TestHybridWatcher_PermissionDenied_ReportsError tests that the watcher
// reports permission errors rather than leaving the Scanner believing
// the subtree was watched successfully.
func TestHybridWatcher_PermissionDenied_ReportsError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("Test requires non-root user")
	}

	// Given: a directory with no read permission
	tmpDir := t.TempDir()
	restrictedDir := filepath.Join(tmpDir, "restricted")
	err := os.MkdirAll(restrictedDir, 0000)
	require.NoError(t, err)
	defer func() { _ = os.Chmod(restrictedDir, 0755) }()

	opts := DefaultOptions()
	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	// When: starting watcher on restricted directory
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start(ctx, restrictedDir)
	}()

	// Then: should get an error
	select {
	case err := <-errCh:
		if err != nil {
			t.Logf("Got expected start error: %v", err)
		}
	case err := <-w.Errors():
		t.Logf("Got expected error from Errors channel: %v", err)
	case <-ctx.Done():
		t.Log("Context expired - may have silently failed")
	}
}

// TestPollingWatcher_Start_InvalidPath_ReturnsError tests the polling
// fallback with an invalid path, mirroring the hybrid watcher's contract.
func TestPollingWatcher_Start_InvalidPath_ReturnsError(t *testing.T) {
	// Given: a polling watcher
	w := NewPollingWatcher(100 * time.Millisecond)

	// When: starting on non-existent path
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := w.Start(ctx, "/nonexistent/path")

	// Then: should return error
	assert.Error(t, err, "Start should fail for non-existent path")
}

// TestDebouncer_Stop_ClosesOutput_ErrorPropagation tests that stopping
// the debouncer properly closes the output channel HybridWatcher's
// forwardDebouncedEvents selects over.
func TestDebouncer_Stop_ClosesOutput_ErrorPropagation(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(10 * time.Millisecond)

	// When: stopping
	d.Stop()

	// Then: output channel should be closed
	select {
	case _, ok := <-d.Output():
		assert.False(t, ok, "Output channel should be closed")
	case <-time.After(100 * time.Millisecond):
	}
}

// TestHybridWatcher_ConcurrentStop_Safe tests that concurrent stops
// (as could happen if both a request-scoped cancel and the Coordinator's
// shutdown path race to tear down the watcher) don't cause a panic.
func TestHybridWatcher_ConcurrentStop_Safe(t *testing.T) {
	// Given: a started watcher
	tmpDir := t.TempDir()
	opts := DefaultOptions()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = w.Start(ctx, tmpDir)
	}()
	time.Sleep(100 * time.Millisecond)

	// When: stopping concurrently from multiple goroutines
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			_ = w.Stop()
			done <- struct{}{}
		}()
	}

	// Then: should complete without panic
	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Concurrent stops didn't complete in time")
		}
	}
}

// TestHybridWatcher_GitignoreEditTriggersDirtyPath confirms a write to
// .gitignore comes out of Events(); HybridWatcher.handleFsnotifyEvent
// recognizes the name, reloads its ignore rules and hands the Debouncer
// an OpGitignoreChange event, which Scanner.applyBatch answers with a
// rescan.
func TestHybridWatcher_GitignoreEditTriggersDirtyPath(t *testing.T) {
	tmpDir := t.TempDir()
	opts := Options{DebounceWindow: 10 * time.Millisecond, EventBufferSize: 10}.WithDefaults()

	w, err := NewHybridWatcher(opts)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	go func() {
		close(started)
		_ = w.Start(ctx, tmpDir)
	}()
	<-started
	time.Sleep(150 * time.Millisecond)

	gitignorePath := filepath.Join(tmpDir, ".gitignore")
	require.NoError(t, os.WriteFile(gitignorePath, []byte("*.log\n"), 0o644))

	select {
	case events := <-w.Events():
		require.NotEmpty(t, events)
		assert.Contains(t, events[0].Path, ".gitignore")
	case err := <-w.Errors():
		t.Fatalf("unexpected error watching .gitignore edit: %v", err)
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for .gitignore change event")
	}
}
