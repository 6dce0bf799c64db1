package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastfind/filepick/internal/config"
	"github.com/fastfind/filepick/internal/coordinator"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	// Isolate git's global config/excludes lookups from the developer's
	// real home, which could otherwise ignore the fixture files.
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "main.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(base, "readme.md"), []byte("# hi"), 0o644))

	c := coordinator.New(config.NewConfig(), nil)
	t.Cleanup(func() { _ = c.CleanupFilePicker() })
	require.NoError(t, c.InitDB(t.TempDir(), true))
	require.NoError(t, c.InitFilePicker(context.Background(), base))

	s := NewServer(c, nil)
	return s, base
}

func TestNewServer_RegistersTools(t *testing.T) {
	// Given/When: building a server
	s, _ := newTestServer(t)

	// Then: the underlying SDK server instance is reachable
	assert.NotNil(t, s.MCPServer())
}

func TestHandleSearch_ReturnsRankedResults(t *testing.T) {
	// Given: an initialized server over a small indexed tree
	s, _ := newTestServer(t)

	// When: searching for "main"
	_, out, err := s.handleSearch(context.Background(), nil, SearchInput{Query: "main", MaxResults: 5})

	// Then: main.go is found and ranked, and totals are reported
	require.NoError(t, err)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "main.go", out.Results[0].Name)
	assert.Equal(t, 2, out.TotalFiles)
}

func TestHandleSearch_EmptyQueryIsRejected(t *testing.T) {
	// Given: an initialized server
	s, _ := newTestServer(t)

	// When: searching with an empty query
	_, _, err := s.handleSearch(context.Background(), nil, SearchInput{Query: ""})

	// Then: an invalid-params error is returned, not a panic or empty-ok
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestHandleTrackAccess_RequiresPath(t *testing.T) {
	// Given: an initialized server
	s, _ := newTestServer(t)

	// When: tracking access with an empty path
	_, _, err := s.handleTrackAccess(context.Background(), nil, TrackAccessInput{AbsolutePath: ""})

	// Then: invalid-params error
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestHandleTrackAccess_RecordsAccess(t *testing.T) {
	// Given: an initialized server and an indexed file
	s, base := newTestServer(t)

	// When: tracking access to that file
	_, out, err := s.handleTrackAccess(context.Background(), nil, TrackAccessInput{
		AbsolutePath: filepath.Join(base, "main.go"),
	})

	// Then: the call succeeds and reports tracked=true
	require.NoError(t, err)
	assert.True(t, out.Tracked)
}

func TestHandleScanProgress_ReportsCompletedScan(t *testing.T) {
	// Given: a server whose initial scan has already completed
	s, _ := newTestServer(t)

	// When: requesting scan progress
	_, out, err := s.handleScanProgress(context.Background(), nil, ScanProgressInput{})

	// Then: scanning is done and both indexed files were counted
	require.NoError(t, err)
	assert.False(t, out.IsScanning)
	assert.Equal(t, 2, out.ScannedFilesCount)
	assert.Empty(t, out.Error)
}

func TestHandleSearch_BeforeInitReturnsStateError(t *testing.T) {
	// Given: a server built over a coordinator that was never initialized
	c := coordinator.New(config.NewConfig(), nil)
	s := NewServer(c, nil)

	// When: searching before init_file_picker has run
	_, _, err := s.handleSearch(context.Background(), nil, SearchInput{Query: "main"})

	// Then: the coordinator's StateError is mapped to not-initialized
	require.Error(t, err)
	mcpErr, ok := err.(*MCPError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNotInitialized, mcpErr.Code)
}
