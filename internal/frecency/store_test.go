package frecency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastfind/filepick/internal/index"
)

func TestRecordAccessIncreasesAccessScore(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Config{}, nil)
	require.NoError(t, err)
	defer s.Close()

	before := s.ScoresFor("/repo/a.go")
	assert.Zero(t, before.Access)

	now := time.Now()
	for i := 0; i < 5; i++ {
		s.RecordAccess("/repo/a.go", now)
	}
	after := s.ScoresFor("/repo/a.go")
	assert.Greater(t, after.Access, before.Access)
}

func TestWriteFlushReloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Config{FlushInterval: time.Hour}, nil)
	require.NoError(t, err)

	now := time.Now()
	s.RecordAccess("/repo/a.go", now)
	s.RecordAccess("/repo/a.go", now)
	require.NoError(t, s.Flush())
	want := s.ScoresFor("/repo/a.go")
	require.NoError(t, s.Close())

	reopened, err := Open(dir, Config{FlushInterval: time.Hour}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got := reopened.ScoresFor("/repo/a.go")
	assert.Equal(t, want, got)
}

func TestSecondOpenOnSameDirIsRejected(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Config{}, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = Open(dir, Config{}, nil)
	assert.Error(t, err)
}

func TestAccessEventsAreBoundedByMax(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Config{}, nil)
	require.NoError(t, err)
	defer s.Close()

	base := time.Now()
	for i := 0; i < maxAccessEvents+10; i++ {
		s.RecordAccess("/repo/busy.go", base.Add(time.Duration(i)*time.Minute))
	}
	s.mu.Lock()
	r := s.records["/repo/busy.go"]
	n := len(r.AccessEvents)
	s.mu.Unlock()
	assert.Equal(t, maxAccessEvents, n)
}

func TestRecordModificationFeedsModificationScore(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Config{}, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.Zero(t, s.ScoresFor("/repo/warm.go").Modification)
	s.RecordModification("/repo/warm.go", time.Now())
	assert.Positive(t, s.ScoresFor("/repo/warm.go").Modification)
}

func TestRefreshAllBumpsGitDirtyEntries(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Config{}, nil)
	require.NoError(t, err)
	defer s.Close()

	now := time.Now()
	idx := index.New("/repo", index.DefaultWeights)
	cleanEntry, err := idx.Insert("/repo/clean.go", index.Metadata{ModifiedTime: now})
	require.NoError(t, err)
	dirtyEntry, err := idx.Insert("/repo/dirty.go", index.Metadata{ModifiedTime: now})
	require.NoError(t, err)
	idx.ApplyGitStatus(map[int64]index.GitStatus{dirtyEntry.ID: index.StatusModified})

	scores := s.RefreshAll(idx.Snapshot())
	assert.Greater(t, scores[dirtyEntry.ID].Modification, scores[cleanEntry.ID].Modification)

	// The dirty bit lives in the store now, so a plain ScoresFor sees it
	// too - and a later filesystem-only RecordModification can't clear it.
	s.RecordModification("/repo/dirty.go", now)
	assert.Greater(t, s.ScoresFor("/repo/dirty.go").Modification, s.ScoresFor("/repo/clean.go").Modification)
}

func TestRefreshAllProducesPerIDScores(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Config{}, nil)
	require.NoError(t, err)
	defer s.Close()

	idx := index.New("/repo", index.DefaultWeights)
	entry, err := idx.Insert("/repo/a.go", index.Metadata{ModifiedTime: time.Now()})
	require.NoError(t, err)

	scores := s.RefreshAll(idx.Snapshot())
	got, ok := scores[entry.ID]
	require.True(t, ok)
	assert.GreaterOrEqual(t, got.Modification, 0)
}

func TestPruneRemovesOnlyDeadPaths(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, Config{RecordTTL: time.Millisecond}, nil)
	require.NoError(t, err)
	defer s.Close()

	old := time.Now().Add(-time.Hour)
	s.RecordAccess("/repo/gone.go", old)
	s.RecordAccess("/repo/kept.go", old)

	removed := s.Prune(map[string]struct{}{"/repo/kept.go": {}})
	assert.Equal(t, 1, removed)

	s.mu.Lock()
	_, stillThere := s.records["/repo/kept.go"]
	_, goneNow := s.records["/repo/gone.go"]
	s.mu.Unlock()
	assert.True(t, stillThere)
	assert.False(t, goneNow)
}
