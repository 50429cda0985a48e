package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tbala-06/GIQ-2025/internal/mission"
	"github.com/Tbala-06/GIQ-2025/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(jobID int64, success bool, finished time.Time) mission.HistoryEntry {
	return mission.HistoryEntry{
		MissionID:  types.NewID(),
		JobID:      jobID,
		TargetLat:  1.3521,
		TargetLon:  103.8198,
		Success:    success,
		Message:    "marking painted in 42s",
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
	}
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	first := entry(7, true, base)
	second := entry(8, false, base.Add(time.Minute))
	second.Message = "no road found within 50 m"

	require.NoError(t, s.Record(ctx, first))
	require.NoError(t, s.Record(ctx, second))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, int64(8), entries[0].JobID)
	assert.False(t, entries[0].Success)
	assert.Equal(t, "no road found within 50 m", entries[0].Message)
	assert.Equal(t, second.MissionID, entries[0].MissionID)

	assert.Equal(t, int64(7), entries[1].JobID)
	assert.True(t, entries[1].Success)
	assert.True(t, entries[1].FinishedAt.Equal(first.FinishedAt))
}

func TestStore_RecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, entry(int64(i), true, base.Add(time.Duration(i)*time.Second))))
	}

	entries, err := s.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, int64(4), entries[0].JobID)
}

func TestStore_RecentEmpty(t *testing.T) {
	s := openTestStore(t)

	entries, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, entry(7, true, time.Now().UTC())))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
