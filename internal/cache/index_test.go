package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestIndexUpsertAndGet(t *testing.T) {
	ix := openTestIndex(t)

	now := time.Now()
	require.NoError(t, ix.Upsert(IndexEntry{
		Fingerprint:  "aaa",
		Target:       "mathkit.Fib",
		Symbol:       "Fib",
		ArtifactPath: "/cache/aaa.so",
		Profile:      "conservative",
		CreatedAt:    now,
		AccessedAt:   now,
	}))

	got, ok, err := ix.Get("aaa")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mathkit.Fib", got.Target)
	assert.Equal(t, "/cache/aaa.so", got.ArtifactPath)
	assert.True(t, got.CreatedAt.Equal(now))

	_, ok, err = ix.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndexUpsertReplaces(t *testing.T) {
	ix := openTestIndex(t)

	now := time.Now()
	e := IndexEntry{Fingerprint: "aaa", Profile: "conservative", CreatedAt: now, AccessedAt: now}
	require.NoError(t, ix.Upsert(e))

	e.Profile = "aggressive"
	e.AccessedAt = now.Add(time.Minute)
	require.NoError(t, ix.Upsert(e))

	got, ok, err := ix.Get("aaa")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "aggressive", got.Profile)

	all, err := ix.All()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestIndexAllOrdersByRecency(t *testing.T) {
	ix := openTestIndex(t)

	base := time.Now()
	for i, fp := range []string{"old", "mid", "new"} {
		at := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, ix.Upsert(IndexEntry{Fingerprint: fp, CreatedAt: at, AccessedAt: at}))
	}
	require.NoError(t, ix.Touch("old", base.Add(time.Hour)))

	all, err := ix.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "old", all[0].Fingerprint)
	assert.Equal(t, "new", all[1].Fingerprint)
	assert.Equal(t, "mid", all[2].Fingerprint)
}

func TestIndexDeleteAndClear(t *testing.T) {
	ix := openTestIndex(t)

	now := time.Now()
	for _, fp := range []string{"a", "b", "c"} {
		require.NoError(t, ix.Upsert(IndexEntry{Fingerprint: fp, CreatedAt: now, AccessedAt: now}))
	}

	require.NoError(t, ix.Delete("b"))
	all, err := ix.All()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, ix.Clear())
	all, err = ix.All()
	require.NoError(t, err)
	assert.Empty(t, all)
}
