package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nativize/nativize/internal/toolchain"
)

// fakeArtifact materializes real files so eviction and clear behavior is
// observable on disk.
func fakeArtifact(t *testing.T, dir, fingerprint string) *toolchain.Artifact {
	t.Helper()
	path := filepath.Join(dir, fingerprint+".so")
	require.NoError(t, os.WriteFile(path, []byte("object"), 0o644))
	return &toolchain.Artifact{Fingerprint: fingerprint, Path: path}
}

func newTestManager(t *testing.T, capacity int) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), capacity)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManagerLookupMiss(t *testing.T) {
	m := newTestManager(t, 4)
	_, ok := m.Lookup("absent")
	assert.False(t, ok)
}

func TestManagerInsertThenLookup(t *testing.T) {
	m := newTestManager(t, 4)
	art := fakeArtifact(t, m.Dir(), "aaa")
	require.NoError(t, m.Insert(art, "mathkit.Fib", "Fib", "conservative"))

	got, ok := m.Lookup("aaa")
	require.True(t, ok)
	assert.Same(t, art, got)

	e, ok, err := m.Index().Get("aaa")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mathkit.Fib", e.Target)
}

func TestManagerEvictsLeastRecentlyUsed(t *testing.T) {
	m := newTestManager(t, 2)
	a := fakeArtifact(t, m.Dir(), "aaa")
	b := fakeArtifact(t, m.Dir(), "bbb")
	c := fakeArtifact(t, m.Dir(), "ccc")

	require.NoError(t, m.Insert(a, "p.A", "A", "conservative"))
	require.NoError(t, m.Insert(b, "p.B", "B", "conservative"))

	// Touch a so b becomes the oldest entry.
	_, ok := m.Lookup("aaa")
	require.True(t, ok)

	require.NoError(t, m.Insert(c, "p.C", "C", "conservative"))

	_, ok = m.Lookup("bbb")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = m.Lookup("aaa")
	assert.True(t, ok)
	_, ok = m.Lookup("ccc")
	assert.True(t, ok)
	assert.Equal(t, 2, m.Len())

	// Eviction releases the artifact files and drops the index row.
	assert.NoFileExists(t, b.Path)
	assert.FileExists(t, a.Path)
	_, found, err := m.Index().Get("bbb")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestManagerCapacityIsExact(t *testing.T) {
	m := newTestManager(t, 3)
	for i := 0; i < 10; i++ {
		fp := fmt.Sprintf("fp%03d", i)
		require.NoError(t, m.Insert(fakeArtifact(t, m.Dir(), fp), "p.F", "F", "conservative"))
		assert.LessOrEqual(t, m.Len(), 3)
	}
	assert.Equal(t, 3, m.Len())

	// Only the three newest fingerprints survive.
	for _, fp := range []string{"fp007", "fp008", "fp009"} {
		_, ok := m.Lookup(fp)
		assert.True(t, ok, fp)
	}
}

func TestManagerClear(t *testing.T) {
	m := newTestManager(t, 4)
	a := fakeArtifact(t, m.Dir(), "aaa")
	b := fakeArtifact(t, m.Dir(), "bbb")
	require.NoError(t, m.Insert(a, "p.A", "A", "conservative"))
	require.NoError(t, m.Insert(b, "p.B", "B", "aggressive"))

	require.NoError(t, m.Clear())

	assert.Equal(t, 0, m.Len())
	_, ok := m.Lookup("aaa")
	assert.False(t, ok)
	assert.NoFileExists(t, a.Path)
	assert.NoFileExists(t, b.Path)

	all, err := m.Entries()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestManagerClearLeavesUnindexedArtifacts(t *testing.T) {
	m := newTestManager(t, 4)
	a := fakeArtifact(t, m.Dir(), "aaa")
	require.NoError(t, m.Insert(a, "p.A", "A", "conservative"))

	// A concurrent compile has written its object into the cache directory
	// but not yet inserted it.
	inflight := filepath.Join(m.Dir(), "bbb.so")
	require.NoError(t, os.WriteFile(inflight, []byte("object"), 0o644))

	require.NoError(t, m.Clear())

	assert.NoFileExists(t, a.Path)
	assert.FileExists(t, inflight, "clear must not remove files the index does not record")

	all, err := m.Entries()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestManagerClearRemovesStaleIndexedFiles(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 4)
	require.NoError(t, err)
	a := fakeArtifact(t, dir, "aaa")
	require.NoError(t, m.Insert(a, "p.A", "A", "conservative"))
	require.NoError(t, m.Close())

	// A fresh manager on the same directory holds nothing resident, but
	// the index still records the previous process's artifact.
	m2, err := NewManager(dir, 4)
	require.NoError(t, err)
	t.Cleanup(func() { m2.Close() })

	require.NoError(t, m2.Clear())
	assert.NoFileExists(t, a.Path)
}

func TestManagerRehydrate(t *testing.T) {
	m := newTestManager(t, 4)
	art := fakeArtifact(t, m.Dir(), "aaa")
	require.NoError(t, m.Insert(art, "p.A", "A", "conservative"))

	// A later process loads the warm entry straight from disk.
	m2, err := NewManager(m.Dir(), 4)
	require.NoError(t, err)

	e, ok, err := m2.Index().Get("aaa")
	require.NoError(t, err)
	require.True(t, ok)

	warm := &toolchain.Artifact{Fingerprint: e.Fingerprint, Path: e.ArtifactPath}
	m2.Rehydrate(warm)

	got, ok := m2.Lookup("aaa")
	require.True(t, ok)
	assert.Same(t, warm, got)
	require.NoError(t, m2.Close())
}

func TestManagerRejectsNonPositiveCapacity(t *testing.T) {
	_, err := NewManager(t.TempDir(), 0)
	assert.Error(t, err)
}
