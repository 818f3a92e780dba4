package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/nativize/nativize/internal/toolchain"
)

// Manager is the bounded in-memory artifact cache backed by the durable
// index. Capacity is a hard bound on resident artifacts: inserting past it
// evicts exactly the least recently used entry, which releases the evicted
// artifact's on-disk files so the fingerprint recompiles on its next request.
type Manager struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *toolchain.Artifact]
	index   *Index
	dir     string

	Logger *zap.Logger
}

// NewManager opens the index database inside dir and builds a cache bounded
// at capacity entries.
func NewManager(dir string, capacity int) (*Manager, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	ix, err := OpenIndex(filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, err
	}

	m := &Manager{index: ix, dir: dir, Logger: zap.NewNop()}
	entries, err := lru.NewWithEvict(capacity, m.onEvict)
	if err != nil {
		ix.Close()
		return nil, fmt.Errorf("building cache: %w", err)
	}
	m.entries = entries
	return m, nil
}

// WithLogger sets the manager's logger and returns the manager.
func (m *Manager) WithLogger(log *zap.Logger) *Manager {
	m.Logger = log
	return m
}

// Dir returns the on-disk cache location.
func (m *Manager) Dir() string { return m.dir }

// Index exposes the durable index for warm rehydration and inspection.
func (m *Manager) Index() *Index { return m.index }

func (m *Manager) onEvict(fingerprint string, art *toolchain.Artifact) {
	m.Logger.Debug("evicting cache entry", zap.String("fingerprint", fingerprint))
	art.Release()
	if err := m.index.Delete(fingerprint); err != nil {
		m.Logger.Warn("failed to drop evicted index row",
			zap.String("fingerprint", fingerprint), zap.Error(err))
	}
}

// Lookup returns the resident artifact for a fingerprint, bumping its
// recency in memory and in the index.
func (m *Manager) Lookup(fingerprint string) (*toolchain.Artifact, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	art, ok := m.entries.Get(fingerprint)
	if !ok {
		return nil, false
	}
	if err := m.index.Touch(fingerprint, time.Now()); err != nil {
		m.Logger.Warn("failed to touch index row",
			zap.String("fingerprint", fingerprint), zap.Error(err))
	}
	return art, true
}

// Insert records a freshly compiled artifact under its fingerprint. If the
// cache is full the least recently used entry is evicted and released.
func (m *Manager) Insert(art *toolchain.Artifact, target, symbol, profile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if err := m.index.Upsert(IndexEntry{
		Fingerprint:  art.Fingerprint,
		Target:       target,
		Symbol:       symbol,
		ArtifactPath: art.Path,
		SourcePath:   art.SourcePath,
		Profile:      profile,
		CreatedAt:    now,
		AccessedAt:   now,
	}); err != nil {
		return err
	}
	m.entries.Add(art.Fingerprint, art)
	return nil
}

// Rehydrate adds an artifact loaded from a warm on-disk entry without
// rewriting its index row beyond recency.
func (m *Manager) Rehydrate(art *toolchain.Artifact) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.index.Touch(art.Fingerprint, time.Now()); err != nil {
		m.Logger.Warn("failed to touch index row",
			zap.String("fingerprint", art.Fingerprint), zap.Error(err))
	}
	m.entries.Add(art.Fingerprint, art)
}

// Entries lists every durable index row, most recently used first.
func (m *Manager) Entries() ([]IndexEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.All()
}

// Len returns the number of resident artifacts.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries.Len()
}

// Clear releases every resident artifact, drops all index rows, and removes
// the compiled objects and retained sources the index records. Only indexed
// entries are touched: an artifact a concurrent compile has written but not
// yet inserted stays on disk for that compile to load and insert.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.index.All()
	if err != nil {
		return err
	}

	// Purge drives every resident entry through the eviction callback,
	// which releases the artifact files and drops the index rows.
	m.entries.Purge()

	if err := m.index.Clear(); err != nil {
		return err
	}
	// Rows with no resident entry, left by an earlier process, still have
	// files on disk.
	for _, e := range rows {
		if e.ArtifactPath != "" {
			os.Remove(e.ArtifactPath)
		}
		if e.SourcePath != "" {
			os.Remove(e.SourcePath)
		}
	}
	return nil
}

// Close closes the durable index. Resident artifacts stay on disk for warm
// reuse by the next process.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.Close()
}
