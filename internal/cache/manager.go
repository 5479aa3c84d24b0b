// Package cache persists per-locality resolution state as a JSON document
// on disk, with copy-on-switch archival when the active locality changes.
package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lodgescout/resolver-cli/internal/model"
)

const (
	cacheFile   = "cache.json"
	archiveFile = "cache_archive.json"
)

// Manager owns the on-disk cache for the single active locality. All
// read-modify-write sequences run under one mutex so an archive-then-
// overwrite for a new locality can never interleave with another write.
type Manager struct {
	mu   sync.Mutex
	dir  string
	path string
}

// NewManager creates a Manager rooted at dir, creating it if needed.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "cache: create dir %s", dir)
	}
	return &Manager{
		dir:  dir,
		path: filepath.Join(dir, cacheFile),
	}, nil
}

// NormalizeLocality canonicalizes a locality for comparison and storage.
func NormalizeLocality(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// Load reads the current cache. A missing file returns (nil, nil).
func (m *Manager) Load() (*model.CacheData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

func (m *Manager) loadLocked() (*model.CacheData, error) {
	raw, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "cache: read cache file")
	}

	var data model.CacheData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, eris.Wrap(err, "cache: parse cache file")
	}
	return &data, nil
}

// CheckLocation loads the cache if it belongs to locality. A nil result
// with nil error means no cache exists for this locality (either the
// file is absent or it holds a different locality).
func (m *Manager) CheckLocation(locality string) (*model.CacheData, error) {
	data, err := m.Load()
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	if NormalizeLocality(data.CurrentLocation) != NormalizeLocality(locality) {
		return nil, nil
	}
	return data, nil
}

// Save writes data as the current cache. If the on-disk cache belongs to
// a different locality, that file is first copied to the archive path;
// archival is best-effort and never blocks the overwrite.
func (m *Manager) Save(data *model.CacheData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.loadLocked()
	if err != nil {
		zap.L().Warn("cache: existing cache unreadable, overwriting", zap.Error(err))
	}
	if existing != nil &&
		NormalizeLocality(existing.CurrentLocation) != NormalizeLocality(data.CurrentLocation) {
		m.archiveLocked()
	}

	data.LastUpdate = time.Now().UTC()
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return eris.Wrap(err, "cache: marshal cache data")
	}
	if err := os.WriteFile(m.path, raw, 0o644); err != nil {
		return eris.Wrap(err, "cache: write cache file")
	}
	return nil
}

// archiveLocked copies the current cache file to the archive path. One
// archive slot only: a previous archive is overwritten.
func (m *Manager) archiveLocked() {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		zap.L().Warn("cache: archive read failed", zap.Error(err))
		return
	}
	dst := filepath.Join(m.dir, archiveFile)
	if err := os.WriteFile(dst, raw, 0o644); err != nil {
		zap.L().Warn("cache: archive write failed", zap.Error(err))
		return
	}
	zap.L().Info("cache: previous locality archived", zap.String("path", dst))
}

// NewFor returns a fresh empty CacheData for a locality.
func NewFor(locality string) *model.CacheData {
	return &model.CacheData{
		CurrentLocation: NormalizeLocality(locality),
		ProcessStatus: model.ProcessStatus{
			LastStageStatus: model.StageStatusNotStarted,
		},
	}
}

// Clear removes the current cache file. A missing file is not an error.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrap(err, "cache: remove cache file")
	}
	return nil
}
