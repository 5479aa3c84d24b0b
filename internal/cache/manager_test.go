package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgescout/resolver-cli/internal/model"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir())
	require.NoError(t, err)
	return m
}

func TestLoad_MissingFileReturnsNil(t *testing.T) {
	m := newTestManager(t)
	data, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	m := newTestManager(t)

	data := NewFor("Сочи")
	data.Organizations = []model.Organization{{Name: "Приморская"}}
	require.NoError(t, m.Save(data))

	loaded, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "сочи", loaded.CurrentLocation)
	require.Len(t, loaded.Organizations, 1)
	assert.False(t, loaded.LastUpdate.IsZero())
}

func TestCheckLocation_MatchNormalized(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Save(NewFor("Сочи")))

	data, err := m.CheckLocation("  СОЧИ ")
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestCheckLocation_DifferentLocalityIsNoMatch(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Save(NewFor("Сочи")))

	data, err := m.CheckLocation("Анапа")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSave_LocalitySwitchArchivesPrevious(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	old := NewFor("Сочи")
	old.Organizations = []model.Organization{{Name: "Приморская", Email: "info@hotel.ru"}}
	require.NoError(t, m.Save(old))

	require.NoError(t, m.Save(NewFor("Анапа")))

	// The previous locality's state survives in the archive file.
	raw, err := os.ReadFile(filepath.Join(dir, archiveFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "сочи")
	assert.Contains(t, string(raw), "info@hotel.ru")

	current, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "анапа", current.CurrentLocation)
	assert.Empty(t, current.Organizations)
}

func TestSave_SameLocalityDoesNotArchive(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)

	require.NoError(t, m.Save(NewFor("Сочи")))
	require.NoError(t, m.Save(NewFor("сочи ")))

	_, err = os.Stat(filepath.Join(dir, archiveFile))
	assert.True(t, os.IsNotExist(err))
}

func TestClear(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Save(NewFor("Сочи")))
	require.NoError(t, m.Clear())

	data, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, data)

	// Clearing an already-cleared cache is not an error.
	require.NoError(t, m.Clear())
}

func TestNormalizeLocality(t *testing.T) {
	assert.Equal(t, "сочи", NormalizeLocality("  СоЧи "))
	assert.Equal(t, "нижний новгород", NormalizeLocality("Нижний   Новгород"))
}

func TestNewFor_FreshCacheStartsAtNames(t *testing.T) {
	data := NewFor("Сочи")
	assert.Equal(t, model.StageNames, data.NextStage())
	assert.Equal(t, model.StageStatusNotStarted, data.ProcessStatus.LastStageStatus)
}
