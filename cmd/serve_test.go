package main

import (
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/bilingual-sub-merger/internal/config"
	"github.com/MimeLyc/bilingual-sub-merger/internal/library"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/log"
)

func TestParseSort(t *testing.T) {
	by, direction := parseSort("size", "desc")
	assert.Equal(t, library.SortBySize, by)
	assert.Equal(t, library.SortDescending, direction)

	by, direction = parseSort("rating", "sideways")
	assert.Equal(t, library.SortByName, by)
	assert.Equal(t, library.SortAscending, direction)
}

func TestSetupLoggingToFile(t *testing.T) {
	cfg := config.Default()
	cfg.System.LogLevel = "debug"
	cfg.System.LogFile = filepath.Join(t.TempDir(), "logs", "submerge.log")

	closeLog, err := setupLogging(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		closeLog()
		log.InitLogger(log.LevelInfo)
	})

	log.Info("written to file")
	assert.FileExists(t, cfg.System.LogFile)
}

func TestRunServeRefusesSecondInstance(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("SETTINGS_FILE", filepath.Join(dataDir, "settings.json"))

	lock := flockForTest(t, filepath.Join(dataDir, "submerge.lock"))
	defer func() { _ = lock.Unlock() }()

	err := runServe(t.Context(), serveOptions{envFile: filepath.Join(dataDir, "missing.env")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another server")
}

func flockForTest(t *testing.T, path string) *flock.Flock {
	t.Helper()
	lock := flock.New(path)
	locked, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	return lock
}
