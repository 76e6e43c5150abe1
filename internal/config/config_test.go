package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-classroom-download/internal/models"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
DownloadsDir = "/data/downloads"
DownloadRoot = "School"
HttpTimeoutSec = 30
LogApiRequests = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/downloads", cfg.DownloadsDir)
	assert.Equal(t, "School", cfg.DownloadRoot)
	assert.Equal(t, 30, cfg.HttpTimeoutSec)
	assert.True(t, cfg.LogApiRequests)
	assert.Equal(t, filepath.Join("/data/downloads", "School", "classroom_db"), cfg.DatabasePath)
	assert.Equal(t, filepath.Join("/data/downloads", "School", "classroom.bleve"), cfg.BleveIndexPath)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
	// Defaults still apply so callers can carry on.
	assert.Equal(t, models.DefaultDownloadRoot, cfg.DownloadRoot)
	assert.Equal(t, DefaultHttpTimeoutSec, cfg.HttpTimeoutSec)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("DownloadsDir = [unterminated"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestApplyDefaults_KeepsExplicitPaths(t *testing.T) {
	cfg := ApplyDefaults(models.Config{
		DownloadsDir:   "/tmp/dl",
		DatabasePath:   "/var/lib/classroom/db",
		BleveIndexPath: "/var/lib/classroom/index",
		HttpTimeoutSec: -5,
	})
	assert.Equal(t, "/var/lib/classroom/db", cfg.DatabasePath)
	assert.Equal(t, "/var/lib/classroom/index", cfg.BleveIndexPath)
	assert.Equal(t, DefaultHttpTimeoutSec, cfg.HttpTimeoutSec)
}

func TestReadConfig_NoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`UserAgent = "test-agent"`), 0644))

	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "test-agent", cfg.UserAgent)
	assert.Empty(t, cfg.DatabasePath, "derived paths are left for ApplyDefaults")

	cfg.DownloadsDir = "/override"
	assert.Equal(t, filepath.Join("/override", models.DefaultDownloadRoot, "classroom_db"), ApplyDefaults(cfg).DatabasePath)
}
