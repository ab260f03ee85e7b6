// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Timeouts.Metadata)
	assert.Equal(t, 300, cfg.Timeouts.Download)
	assert.Equal(t, 80, cfg.Storage.CleanupThreshold)
	assert.Equal(t, 5, cfg.Downloads.MaxConcurrent)
	assert.Equal(t, 100, cfg.Downloads.QueueSize)
	assert.Equal(t, 100, cfg.RateLimiting.MetadataRPM)
	assert.Equal(t, 10, cfg.RateLimiting.DownloadRPM)
	assert.Equal(t, 20, cfg.RateLimiting.BurstCapacity)
	assert.Equal(t, "%(title)s-%(id)s.%(ext)s", cfg.Templates.DefaultOutput)
	assert.Equal(t, []int{2, 4, 8}, cfg.Providers.YouTube.RetryBackoff)
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9001
rate_limiting:
  metadata_rpm: 50
storage:
  output_dir: /data/out
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("APP_RATE_LIMITING_METADATA_RPM", "75")
	t.Setenv("APP_SECURITY_API_KEYS", "key-a, key-b")
	t.Setenv("APP_YOUTUBE_RETRY_BACKOFF", "1,2,3")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	// file overrides defaults
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "/data/out", cfg.Storage.OutputDir)
	// env overrides file
	assert.Equal(t, 75, cfg.RateLimiting.MetadataRPM)
	// env list parsing
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.Security.APIKeys)
	assert.Equal(t, []int{1, 2, 3}, cfg.Providers.YouTube.RetryBackoff)
	// untouched leaves keep defaults
	assert.Equal(t, 10, cfg.RateLimiting.DownloadRPM)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Server.Port, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.CleanupThreshold = 120
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Downloads.QueueSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())
}
