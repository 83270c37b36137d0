package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Timeout())
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.True(t, cfg.Sources.MangaDex.Enabled)
	assert.Equal(t, "https://api.mangadex.org", cfg.Sources.MangaDex.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Sources.MangaDex.Delay())
	assert.False(t, cfg.Sources.WebScan.Enabled)
	assert.Equal(t, "webscan", cfg.Sources.WebScanName)
	assert.Equal(t, 20, cfg.Sync.Limit)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MANGATRACK_SERVER_PORT", "9191")
	t.Setenv("MANGATRACK_SOURCES_MANGADEX_DELAY_MS", "50")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 50*time.Millisecond, cfg.Sources.MangaDex.Delay())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 7070
sources:
  webscan:
    enabled: true
    base_url: https://reader.example
    delay_ms: 100
  webscan_name: reader
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Sources.WebScan.Enabled)
	assert.Equal(t, "https://reader.example", cfg.Sources.WebScan.BaseURL)
	assert.Equal(t, "reader", cfg.Sources.WebScanName)
	// Untouched sections keep their defaults.
	assert.True(t, cfg.Sources.MangaDex.Enabled)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Server.Port = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.HTTP.TimeoutSeconds = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Sources.WebScan.Enabled = true
	bad.Sources.WebScan.BaseURL = ""
	assert.Error(t, bad.Validate())

	assert.NoError(t, cfg.Validate())
}
