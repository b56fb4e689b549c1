package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 20, cfg.Analysis.Depth)
	assert.Equal(t, 1, cfg.Analysis.MinAppearances)
	assert.Equal(t, 50, cfg.Analysis.MaxResults)
	assert.Contains(t, cfg.Analysis.Exclude, "youtube.com")
	assert.Equal(t, "auto", cfg.Serp.Provider)
	require.NoError(t, cfg.Validate())
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvDatabasePath, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Analysis, cfg.Analysis)
}

func TestLoadFrom_PartialFileKeepsDefaults(t *testing.T) {
	t.Setenv(EnvDatabasePath, "")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[analysis]
depth = 10
exclude = ["example.com"]

[database]
path = "/tmp/runs.db"
`), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Analysis.Depth)
	assert.Equal(t, 1, cfg.Analysis.MinAppearances)
	assert.Equal(t, []string{"example.com"}, cfg.Analysis.Exclude)
	assert.Equal(t, "/tmp/runs.db", cfg.Database.Path)
	assert.Equal(t, "google", cfg.Serp.Engine)
}

func TestLoadFrom_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[analysis\ndepth ="), 0o600))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDatabasePath, "/data/env.db")
	t.Setenv(EnvSerpAPIKey, "secret")
	t.Setenv(EnvSearchEngine, "BING")
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "/data/env.db", cfg.Database.Path)
	assert.Equal(t, "secret", cfg.Serp.APIKey)
	assert.Equal(t, "bing", cfg.Serp.Engine)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyEnv_IgnoresEmptyValues(t *testing.T) {
	cfg := DefaultConfig()
	want := cfg.Database.Path

	cfg.ApplyEnv(func(string) (string, bool) { return "", true })
	assert.Equal(t, want, cfg.Database.Path)
}

func TestSaveTo_RoundTripWithoutAPIKey(t *testing.T) {
	t.Setenv(EnvSerpAPIKey, "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Analysis.Depth = 15
	cfg.Serp.APIKey = "secret"
	require.NoError(t, cfg.SaveTo(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 15, loaded.Analysis.Depth)
	assert.Equal(t, "secret", cfg.Serp.APIKey, "saving must not modify the receiver")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"bad busy timeout", func(c *Config) { c.Database.BusyTimeout = "soon" }},
		{"unknown provider", func(c *Config) { c.Serp.Provider = "duckduckgo" }},
		{"unknown engine", func(c *Config) { c.Serp.Engine = "yahoo" }},
		{"serpapi without key", func(c *Config) { c.Serp.Provider = "serpapi" }},
		{"file without path", func(c *Config) { c.Serp.Provider = "file" }},
		{"zero depth", func(c *Config) { c.Analysis.Depth = 0 }},
		{"depth above max", func(c *Config) { c.Analysis.Depth = 21 }},
		{"zero min appearances", func(c *Config) { c.Analysis.MinAppearances = 0 }},
		{"negative max results", func(c *Config) { c.Analysis.MaxResults = -1 }},
		{"bad export format", func(c *Config) { c.Export.Format = "xlsx" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad watch interval", func(c *Config) { c.Watch.Interval = "often" }},
		{"bad backup interval", func(c *Config) { c.Backup.Interval = "nightly" }},
		{"negative backup keep", func(c *Config) { c.Backup.Keep = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStorageConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Path = "/tmp/x.db"
	cfg.Database.BusyTimeout = "250ms"
	cfg.Database.MaxOpenConns = 3

	sc, err := cfg.StorageConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", sc.Path)
	assert.Equal(t, 250*time.Millisecond, sc.BusyTimeout)
	assert.Equal(t, 3, sc.MaxOpenConns)
	assert.True(t, sc.AutoMigrate)
}

func TestSourceOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Serp.Provider = "file"
	cfg.Serp.ResultsFile = "fixtures.json"

	opts, err := cfg.SourceOptions()
	require.NoError(t, err)
	assert.Equal(t, "file", opts.Provider)
	assert.Equal(t, "fixtures.json", opts.ResultsFile)
	assert.Equal(t, 2*time.Second, opts.Interval)
}

func TestSchedulerConfig(t *testing.T) {
	cfg := DefaultConfig()

	sc, err := cfg.SchedulerConfig()
	require.NoError(t, err)
	assert.Nil(t, sc, "scheduled backups are off by default")

	cfg.Backup.Interval = "6h"
	cfg.Backup.Dir = "/tmp/snapshots"
	cfg.Backup.Keep = 3

	sc, err = cfg.SchedulerConfig()
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, 6*time.Hour, sc.Interval)
	assert.Equal(t, "/tmp/snapshots", sc.Dir)
	assert.Equal(t, 3, sc.Keep)
}
