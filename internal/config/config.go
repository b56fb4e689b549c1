// Package config loads the TOML configuration file and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ramonehamilton/competitor-discovery/internal/domain"
	"github.com/ramonehamilton/competitor-discovery/internal/logger"
	"github.com/ramonehamilton/competitor-discovery/internal/serp"
	"github.com/ramonehamilton/competitor-discovery/internal/storage"
)

// Environment variables that override the file.
const (
	EnvDatabasePath = "DATABASE_PATH"
	EnvSerpAPIKey   = "SERPAPI_KEY"
	EnvSearchEngine = "SEARCH_ENGINE"
	EnvLogLevel     = "LOG_LEVEL"

	// EnvBackupPassword seals backups. It is read by the backup command only
	// and never stored in the config file.
	EnvBackupPassword = "BACKUP_PASSWORD"
)

const appDir = ".competitor-discovery"

// Config represents the application configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Serp     SerpConfig     `toml:"serp"`
	Analysis AnalysisConfig `toml:"analysis"`
	Export   ExportConfig   `toml:"export"`
	Log      logger.Config  `toml:"log"`
	API      APIConfig      `toml:"api"`
	Watch    WatchConfig    `toml:"watch"`
	Backup   BackupConfig   `toml:"backup"`
}

// DatabaseConfig contains run store settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`           // SQLite file
	MaxOpenConns int    `toml:"max_open_conns"` // Connection pool size
	BusyTimeout  string `toml:"busy_timeout"`   // e.g. "5s"
}

// SerpConfig selects where search results come from.
type SerpConfig struct {
	Provider    string `toml:"provider"`     // auto, serpapi, scrape or file
	APIKey      string `toml:"api_key"`      // SerpApi key
	Engine      string `toml:"engine"`       // google or bing
	ResultsFile string `toml:"results_file"` // Fixture file for the file provider
	Interval    string `toml:"interval"`     // Minimum gap between requests
}

// AnalysisConfig holds defaults for analysis requests.
type AnalysisConfig struct {
	Depth          int      `toml:"depth"`
	MinAppearances int      `toml:"min_appearances"`
	MaxResults     int      `toml:"max_results"` // 0 = unlimited
	Exclude        []string `toml:"exclude"`     // Root domains left out of rankings
}

// ExportConfig contains export defaults.
type ExportConfig struct {
	Dir    string `toml:"dir"`
	Format string `toml:"format"` // csv or json
	Pretty bool   `toml:"pretty"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Addr           string   `toml:"addr"`
	RequestTimeout string   `toml:"request_timeout"`
	CORSOrigins    []string `toml:"cors_origins"`
}

// WatchConfig contains keyword file watcher settings.
type WatchConfig struct {
	Debounce string `toml:"debounce"` // Quiet period after a change
	Interval string `toml:"interval"` // Periodic re-run, "0s" disables
}

// BackupConfig contains scheduled snapshot settings used by serve.
type BackupConfig struct {
	Dir      string `toml:"dir"`      // Empty = backups/ next to the database
	Interval string `toml:"interval"` // "0s" disables scheduled snapshots
	Keep     int    `toml:"keep"`     // Snapshots retained, 0 = all
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         defaultDataPath("competitors.db"),
			MaxOpenConns: 10,
			BusyTimeout:  "5s",
		},
		Serp: SerpConfig{
			Provider: serp.ProviderAuto,
			Engine:   "google",
			Interval: "2s",
		},
		Analysis: AnalysisConfig{
			Depth:          serp.MaxDepth,
			MinAppearances: 1,
			MaxResults:     50,
			Exclude:        append([]string(nil), domain.DefaultExcluded...),
		},
		Export: ExportConfig{
			Dir:    "exports",
			Format: "csv",
		},
		Log: *logger.DefaultConfig(),
		API: APIConfig{
			Addr:           "127.0.0.1:8080",
			RequestTimeout: "60s",
			CORSOrigins:    []string{"http://localhost:*"},
		},
		Watch: WatchConfig{
			Debounce: "2s",
			Interval: "0s",
		},
		Backup: BackupConfig{
			Interval: "0s",
			Keep:     7,
		},
	}
}

func defaultDataPath(name string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(homeDir, appDir, name)
}

// Path returns the path to the configuration file.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, appDir, "config.toml"), nil
}

// Load loads the configuration from the default path and applies environment
// overrides. Returns the default config if the file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration from path. Missing keys keep their
// defaults; environment overrides are applied last.
func LoadFrom(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	config.ApplyEnv(os.LookupEnv)
	return config, nil
}

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDatabasePath); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := lookup(EnvSerpAPIKey); ok && v != "" {
		c.Serp.APIKey = v
	}
	if v, ok := lookup(EnvSearchEngine); ok && v != "" {
		c.Serp.Engine = strings.ToLower(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the configuration to path. The API key is never written.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	out := *c
	out.Serp.APIKey = ""

	data, err := toml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("max open connections must be positive: %d", c.Database.MaxOpenConns)
	}

	durations := map[string]string{
		"database busy timeout": c.Database.BusyTimeout,
		"serp interval":         c.Serp.Interval,
		"api request timeout":   c.API.RequestTimeout,
		"watch debounce":        c.Watch.Debounce,
		"watch interval":        c.Watch.Interval,
		"backup interval":       c.Backup.Interval,
	}
	for name, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}

	switch c.Serp.Provider {
	case serp.ProviderAuto, serp.ProviderSerpAPI, serp.ProviderScrape, serp.ProviderFile:
	default:
		return fmt.Errorf("unknown serp provider %q", c.Serp.Provider)
	}
	switch c.Serp.Engine {
	case "google", "bing":
	default:
		return fmt.Errorf("unsupported search engine %q", c.Serp.Engine)
	}
	if c.Serp.Provider == serp.ProviderSerpAPI && c.Serp.APIKey == "" {
		return fmt.Errorf("serpapi provider requires an api key (set %s)", EnvSerpAPIKey)
	}
	if c.Serp.Provider == serp.ProviderFile && c.Serp.ResultsFile == "" {
		return fmt.Errorf("file provider requires a results file")
	}

	if c.Analysis.Depth < 1 || c.Analysis.Depth > serp.MaxDepth {
		return fmt.Errorf("analysis depth must be between 1 and %d: %d", serp.MaxDepth, c.Analysis.Depth)
	}
	if c.Analysis.MinAppearances < 1 {
		return fmt.Errorf("min appearances must be at least 1: %d", c.Analysis.MinAppearances)
	}
	if c.Analysis.MaxResults < 0 {
		return fmt.Errorf("max results cannot be negative: %d", c.Analysis.MaxResults)
	}

	if c.Backup.Keep < 0 {
		return fmt.Errorf("backup keep cannot be negative: %d", c.Backup.Keep)
	}

	switch c.Export.Format {
	case "csv", "json":
	default:
		return fmt.Errorf("unsupported export format %q", c.Export.Format)
	}

	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}

// SourceOptions maps the serp section onto serp.SourceOptions.
func (c *Config) SourceOptions() (serp.SourceOptions, error) {
	interval, err := time.ParseDuration(c.Serp.Interval)
	if err != nil {
		return serp.SourceOptions{}, fmt.Errorf("invalid serp interval %q: %w", c.Serp.Interval, err)
	}
	return serp.SourceOptions{
		Provider:    c.Serp.Provider,
		APIKey:      c.Serp.APIKey,
		Engine:      c.Serp.Engine,
		ResultsFile: c.Serp.ResultsFile,
		Interval:    interval,
	}, nil
}

// StorageConfig maps the database section onto storage.Config with
// migrations enabled.
func (c *Config) StorageConfig() (*storage.Config, error) {
	busy, err := c.GetBusyTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid database busy timeout %q: %w", c.Database.BusyTimeout, err)
	}
	cfg := storage.DefaultConfig(c.Database.Path)
	cfg.MaxOpenConns = c.Database.MaxOpenConns
	cfg.BusyTimeout = busy
	cfg.AutoMigrate = true
	return cfg, nil
}

// GetBusyTimeout returns the database busy timeout as a duration.
func (c *Config) GetBusyTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Database.BusyTimeout)
}

// GetRequestTimeout returns the API request timeout as a duration.
func (c *Config) GetRequestTimeout() (time.Duration, error) {
	return time.ParseDuration(c.API.RequestTimeout)
}

// GetWatchDebounce returns the watcher quiet period as a duration.
func (c *Config) GetWatchDebounce() (time.Duration, error) {
	return time.ParseDuration(c.Watch.Debounce)
}

// GetWatchInterval returns the periodic re-run interval as a duration.
func (c *Config) GetWatchInterval() (time.Duration, error) {
	return time.ParseDuration(c.Watch.Interval)
}

// SchedulerConfig maps the backup section onto storage.SchedulerConfig. It
// returns nil when scheduled snapshots are disabled.
func (c *Config) SchedulerConfig() (*storage.SchedulerConfig, error) {
	interval, err := time.ParseDuration(c.Backup.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid backup interval %q: %w", c.Backup.Interval, err)
	}
	if interval <= 0 {
		return nil, nil
	}
	return &storage.SchedulerConfig{
		Interval: interval,
		Dir:      c.Backup.Dir,
		Keep:     c.Backup.Keep,
	}, nil
}
