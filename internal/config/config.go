// Package config loads and validates plasticc-ingest settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/johndauphine/plasticc-ingest/internal/version"
)

const (
	// DataDirEnvVar overrides data_dir from the config file.
	DataDirEnvVar = "PLASTICC_DATA_DIR"

	// DefaultManifestURL is the Zenodo record holding the unblinded PLAsTiCC release.
	DefaultManifestURL = "https://zenodo.org/api/records/2539456"

	// DefaultChunkSize is the number of observation rows converted per batch.
	DefaultChunkSize = 1_000_000

	// DefaultTestShards is the number of test light curve files in the release.
	DefaultTestShards = 11

	rawDirName   = "plasticc_raw"
	outputPrefix = "plasticc_"
)

// Store types.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds all settings for an ingest run.
type Config struct {
	DataDir     string        `yaml:"data_dir"`
	ManifestURL string        `yaml:"manifest_url"`
	ChunkSize   int           `yaml:"chunk_size"`
	TestShards  int           `yaml:"test_shards"`
	Progress    *bool         `yaml:"progress"`
	HTTP        HTTPConfig    `yaml:"http"`
	Store       StoreConfig   `yaml:"store"`
	Logging     LoggingConfig `yaml:"logging"`
}

// HTTPConfig configures the download client.
type HTTPConfig struct {
	// Timeout bounds each request including the body transfer. 0 disables it,
	// which is what multi-gigabyte downloads usually want.
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// StoreConfig selects the output backend.
type StoreConfig struct {
	Type string `yaml:"type"` // "sqlite" (default) or "postgres"
	DSN  string `yaml:"dsn"`  // required for postgres
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with defaults applied and the data directory
// resolved from the environment or the user's home directory.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file. An empty path yields the defaults.
// PLASTICC_DATA_DIR takes precedence over data_dir in the file.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if env := os.Getenv(DataDirEnvVar); env != "" {
		c.DataDir = env
	}
	if c.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DataDir = filepath.Join(home, "plasticc")
		} else {
			c.DataDir = "plasticc"
		}
	}
	c.DataDir = expandHome(c.DataDir)

	if c.ManifestURL == "" {
		c.ManifestURL = DefaultManifestURL
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.TestShards == 0 {
		c.TestShards = DefaultTestShards
	}
	if c.Progress == nil {
		on := true
		c.Progress = &on
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = version.Name + "/" + version.Version
	}
	if c.Store.Type == "" {
		c.Store.Type = StoreSQLite
	}
	c.Store.Type = strings.ToLower(c.Store.Type)
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	c.Logging.Format = strings.ToLower(c.Logging.Format)
}

func (c *Config) validate() error {
	var errs []error

	if c.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize))
	}
	if c.TestShards < 0 {
		errs = append(errs, fmt.Errorf("test_shards must be positive, got %d", c.TestShards))
	}
	if c.HTTP.Timeout < 0 {
		errs = append(errs, fmt.Errorf("http.timeout must not be negative"))
	}
	if !strings.HasPrefix(c.ManifestURL, "http://") && !strings.HasPrefix(c.ManifestURL, "https://") {
		errs = append(errs, fmt.Errorf("manifest_url must be an http(s) URL, got %q", c.ManifestURL))
	}

	switch c.Store.Type {
	case StoreSQLite:
	case StorePostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required when store.type is postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.type %q (want sqlite or postgres)", c.Store.Type))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q (want text or json)", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// ShowProgress reports whether progress bars are enabled.
func (c *Config) ShowProgress() bool {
	return c.Progress == nil || *c.Progress
}

// SetDataDir replaces the data directory, expanding a leading ~ the same
// way data_dir in the config file is expanded.
func (c *Config) SetDataDir(dir string) {
	c.DataDir = expandHome(dir)
}

// RawDir is where downloaded archive files are kept.
func (c *Config) RawDir() string {
	return filepath.Join(c.DataDir, rawDirName)
}

// RawPath returns the local path of a downloaded archive file.
func (c *Config) RawPath(name string) string {
	return filepath.Join(c.RawDir(), name)
}

// OutputName is the container name for a split ("train" or "test"):
// a schema name for postgres, and the file stem for sqlite.
func (c *Config) OutputName(split string) string {
	return outputPrefix + split
}

// OutputPath is the SQLite container file for a split.
func (c *Config) OutputPath(split string) string {
	return filepath.Join(c.DataDir, c.OutputName(split)+".db")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
