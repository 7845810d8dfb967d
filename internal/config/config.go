// Package config resolves lcagraph settings from an optional YAML file, a
// .env file and the environment, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/lcagraph/internal/publish"
)

// Environment variables.
const (
	EnvCache           = "LCAGRAPH_CACHE"
	EnvLegacyCache     = "BW_SIMPLE_CACHE"
	EnvDatabase        = "LCAGRAPH_DB"
	EnvPostgresDSN     = "LCAGRAPH_PG_DSN"
	EnvBundleCacheSize = "LCAGRAPH_BUNDLE_CACHE_SIZE"
	EnvS3Endpoint      = "LCAGRAPH_S3_ENDPOINT"
	EnvS3Region        = "LCAGRAPH_S3_REGION"
	EnvS3AccessKey     = "LCAGRAPH_S3_ACCESS_KEY"
	EnvS3SecretKey     = "LCAGRAPH_S3_SECRET_KEY"
	EnvS3Bucket        = "LCAGRAPH_S3_BUCKET"
	EnvS3UseSSL        = "LCAGRAPH_S3_USE_SSL"
)

// Defaults.
const (
	DefaultDatabaseFile    = "graph.db"
	DefaultBundleCacheSize = 16
)

// Config holds every setting the CLI needs.
type Config struct {
	// Cache is the directory bundles are written to.
	Cache string `yaml:"cache"`

	// Database is the SQLite graph store path. Ignored when PostgresDSN is
	// set; empty means DatabasePath's default.
	Database string `yaml:"database"`

	// PostgresDSN selects the Postgres graph store.
	PostgresDSN string `yaml:"postgres_dsn"`

	// BundleCacheSize is how many loaded bundles stay in memory.
	BundleCacheSize int `yaml:"bundle_cache_size"`

	S3 S3Config `yaml:"s3"`
}

// S3Config is the bundle publishing target.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Publisher converts to the publish package's config.
func (c S3Config) Publisher() publish.S3Config {
	return publish.S3Config{
		Endpoint:  c.Endpoint,
		Region:    c.Region,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Bucket:    c.Bucket,
		UseSSL:    c.UseSSL,
	}
}

// Load reads .env from the working directory (if present) and resolves the
// configuration. An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	return Resolve(path, os.Getenv)
}

// Resolve builds a Config from an optional YAML file and getenv. Environment
// values win over the file; unset fields get defaults.
func Resolve(path string, getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	if v := firstNonEmpty(env(EnvCache), env(EnvLegacyCache)); v != "" {
		c.Cache = v
	}
	if v := env(EnvDatabase); v != "" {
		c.Database = v
	}
	if v := env(EnvPostgresDSN); v != "" {
		c.PostgresDSN = v
	}
	if v := env(EnvBundleCacheSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBundleCacheSize, err)
		}
		c.BundleCacheSize = n
	}

	if v := env(EnvS3Endpoint); v != "" {
		c.S3.Endpoint = v
	}
	if v := env(EnvS3Region); v != "" {
		c.S3.Region = v
	}
	if v := env(EnvS3AccessKey); v != "" {
		c.S3.AccessKey = v
	}
	if v := env(EnvS3SecretKey); v != "" {
		c.S3.SecretKey = v
	}
	if v := env(EnvS3Bucket); v != "" {
		c.S3.Bucket = v
	}
	if v := env(EnvS3UseSSL); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvS3UseSSL, err)
		}
		c.S3.UseSSL = b
	}
	return nil
}

func (c *Config) applyDefaults() error {
	if c.Cache == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("no cache directory configured and no user cache dir: %w", err)
		}
		c.Cache = filepath.Join(dir, "lcagraph")
	}
	if c.BundleCacheSize == 0 {
		c.BundleCacheSize = DefaultBundleCacheSize
	}
	return nil
}

// Validate checks that the cache directory exists.
func (c *Config) Validate() error {
	info, err := os.Stat(c.Cache)
	if os.IsNotExist(err) {
		return fmt.Errorf("cache directory %s does not exist (run lcagraph init)", c.Cache)
	}
	if err != nil {
		return fmt.Errorf("cache directory %s: %w", c.Cache, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cache path %s is not a directory", c.Cache)
	}
	if c.BundleCacheSize < 1 {
		return fmt.Errorf("bundle_cache_size must be positive, got %d", c.BundleCacheSize)
	}
	return nil
}

// DatabasePath is the SQLite store path: Database when set, otherwise
// graph.db inside the cache directory.
func (c *Config) DatabasePath() string {
	if c.Database != "" {
		return c.Database
	}
	return filepath.Join(c.Cache, DefaultDatabaseFile)
}

// UsePostgres reports whether the Postgres store is configured.
func (c *Config) UsePostgres() bool {
	return c.PostgresDSN != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
