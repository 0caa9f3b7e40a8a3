// Package config provides configuration loading and structs for the Kagami server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Catalog sources.
const (
	SourceFile   = "file"
	SourceSQLite = "sqlite"
	SourceS3     = "s3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Labels      LabelsConfig      `yaml:"labels"`
	Catalogs    CatalogsConfig    `yaml:"catalogs"`
	Search      SearchConfig      `yaml:"search"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Encoder     EncoderConfig     `yaml:"encoder"`
	Watch       WatchConfig       `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string  `yaml:"host"`
	Port      int     `yaml:"port"`
	RateLimit float64 `yaml:"rate_limit" split_words:"true"` // requests per second, 0 disables
	RateBurst int     `yaml:"rate_burst" split_words:"true"`
}

// LabelsConfig points at the category_id<TAB>label file.
type LabelsConfig struct {
	Path string `yaml:"path"`
}

// CatalogsConfig holds the image catalog and the optional text-image catalog.
type CatalogsConfig struct {
	Image CatalogConfig `yaml:"image"`
	Text  CatalogConfig `yaml:"text"`
}

// CatalogConfig describes where a catalog is loaded from and how its assets are laid out.
// A catalog with an empty Path is disabled.
type CatalogConfig struct {
	Name   string       `yaml:"name"`   // catalog name; also the row key in a sqlite source
	Source string       `yaml:"source"` // file | sqlite | s3
	Path   string       `yaml:"path"`   // file path, database path, or object key
	Metric string       `yaml:"metric"` // metric of the neighbors query: l2 | cosine
	Assets AssetsConfig `yaml:"assets"`
}

// Enabled reports whether the catalog is configured.
func (c *CatalogConfig) Enabled() bool { return c.Path != "" }

// AssetsConfig is the on-disk image layout:
// <base_path>/<prefix...>/<category_id>/<suffix...>/<category_id>_<ordinal><extension>
type AssetsConfig struct {
	BasePath  string   `yaml:"base_path" split_words:"true"`
	Prefix    []string `yaml:"prefix"`
	Suffix    []string `yaml:"suffix"`
	Extension string   `yaml:"extension"`
}

// SearchConfig holds query limits and scan settings.
type SearchConfig struct {
	DefaultLimit     int  `yaml:"default_limit" split_words:"true"`
	MaxLimit         int  `yaml:"max_limit" split_words:"true"`
	CategoryLimit    int  `yaml:"category_limit" split_words:"true"`
	TextLimit        int  `yaml:"text_limit" split_words:"true"`
	Workers          int  `yaml:"workers"`
	StrictDimensions bool `yaml:"strict_dimensions" split_words:"true"`
}

// ObjectStoreConfig holds S3/MinIO settings used by the s3 catalog source.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key" split_words:"true"`
	SecretKey string `yaml:"secret_key" split_words:"true"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl" split_words:"true"`
}

// EncoderConfig holds the text encoder client settings. With an empty URL text queries
// need a pre-encoded vector, unless Mock is set.
type EncoderConfig struct {
	URL        string        `yaml:"url"`
	Dimensions int           `yaml:"dimensions"`
	Timeout    time.Duration `yaml:"timeout"`
	CacheSize  int           `yaml:"cache_size" split_words:"true"`
	Mock       bool          `yaml:"mock"`
}

// WatchConfig controls reloading catalogs and labels when their files change.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, applies defaults, environment
// overrides (KAGAMI_*), and expands paths.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	ExpandPaths(&cfg, filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides cfg from KAGAMI_* environment variables, one prefix per section
// (e.g. KAGAMI_SERVER_PORT, KAGAMI_CATALOGS_IMAGE_PATH).
func ApplyEnv(cfg *Config) error {
	groups := []struct {
		prefix string
		target any
	}{
		{"KAGAMI", &debugOnly{Debug: &cfg.Debug}},
		{"KAGAMI_SERVER", &cfg.Server},
		{"KAGAMI_LABELS", &cfg.Labels},
		{"KAGAMI_CATALOGS_IMAGE", &cfg.Catalogs.Image},
		{"KAGAMI_CATALOGS_TEXT", &cfg.Catalogs.Text},
		{"KAGAMI_SEARCH", &cfg.Search},
		{"KAGAMI_OBJECT_STORE", &cfg.ObjectStore},
		{"KAGAMI_ENCODER", &cfg.Encoder},
		{"KAGAMI_WATCH", &cfg.Watch},
	}
	for _, g := range groups {
		if err := envconfig.Process(g.prefix, g.target); err != nil {
			return fmt.Errorf("failed to apply %s environment: %w", g.prefix, err)
		}
	}
	return nil
}

type debugOnly struct {
	Debug *bool
}

// ExpandPaths makes local paths absolute. Object keys of s3 catalogs are left alone.
func ExpandPaths(cfg *Config, configDir string) {
	cfg.Labels.Path = expandPath(cfg.Labels.Path, configDir)
	for _, c := range []*CatalogConfig{&cfg.Catalogs.Image, &cfg.Catalogs.Text} {
		if c.Source != SourceS3 {
			c.Path = expandPath(c.Path, configDir)
		}
		c.Assets.BasePath = expandPath(c.Assets.BasePath, configDir)
	}
}

// Validate reports configuration errors that defaults cannot fix.
func (c *Config) Validate() error {
	for _, cat := range c.Catalogs.All() {
		switch cat.Source {
		case SourceFile, SourceSQLite:
		case SourceS3:
			if c.ObjectStore.Endpoint == "" || c.ObjectStore.Bucket == "" {
				return fmt.Errorf("catalog %s: s3 source needs object_store.endpoint and object_store.bucket", cat.Name)
			}
		default:
			return fmt.Errorf("catalog %s: unknown source %q (supported: file, sqlite, s3)", cat.Name, cat.Source)
		}
	}
	if c.Catalogs.Image.Enabled() && c.Catalogs.Text.Enabled() && c.Catalogs.Image.Name == c.Catalogs.Text.Name {
		return fmt.Errorf("catalogs.image and catalogs.text share the name %q", c.Catalogs.Image.Name)
	}
	return nil
}

// All returns the enabled catalogs, image first.
func (c *CatalogsConfig) All() []CatalogConfig {
	var out []CatalogConfig
	for _, cat := range []CatalogConfig{c.Image, c.Text} {
		if cat.Enabled() {
			out = append(out, cat)
		}
	}
	return out
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
