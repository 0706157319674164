// Package config provides configuration loading, persistence and the settings
// snapshot consumed by the search session.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/hondana/internal/models"
	"gopkg.in/yaml.v3"
)

// Transport names accepted in backend.transport.
const (
	TransportHTTP          = "http"
	TransportElasticsearch = "elasticsearch"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Backend BackendConfig `yaml:"backend"`
	Display DisplayConfig `yaml:"display"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Indexer IndexerConfig `yaml:"indexer"`
}

// BackendConfig locates the search backend. Auth is nil for unauthenticated access.
type BackendConfig struct {
	URL       string              `yaml:"url"`
	Index     string              `yaml:"index"`
	Transport string              `yaml:"transport"`
	Timeout   time.Duration       `yaml:"timeout"`
	RateLimit float64             `yaml:"rate_limit"`
	Auth      *models.Credentials `yaml:"auth,omitempty"`
}

// DisplayConfig holds result paging settings.
type DisplayConfig struct {
	PageSize      int  `yaml:"page_size"`
	HighlightSize *int `yaml:"highlight_size"`
}

// HighlightCount returns the number of highlight fragments per hit; defaults to
// DefaultHighlightSize when unset. Zero is a valid explicit value.
func (d *DisplayConfig) HighlightCount() int {
	if d.HighlightSize != nil {
		return *d.HighlightSize
	}
	return DefaultHighlightSize
}

// ServerConfig holds local HTTP API settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the search history database settings.
type StorageConfig struct {
	HistoryPath  string `yaml:"history_path"`
	HistoryLimit int    `yaml:"history_limit"`
}

// IndexerConfig holds settings of the index command.
type IndexerConfig struct {
	Directory       string        `yaml:"directory"`
	Extensions      []string      `yaml:"extensions"`
	Recursive       *bool         `yaml:"recursive"`
	Parallel        int           `yaml:"parallel"`
	StartInterval   time.Duration `yaml:"start_interval"`
	ModifiedAfter   string        `yaml:"modified_after"`
	ContentAnalyzer string        `yaml:"content_analyzer"`
}

// RecursiveOrDefault returns whether to walk subdirectories; defaults to false when unset.
func (i *IndexerConfig) RecursiveOrDefault() bool {
	if i.Recursive != nil {
		return *i.Recursive
	}
	return false
}

// Settings returns the snapshot the search session reads on each submission.
func (c *Config) Settings() models.Settings {
	ep := models.Endpoint{BaseURL: c.Backend.URL, Index: c.Backend.Index}
	if c.Backend.Auth != nil {
		creds := *c.Backend.Auth
		ep.Credentials = &creds
	}
	return models.Settings{
		Endpoint:               ep,
		PageSize:               c.Display.PageSize,
		HighlightFragmentCount: c.Display.HighlightCount(),
	}
}

// Validate reports settings the session cannot search with.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.URL == "" {
		errs = append(errs, errors.New("backend.url is required"))
	} else if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.url %q is not an absolute URL", c.Backend.URL))
	}
	if c.Backend.Index == "" {
		errs = append(errs, errors.New("backend.index is required"))
	}
	switch c.Backend.Transport {
	case TransportHTTP, TransportElasticsearch:
	default:
		errs = append(errs, fmt.Errorf("backend.transport must be %q or %q, got %q", TransportHTTP, TransportElasticsearch, c.Backend.Transport))
	}
	if c.Display.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("display.page_size must be positive, got %d", c.Display.PageSize))
	}
	if c.Display.HighlightCount() < 0 {
		errs = append(errs, fmt.Errorf("display.highlight_size must not be negative, got %d", c.Display.HighlightCount()))
	}
	return errors.Join(errs...)
}

// Set assigns one user-editable setting by its dotted key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "backend.url":
		c.Backend.URL = value
	case "backend.index":
		c.Backend.Index = value
	case "backend.transport":
		c.Backend.Transport = value
	case "backend.username":
		if c.Backend.Auth == nil {
			c.Backend.Auth = &models.Credentials{}
		}
		c.Backend.Auth.Username = value
	case "backend.password":
		if c.Backend.Auth == nil {
			c.Backend.Auth = &models.Credentials{}
		}
		c.Backend.Auth.Password = value
	case "backend.auth":
		if value != "off" {
			return fmt.Errorf("backend.auth only accepts \"off\"; set backend.username and backend.password to enable it")
		}
		c.Backend.Auth = nil
	case "display.page_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("display.page_size: %w", err)
		}
		c.Display.PageSize = n
	case "display.highlight_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("display.highlight_size: %w", err)
		}
		c.Display.HighlightSize = &n
	case "debug":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("debug: %w", err)
		}
		c.Debug = b
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	if c.Backend.Auth != nil {
		creds := *c.Backend.Auth
		out.Backend.Auth = &creds
	}
	if c.Display.HighlightSize != nil {
		n := *c.Display.HighlightSize
		out.Display.HighlightSize = &n
	}
	if c.Indexer.Recursive != nil {
		r := *c.Indexer.Recursive
		out.Indexer.Recursive = &r
	}
	out.Indexer.Extensions = append([]string(nil), c.Indexer.Extensions...)
	return &out
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "hondana", "config.yaml")
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
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
	expandPaths(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg = &Config{}
	ApplyDefaults(cfg)
	expandPaths(cfg, filepath.Dir(path))
	return cfg, nil
}

// Save writes the config to path, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func expandPaths(cfg *Config, configDir string) {
	cfg.Storage.HistoryPath = expandPath(cfg.Storage.HistoryPath, configDir)
	if cfg.Indexer.Directory != "" {
		cfg.Indexer.Directory = expandPath(cfg.Indexer.Directory, configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
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
