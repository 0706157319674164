package config

import "time"

// Defaults for settings the user has not configured.
const (
	DefaultBackendURL    = "http://localhost:9200"
	DefaultIndex         = "bookshelf_search"
	DefaultPageSize      = 10
	DefaultHighlightSize = 100
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = DefaultBackendURL
	}
	if cfg.Backend.Index == "" {
		cfg.Backend.Index = DefaultIndex
	}
	if cfg.Backend.Transport == "" {
		cfg.Backend.Transport = TransportHTTP
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Display.PageSize == 0 {
		cfg.Display.PageSize = DefaultPageSize
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8280
	}
	if cfg.Storage.HistoryPath == "" {
		cfg.Storage.HistoryPath = ".local/share/hondana/history.db"
	}
	if cfg.Storage.HistoryLimit == 0 {
		cfg.Storage.HistoryLimit = 200
	}
	if cfg.Indexer.Extensions == nil {
		cfg.Indexer.Extensions = []string{".pdf"}
	}
	if cfg.Indexer.Parallel == 0 {
		cfg.Indexer.Parallel = 2
	}
	if cfg.Indexer.StartInterval == 0 {
		cfg.Indexer.StartInterval = 5 * time.Second
	}
	if cfg.Indexer.ContentAnalyzer == "" {
		cfg.Indexer.ContentAnalyzer = "cjk"
	}
}
