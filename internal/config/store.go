package config

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/hondana/internal/models"
)

// Store holds the current configuration and the file it is persisted to.
// Readers always see a complete config; writers replace it wholesale.
type Store struct {
	path string
	cur  atomic.Pointer[Config]
	mu   sync.Mutex
}

// NewStore returns a store serving cfg, persisted at path.
func NewStore(path string, cfg *Config) *Store {
	s := &Store{path: path}
	s.cur.Store(cfg)
	return s
}

// Path returns the config file path.
func (s *Store) Path() string {
	return s.path
}

// Config returns the current config. Callers must not modify it; use Update.
func (s *Store) Config() *Config {
	return s.cur.Load()
}

// Settings returns a snapshot of the current search settings.
func (s *Store) Settings() models.Settings {
	return s.cur.Load().Settings()
}

// Reload re-reads the config file. On failure the current config is kept.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	s.cur.Store(cfg)
	return nil
}

// Update applies fn to a copy of the current config, validates and saves the
// result, then makes it current.
func (s *Store) Update(fn func(*Config) error) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur.Load().Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := Save(s.path, next); err != nil {
		return nil, err
	}
	s.cur.Store(next)
	return next, nil
}
