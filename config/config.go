// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/config.go
// Summary: Configuration store for texeledit.
//
// A Store owns one JSON config file. Loading fills missing keys from the
// embedded defaults and writes the file on first use, so users always have
// a complete file to edit.

package config

import (
	"encoding/json"
	"log"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

const configFileName = "texeledit.json"

// Config stores configuration sections as JSON-compatible data.
type Config map[string]interface{}

// Section stores key/value pairs for a configuration section.
type Section map[string]interface{}

// Store holds the loaded configuration of one file.
type Store struct {
	mu      sync.RWMutex
	path    string
	cfg     Config
	loadErr error
}

// NewStore creates a store for the config file at path. Nothing is read
// until Load is called.
func NewStore(path string) *Store {
	cfg := make(Config)
	applyDefaults(cfg)
	return &Store{path: path, cfg: cfg}
}

// Open resolves the default config path and loads it. A load error is
// logged and reported, but the returned store is always usable.
func Open() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		log.Printf("Config: Failed to resolve config path: %v", err)
		return NewStore(""), err
	}
	s := NewStore(path)
	return s, s.Load()
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Err returns the most recent load error.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// Config returns the current configuration. Callers must not mutate it;
// use Set to replace it.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the in-memory configuration with a copy of cfg.
func (s *Store) Set(cfg Config) {
	if cfg == nil {
		cfg = make(Config)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = Clone(cfg)
}

// Load reads the config file, filling missing keys with defaults.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = s.loadLocked()
	return s.loadErr
}

// Save persists the current configuration.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeConfig(s.path, s.cfg)
}

func (s *Store) loadLocked() error {
	if s.path == "" {
		return nil
	}

	cfg, exists, readErr := readConfig(s.path)
	if readErr != nil {
		log.Printf("Config: Failed to read config %s: %v", s.path, readErr)
		cfg = make(Config)
	}

	if !exists || len(cfg) == 0 {
		if def := defaultConfig(); def != nil {
			cfg = def
		} else {
			cfg = make(Config)
		}
		applyDefaults(cfg)
		if err := writeConfig(s.path, cfg); err != nil {
			log.Printf("Config: Failed to write default config: %v", err)
			if readErr == nil {
				readErr = err
			}
		}
	} else {
		applyDefaults(cfg)
	}

	s.cfg = cfg
	if readErr == nil && exists {
		log.Printf("Config: Loaded config from %s", s.path)
	}
	return readErr
}

// Clone returns a copy of the config and its sections.
func Clone(cfg Config) Config {
	if cfg == nil {
		return nil
	}
	clone := make(Config, len(cfg))
	for name, section := range cfg {
		switch v := section.(type) {
		case map[string]interface{}:
			clone[name] = Section(maps.Clone(v))
		case Section:
			clone[name] = maps.Clone(v)
		default:
			clone[name] = v
		}
	}
	return clone
}

func readConfig(path string) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

func writeConfig(path string, cfg Config) error {
	if path == "" {
		return nil
	}
	if cfg == nil {
		cfg = make(Config)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
