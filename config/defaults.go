// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/defaults.go
// Summary: Default values for the texeledit configuration file.
// The embedded JSON in defaults/ is written on first load; applyDefaults
// fills keys added after a user's file was created.

package config

import (
	"encoding/json"
	"sync"

	"github.com/framegrace/texeledit/defaults"
)

var (
	embeddedOnce sync.Once
	embedded     Config
	embeddedErr  error
)

// embeddedDefaults returns the parsed embedded defaults, cached after the
// first call.
func embeddedDefaults() (Config, error) {
	embeddedOnce.Do(func() {
		data, err := defaults.EditorConfig()
		if err != nil {
			embeddedErr = err
			return
		}
		var cfg Config
		if err := json.Unmarshal(data, &cfg); err != nil {
			embeddedErr = err
			return
		}
		embedded = cfg
	})
	return embedded, embeddedErr
}

// defaultConfig returns a copy of the embedded defaults.
func defaultConfig() Config {
	cfg, err := embeddedDefaults()
	if err != nil || cfg == nil {
		return nil
	}
	return Clone(cfg)
}

func applyDefaults(cfg Config) {
	if cfg == nil {
		return
	}
	cfg.RegisterDefaults("editor", Section{
		"chunk_size":        50,
		"strict_invariants": false,
	})
	cfg.RegisterDefaults("viewport", Section{
		"overscan":           0.5,
		"scroll_debounce_ms": 50,
		"row_height":         1,
		"wrap":               false,
		"tab_width":          4,
	})
	cfg.RegisterDefaults("paint", Section{
		"initial_credit":  250,
		"min_credit":      150,
		"max_credit":      1500,
		"slice_ms":        50,
		"retry_ms":        50,
		"max_line_length": 1000,
	})
	cfg.RegisterDefaults("search", Section{
		"batch_size":      500,
		"case_sensitive":  false,
		"use_index":       true,
		"index_min_lines": 5000,
		"initial_credit":  2000,
		"min_credit":      500,
		"max_credit":      20000,
		"slice_ms":        50,
	})
	cfg.RegisterDefaults("highlight", Section{
		"enabled":       true,
		"style":         "catppuccin-mocha",
		"context_lines": 50,
	})
	cfg.RegisterDefaults("index", Section{
		"path":              "",
		"snapshot_delay_ms": 1000,
	})
}
