// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/paths.go
// Summary: Path helpers for texeledit configuration and data.

package config

import (
	"os"
	"path/filepath"
)

func configRoot() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "texeledit"), nil
}

// DefaultPath returns the path of the user's config file.
func DefaultPath() (string, error) {
	root, err := configRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, configFileName), nil
}

// IndexPath returns the line store database path. A non-empty configured
// path wins; otherwise the database lives in the user cache directory.
func IndexPath(cfg Config) (string, error) {
	if p := cfg.GetString("index", "path", ""); p != "" {
		return p, nil
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "texeledit", "lines.db"), nil
}
