// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

// Package xdg provides XDG Base Directory paths for tilld.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "tilld"

// ConfigDir returns the XDG config directory for tilld.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DataDir returns the XDG data directory for tilld.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigPath returns the path of the first config file that exists
// among the well-known locations, or empty string when none does. Searched
// in order: $XDG_CONFIG_HOME/tilld/tilld.yaml, then /etc/tilld/tilld.yaml.
func DefaultConfigPath() string {
	candidates := []string{
		filepath.Join(ConfigDir(), "tilld.yaml"),
		filepath.Join("/etc", appName, "tilld.yaml"),
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}
