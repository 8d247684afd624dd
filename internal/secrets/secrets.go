// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file is one secret: the filename is the key and the trimmed file
// contents are the value. An environment variable named after the key
// (DATASET_ENGINE_ prefix, upper case, dashes as underscores) overrides
// the file.
//
// Known keys: github-token.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// GitHubToken authenticates archive downloads from GitHub.
const GitHubToken = "github-token"

// EnvPrefix is prepended to environment override names.
const EnvPrefix = "DATASET_ENGINE_"

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads all files in dir and returns their trimmed contents by name.
// A missing directory is not an error; Load returns an empty set.
// Unreadable files are logged and skipped.
func Load(dir string) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Get returns the value for key, preferring its environment override.
func (s Secrets) Get(key string) string {
	if v := strings.TrimSpace(os.Getenv(EnvName(key))); v != "" {
		return v
	}
	return s[key]
}

// Keys returns the names of the loaded secrets.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}
