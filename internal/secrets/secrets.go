// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads API keys from a directory holding one plain-text
// file per key. The filename names the key and the trimmed contents are
// its value.
package secrets

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/bioanalyzer/internal/logging"
)

// Key file names read by the CLI.
const (
	// GeminiAPIKey authenticates the default model backend.
	GeminiAPIKey = "gemini-api-key"

	// NCBIAPIKey raises the E-utilities rate limit.
	NCBIAPIKey = "ncbi-api-key"

	// AnthropicAPIKey is used when ai.provider is claude.
	AnthropicAPIKey = "anthropic-api-key"

	// OpenAIAPIKey is used when ai.provider is openai.
	OpenAIAPIKey = "openai-api-key"
)

// DefaultDir is where the CLI looks for key files.
const DefaultDir = ".secrets/"

// Secrets maps key names to values.
type Secrets map[string]string

// Known reports whether name is one of the key files the CLI consumes.
func Known(name string) bool {
	switch name {
	case GeminiAPIKey, NCBIAPIKey, AnthropicAPIKey, OpenAIAPIKey:
		return true
	}
	return false
}

// Load collects every key file in dir. A missing dir yields no secrets.
// Subdirectories, dotfiles, and files that are empty after trimming are
// ignored. A file that cannot be read is logged and skipped. Files with
// unrecognized names are still loaded so callers can look them up.
func Load(dir string, log *zap.Logger) (Secrets, error) {
	log = logging.OrNop(log).Named("secrets")

	entries, err := os.ReadDir(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Secrets{}, nil
	case err != nil:
		return nil, eris.Wrapf(err, "reading secrets directory %s", dir)
	}

	s := make(Secrets, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		value, err := readKey(filepath.Join(dir, name))
		if err != nil {
			log.Warn("could not read secret", zap.String("key", name), zap.Error(err))
			continue
		}
		if value == "" {
			continue
		}
		if !Known(name) {
			log.Debug("loaded unrecognized key file", zap.String("key", name))
		}
		s[name] = value
	}
	return s, nil
}

func readKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Get returns fallback when it is non-empty, otherwise the secret stored
// under key. Explicit configuration always wins over key files.
func (s Secrets) Get(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return s[key]
}

// Keys returns the loaded key names in sorted order.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
