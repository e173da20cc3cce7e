// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   Secrets
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, GeminiAPIKey, "  AIza_abc123  \n")
				writeFile(t, dir, NCBIAPIKey, "ncbi_xyz789")
				writeFile(t, dir, OpenAIAPIKey, "sk-proj-1\n")
				return dir
			},
			want: Secrets{
				GeminiAPIKey: "AIza_abc123",
				NCBIAPIKey:   "ncbi_xyz789",
				OpenAIAPIKey: "sk-proj-1",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: Secrets{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, AnthropicAPIKey, "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: Secrets{
				AnthropicAPIKey: "valid-key",
			},
		},
		{
			name: "skips dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, NCBIAPIKey, "pk_real")
				return dir
			},
			want: Secrets{
				NCBIAPIKey: "pk_real",
			},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, AnthropicAPIKey, "ak_123")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: Secrets{
				AnthropicAPIKey: "ak_123",
			},
		},
		{
			name: "returns empty map for empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			want: Secrets{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir, nil)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	// Create a file then remove read permission.
	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir, nil)
	require.NoError(t, err)
	// The good file should still be returned; the bad file is skipped with a warning.
	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
}

func TestKnown(t *testing.T) {
	for _, k := range []string{GeminiAPIKey, NCBIAPIKey, AnthropicAPIKey, OpenAIAPIKey} {
		assert.True(t, Known(k), k)
	}
	assert.False(t, Known("good-key"))
	assert.False(t, Known(""))
}

func TestLoadKeepsUnrecognizedKeys(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pubmed-email", "curator@example.org\n")
	writeFile(t, dir, GeminiAPIKey, "AIza_1")

	got, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, Secrets{"pubmed-email": "curator@example.org", GeminiAPIKey: "AIza_1"}, got)
}

func TestGet(t *testing.T) {
	s := Secrets{GeminiAPIKey: "from-file", NCBIAPIKey: "ncbi"}

	assert.Equal(t, "from-env", s.Get(GeminiAPIKey, "from-env"), "explicit value wins")
	assert.Equal(t, "from-file", s.Get(GeminiAPIKey, ""))
	assert.Equal(t, "", s.Get(OpenAIAPIKey, ""))
	assert.Equal(t, []string{GeminiAPIKey, NCBIAPIKey}, s.Keys())
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
