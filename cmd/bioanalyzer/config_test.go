// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bioanalyzer/internal/secrets"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	bindEnv(v)
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(newViper(t), nil)
	require.NoError(t, err)

	want := types.DefaultConfig()
	assert.Equal(t, want.NCBI, cfg.NCBI)
	assert.Equal(t, want.Cache, cfg.Cache)
	assert.Equal(t, want.Analysis, cfg.Analysis)
	assert.Equal(t, "", cfg.AI.APIKey)
}

func TestLoadConfigLegacyEnv(t *testing.T) {
	t.Setenv("NCBI_API_KEY", "ncbi-legacy")
	t.Setenv("GEMINI_API_KEY", "gem-legacy")
	t.Setenv("EMAIL", "curator@example.org")
	t.Setenv("USE_FULLTEXT", "true")
	t.Setenv("API_TIMEOUT", "12")
	t.Setenv("ANALYSIS_TIMEOUT", "90")
	t.Setenv("GEMINI_TIMEOUT", "15")
	t.Setenv("CACHE_VALIDITY_HOURS", "48")
	t.Setenv("NCBI_RATE_LIMIT_DELAY", "0.5")
	t.Setenv("MAX_CONCURRENT_REQUESTS", "7")

	cfg, err := loadConfig(newViper(t), nil)
	require.NoError(t, err)

	assert.Equal(t, "ncbi-legacy", cfg.NCBI.APIKey)
	assert.Equal(t, "gem-legacy", cfg.AI.APIKey)
	assert.Equal(t, "curator@example.org", cfg.NCBI.Email)
	assert.True(t, cfg.NCBI.UseFullText)
	assert.Equal(t, 12*time.Second, cfg.NCBI.Timeout)
	assert.Equal(t, 90*time.Second, cfg.Analysis.Timeout)
	assert.Equal(t, 15*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 48*time.Hour, cfg.Cache.Validity)
	assert.Equal(t, 500*time.Millisecond, cfg.NCBI.RateLimitDelay)
	assert.Equal(t, 7, cfg.Analysis.MaxConcurrent)
}

func TestLoadConfigPrefixedEnvWins(t *testing.T) {
	t.Setenv("EMAIL", "legacy@example.org")
	t.Setenv("BIOANALYZER_NCBI_EMAIL", "prefixed@example.org")
	t.Setenv("BIOANALYZER_ANALYSIS_MODE", "combined")
	t.Setenv("BIOANALYZER_SERVER_ADDR", ":9999")

	cfg, err := loadConfig(newViper(t), nil)
	require.NoError(t, err)
	assert.Equal(t, "prefixed@example.org", cfg.NCBI.Email)
	assert.Equal(t, types.ModeCombined, cfg.Analysis.Mode)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bioanalyzer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ncbi:
  timeout: 45s
ai:
  provider: none
cache:
  path: /tmp/x.db
  sweep_schedule: "@daily"
analysis:
  validate: true
  max_concurrent: 5
`), 0o644))

	v := newViper(t)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := loadConfig(v, secrets.Secrets{secrets.GeminiAPIKey: "from-file"})
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.NCBI.Timeout)
	assert.Equal(t, types.ProviderNone, cfg.AI.Provider)
	assert.Empty(t, cfg.AI.APIKey, "provider none takes no key")
	assert.Equal(t, "/tmp/x.db", cfg.Cache.Path)
	assert.Equal(t, "@daily", cfg.Cache.SweepSchedule)
	assert.True(t, cfg.Analysis.Validate)
	assert.Equal(t, 5, cfg.Analysis.MaxConcurrent)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Run("duration", func(t *testing.T) {
		t.Setenv("ANALYSIS_TIMEOUT", "soon")
		_, err := loadConfig(newViper(t), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "analysis.timeout")
	})
	t.Run("mode", func(t *testing.T) {
		t.Setenv("BIOANALYZER_ANALYSIS_MODE", "exhaustive")
		_, err := loadConfig(newViper(t), nil)
		require.Error(t, err)
	})
}

func TestProviderKey(t *testing.T) {
	s := secrets.Secrets{
		secrets.GeminiAPIKey:    "gem-file",
		secrets.AnthropicAPIKey: "claude-file",
		secrets.OpenAIAPIKey:    "openai-file",
	}
	tests := []struct {
		name     string
		provider types.LLMProvider
		explicit string
		env      map[string]string
		want     string
	}{
		{"gemini from file", types.ProviderGemini, "", nil, "gem-file"},
		{"gemini env beats file", types.ProviderGemini, "", map[string]string{"GEMINI_API_KEY": "gem-env"}, "gem-env"},
		{"claude from file", types.ProviderClaude, "", nil, "claude-file"},
		{"openai env", types.ProviderOpenAI, "", map[string]string{"OPENAI_API_KEY": "oa-env"}, "oa-env"},
		{"explicit wins", types.ProviderClaude, "explicit", nil, "explicit"},
		{"none", types.ProviderNone, "", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			got := providerKey(newViper(t), s, types.AIConfig{Provider: tc.provider, APIKey: tc.explicit})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		raw     string
		unit    time.Duration
		want    time.Duration
		wantErr bool
	}{
		{"", time.Second, 3 * time.Second, false},
		{"30s", time.Second, 30 * time.Second, false},
		{"30", time.Second, 30 * time.Second, false},
		{"0.34", time.Second, 340 * time.Millisecond, false},
		{"24", time.Hour, 24 * time.Hour, false},
		{"2h30m", time.Hour, 150 * time.Minute, false},
		{"-5", time.Second, 0, true},
		{"-5s", time.Second, 0, true},
		{"later", time.Second, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseDuration(tc.raw, tc.unit, 3*time.Second)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := parseMode("Combined")
	require.NoError(t, err)
	assert.Equal(t, types.ModeCombined, m)

	m, err = parseMode("")
	require.NoError(t, err)
	assert.Equal(t, types.AnalysisMode(""), m)

	_, err = parseMode("fast")
	assert.Error(t, err)
}
