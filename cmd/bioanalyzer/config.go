// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"github.com/pdiddy/bioanalyzer/internal/secrets"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

const envPrefix = "BIOANALYZER"

// legacyEnv maps config keys to the unprefixed environment variables
// earlier deployments used. Both the prefixed and legacy names are honored.
var legacyEnv = map[string]string{
	"ncbi.api_key":            "NCBI_API_KEY",
	"ncbi.email":              "EMAIL",
	"ncbi.use_fulltext":       "USE_FULLTEXT",
	"ncbi.timeout":            "API_TIMEOUT",
	"ncbi.rate_limit_delay":   "NCBI_RATE_LIMIT_DELAY",
	"ai.gemini_api_key":       "GEMINI_API_KEY",
	"ai.timeout":              "GEMINI_TIMEOUT",
	"analysis.timeout":        "ANALYSIS_TIMEOUT",
	"analysis.max_concurrent": "MAX_CONCURRENT_REQUESTS",
	"cache.validity":          "CACHE_VALIDITY_HOURS",
	"ai.anthropic_api_key":    "ANTHROPIC_API_KEY",
	"ai.openai_api_key":       "OPENAI_API_KEY",
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}
}

// loadConfig overlays file, environment, and secrets onto the defaults.
// Durations accept Go syntax ("30s") or a bare number in the legacy unit:
// seconds for timeouts and delays, hours for cache validity.
func loadConfig(v *viper.Viper, s secrets.Secrets) (types.Config, error) {
	cfg := types.DefaultConfig()
	var err error

	str := func(key string, dst *string) {
		if val := strings.TrimSpace(v.GetString(key)); val != "" {
			*dst = val
		}
	}
	dur := func(key string, unit time.Duration, dst *time.Duration) {
		if err != nil {
			return
		}
		var d time.Duration
		d, err = parseDuration(v.GetString(key), unit, *dst)
		if err != nil {
			err = eris.Wrapf(err, "config %s", key)
			return
		}
		*dst = d
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			if n := v.GetInt(key); n > 0 {
				*dst = n
			}
		}
	}
	flt := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}

	// NCBI
	str("ncbi.api_key", &cfg.NCBI.APIKey)
	str("ncbi.email", &cfg.NCBI.Email)
	str("ncbi.tool", &cfg.NCBI.Tool)
	str("ncbi.user_agent", &cfg.NCBI.UserAgent)
	if v.IsSet("ncbi.use_fulltext") {
		cfg.NCBI.UseFullText = v.GetBool("ncbi.use_fulltext")
	}
	dur("ncbi.timeout", time.Second, &cfg.NCBI.Timeout)
	dur("ncbi.rate_limit_delay", time.Second, &cfg.NCBI.RateLimitDelay)
	dur("ncbi.metadata_timeout", time.Second, &cfg.NCBI.MetadataTimeout)
	dur("ncbi.fulltext_timeout", time.Second, &cfg.NCBI.FullTextTimeout)
	num("ncbi.max_retries", &cfg.NCBI.MaxRetries)
	cfg.NCBI.APIKey = s.Get(secrets.NCBIAPIKey, cfg.NCBI.APIKey)

	// AI
	if p := strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))); p != "" {
		cfg.AI.Provider = types.LLMProvider(p)
	}
	str("ai.model", &cfg.AI.Model)
	str("ai.api_key", &cfg.AI.APIKey)
	dur("ai.timeout", time.Second, &cfg.AI.Timeout)
	if v.IsSet("ai.max_retries") {
		cfg.AI.MaxRetries = v.GetInt("ai.max_retries")
	}
	flt("ai.temperature", &cfg.AI.Temperature)
	flt("ai.top_p", &cfg.AI.TopP)
	num("ai.max_tokens", &cfg.AI.MaxTokens)
	num("ai.top_k", &cfg.AI.TopK)
	cfg.AI.APIKey = providerKey(v, s, cfg.AI)

	// Cache
	str("cache.path", &cfg.Cache.Path)
	str("cache.sweep_schedule", &cfg.Cache.SweepSchedule)
	dur("cache.validity", time.Hour, &cfg.Cache.Validity)
	dur("cache.sweep_age", time.Hour, &cfg.Cache.SweepAge)
	num("cache.max_connections", &cfg.Cache.MaxConnections)

	// Analysis
	if m := strings.ToLower(strings.TrimSpace(v.GetString("analysis.mode"))); m != "" {
		mode, merr := parseMode(m)
		if merr != nil {
			return cfg, merr
		}
		cfg.Analysis.Mode = mode
	}
	dur("analysis.timeout", time.Second, &cfg.Analysis.Timeout)
	num("analysis.max_concurrent", &cfg.Analysis.MaxConcurrent)
	if v.IsSet("analysis.validate") {
		cfg.Analysis.Validate = v.GetBool("analysis.validate")
	}

	// Server
	str("server.addr", &cfg.Server.Addr)
	dur("server.request_timeout", time.Second, &cfg.Server.RequestTimeout)
	dur("server.shutdown_timeout", time.Second, &cfg.Server.ShutdownTimeout)

	// Log
	str("log.level", &cfg.Log.Level)
	str("log.format", &cfg.Log.Format)

	return cfg, err
}

// providerKey picks the API key for the configured provider. An explicit
// ai.api_key wins, then the provider's own variable, then its key file.
func providerKey(v *viper.Viper, s secrets.Secrets, ai types.AIConfig) string {
	if ai.APIKey != "" {
		return ai.APIKey
	}
	switch ai.Provider {
	case types.ProviderClaude:
		return s.Get(secrets.AnthropicAPIKey, v.GetString("ai.anthropic_api_key"))
	case types.ProviderOpenAI:
		return s.Get(secrets.OpenAIAPIKey, v.GetString("ai.openai_api_key"))
	case types.ProviderNone:
		return ""
	default:
		return s.Get(secrets.GeminiAPIKey, v.GetString("ai.gemini_api_key"))
	}
}

// parseDuration reads raw as a Go duration or, failing that, as a number
// of units. Empty input returns def.
func parseDuration(raw string, unit, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d < 0 {
			return 0, eris.Errorf("negative duration %q", raw)
		}
		return d, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Errorf("invalid duration %q", raw)
	}
	if f < 0 {
		return 0, eris.Errorf("negative duration %q", raw)
	}
	return time.Duration(f * float64(unit)), nil
}

func parseMode(s string) (types.AnalysisMode, error) {
	switch types.AnalysisMode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case types.ModeSimple:
		return types.ModeSimple, nil
	case types.ModeCombined:
		return types.ModeCombined, nil
	}
	return "", eris.Errorf("unknown analysis mode %q: use simple or combined", s)
}
