// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes process counters through expvar. The server
// publishes them at /metrics.
package metrics

import (
	"expvar"
)

var (
	// AnalysesTotal counts analyses started.
	AnalysesTotal = expvar.NewInt("analyses_total")

	// AnalysesCached counts analyses served from the cache.
	AnalysesCached = expvar.NewInt("analyses_cached")

	// AnalysesNotFound counts analyses where no paper content was retrieved.
	AnalysesNotFound = expvar.NewInt("analyses_not_found")

	// AnalysesTimedOut counts analyses that hit the per-paper timeout.
	AnalysesTimedOut = expvar.NewInt("analyses_timed_out")

	// NCBIRequestsTotal counts E-utilities requests.
	NCBIRequestsTotal = expvar.NewInt("ncbi_requests_total")

	// NCBIErrorsTotal counts failed E-utilities requests.
	NCBIErrorsTotal = expvar.NewInt("ncbi_errors_total")

	// LLMCallsTotal counts model calls.
	LLMCallsTotal = expvar.NewInt("llm_calls_total")

	// LLMErrors counts failed model calls by error kind.
	LLMErrors = expvar.NewMap("llm_errors")

	// FallbackFields counts fields filled by the heuristic extractor.
	FallbackFields = expvar.NewInt("fallback_fields_total")

	// CacheSwept counts records removed by sweeps.
	CacheSwept = expvar.NewInt("cache_swept_total")

	// HTTPRequestsTotal counts API requests.
	HTTPRequestsTotal = expvar.NewInt("http_requests_total")
)

// Snapshot returns the current value of every counter, keyed by name.
func Snapshot() map[string]string {
	out := make(map[string]string)
	expvar.Do(func(kv expvar.KeyValue) {
		out[kv.Key] = kv.Value.String()
	})
	return out
}
