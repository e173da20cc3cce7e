// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bioanalyzer/internal/analyze"
	"github.com/pdiddy/bioanalyzer/internal/cache"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

// --- fakes ---

type fakeAnalyzer struct {
	mu       sync.Mutex
	outcomes map[types.PaperID]analyze.Outcome
	lastOpts analyze.Options
}

func (f *fakeAnalyzer) AnalyzePaper(_ context.Context, id types.PaperID, opts analyze.Options) analyze.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts
	if out, ok := f.outcomes[id]; ok {
		return out
	}
	return analyze.Outcome{Kind: analyze.NotFound}
}

func (f *fakeAnalyzer) AnalyzeBatch(ctx context.Context, ids []types.PaperID, opts analyze.Options) analyze.Batch {
	b := analyze.Batch{ID: "run-1"}
	for _, id := range ids {
		out := f.AnalyzePaper(ctx, id, opts)
		b.Items = append(b.Items, analyze.BatchItem{PMID: id, Outcome: out})
		switch out.Kind {
		case analyze.Found:
			b.Found++
		case analyze.NotFound:
			b.NotFound++
		default:
			b.Failed++
		}
	}
	return b
}

type fakeRetriever struct {
	papers   map[types.PaperID]types.PaperContent
	probeErr error
}

func (f *fakeRetriever) FetchCombined(_ context.Context, id types.PaperID) types.PaperContent {
	return f.papers[id]
}

func (f *fakeRetriever) Probe(context.Context) error { return f.probeErr }

type fakeLLM struct {
	enabled bool
	err     error
}

func (f fakeLLM) Enabled() bool               { return f.enabled }
func (f fakeLLM) Model() string               { return "gemini-2.5-flash" }
func (f fakeLLM) Probe(context.Context) error { return f.err }

type fakeCache struct {
	mu       sync.Mutex
	deleted  []string
	cleared  bool
	sweptAge time.Duration
	entries  []cache.Entry
}

func (f *fakeCache) Stats(context.Context) (cache.Stats, error) {
	return cache.Stats{Counts: map[cache.Kind]int{cache.KindAnalysis: 2, cache.KindMetadata: 3}, SizeMB: 0.5}, nil
}

func (f *fakeCache) Search(_ context.Context, q string, _ int) ([]cache.Entry, error) {
	return f.entries, nil
}

func (f *fakeCache) Delete(_ context.Context, kind cache.Kind, id types.PaperID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, string(kind)+"/"+id.String())
	return true
}

func (f *fakeCache) ClearAll(context.Context) bool {
	f.cleared = true
	return true
}

func (f *fakeCache) Sweep(_ context.Context, maxAge time.Duration) int {
	f.sweptAge = maxAge
	return 4
}

func sampleResult(id types.PaperID) types.AnalysisResult {
	fs := types.NewFieldSet("Not reported")
	fs.Set(types.FieldHostSpecies, types.Present("Human", 0.9))
	return types.AnalysisResult{
		PMID:          id,
		Title:         "Gut microbiome",
		Fields:        fs,
		MissingFields: fs.Missing(),
		Status:        types.ResultSuccess,
		Source:        "analysis",
	}
}

type testServer struct {
	*httptest.Server
	analyzer *fakeAnalyzer
	cache    *fakeCache
}

func newTestServer(t *testing.T, mutate ...func(*Deps)) *testServer {
	t.Helper()
	a := &fakeAnalyzer{outcomes: map[types.PaperID]analyze.Outcome{
		"1001": {Kind: analyze.Found, Result: sampleResult("1001")},
		"500":  {Kind: analyze.Failed, Err: errors.New("database exploded at /var/secret")},
	}}
	c := &fakeCache{}
	deps := Deps{
		Analyzer: a,
		Retriever: &fakeRetriever{papers: map[types.PaperID]types.PaperContent{
			"1001": {PMID: "1001", Title: "Gut microbiome", Abstract: "Stool samples"},
		}},
		LLM:     fakeLLM{enabled: true},
		Cache:   c,
		Version: "1.2.3",
	}
	for _, m := range mutate {
		m(&deps)
	}
	cfg := types.DefaultConfig()
	cfg.AI.APIKey = "super-secret"
	srv := httptest.NewServer(New(deps, cfg, nil).Handler())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, analyzer: a, cache: c}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

// --- tests ---

func TestAnalyzeStatusMapping(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name:       "found",
			path:       "/api/v1/analyze/1001",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "1001", body["pmid"])
				fields := body["fields"].(map[string]any)
				assert.Len(t, fields, 6)
			},
		},
		{
			name:       "not found",
			path:       "/api/v1/analyze/404",
			wantStatus: http.StatusNotFound,
			check: func(t *testing.T, body map[string]any) {
				assert.Contains(t, body["error"], "404")
			},
		},
		{
			name:       "failure hides internals",
			path:       "/api/v1/analyze/500",
			wantStatus: http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]any) {
				assert.NotContains(t, body["error"], "/var/secret")
			},
		},
		{
			name:       "bad option",
			path:       "/api/v1/analyze/1001?force=maybe",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad mode",
			path:       "/api/v1/analyze/1001?mode=fast",
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}

func TestAnalyzePassesOptions(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := ts.do(t, http.MethodGet, "/api/v1/analyze/1001?force=true&validate=1&mode=combined", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	opts := ts.analyzer.lastOpts
	assert.True(t, opts.Force)
	assert.True(t, opts.Validate)
	assert.False(t, opts.NoLLM)
	assert.Equal(t, types.ModeCombined, opts.Mode)
}

func TestBatch(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/analyze/batch", `{"pmids":["1001","404","500"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "run-1", body["run_id"])
	assert.EqualValues(t, 3, body["total"])
	results := body["results"].([]any)
	require.Len(t, results, 3)
	statuses := make([]string, len(results))
	for i, r := range results {
		statuses[i] = r.(map[string]any)["status"].(string)
	}
	assert.Equal(t, []string{"found", "not_found", "failed"}, statuses)
	assert.NotContains(t, results[2].(map[string]any)["error"], "/var/secret")
}

// slowAnalyzer takes perPaper for each identifier and fails any paper
// whose context has ended, the way the real analyzer does.
type slowAnalyzer struct {
	fakeAnalyzer
	perPaper      time.Duration
	paperDeadline bool
}

func (f *slowAnalyzer) AnalyzePaper(ctx context.Context, id types.PaperID, _ analyze.Options) analyze.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, f.paperDeadline = ctx.Deadline()
	return analyze.Outcome{Kind: analyze.Found, Result: sampleResult(id)}
}

func (f *slowAnalyzer) AnalyzeBatch(ctx context.Context, ids []types.PaperID, _ analyze.Options) analyze.Batch {
	b := analyze.Batch{ID: "run-slow"}
	for _, id := range ids {
		out := analyze.Outcome{Kind: analyze.Found, Result: sampleResult(id)}
		select {
		case <-time.After(f.perPaper):
		case <-ctx.Done():
			out = analyze.Outcome{Kind: analyze.Failed, Err: ctx.Err()}
		}
		b.Items = append(b.Items, analyze.BatchItem{PMID: id, Outcome: out})
		if out.Kind == analyze.Found {
			b.Found++
		} else {
			b.Failed++
		}
	}
	return b
}

func TestBatchOutlivesRequestTimeout(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Server.RequestTimeout = 30 * time.Millisecond
	deps := Deps{
		Analyzer:  &slowAnalyzer{perPaper: 10 * time.Millisecond},
		Retriever: &fakeRetriever{},
		LLM:       fakeLLM{},
	}
	srv := httptest.NewServer(New(deps, cfg, nil).Handler())
	t.Cleanup(srv.Close)
	ts := &testServer{Server: srv}

	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", 2000+i)
	}
	payload, err := json.Marshal(map[string]any{"pmids": ids})
	require.NoError(t, err)

	// Ten papers at 10ms each run well past the 30ms request timeout.
	resp, body := ts.do(t, http.MethodPost, "/api/v1/analyze/batch", string(payload))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 10, body["total"])
	assert.EqualValues(t, 10, body["found"])
	assert.EqualValues(t, 0, body["failed"])

	// Single-paper analysis still runs under the request deadline.
	a := deps.Analyzer.(*slowAnalyzer)
	r, err := http.Get(srv.URL + "/api/v1/analyze/1001")
	require.NoError(t, err)
	r.Body.Close()
	a.mu.Lock()
	defer a.mu.Unlock()
	assert.True(t, a.paperDeadline)
}

func TestBatchRejectsBadBodies(t *testing.T) {
	ts := newTestServer(t)

	for name, body := range map[string]string{
		"empty body":    "",
		"no ids":        `{"pmids":[]}`,
		"unknown field": `{"pmids":["1"],"priority":9}`,
		"bad mode":      `{"pmids":["1"],"mode":"turbo"}`,
		"not json":      `pmids=1`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, _ := ts.do(t, http.MethodPost, "/api/v1/analyze/batch", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestRetrieve(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/retrieve/1001", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Stool samples", body["abstract"])

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/retrieve/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFieldsAndSystemRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/fields", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["fields"], 6)
	assert.Len(t, body["status_values"], 3)

	for _, path := range []string{"/health", "/api/v1/health"} {
		resp, body = ts.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "healthy", body["status"], path)
		assert.Equal(t, "1.2.3", body["version"], path)
	}

	resp, body = ts.do(t, http.MethodGet, "/ping", "")
	assert.Equal(t, "pong", body["message"])

	resp, body = ts.do(t, http.MethodGet, "/api/v1/version", "")
	assert.Equal(t, "1.2.3", body["application_version"])
	assert.NotEmpty(t, body["go_version"])

	resp, body = ts.do(t, http.MethodGet, "/api/v1/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "analyses_total")

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/ping", "")
	assert.Len(t, resp.Header.Get("X-Request-Id"), 36, "generated IDs are UUIDs")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/ping", nil)
	req.Header.Set("X-Request-Id", "caller-chosen")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "caller-chosen", resp.Header.Get("X-Request-Id"))
}

func TestConfigRedactsSecrets(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/config")
	require.NoError(t, err)
	defer resp.Body.Close()

	var cfg types.Config
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cfg))
	assert.Equal(t, "***", cfg.AI.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Analysis.Timeout)
}

func TestHealthProbes(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		mutate     func(*Deps)
		wantStatus string
	}{
		{"llm healthy", "/api/v1/health/llm", nil, "healthy"},
		{"gemini alias", "/api/v1/health/gemini", nil, "healthy"},
		{"llm failing", "/api/v1/health/llm", func(d *Deps) { d.LLM = fakeLLM{enabled: true, err: errors.New("quota exceeded")} }, "unhealthy"},
		{"llm absent", "/api/v1/health/llm", func(d *Deps) { d.LLM = fakeLLM{} }, "unhealthy"},
		{"ncbi healthy", "/api/v1/health/ncbi", nil, "healthy"},
		{"ncbi failing", "/api/v1/health/ncbi", func(d *Deps) {
			d.Retriever = &fakeRetriever{probeErr: errors.New("dial tcp: refused")}
		}, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mutate []func(*Deps)
			if tt.mutate != nil {
				mutate = append(mutate, tt.mutate)
			}
			ts := newTestServer(t, mutate...)
			resp, body := ts.do(t, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.LLM = fakeLLM{} })

	resp, body := ts.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "degraded", body["overall_status"])
	assert.NotNil(t, body["cache"])
	assert.Equal(t, "simple", body["analysis_mode"])
}

func TestCacheRoutes(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 5, body["total"])

	resp, _ = ts.do(t, http.MethodDelete, "/api/v1/cache/analysis/1001", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"analysis/1001"}, ts.cache.deleted)

	resp, body = ts.do(t, http.MethodDelete, "/api/v1/cache/papers/1001", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "unknown cache kind")

	resp, body = ts.do(t, http.MethodPost, "/api/v1/cache/sweep?max_age=48h", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 4, body["removed"])
	assert.Equal(t, 48*time.Hour, ts.cache.sweptAge)

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/cache/sweep?max_age=soon", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/cache/sweep", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 168*time.Hour, ts.cache.sweptAge, "default sweep age")

	resp, _ = ts.do(t, http.MethodDelete, "/api/v1/cache", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, ts.cache.cleared)
}

func TestCacheSearch(t *testing.T) {
	payload, err := json.Marshal(sampleResult("1001"))
	require.NoError(t, err)

	ts := newTestServer(t)
	ts.cache.entries = []cache.Entry{{Kind: cache.KindAnalysis, Key: "1001", Payload: payload, Timestamp: time.Now()}}

	resp, body := ts.do(t, http.MethodGet, "/api/v1/cache/search?q=microbiome", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "Gut microbiome", results[0].(map[string]any)["title"])

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/cache/search", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCacheDisabled(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.Cache = nil })
	resp, _ := ts.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
