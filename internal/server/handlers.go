// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/bioanalyzer/internal/analyze"
	"github.com/pdiddy/bioanalyzer/internal/cache"
	"github.com/pdiddy/bioanalyzer/internal/format"
	"github.com/pdiddy/bioanalyzer/internal/metrics"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

// probeTimeout bounds the upstream checks behind the health routes.
const probeTimeout = 15 * time.Second

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "bioanalyzer",
		"version": s.deps.Version,
		"routes": []string{
			"GET /analyze/{pmid}", "POST /analyze/batch", "GET /retrieve/{pmid}", "GET /fields",
			"GET /health", "GET /health/llm", "GET /health/ncbi", "GET /metrics", "GET /status",
			"GET /config", "GET /version", "GET /ping",
			"GET /cache/stats", "GET /cache/search", "POST /cache/sweep", "DELETE /cache", "DELETE /cache/{kind}/{pmid}",
		},
	})
}

// optionsFromQuery reads per-request analysis options.
func optionsFromQuery(r *http.Request) (analyze.Options, error) {
	q := r.URL.Query()
	var opts analyze.Options
	var err error
	for name, dst := range map[string]*bool{
		"force":    &opts.Force,
		"validate": &opts.Validate,
		"no_llm":   &opts.NoLLM,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		if *dst, err = strconv.ParseBool(v); err != nil {
			return opts, eris.Errorf("invalid %s value %q", name, v)
		}
	}
	mode, err := parseMode(q.Get("mode"))
	if err != nil {
		return opts, err
	}
	opts.Mode = mode
	return opts, nil
}

func parseMode(s string) (types.AnalysisMode, error) {
	switch m := types.AnalysisMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", types.ModeSimple, types.ModeCombined:
		return m, nil
	}
	return "", eris.Errorf("invalid mode %q: use simple or combined", s)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id := types.PaperID(strings.TrimSpace(chi.URLParam(r, "id")))
	if !id.Valid() {
		writeError(w, http.StatusBadRequest, "pmid is required")
		return
	}
	opts, err := optionsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := s.deps.Analyzer.AnalyzePaper(r.Context(), id, opts)
	switch out.Kind {
	case analyze.Found:
		writeJSON(w, http.StatusOK, out.Result)
	case analyze.NotFound:
		writeError(w, http.StatusNotFound, fmt.Sprintf("No content found for PMID %s", id))
	default:
		s.log.Error("analysis failed", zap.String("pmid", id.String()), zap.Error(out.Err))
		writeError(w, http.StatusInternalServerError, "An internal error occurred. Please try again later.")
	}
}

type batchRequest struct {
	PMIDs    []string `json:"pmids"`
	Mode     string   `json:"mode,omitempty"`
	Force    bool     `json:"force,omitempty"`
	Validate bool     `json:"validate,omitempty"`
	NoLLM    bool     `json:"no_llm,omitempty"`
}

type batchItem struct {
	PMID   types.PaperID         `json:"pmid"`
	Status string                `json:"status"`
	Result *types.AnalysisResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

type batchResponse struct {
	RunID    string      `json:"run_id"`
	Total    int         `json:"total"`
	Found    int         `json:"found"`
	NotFound int         `json:"not_found"`
	Failed   int         `json:"failed"`
	Results  []batchItem `json:"results"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ids := types.ParsePaperIDs(req.PMIDs)
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "pmids must contain at least one identifier")
		return
	}
	if len(ids) > maxBatch {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d pmids per batch", maxBatch))
		return
	}
	mode, err := parseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b := s.deps.Analyzer.AnalyzeBatch(r.Context(), ids, analyze.Options{
		Mode:     mode,
		Force:    req.Force,
		Validate: req.Validate,
		NoLLM:    req.NoLLM,
	})

	resp := batchResponse{
		RunID:    b.ID,
		Total:    b.Total(),
		Found:    b.Found,
		NotFound: b.NotFound,
		Failed:   b.Failed,
		Results:  make([]batchItem, len(b.Items)),
	}
	for i, it := range b.Items {
		item := batchItem{PMID: it.PMID, Status: it.Outcome.Kind.String()}
		switch it.Outcome.Kind {
		case analyze.Found:
			res := it.Outcome.Result
			item.Result = &res
		case analyze.NotFound:
			item.Error = "No content found"
		default:
			item.Error = "Analysis failed"
		}
		resp.Results[i] = item
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	id := types.PaperID(strings.TrimSpace(chi.URLParam(r, "id")))
	if !id.Valid() {
		writeError(w, http.StatusBadRequest, "pmid is required")
		return
	}
	paper := s.deps.Retriever.FetchCombined(r.Context(), id)
	if paper.Empty() {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No content found for PMID %s", id))
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, format.Describe())
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: timestamp(), Version: s.deps.Version})
}

type probeResponse struct {
	Status           string  `json:"status"`
	Model            string  `json:"model,omitempty"`
	APIKeyConfigured *bool   `json:"api_key_configured,omitempty"`
	ResponseTime     float64 `json:"response_time_seconds"`
	Error            string  `json:"error,omitempty"`
	Timestamp        string  `json:"timestamp"`
}

func (s *Server) probe(ctx context.Context, fn func(context.Context) error) probeResponse {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	start := time.Now()
	err := fn(ctx)
	resp := probeResponse{
		Status:       "healthy",
		ResponseTime: time.Since(start).Seconds(),
		Timestamp:    timestamp(),
	}
	if err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
	}
	return resp
}

func (s *Server) llmHealth(ctx context.Context) probeResponse {
	configured := s.deps.LLM != nil && s.deps.LLM.Enabled()
	if !configured {
		return probeResponse{
			Status:           "unhealthy",
			APIKeyConfigured: &configured,
			Error:            "no language model configured",
			Timestamp:        timestamp(),
		}
	}
	resp := s.probe(ctx, s.deps.LLM.Probe)
	resp.Model = s.deps.LLM.Model()
	resp.APIKeyConfigured = &configured
	return resp
}

func (s *Server) handleLLMHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.llmHealth(r.Context()))
}

func (s *Server) handleNCBIHealth(w http.ResponseWriter, r *http.Request) {
	resp := s.probe(r.Context(), s.deps.Retriever.Probe)
	if resp.Error != "" {
		s.log.Warn("NCBI probe failed", zap.String("error", resp.Error))
		resp.Error = "NCBI E-utilities unreachable"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) metricsHandler() http.Handler {
	return expvar.Handler()
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Redacted())
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"application_version": s.deps.Version,
		"go_version":          runtime.Version(),
		"timestamp":           timestamp(),
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong", "timestamp": timestamp()})
}

type statusResponse struct {
	OverallStatus string            `json:"overall_status"`
	UptimeHours   float64           `json:"uptime_hours"`
	Version       string            `json:"version"`
	Mode          string            `json:"analysis_mode"`
	LLM           probeResponse     `json:"llm"`
	Cache         *cache.Stats      `json:"cache,omitempty"`
	Metrics       map[string]string `json:"metrics"`
	Timestamp     string            `json:"timestamp"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		OverallStatus: "healthy",
		UptimeHours:   float64(int(time.Since(s.started).Hours()*100)) / 100,
		Version:       s.deps.Version,
		Mode:          string(s.cfg.Analysis.Mode),
		LLM:           s.llmHealth(r.Context()),
		Metrics:       metrics.Snapshot(),
		Timestamp:     timestamp(),
	}
	if s.deps.Cache != nil {
		if st, err := s.deps.Cache.Stats(r.Context()); err == nil {
			resp.Cache = &st
		} else {
			s.log.Warn("cache stats failed", zap.Error(err))
			resp.OverallStatus = "degraded"
		}
	}
	if resp.LLM.Status != "healthy" && resp.OverallStatus == "healthy" {
		resp.OverallStatus = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) cacheOr503(w http.ResponseWriter) bool {
	if s.deps.Cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache is disabled")
		return false
	}
	return true
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if !s.cacheOr503(w) {
		return
	}
	st, err := s.deps.Cache.Stats(r.Context())
	if err != nil {
		s.log.Error("cache stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not read cache statistics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"counts":              st.Counts,
		"total":               st.Total(),
		"recent_analyses_24h": st.RecentAnalyses,
		"size_mb":             st.SizeMB,
	})
}

type cacheHit struct {
	PMID      types.PaperID `json:"pmid"`
	Timestamp string        `json:"timestamp"`
	Source    string        `json:"source,omitempty"`
	Title     string        `json:"title,omitempty"`
}

func (s *Server) handleCacheSearch(w http.ResponseWriter, r *http.Request) {
	if !s.cacheOr503(w) {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.deps.Cache.Search(r.Context(), q, limit)
	if err != nil {
		s.log.Error("cache search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "cache search failed")
		return
	}
	hits := make([]cacheHit, 0, len(entries))
	for _, e := range entries {
		hit := cacheHit{PMID: e.Key, Timestamp: e.Timestamp.UTC().Format(time.RFC3339), Source: e.Source}
		var res types.AnalysisResult
		if err := json.Unmarshal(e.Payload, &res); err == nil {
			hit.Title = res.Title
		}
		hits = append(hits, hit)
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "results": hits})
}

func (s *Server) handleCacheSweep(w http.ResponseWriter, r *http.Request) {
	if !s.cacheOr503(w) {
		return
	}
	maxAge := s.cfg.Cache.SweepAge
	if v := r.URL.Query().Get("max_age"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid max_age %q", v))
			return
		}
		maxAge = d
	}
	n := s.deps.Cache.Sweep(r.Context(), maxAge)
	metrics.CacheSwept.Add(int64(n))
	writeJSON(w, http.StatusOK, map[string]any{"removed": n, "max_age": maxAge.String()})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if !s.cacheOr503(w) {
		return
	}
	if !s.deps.Cache.ClearAll(r.Context()) {
		writeError(w, http.StatusInternalServerError, "could not clear cache")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	if !s.cacheOr503(w) {
		return
	}
	kind, err := cache.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := types.PaperID(chi.URLParam(r, "id"))
	if !s.deps.Cache.Delete(r.Context(), kind, id) {
		writeError(w, http.StatusInternalServerError, "could not delete cache record")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
