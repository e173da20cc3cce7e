// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve fetches paper metadata and full text from NCBI
// E-utilities. Metadata comes from PubMed efetch with an esummary
// fallback; full text comes from PubMed Central via an elink lookup.
// All requests share one rate limiter and retry transient failures.
package retrieve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/bioanalyzer/internal/httputil"
	"github.com/pdiddy/bioanalyzer/internal/logging"
	"github.com/pdiddy/bioanalyzer/internal/metrics"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

// eutilsBaseURL is the E-utilities endpoint root. Declared as a var so
// tests can point it at an httptest server.
var eutilsBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"

const maxResponseBytes = 32 << 20

// Cache is the subset of the result cache the retriever reads through.
// *cache.Store satisfies it.
type Cache interface {
	GetMetadata(ctx context.Context, id types.PaperID, maxAge time.Duration) (types.PaperContent, bool)
	StoreMetadata(ctx context.Context, p types.PaperContent) bool
	GetFullText(ctx context.Context, id types.PaperID, maxAge time.Duration) (string, bool)
	StoreFullText(ctx context.Context, id types.PaperID, text, source string) bool
}

// RetrievalError reports a failed fetch for one paper.
type RetrievalError struct {
	PMID types.PaperID
	Op   string
	Err  error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.PMID, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// Retriever fetches papers from NCBI. It is safe for concurrent use; all
// callers share the same rate limiter.
type Retriever struct {
	cfg      types.NCBIConfig
	client   *httputil.Client
	cache    Cache
	validity time.Duration
	log      *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithCache reads through c, serving records younger than validity.
func WithCache(c Cache, validity time.Duration) Option {
	return func(r *Retriever) {
		r.cache = c
		r.validity = validity
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Retriever) { r.client.HTTP = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.log = logging.OrNop(l).Named("retrieve") }
}

// New returns a Retriever configured from cfg.
func New(cfg types.NCBIConfig, opts ...Option) *Retriever {
	defaults := types.DefaultConfig().NCBI
	if cfg.Tool == "" {
		cfg.Tool = defaults.Tool
	}
	if cfg.Email == "" {
		cfg.Email = defaults.Email
	}
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = defaults.MetadataTimeout
	}
	if cfg.FullTextTimeout <= 0 {
		cfg.FullTextTimeout = defaults.FullTextTimeout
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaults.Timeout
	}

	r := &Retriever{
		cfg: cfg,
		client: &httputil.Client{
			HTTP:       &http.Client{Timeout: timeout},
			Limiter:    httputil.NewLimiter(cfg.RateLimitDelay),
			MaxRetries: cfg.MaxRetries,
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UseFullText reports whether full-text retrieval is enabled.
func (r *Retriever) UseFullText() bool { return r.cfg.UseFullText }

// get issues one E-utilities request and returns the response body.
func (r *Retriever) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	params.Set("tool", r.cfg.Tool)
	params.Set("email", r.cfg.Email)
	if r.cfg.APIKey != "" {
		params.Set("api_key", r.cfg.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, eutilsBaseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "creating request")
	}
	if r.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", r.cfg.UserAgent)
	}

	metrics.NCBIRequestsTotal.Add(1)
	resp, err := r.client.Do(ctx, req)
	if err != nil {
		metrics.NCBIErrorsTotal.Add(1)
		return nil, eris.Wrapf(err, "calling %s", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.NCBIErrorsTotal.Add(1)
		return nil, eris.Errorf("%s returned HTTP %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "reading %s response", endpoint)
	}
	return body, nil
}

// FetchCombined returns the best available content for id. Cached records
// are used when fresh. When full text is enabled, metadata and full text
// are fetched concurrently under their own timeouts; a full-text failure
// degrades to an empty string. A metadata failure yields content with only
// the PMID set, which callers treat as not found. FetchCombined never fails.
func (r *Retriever) FetchCombined(ctx context.Context, id types.PaperID) types.PaperContent {
	var (
		meta     types.PaperContent
		fullText string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		meta = r.metadataThroughCache(gctx, id)
		return nil
	})
	if r.cfg.UseFullText {
		g.Go(func() error {
			fullText = r.fullTextThroughCache(gctx, id)
			return nil
		})
	}
	g.Wait()

	meta.PMID = id
	meta.FullText = fullText
	return meta
}

func (r *Retriever) metadataThroughCache(ctx context.Context, id types.PaperID) types.PaperContent {
	if r.cache != nil {
		if p, ok := r.cache.GetMetadata(ctx, id, r.validity); ok {
			p.Source = "cache"
			return p
		}
	}

	mctx, cancel := context.WithTimeout(ctx, r.cfg.MetadataTimeout)
	defer cancel()

	p, err := r.FetchMetadata(mctx, id)
	if err != nil {
		r.log.Error("metadata fetch failed", zap.String("pmid", id.String()), zap.Error(err))
		return types.PaperContent{PMID: id}
	}
	if r.cache != nil && !p.Empty() {
		r.cache.StoreMetadata(ctx, p)
	}
	return p
}

func (r *Retriever) fullTextThroughCache(ctx context.Context, id types.PaperID) string {
	if r.cache != nil {
		if text, ok := r.cache.GetFullText(ctx, id, r.validity); ok {
			return text
		}
	}

	fctx, cancel := context.WithTimeout(ctx, r.cfg.FullTextTimeout)
	defer cancel()

	text, err := r.FetchFullText(fctx, id)
	if err != nil {
		r.log.Warn("full text fetch failed", zap.String("pmid", id.String()), zap.Error(err))
		return ""
	}
	if r.cache != nil && text != "" {
		r.cache.StoreFullText(ctx, id, text, "pmc")
	}
	return text
}

// Probe checks that E-utilities is reachable with a minimal search.
// Callers log a failure as degraded mode and keep serving cached data.
func (r *Retriever) Probe(ctx context.Context) error {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", "cancer")
	params.Set("retmax", "1")
	_, err := r.get(ctx, "esearch.fcgi", params)
	return eris.Wrap(err, "NCBI connectivity probe")
}

// Search returns up to max PMIDs matching query.
func (r *Retriever) Search(ctx context.Context, query string, max int) ([]types.PaperID, error) {
	if max <= 0 {
		max = 10
	}
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmax", strconv.Itoa(max))
	params.Set("retmode", "xml")

	body, err := r.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, err
	}
	return parseSearch(body)
}
