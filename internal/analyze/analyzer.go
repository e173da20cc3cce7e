// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyze runs the curation pipeline for one paper or a batch:
// retrieve text, extract the six fields, optionally validate, and cache
// the assembled result.
package analyze

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/bioanalyzer/internal/extract"
	"github.com/pdiddy/bioanalyzer/internal/heuristic"
	"github.com/pdiddy/bioanalyzer/internal/logging"
	"github.com/pdiddy/bioanalyzer/internal/metrics"
	"github.com/pdiddy/bioanalyzer/internal/validate"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

const (
	// shortAbstract is the length below which full text is appended to the
	// analysis text.
	shortAbstract = 1000

	// fullTextExcerpt bounds how much full text joins the analysis text.
	fullTextExcerpt = 2000

	// lowConfidence is the LLM confidence below which a non-PRESENT field
	// is checked against the heuristic.
	lowConfidence = 0.3

	reasonTimedOut = "Analysis timed out"

	modelHeuristic = "heuristic"
	sourceAnalysis = "analysis"
	sourceCache    = "cache"
)

// Retriever supplies paper content. FetchCombined never fails; an empty
// paper means nothing was found.
type Retriever interface {
	FetchCombined(ctx context.Context, id types.PaperID) types.PaperContent
}

// Extractor is the LLM field extractor.
type Extractor interface {
	Enabled() bool
	Model() string
	ExtractField(ctx context.Context, field types.FieldName, text string) (types.FieldResult, error)
	ExtractCombined(ctx context.Context, paper types.PaperContent) extract.Combined
}

// Cache stores assembled analyses.
type Cache interface {
	GetAnalysis(ctx context.Context, id types.PaperID, maxAge time.Duration) (types.AnalysisResult, bool)
	StoreAnalysis(ctx context.Context, r types.AnalysisResult) bool
}

// Options adjust a single analysis request.
type Options struct {
	// Mode overrides the configured extraction mode when set.
	Mode types.AnalysisMode

	// Force skips the cache lookup.
	Force bool

	// Validate attaches the validator report even when the configuration
	// does not ask for it.
	Validate bool

	// NoLLM routes every field through the heuristic.
	NoLLM bool
}

// Kind distinguishes the three outcomes of an analysis.
type Kind int

const (
	Found Kind = iota
	NotFound
	Failed
)

func (k Kind) String() string {
	switch k {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Outcome is the result of AnalyzePaper. Result is set only for Found and
// Err only for Failed.
type Outcome struct {
	Kind   Kind
	Result types.AnalysisResult
	Err    error
}

func found(r types.AnalysisResult) Outcome { return Outcome{Kind: Found, Result: r} }
func notFound() Outcome                    { return Outcome{Kind: NotFound} }
func failed(err error) Outcome             { return Outcome{Kind: Failed, Err: err} }

// Analyzer coordinates retrieval, extraction, validation, and caching.
type Analyzer struct {
	retriever Retriever
	extractor Extractor
	cache     Cache
	cfg       types.AnalysisConfig
	validity  time.Duration
	log       *zap.Logger
	now       func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithCache serves and stores analyses through c. Cached results older
// than validity are recomputed.
func WithCache(c Cache, validity time.Duration) Option {
	return func(a *Analyzer) {
		a.cache = c
		a.validity = validity
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) { a.log = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// New returns an Analyzer. The extractor may be nil, in which case every
// paper goes through the heuristic.
func New(r Retriever, e Extractor, cfg types.AnalysisConfig, opts ...Option) *Analyzer {
	defaults := types.DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Analysis.Timeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaults.Analysis.MaxConcurrent
	}
	if cfg.Mode == "" {
		cfg.Mode = types.ModeSimple
	}
	a := &Analyzer{
		retriever: r,
		extractor: e,
		cfg:       cfg,
		validity:  defaults.Cache.Validity,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = logging.OrNop(a.log).Named("analyze")
	return a
}

func (a *Analyzer) llmEnabled(opts Options) bool {
	return !opts.NoLLM && a.extractor != nil && a.extractor.Enabled()
}

// AnalyzePaper produces the curation assessment of one paper.
func (a *Analyzer) AnalyzePaper(ctx context.Context, id types.PaperID, opts Options) Outcome {
	id = types.PaperID(strings.TrimSpace(id.String()))
	if !id.Valid() {
		return failed(eris.New("empty paper identifier"))
	}
	metrics.AnalysesTotal.Add(1)
	start := a.now()

	if a.cache != nil && !opts.Force {
		if cached, ok := a.cache.GetAnalysis(ctx, id, a.validity); ok {
			metrics.AnalysesCached.Add(1)
			cached.Source = sourceCache
			a.log.Debug("served from cache", zap.String("pmid", id.String()))
			return found(cached)
		}
	}

	paperCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	paper := a.retriever.FetchCombined(paperCtx, id)
	if err := ctx.Err(); err != nil {
		return failed(eris.Wrapf(err, "analyzing %s", id))
	}
	if paper.Empty() {
		metrics.AnalysesNotFound.Add(1)
		a.log.Info("no content found", zap.String("pmid", id.String()))
		return notFound()
	}
	paper.PMID = id
	text := AnalysisText(paper)

	mode := a.cfg.Mode
	if opts.Mode != "" {
		mode = opts.Mode
	}

	combined := mode == types.ModeCombined && a.llmEnabled(opts)
	var res types.AnalysisResult
	if combined {
		res = a.analyzeCombined(paperCtx, paper)
	} else {
		res = a.analyzeFields(paperCtx, text, opts)
	}
	if err := ctx.Err(); err != nil {
		return failed(eris.Wrapf(err, "analyzing %s", id))
	}

	res.PMID = id
	res.Title = paper.Title
	res.Authors = paper.Authors
	res.Journal = paper.Journal
	res.PublicationDate = paper.PublicationDate

	if (opts.Validate || a.cfg.Validate) && res.Status != types.ResultError {
		fields, report := validate.Enhance(res.Fields, text)
		res.Fields = fields
		res.Validation = report
	}

	res.MissingFields = res.Fields.Missing()
	res.CurationSummary = extract.CurationSummary(res.MissingFields)
	if !combined {
		res.Confidence = extract.DocumentConfidence(res.Fields)
	}

	end := a.now()
	res.AnalysisTimestamp = end.UTC().Format(time.RFC3339)
	res.ProcessingTime = end.Sub(start).Seconds()
	res.Source = sourceAnalysis

	if a.cache != nil && res.Status == types.ResultSuccess {
		a.cache.StoreAnalysis(ctx, res)
	}

	a.log.Info("analysis complete",
		zap.String("pmid", id.String()),
		zap.String("status", string(res.Status)),
		zap.Int("missing", len(res.MissingFields)),
		zap.Float64("confidence", res.Confidence),
		zap.Duration("elapsed", end.Sub(start)))
	return found(res)
}

// AnalysisText is the text the extractors see: the abstract, extended with
// a full-text excerpt when the abstract is short. A paper with a title but
// no abstract is analyzed on its title.
func AnalysisText(p types.PaperContent) string {
	text := strings.TrimSpace(p.Abstract)
	if text == "" {
		text = strings.TrimSpace(p.Title)
	}
	if p.HasFullText() && len([]rune(text)) < shortAbstract {
		text += "\n\n" + extract.Truncate(p.FullText, fullTextExcerpt)
	}
	return text
}

func (a *Analyzer) analyzeCombined(ctx context.Context, paper types.PaperContent) types.AnalysisResult {
	c := a.extractor.ExtractCombined(ctx, paper)
	if c.Err != nil {
		if eris.Is(c.Err, context.DeadlineExceeded) {
			metrics.AnalysesTimedOut.Add(1)
		}
		a.log.Warn("combined extraction failed",
			zap.String("pmid", paper.PMID.String()),
			zap.String("kind", string(c.ErrorKind)),
			zap.Error(c.Err))
	}
	return types.AnalysisResult{
		Fields:     c.Fields,
		Confidence: c.Confidence,
		Status:     c.Status,
		ModelUsed:  a.extractor.Model(),
	}
}

// analyzeFields extracts the six fields concurrently. When ctx expires
// first, fields still in flight are reported ABSENT and the result is
// partial.
func (a *Analyzer) analyzeFields(ctx context.Context, text string, opts Options) types.AnalysisResult {
	useLLM := a.llmEnabled(opts)

	var (
		mu        sync.Mutex
		fields    = types.NewFieldSet(reasonTimedOut)
		fellBack  int
		completed int
	)

	var g errgroup.Group
	for _, name := range types.FieldNames {
		g.Go(func() error {
			r, usedHeuristic := a.extractField(ctx, name, text, useLLM)
			mu.Lock()
			defer mu.Unlock()
			if ctx.Err() != nil && !usedHeuristic && r.Status == types.StatusAbsent {
				// Leave the timed-out placeholder in place.
				return nil
			}
			fields.Set(name, r)
			completed++
			if usedHeuristic && useLLM {
				fellBack++
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	status := types.ResultSuccess
	select {
	case <-done:
	case <-ctx.Done():
		metrics.AnalysesTimedOut.Add(1)
		status = types.ResultPartial
		a.log.Warn("analysis timed out", zap.Error(ctx.Err()))
	}

	mu.Lock()
	snapshot := fields
	n := completed
	fb := fellBack
	mu.Unlock()
	if n < len(types.FieldNames) {
		status = types.ResultPartial
	}

	model := modelHeuristic
	if useLLM {
		model = a.extractor.Model()
		if fb > 0 {
			model = fmt.Sprintf("%s+%s", model, modelHeuristic)
		}
	}
	return types.AnalysisResult{
		Fields:    snapshot,
		Status:    status,
		ModelUsed: model,
	}
}

// extractField asks the model for one field and falls back to the
// heuristic when the call fails or the answer is weak. The second return
// reports whether the heuristic supplied the result.
func (a *Analyzer) extractField(ctx context.Context, field types.FieldName, text string, useLLM bool) (types.FieldResult, bool) {
	if !useLLM {
		return heuristic.ExtractField(field, text), true
	}

	r, err := a.extractor.ExtractField(ctx, field, text)
	if err != nil {
		if ctx.Err() != nil {
			return r, false
		}
		metrics.FallbackFields.Add(1)
		a.log.Debug("field fell back to heuristic", zap.String("field", string(field)), zap.Error(err))
		return heuristic.ExtractField(field, text), true
	}

	if r.Status != types.StatusPresent && r.Confidence < lowConfidence {
		if h := heuristic.ExtractField(field, text); h.Status == types.StatusPresent {
			metrics.FallbackFields.Add(1)
			return h, true
		}
	}
	return r, false
}
