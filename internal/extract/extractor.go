// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns paper text into the six curation fields by asking
// a hosted language model. Replies are parsed tolerantly and always
// normalized; a failed call yields a well-formed ABSENT result, never a
// partial one.
package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdiddy/bioanalyzer/internal/logging"
	"github.com/pdiddy/bioanalyzer/internal/metrics"
	"github.com/pdiddy/bioanalyzer/pkg/types"
)

// Extractor runs per-field and combined extraction against one Backend.
// It is safe for concurrent use when the Backend is.
type Extractor struct {
	backend Backend
	cfg     types.AIConfig
	log     *zap.Logger
}

// New returns an Extractor. A nil backend is allowed; every call then
// fails with ErrMissingAPIKey.
func New(backend Backend, cfg types.AIConfig, log *zap.Logger) *Extractor {
	defaults := types.DefaultConfig().AI
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Extractor{backend: backend, cfg: cfg, log: logging.OrNop(log).Named("extract")}
}

// Enabled reports whether a model backend is configured.
func (e *Extractor) Enabled() bool { return e != nil && e.backend != nil }

// Model names the backing model, or "" when none is configured.
func (e *Extractor) Model() string {
	if !e.Enabled() {
		return ""
	}
	return e.backend.Model()
}

func (e *Extractor) request(prompt string) Request {
	return Request{
		Prompt:      prompt,
		JSON:        true,
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
		TopP:        e.cfg.TopP,
		TopK:        e.cfg.TopK,
	}
}

// call sends one prompt with retries and records metrics.
func (e *Extractor) call(ctx context.Context, prompt string) (string, error) {
	if !e.Enabled() {
		return "", ErrMissingAPIKey
	}
	metrics.LLMCallsTotal.Add(1)
	reply, err := callWithRetry(ctx, e.backend, e.request(prompt), e.cfg.MaxRetries, e.cfg.Timeout)
	if err != nil {
		kind := Classify(err)
		metrics.LLMErrors.Add(string(kind), 1)
		e.log.Warn("model call failed", zap.String("kind", string(kind)), zap.Error(err))
		return "", err
	}
	return reply, nil
}

// ExtractField asks the model one targeted question about field. On a
// failed call the result is ABSENT with reason "Analysis failed or timed
// out" and err reports why, so the caller may substitute another source.
// An unparsable reply is not an error; it is read as free text.
func (e *Extractor) ExtractField(ctx context.Context, field types.FieldName, text string) (types.FieldResult, error) {
	prompt, err := renderFieldPrompt(field, text)
	if err != nil {
		return types.Absent(reasonCallFailed), err
	}
	reply, err := e.call(ctx, prompt)
	if err != nil {
		return types.Absent(reasonCallFailed), err
	}
	r := parseFieldReply(reply)
	e.log.Debug("field extracted",
		zap.String("field", string(field)),
		zap.String("status", string(r.Status)),
		zap.Float64("confidence", r.Confidence))
	return r, nil
}

// Combined is the outcome of a combined-mode extraction.
type Combined struct {
	Fields          types.FieldSet
	MissingFields   []types.FieldName
	CurationSummary string
	Confidence      float64
	Status          types.ResultStatus

	// ErrorKind classifies a failed call; empty on success.
	ErrorKind ErrorKind
	Err       error
}

// ExtractCombined asks for all six fields in one prompt. A failed call
// returns Status "error" with every field ABSENT and confidence 0. A reply
// that cannot be decoded returns Status "partial" with every field marked
// for re-run.
func (e *Extractor) ExtractCombined(ctx context.Context, paper types.PaperContent) Combined {
	prompt, err := renderCombinedPrompt(paper)
	if err == nil {
		var reply string
		reply, err = e.call(ctx, prompt)
		if err == nil {
			fields, ok := parseCombinedReply(reply)
			if !ok {
				e.log.Warn("combined reply was not JSON", zap.String("pmid", paper.PMID.String()))
				return summarize(fields, types.ResultPartial, 0)
			}
			return summarize(fields, types.ResultSuccess, DocumentConfidence(fields))
		}
	}

	res := ErrorResult(reasonCallFailed)
	res.ErrorKind = Classify(err)
	res.Err = err
	return res
}

// ErrorResult is the caller-visible shape of any failed extraction.
func ErrorResult(reason string) Combined {
	return summarize(types.NewFieldSet(reason), types.ResultError, 0)
}

func summarize(fields types.FieldSet, status types.ResultStatus, confidence float64) Combined {
	missing := fields.Missing()
	return Combined{
		Fields:          fields,
		MissingFields:   missing,
		CurationSummary: CurationSummary(missing),
		Confidence:      confidence,
		Status:          status,
	}
}

// Probe checks that the backend answers a trivial prompt.
func (e *Extractor) Probe(ctx context.Context) error {
	if !e.Enabled() {
		return ErrMissingAPIKey
	}
	_, err := complete(ctx, e.backend, Request{Prompt: "Reply with the single word OK.", MaxTokens: 5}, e.cfg.Timeout)
	return err
}
