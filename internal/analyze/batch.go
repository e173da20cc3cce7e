// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/bioanalyzer/pkg/types"
)

// BatchItem is the outcome for one identifier of a batch.
type BatchItem struct {
	PMID    types.PaperID `json:"pmid" yaml:"pmid"`
	Outcome Outcome       `json:"-" yaml:"-"`
}

// Batch holds the outcome of a batch analysis run. Items keep input order.
type Batch struct {
	ID       string
	Items    []BatchItem
	Found    int
	NotFound int
	Failed   int
}

// Total returns the number of identifiers processed.
func (b Batch) Total() int {
	return b.Found + b.NotFound + b.Failed
}

// HasFailures reports whether any paper failed.
func (b Batch) HasFailures() bool {
	return b.Failed > 0
}

// Results returns the analyses that completed, in input order.
func (b Batch) Results() []types.AnalysisResult {
	var out []types.AnalysisResult
	for _, it := range b.Items {
		if it.Outcome.Kind == Found {
			out = append(out, it.Outcome.Result)
		}
	}
	return out
}

// AnalyzeBatch analyzes ids with at most MaxConcurrent papers in flight.
// A failure for one paper never cancels the others.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, ids []types.PaperID, opts Options) Batch {
	b := Batch{
		ID:    uuid.NewString(),
		Items: make([]BatchItem, len(ids)),
	}
	log := a.log.With(zap.String("run", b.ID))
	log.Info("batch started", zap.Int("papers", len(ids)), zap.Int("concurrency", a.cfg.MaxConcurrent))

	var g errgroup.Group
	g.SetLimit(a.cfg.MaxConcurrent)
	for i, id := range ids {
		b.Items[i].PMID = id
		g.Go(func() error {
			b.Items[i].Outcome = a.analyzeIsolated(ctx, id, opts)
			return nil
		})
	}
	_ = g.Wait()

	for _, it := range b.Items {
		switch it.Outcome.Kind {
		case Found:
			b.Found++
		case NotFound:
			b.NotFound++
		default:
			b.Failed++
			log.Warn("paper failed", zap.String("pmid", it.PMID.String()), zap.Error(it.Outcome.Err))
		}
	}
	log.Info("batch finished",
		zap.Int("found", b.Found),
		zap.Int("not_found", b.NotFound),
		zap.Int("failed", b.Failed))
	return b
}

// analyzeIsolated turns a panic inside one analysis into a Failed outcome.
func (a *Analyzer) analyzeIsolated(ctx context.Context, id types.PaperID, opts Options) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed(eris.Errorf("analyzing %s: panic: %v", id, r))
		}
	}()
	return a.AnalyzePaper(ctx, id, opts)
}
