// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/bioanalyzer/pkg/types"
)

// paperSummary is the bibliographic summary stored beside analysis records.
type paperSummary struct {
	Title           string   `json:"title"`
	Authors         []string `json:"authors"`
	Journal         string   `json:"journal"`
	PublicationDate string   `json:"publication_date"`
}

// StoreAnalysis caches an analysis result under its PMID.
func (s *Store) StoreAnalysis(ctx context.Context, r types.AnalysisResult) bool {
	payload, err := json.Marshal(r)
	if err != nil {
		s.log.Error("encoding analysis failed", zap.String("pmid", r.PMID.String()), zap.Error(err))
		return false
	}
	meta, _ := json.Marshal(paperSummary{
		Title:           r.Title,
		Authors:         r.Authors,
		Journal:         r.Journal,
		PublicationDate: r.PublicationDate,
	})
	conf := r.Confidence
	return s.Store(ctx, Entry{
		Kind:       KindAnalysis,
		Key:        r.PMID,
		Payload:    payload,
		Metadata:   meta,
		Source:     r.ModelUsed,
		Confidence: &conf,
	})
}

// GetAnalysis returns a cached analysis younger than maxAge.
func (s *Store) GetAnalysis(ctx context.Context, id types.PaperID, maxAge time.Duration) (types.AnalysisResult, bool) {
	var r types.AnalysisResult
	if !s.getFresh(ctx, KindAnalysis, id, maxAge, &r) {
		return types.AnalysisResult{}, false
	}
	return r, true
}

// StoreMetadata caches paper metadata. Full text is stored separately and
// is stripped from the metadata record.
func (s *Store) StoreMetadata(ctx context.Context, p types.PaperContent) bool {
	p.FullText = ""
	payload, err := json.Marshal(p)
	if err != nil {
		s.log.Error("encoding metadata failed", zap.String("pmid", p.PMID.String()), zap.Error(err))
		return false
	}
	return s.Store(ctx, Entry{Kind: KindMetadata, Key: p.PMID, Payload: payload, Source: p.Source})
}

// GetMetadata returns cached metadata younger than maxAge.
func (s *Store) GetMetadata(ctx context.Context, id types.PaperID, maxAge time.Duration) (types.PaperContent, bool) {
	var p types.PaperContent
	if !s.getFresh(ctx, KindMetadata, id, maxAge, &p) {
		return types.PaperContent{}, false
	}
	return p, true
}

// StoreFullText caches full text for id.
func (s *Store) StoreFullText(ctx context.Context, id types.PaperID, text, source string) bool {
	return s.Store(ctx, Entry{Kind: KindFullText, Key: id, Payload: []byte(text), Source: source})
}

// GetFullText returns cached full text younger than maxAge.
func (s *Store) GetFullText(ctx context.Context, id types.PaperID, maxAge time.Duration) (string, bool) {
	e, ok := s.Get(ctx, KindFullText, id)
	if !ok || !s.Fresh(e, maxAge) {
		return "", false
	}
	return string(e.Payload), true
}

func (s *Store) getFresh(ctx context.Context, kind Kind, id types.PaperID, maxAge time.Duration, v any) bool {
	e, ok := s.Get(ctx, kind, id)
	if !ok || !s.Fresh(e, maxAge) {
		return false
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		s.log.Warn("decoding cached record failed",
			zap.String("kind", string(kind)), zap.String("pmid", id.String()), zap.Error(err))
		return false
	}
	return true
}
