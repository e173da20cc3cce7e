// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"context"
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/bioanalyzer/pkg/types"
)

type elinkResult struct {
	LinkSets []struct {
		LinkSetDbs []struct {
			DbTo     string   `xml:"DbTo"`
			LinkName string   `xml:"LinkName"`
			IDs      []string `xml:"Link>Id"`
		} `xml:"LinkSetDb"`
	} `xml:"LinkSet"`
}

// pmcArticle holds the parts of a PMC efetch (JATS) document we read.
type pmcArticle struct {
	Title    flatText `xml:"front>article-meta>title-group>article-title"`
	Abstract flatText `xml:"front>article-meta>abstract"`
	Body     *struct {
		Paragraphs []flatText `xml:",any"`
	} `xml:"body"`
}

type pmcArticleSet struct {
	Articles []pmcArticle `xml:"article"`
}

// FetchFullText resolves the PMC ID linked to id and returns the article
// text. A paper with no PMC copy yields "" and a nil error.
func (r *Retriever) FetchFullText(ctx context.Context, id types.PaperID) (string, error) {
	pmcID, err := r.resolvePMCID(ctx, id)
	if err != nil {
		return "", &RetrievalError{PMID: id, Op: "elink", Err: err}
	}
	if pmcID == "" {
		r.log.Debug("no PMC link", zap.String("pmid", id.String()))
		return "", nil
	}

	params := url.Values{}
	params.Set("db", "pmc")
	params.Set("id", strings.TrimPrefix(pmcID, "PMC"))
	params.Set("retmode", "xml")

	body, err := r.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return "", &RetrievalError{PMID: id, Op: "pmc efetch", Err: err}
	}

	text, err := parsePMC(body)
	if err != nil {
		r.log.Warn("PMC XML unparsable", zap.String("pmid", id.String()), zap.String("pmc", pmcID), zap.Error(err))
		return "", nil
	}
	return text, nil
}

// resolvePMCID returns the "PMC"-prefixed ID of the direct pubmed_pmc
// link, ignoring citation links, or "" when none exists.
func (r *Retriever) resolvePMCID(ctx context.Context, id types.PaperID) (string, error) {
	params := url.Values{}
	params.Set("dbfrom", "pubmed")
	params.Set("db", "pmc")
	params.Set("id", id.String())
	params.Set("retmode", "xml")

	body, err := r.get(ctx, "elink.fcgi", params)
	if err != nil {
		return "", err
	}
	return parseELink(body)
}

func parseELink(data []byte) (string, error) {
	var res elinkResult
	if err := xml.Unmarshal(data, &res); err != nil {
		return "", eris.Wrap(err, "parsing elink XML")
	}
	for _, ls := range res.LinkSets {
		for _, db := range ls.LinkSetDbs {
			if db.DbTo != "pmc" || db.LinkName != "pubmed_pmc" {
				continue
			}
			for _, raw := range db.IDs {
				if raw = strings.TrimSpace(raw); raw == "" {
					continue
				}
				if !strings.HasPrefix(raw, "PMC") {
					raw = "PMC" + raw
				}
				return raw, nil
			}
		}
	}
	return "", nil
}

// parsePMC renders a PMC article as "Title: ...", "Abstract: ...", and
// "Full Text: ..." blocks separated by blank lines.
func parsePMC(data []byte) (string, error) {
	var set pmcArticleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return "", eris.Wrap(err, "parsing PMC XML")
	}
	if len(set.Articles) == 0 {
		return "", nil
	}
	a := set.Articles[0]

	var parts []string
	if a.Title != "" {
		parts = append(parts, "Title: "+string(a.Title))
	}
	if a.Abstract != "" {
		parts = append(parts, "Abstract: "+string(a.Abstract))
	}
	if a.Body != nil {
		var paras []string
		for _, p := range a.Body.Paragraphs {
			if p != "" {
				paras = append(paras, string(p))
			}
		}
		if len(paras) > 0 {
			parts = append(parts, "Full Text: "+strings.Join(paras, " "))
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
