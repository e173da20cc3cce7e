// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retrieve

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pdiddy/bioanalyzer/pkg/types"
)

// errNoArticle marks an efetch response that parsed but held no article.
var errNoArticle = eris.New("no PubmedArticle in response")

// pubmedArticleSet mirrors the parts of the efetch PubMed XML we read.
type pubmedArticleSet struct {
	Articles []struct {
		Article pubmedArticle `xml:"MedlineCitation>Article"`
	} `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Title     flatText   `xml:"ArticleTitle"`
	Abstracts []flatText `xml:"Abstract>AbstractText"`
	Journal   struct {
		Title       string `xml:"Title"`
		PubYear     string `xml:"JournalIssue>PubDate>Year"`
		MedlineDate string `xml:"JournalIssue>PubDate>MedlineDate"`
	} `xml:"Journal"`
	Authors []struct {
		ForeName string  `xml:"ForeName"`
		LastName *string `xml:"LastName"`
	} `xml:"AuthorList>Author"`
	ArticleDateYear string `xml:"ArticleDate>Year"`
}

// esummaryResult mirrors the legacy esummary DocSum XML.
type esummaryResult struct {
	DocSums []struct {
		Items []esummaryItem `xml:"Item"`
	} `xml:"DocSum"`
}

type esummaryItem struct {
	Name  string         `xml:"Name,attr"`
	Value string         `xml:",chardata"`
	Items []esummaryItem `xml:"Item"`
}

type esearchResult struct {
	IDs []string `xml:"IdList>Id"`
}

// flatText collects all character data inside an element, flattening
// inline markup such as <i> or <sup> in titles and abstracts.
type flatText string

func (t *flatText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.CharData:
			b.Write(v)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				*t = flatText(strings.Join(strings.Fields(b.String()), " "))
				return nil
			}
			depth--
		}
	}
}

// FetchMetadata retrieves title, abstract, authors, journal, and date for
// id from PubMed efetch. If the efetch XML cannot be parsed or holds no
// article, it falls back to esummary, which carries no abstract.
func (r *Retriever) FetchMetadata(ctx context.Context, id types.PaperID) (types.PaperContent, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", id.String())
	params.Set("retmode", "xml")

	body, err := r.get(ctx, "efetch.fcgi", params)
	if err != nil {
		return types.PaperContent{}, &RetrievalError{PMID: id, Op: "efetch", Err: err}
	}

	p, perr := parseEfetch(body)
	if perr == nil {
		p.PMID = id
		p.Source = "efetch"
		return p, nil
	}

	r.log.Warn("efetch parse failed, trying esummary", zap.String("pmid", id.String()), zap.Error(perr))
	p, err = r.fetchSummary(ctx, id)
	if err != nil {
		return types.PaperContent{}, &RetrievalError{PMID: id, Op: "esummary", Err: err}
	}
	return p, nil
}

func parseEfetch(data []byte) (types.PaperContent, error) {
	var set pubmedArticleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return types.PaperContent{}, eris.Wrap(err, "parsing efetch XML")
	}
	if len(set.Articles) == 0 {
		return types.PaperContent{}, errNoArticle
	}
	a := set.Articles[0].Article

	var abstract []string
	for _, t := range a.Abstracts {
		if t != "" {
			abstract = append(abstract, string(t))
		}
	}

	var authors []string
	for _, au := range a.Authors {
		if au.LastName == nil {
			continue
		}
		authors = append(authors, strings.TrimSpace(au.ForeName+" "+*au.LastName))
	}

	date := a.Journal.PubYear
	if date == "" {
		date = a.ArticleDateYear
	}
	if date == "" {
		date = a.Journal.MedlineDate
	}

	return types.PaperContent{
		Title:           string(a.Title),
		Abstract:        strings.Join(abstract, " "),
		Authors:         authors,
		Journal:         strings.TrimSpace(a.Journal.Title),
		PublicationDate: strings.TrimSpace(date),
	}, nil
}

func (r *Retriever) fetchSummary(ctx context.Context, id types.PaperID) (types.PaperContent, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", id.String())
	params.Set("retmode", "xml")

	body, err := r.get(ctx, "esummary.fcgi", params)
	if err != nil {
		return types.PaperContent{}, err
	}
	p, err := parseSummary(body)
	if err != nil {
		return types.PaperContent{}, err
	}
	p.PMID = id
	p.Source = "esummary"
	return p, nil
}

func parseSummary(data []byte) (types.PaperContent, error) {
	var res esummaryResult
	if err := xml.Unmarshal(data, &res); err != nil {
		return types.PaperContent{}, eris.Wrap(err, "parsing esummary XML")
	}
	if len(res.DocSums) == 0 {
		return types.PaperContent{}, eris.New("no summary record found")
	}

	var p types.PaperContent
	for _, item := range res.DocSums[0].Items {
		switch item.Name {
		case "Title":
			p.Title = strings.TrimSpace(item.Value)
		case "FullJournalName":
			p.Journal = strings.TrimSpace(item.Value)
		case "PubDate":
			p.PublicationDate = strings.TrimSpace(item.Value)
		case "AuthorList":
			for _, au := range item.Items {
				if name := strings.TrimSpace(au.Value); name != "" {
					p.Authors = append(p.Authors, name)
				}
			}
		}
	}
	return p, nil
}

func parseSearch(data []byte) ([]types.PaperID, error) {
	var res esearchResult
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&res); err != nil {
		return nil, eris.Wrap(err, "parsing esearch XML")
	}
	ids := make([]types.PaperID, 0, len(res.IDs))
	for _, id := range res.IDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, types.PaperID(id))
		}
	}
	return ids, nil
}
