// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/research-spider/internal/httputil"
	"github.com/pdiddy/research-spider/internal/identity"
	"github.com/pdiddy/research-spider/pkg/types"
)

// semanticAPIBase is the Semantic Scholar Graph API root. Declared as a
// var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const semanticFields = "title,abstract,authors,externalIds,year,fieldsOfStudy,openAccessPdf"

const semanticService = "Semantic Scholar"

// ErrNotFound reports that an upstream API has no record of a paper.
var ErrNotFound = errors.New("paper not found")

// SemanticScholar holds the client settings shared by the Semantic
// Scholar adapters.
type SemanticScholar struct {
	Client     *http.Client
	APIKey     string
	UserAgent  string
	MaxRetries int
}

// Paper fetches one paper by a Semantic Scholar lookup id such as
// "DOI:10.1000/x", "ARXIV:2301.07041" or "URL:https://...". A 404 becomes
// ErrNotFound.
func (s *SemanticScholar) Paper(ctx context.Context, lookupID string) (types.PaperMetadata, error) {
	var p semanticPaper
	reqURL := semanticAPIBase + "/paper/" + lookupID + "?" + url.Values{"fields": {semanticFields}}.Encode()
	if err := s.get(ctx, reqURL, &p); err != nil {
		return types.PaperMetadata{}, err
	}
	if p.Title == "" {
		return types.PaperMetadata{}, ErrNotFound
	}
	return p.toMetadata(), nil
}

// lookupID derives the id Semantic Scholar accepts for paper: DOI or
// arXiv id from the dedup key, otherwise the paperId of the best title
// match.
func (s *SemanticScholar) lookupID(ctx context.Context, paper types.PaperMetadata) (string, error) {
	key := identity.Resolve(paper)
	if doi := identity.DOIFromKey(key); doi != "" {
		return "DOI:" + doi, nil
	}
	if id := identity.ArxivFromKey(key); id != "" {
		return "ARXIV:" + id, nil
	}
	if paper.Title == "" {
		return "", ErrNotFound
	}

	var match semanticListResponse
	reqURL := semanticAPIBase + "/paper/search/match?" + url.Values{
		"query":  {paper.Title},
		"fields": {"paperId"},
	}.Encode()
	if err := s.get(ctx, reqURL, &match); err != nil {
		return "", err
	}
	if len(match.Data) == 0 || match.Data[0].PaperID == "" {
		return "", ErrNotFound
	}
	return match.Data[0].PaperID, nil
}

func (s *SemanticScholar) get(ctx context.Context, reqURL string, out any) error {
	err := httputil.GetJSON(ctx, s.Client, semanticService, reqURL, map[string]string{
		"User-Agent": s.UserAgent,
		"x-api-key":  s.APIKey,
	}, s.MaxRetries, out)
	var se *httputil.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

// edges fetches /paper/{id}/citations or /paper/{id}/references.
func (s *SemanticScholar) edges(ctx context.Context, paper types.PaperMetadata, kind string, limit int) ([]semanticPaper, error) {
	id, err := s.lookupID(ctx, paper)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var resp semanticEdgeResponse
	reqURL := semanticAPIBase + "/paper/" + id + "/" + kind + "?" + url.Values{
		"fields": {semanticFields},
		"limit":  {strconv.Itoa(limit)},
	}.Encode()
	if err := s.get(ctx, reqURL, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var out []semanticPaper
	for _, e := range resp.Data {
		p := e.CitedPaper
		if kind == "citations" {
			p = e.CitingPaper
		}
		if p.Title != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// SemanticScholarCitations finds papers that cite the queried paper.
type SemanticScholarCitations struct{ *SemanticScholar }

func (SemanticScholarCitations) Name() string           { return "semantic_scholar_citations" }
func (SemanticScholarCitations) Signal() types.EdgeType { return types.EdgeCitation }

func (s SemanticScholarCitations) FindRelated(ctx context.Context, paper types.PaperMetadata, limit int) ([]types.CandidatePaper, error) {
	papers, err := s.edges(ctx, paper, "citations", limit)
	if err != nil {
		return nil, err
	}
	return semanticCandidates(papers, limit, true), nil
}

// SemanticScholarReferences finds papers the queried paper cites.
type SemanticScholarReferences struct{ *SemanticScholar }

func (SemanticScholarReferences) Name() string           { return "semantic_scholar_references" }
func (SemanticScholarReferences) Signal() types.EdgeType { return types.EdgeCitation }

func (s SemanticScholarReferences) FindRelated(ctx context.Context, paper types.PaperMetadata, limit int) ([]types.CandidatePaper, error) {
	papers, err := s.edges(ctx, paper, "references", limit)
	if err != nil {
		return nil, err
	}
	return semanticCandidates(papers, limit, false), nil
}

// SemanticScholarSearch finds papers similar to the queried paper by
// searching its title.
type SemanticScholarSearch struct{ *SemanticScholar }

func (SemanticScholarSearch) Name() string           { return "semantic_scholar_search" }
func (SemanticScholarSearch) Signal() types.EdgeType { return types.EdgeSemantic }

func (s SemanticScholarSearch) FindRelated(ctx context.Context, paper types.PaperMetadata, limit int) ([]types.CandidatePaper, error) {
	q := strings.TrimSpace(paper.Title)
	if q == "" {
		return nil, nil
	}

	var resp semanticListResponse
	// Ask for one extra result since the paper itself usually ranks first.
	reqURL := semanticAPIBase + "/paper/search?" + url.Values{
		"query":  {q},
		"limit":  {strconv.Itoa(limit + 1)},
		"fields": {semanticFields},
	}.Encode()
	if err := s.get(ctx, reqURL, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	self := identity.Resolve(paper)
	var papers []semanticPaper
	for _, p := range resp.Data {
		if p.Title == "" || identity.Resolve(p.toMetadata()) == self {
			continue
		}
		papers = append(papers, p)
	}
	return semanticCandidates(papers, limit, false), nil
}

func semanticCandidates(papers []semanticPaper, limit int, citing bool) []types.CandidatePaper {
	if len(papers) > limit {
		papers = papers[:limit]
	}
	out := make([]types.CandidatePaper, 0, len(papers))
	for _, p := range papers {
		out = append(out, types.CandidatePaper{Metadata: p.toMetadata(), Citing: citing})
	}
	return out
}

// Semantic Scholar API JSON structures.
type semanticListResponse struct {
	Data []semanticPaper `json:"data"`
}

type semanticEdgeResponse struct {
	Data []struct {
		CitingPaper semanticPaper `json:"citingPaper"`
		CitedPaper  semanticPaper `json:"citedPaper"`
	} `json:"data"`
}

type semanticPaper struct {
	PaperID       string              `json:"paperId"`
	Title         string              `json:"title"`
	Abstract      string              `json:"abstract"`
	Year          int                 `json:"year"`
	Authors       []semanticAuthor    `json:"authors"`
	ExternalIDs   semanticExternalIDs `json:"externalIds"`
	FieldsOfStudy []string            `json:"fieldsOfStudy"`
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

// toMetadata converts a paper record. The id prefers the DOI, then the
// arXiv id, then the opaque paperId.
func (p semanticPaper) toMetadata() types.PaperMetadata {
	m := types.PaperMetadata{
		Title:    strings.TrimSpace(p.Title),
		Abstract: p.Abstract,
		Keywords: p.FieldsOfStudy,
		Year:     p.Year,
		Source:   "semantic_scholar",
	}
	for _, a := range p.Authors {
		if a.Name != "" {
			m.Authors = append(m.Authors, a.Name)
		}
	}
	switch {
	case p.ExternalIDs.DOI != "":
		m.ID = p.ExternalIDs.DOI
	case p.ExternalIDs.ArXiv != "":
		m.ID = "arXiv:" + p.ExternalIDs.ArXiv
	default:
		m.ID = p.PaperID
	}
	if p.OpenAccessPDF != nil {
		m.PDFLink = p.OpenAccessPDF.URL
	}
	return identity.Normalize(m)
}
