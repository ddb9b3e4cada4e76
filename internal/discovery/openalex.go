// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/research-spider/internal/httputil"
	"github.com/pdiddy/research-spider/internal/identity"
	"github.com/pdiddy/research-spider/pkg/types"
)

// openAlexAPIBase is the OpenAlex Works endpoint. Declared as a var so
// tests can substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org/works"

const openAlexService = "OpenAlex"

// maxStoredReferences caps the referenced_works kept on converted papers.
const maxStoredReferences = 25

// OpenAlex holds the client settings shared by the OpenAlex adapters.
type OpenAlex struct {
	Client *http.Client
	// Email is sent as mailto parameter for polite pool access.
	Email      string
	UserAgent  string
	MaxRetries int
}

// WorkByDOI fetches a single work by DOI. A 404 becomes ErrNotFound.
func (o *OpenAlex) WorkByDOI(ctx context.Context, doi string) (types.PaperMetadata, error) {
	params := url.Values{}
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}
	reqURL := openAlexAPIBase + "/https://doi.org/" + doi
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var w openAlexWork
	if err := o.get(ctx, reqURL, &w); err != nil {
		return types.PaperMetadata{}, err
	}
	if w.Title == "" {
		return types.PaperMetadata{}, ErrNotFound
	}
	return w.toMetadata(), nil
}

// works runs a list query against /works.
func (o *OpenAlex) works(ctx context.Context, params url.Values, limit int) ([]openAlexWork, error) {
	if limit > 200 {
		limit = 200
	}
	params.Set("per_page", strconv.Itoa(limit))
	if o.Email != "" {
		params.Set("mailto", o.Email)
	}

	var resp openAlexResponse
	if err := o.get(ctx, openAlexAPIBase+"?"+params.Encode(), &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return resp.Results, nil
}

func (o *OpenAlex) get(ctx context.Context, reqURL string, out any) error {
	err := httputil.GetJSON(ctx, o.Client, openAlexService, reqURL, map[string]string{
		"User-Agent": o.UserAgent,
	}, o.MaxRetries, out)
	var se *httputil.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

// candidates converts works, dropping the queried paper itself.
func (o *OpenAlex) candidates(paper types.PaperMetadata, works []openAlexWork, limit int) []types.CandidatePaper {
	self := identity.Resolve(paper)
	out := make([]types.CandidatePaper, 0, len(works))
	for _, w := range works {
		if w.Title == "" {
			continue
		}
		m := w.toMetadata()
		if identity.Resolve(m) == self {
			continue
		}
		out = append(out, types.CandidatePaper{Metadata: m})
		if len(out) == limit {
			break
		}
	}
	return out
}

// OpenAlexKeywords finds papers sharing the queried paper's keywords.
type OpenAlexKeywords struct{ *OpenAlex }

func (OpenAlexKeywords) Name() string           { return "openalex_keywords" }
func (OpenAlexKeywords) Signal() types.EdgeType { return types.EdgeKeyword }

func (o OpenAlexKeywords) FindRelated(ctx context.Context, paper types.PaperMetadata, limit int) ([]types.CandidatePaper, error) {
	terms := keywordTerms(paper)
	if len(terms) == 0 {
		return nil, nil
	}
	works, err := o.works(ctx, url.Values{"search": {strings.Join(terms, " ")}}, limit+1)
	if err != nil {
		return nil, err
	}
	return o.candidates(paper, works, limit), nil
}

// keywordTerms returns up to five keywords, or the title words longer
// than three characters when the paper has none.
func keywordTerms(paper types.PaperMetadata) []string {
	var terms []string
	for _, kw := range paper.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			terms = append(terms, kw)
		}
	}
	if len(terms) == 0 {
		for _, w := range strings.Fields(paper.Title) {
			w = strings.Trim(w, ".,;:!?()[]\"'")
			if len([]rune(w)) > 3 {
				terms = append(terms, w)
			}
		}
	}
	if len(terms) > 5 {
		terms = terms[:5]
	}
	return terms
}

// OpenAlexAuthors finds other works by the queried paper's first author.
type OpenAlexAuthors struct{ *OpenAlex }

func (OpenAlexAuthors) Name() string           { return "openalex_authors" }
func (OpenAlexAuthors) Signal() types.EdgeType { return types.EdgeAuthor }

func (o OpenAlexAuthors) FindRelated(ctx context.Context, paper types.PaperMetadata, limit int) ([]types.CandidatePaper, error) {
	author := strings.TrimSpace(paper.FirstAuthor())
	if author == "" {
		return nil, nil
	}
	// Commas and pipes are filter syntax.
	author = strings.NewReplacer(",", " ", "|", " ").Replace(author)
	works, err := o.works(ctx, url.Values{
		"filter": {"authorships.author.display_name.search:" + author},
	}, limit+1)
	if err != nil {
		return nil, err
	}
	return o.candidates(paper, works, limit), nil
}

// OpenAlexReferences resolves the queried paper's references list. DOIs
// are looked up with the doi filter, OpenAlex work ids with the openalex
// filter.
type OpenAlexReferences struct{ *OpenAlex }

func (OpenAlexReferences) Name() string           { return "openalex_references" }
func (OpenAlexReferences) Signal() types.EdgeType { return types.EdgeCitation }

func (o OpenAlexReferences) FindRelated(ctx context.Context, paper types.PaperMetadata, limit int) ([]types.CandidatePaper, error) {
	var dois, ids []string
	for _, ref := range paper.References {
		if len(dois)+len(ids) == limit {
			break
		}
		if doi := identity.ExtractDOI(ref); doi != "" {
			dois = append(dois, doi)
		} else if id := openAlexID(ref); id != "" {
			ids = append(ids, id)
		}
	}

	var works []openAlexWork
	for _, q := range []struct {
		filter string
		vals   []string
	}{{"doi:", dois}, {"openalex:", ids}} {
		if len(q.vals) == 0 {
			continue
		}
		got, err := o.works(ctx, url.Values{"filter": {q.filter + strings.Join(q.vals, "|")}}, len(q.vals))
		if err != nil {
			return nil, err
		}
		works = append(works, got...)
	}
	return o.candidates(paper, works, limit), nil
}

// openAlexID returns "W123" from "https://openalex.org/W123" or "W123".
func openAlexID(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "https://openalex.org/")
	if len(s) < 2 || s[0] != 'W' {
		return ""
	}
	if _, err := strconv.ParseUint(s[1:], 10, 64); err != nil {
		return ""
	}
	return s
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	Keywords              []openAlexConcept    `json:"keywords"`
	Concepts              []openAlexConcept    `json:"concepts"`
	ReferencedWorks       []string             `json:"referenced_works"`
	OpenAccess            struct {
		OAURL string `json:"oa_url"`
	} `json:"open_access"`
}

type openAlexAuthorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type openAlexConcept struct {
	DisplayName string `json:"display_name"`
}

func (w openAlexWork) toMetadata() types.PaperMetadata {
	m := types.PaperMetadata{
		Title:    strings.TrimSpace(w.Title),
		Abstract: reconstructAbstract(w.AbstractInvertedIndex),
		Year:     w.PublicationYear,
		PDFLink:  w.OpenAccess.OAURL,
		Source:   "openalex",
	}
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			m.Authors = append(m.Authors, a.Author.DisplayName)
		}
	}

	concepts := w.Keywords
	if len(concepts) == 0 {
		concepts = w.Concepts
	}
	for i, c := range concepts {
		if i == 5 {
			break
		}
		m.Keywords = append(m.Keywords, c.DisplayName)
	}

	refs := w.ReferencedWorks
	if len(refs) > maxStoredReferences {
		refs = refs[:maxStoredReferences]
	}
	m.References = append(m.References, refs...)

	// OpenAlex is DOI-centric; strip the resolver prefix to get the bare DOI.
	if w.DOI != "" {
		m.ID = strings.TrimPrefix(w.DOI, "https://doi.org/")
	} else {
		m.ID = w.ID
	}
	return identity.Normalize(m)
}
