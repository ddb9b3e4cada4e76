// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/research-spider/internal/httputil"
	"github.com/pdiddy/research-spider/internal/identity"
	"github.com/pdiddy/research-spider/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivSearch finds semantically similar papers through the arXiv Atom
// API, searching the significant words of the queried title.
type ArxivSearch struct {
	Client     *http.Client
	UserAgent  string
	MaxRetries int
}

func (*ArxivSearch) Name() string           { return "arxiv_search" }
func (*ArxivSearch) Signal() types.EdgeType { return types.EdgeSemantic }

func (a *ArxivSearch) FindRelated(ctx context.Context, paper types.PaperMetadata, limit int) ([]types.CandidatePaper, error) {
	q := buildArxivQuery(paper.Title)
	if q == "" {
		return nil, nil
	}

	params := url.Values{
		"search_query": {q},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(limit + 1)},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if a.UserAgent != "" {
		req.Header.Set("User-Agent", a.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, a.Client, req, a.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httputil.StatusError{Service: "arXiv", StatusCode: resp.StatusCode}
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	self := identity.Resolve(paper)
	out := make([]types.CandidatePaper, 0, limit)
	for _, it := range feed.Items {
		if len(out) == limit {
			break
		}
		m, ok := arxivMetadata(it)
		if !ok || identity.Resolve(m) == self {
			continue
		}
		out = append(out, types.CandidatePaper{Metadata: m})
	}
	return out, nil
}

// buildArxivQuery ORs the title words longer than three characters, up to
// six of them, so relevance sorting ranks close matches first.
func buildArxivQuery(title string) string {
	var parts []string
	for _, w := range strings.Fields(title) {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if len([]rune(w)) <= 3 || strings.ContainsAny(w, ":\"") {
			continue
		}
		parts = append(parts, "all:"+w)
		if len(parts) == 6 {
			break
		}
	}
	return strings.Join(parts, " OR ")
}

// arxivMetadata converts one Atom entry. The id is the journal DOI when
// arXiv lists one, otherwise "arXiv:" plus the versionless arXiv id.
func arxivMetadata(it *gofeed.Item) (types.PaperMetadata, bool) {
	arxivID := identity.ExtractArxivID(it.GUID)
	if arxivID == "" {
		arxivID = identity.ExtractArxivID(it.Link)
	}
	title := strings.Join(strings.Fields(it.Title), " ")
	if arxivID == "" || title == "" {
		return types.PaperMetadata{}, false
	}

	m := types.PaperMetadata{
		ID:       "arXiv:" + arxivID,
		Title:    title,
		Abstract: strings.TrimSpace(it.Description),
		Keywords: it.Categories,
		Source:   "arxiv",
	}
	for _, p := range it.Authors {
		if p != nil && strings.TrimSpace(p.Name) != "" {
			m.Authors = append(m.Authors, strings.TrimSpace(p.Name))
		}
	}
	if it.PublishedParsed != nil {
		m.Year = it.PublishedParsed.Year()
	}
	m.PDFLink = "https://arxiv.org/pdf/" + arxivID
	for _, l := range it.Links {
		if strings.Contains(l, "/pdf/") {
			m.PDFLink = l
			break
		}
	}
	if ext, ok := it.Extensions["arxiv"]; ok {
		if dois := ext["doi"]; len(dois) > 0 && identity.ExtractDOI(dois[0].Value) != "" {
			m.ID = identity.ExtractDOI(dois[0].Value)
		}
	}
	return identity.Normalize(m), true
}
