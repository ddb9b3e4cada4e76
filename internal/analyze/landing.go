// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/research-spider/internal/httputil"
	"github.com/pdiddy/research-spider/internal/identity"
	"github.com/pdiddy/research-spider/pkg/types"
)

// LandingSource tags metadata read from a publisher landing page.
const LandingSource = "landing_page"

// maxLandingBytes bounds how much of a landing page is parsed.
const maxLandingBytes = 4 << 20

var yearPattern = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)

// fetchLanding downloads pageURL and reads its Highwire (citation_*) and
// Dublin Core (dc.*) meta tags.
func (a *Analyzer) fetchLanding(ctx context.Context, pageURL string) (landingMeta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return landingMeta{}, fmt.Errorf("creating request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := httputil.DoWithRetry(ctx, a.client, req, a.maxRetries)
	if err != nil {
		return landingMeta{}, fmt.Errorf("fetching landing page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return landingMeta{}, &httputil.StatusError{Service: "landing page", StatusCode: resp.StatusCode}
	}
	return parseLanding(io.LimitReader(resp.Body, maxLandingBytes))
}

// landingMeta is what a landing page says about its paper.
type landingMeta struct {
	Title    string
	Authors  []string
	DOI      string
	Year     int
	Abstract string
	Keywords []string
	PDFURL   string
}

func parseLanding(r io.Reader) (landingMeta, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return landingMeta{}, fmt.Errorf("parsing landing page: %w", err)
	}

	var m, dc landingMeta
	doc.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
		name := strings.ToLower(strings.TrimSpace(s.AttrOr("name", "")))
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}

		switch name {
		case "citation_title":
			m.Title = content
		case "citation_author":
			m.Authors = append(m.Authors, content)
		case "citation_authors":
			m.Authors = append(m.Authors, splitMeta(content, ";")...)
		case "citation_doi":
			m.DOI = identity.ExtractDOI(content)
		case "citation_publication_date", "citation_date", "citation_online_date", "citation_year":
			if m.Year == 0 {
				m.Year = parseYear(content)
			}
		case "citation_abstract":
			m.Abstract = content
		case "citation_keywords":
			m.Keywords = append(m.Keywords, splitMeta(content, ";,")...)
		case "citation_pdf_url":
			m.PDFURL = content

		case "dc.title":
			dc.Title = content
		case "dc.creator", "dc.contributor":
			dc.Authors = append(dc.Authors, content)
		case "dc.identifier":
			if doi := identity.ExtractDOI(content); doi != "" {
				dc.DOI = doi
			}
		case "dc.date", "dc.date.issued":
			if dc.Year == 0 {
				dc.Year = parseYear(content)
			}
		case "dc.description":
			dc.Abstract = content
		case "dc.subject", "dc.keywords":
			dc.Keywords = append(dc.Keywords, splitMeta(content, ";,")...)
		}
	})

	// Highwire tags win; Dublin Core fills gaps.
	if m.Title == "" {
		m.Title = dc.Title
	}
	if len(m.Authors) == 0 {
		m.Authors = dc.Authors
	}
	if m.DOI == "" {
		m.DOI = dc.DOI
	}
	if m.Year == 0 {
		m.Year = dc.Year
	}
	if m.Abstract == "" {
		m.Abstract = dc.Abstract
	}
	if len(m.Keywords) == 0 {
		m.Keywords = dc.Keywords
	}
	return m, nil
}

// metadata converts the page tags to paper metadata for pageURL.
func (m landingMeta) metadata(pageURL string) types.PaperMetadata {
	id := pageURL
	if m.DOI != "" {
		id = m.DOI
	}
	return identity.Normalize(types.PaperMetadata{
		ID:       id,
		Title:    m.Title,
		Abstract: m.Abstract,
		Keywords: m.Keywords,
		Authors:  m.Authors,
		Year:     m.Year,
		PDFLink:  m.PDFURL,
		Source:   LandingSource,
	})
}

func splitMeta(s, seps string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(seps, r) }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseYear(s string) int {
	m := yearPattern.FindString(s)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}
