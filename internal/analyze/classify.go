// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyze

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/research-spider/internal/identity"
	"github.com/pdiddy/research-spider/pkg/types"
)

// arxivInTextPattern finds a prefixed arXiv id anywhere in free text:
// "see arXiv:2301.07041v2 for details".
var arxivInTextPattern = regexp.MustCompile(`(?i)\barxiv:\s*(\d{4}\.\d{4,5})(?:v\d+)?\b`)

// Identifier is what classification found in the submitted text. At most
// one of DOI and ArxivID is used for resolution, DOI first.
type Identifier struct {
	DOI     string
	ArxivID string
	URL     string
}

// Empty reports whether no identifier was found.
func (id Identifier) Empty() bool {
	return id.DOI == "" && id.ArxivID == "" && id.URL == ""
}

// Classify decides whether text is a paper link or a research plan and
// returns any identifiers found. Text containing a DOI or an arXiv id, or
// starting with "http", is a paper link.
func Classify(text string) (types.InputType, Identifier) {
	text = strings.TrimSpace(text)

	var id Identifier
	id.DOI = identity.ExtractDOI(text)
	if id.DOI == "" {
		id.ArxivID = extractArxiv(text)
	}
	if strings.HasPrefix(text, "http") {
		first := strings.Fields(text)[0]
		if u, err := url.Parse(first); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
			id.URL = first
		}
	}

	if id.Empty() && !strings.HasPrefix(text, "http") {
		return types.InputResearchPlan, id
	}
	return types.InputPaperLink, id
}

func extractArxiv(text string) string {
	if id := identity.ExtractArxivID(text); id != "" {
		return id
	}
	for _, field := range strings.Fields(text) {
		if id := identity.ExtractArxivID(strings.Trim(field, "()[]<>,;")); id != "" {
			return id
		}
	}
	if m := arxivInTextPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
