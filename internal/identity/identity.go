// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package identity derives stable dedup keys from paper metadata and
// decides which of two records describing the same paper wins.
//
// Everything here is pure: no I/O, no clock, no randomness. Expansion
// correctness depends on the same metadata always mapping to the same key.
package identity

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdiddy/research-spider/pkg/types"
)

// Key prefixes. A key always starts with one of these.
const (
	PrefixDOI   = "doi:"
	PrefixArxiv = "arxiv:"
	PrefixTitle = "title:"
)

// doiPattern finds a DOI anywhere in a string: "10.1145/1234567.1234568".
var doiPattern = regexp.MustCompile(`(?i)10\.\d{4,9}/[-._;()/:a-z0-9]+`)

// arxivPattern matches new-style arXiv IDs with optional prefix and version.
var arxivPattern = regexp.MustCompile(`(?i)^(?:arxiv:)?(\d{4}\.\d{4,5})(?:v\d+)?$`)

// arxivURLPattern finds an arXiv ID inside an arxiv.org abs or pdf URL.
var arxivURLPattern = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/(\d{4}\.\d{4,5})(?:v\d+)?`)

// Resolve returns the dedup key for metadata.
//
// An external identifier wins when present: a DOI in ID or PDFLink gives
// "doi:<doi>", an arXiv ID gives "arxiv:<id>". Otherwise the key is built
// from the normalized title, first-author surname, and year. Resolving
// metadata whose ID is already a key returns that key.
func Resolve(p types.PaperMetadata) string {
	if strings.HasPrefix(p.ID, PrefixTitle) {
		return p.ID
	}
	for _, candidate := range []string{p.ID, p.PDFLink} {
		if doi := ExtractDOI(candidate); doi != "" {
			return PrefixDOI + doi
		}
		if id := ExtractArxivID(candidate); id != "" {
			return PrefixArxiv + id
		}
	}
	return titleKey(p)
}

// ExtractDOI returns the lowercase bare DOI found in s, stripped of any
// URL scheme, resolver host, or "doi:" prefix. It returns "" when s holds
// no DOI.
func ExtractDOI(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	m := doiPattern.FindString(s)
	if m == "" {
		return ""
	}
	m = strings.TrimRight(m, ".,;")
	return strings.ToLower(m)
}

// ExtractArxivID returns the versionless arXiv ID in s, or "".
func ExtractArxivID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if m := arxivPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := arxivURLPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func titleKey(p types.PaperMetadata) string {
	var b strings.Builder
	b.WriteString(PrefixTitle)
	b.WriteString(NormalizeTitle(p.Title))
	if surname := Surname(p.FirstAuthor()); surname != "" {
		b.WriteString("|")
		b.WriteString(surname)
	}
	if p.Year > 0 {
		b.WriteString("|")
		b.WriteString(strconv.Itoa(p.Year))
	}
	return b.String()
}

// NormalizeTitle lowercases the title, strips punctuation, and collapses
// whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Surname returns the lowercase family name of a display name. Both
// "Ada Lovelace" and "Lovelace, Ada" give "lovelace".
func Surname(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if i := strings.Index(name, ","); i > 0 {
		name = name[:i]
	} else {
		fields := strings.Fields(name)
		name = fields[len(fields)-1]
	}
	return NormalizeTitle(name)
}

// Prefer returns the record that should represent a paper seen twice:
// the one with a non-empty abstract, then the one with more keywords,
// then first. The result carries first's ID.
func Prefer(first, second types.PaperMetadata) types.PaperMetadata {
	winner := first
	switch {
	case first.Abstract == "" && second.Abstract != "":
		winner = second
	case (first.Abstract == "") == (second.Abstract == "") && len(second.Keywords) > len(first.Keywords):
		winner = second
	}
	winner.ID = first.ID
	return winner
}

// Normalize replaces nil slices with empty ones and removes duplicate
// keywords (case-insensitive), keeping the first spelling.
func Normalize(p types.PaperMetadata) types.PaperMetadata {
	p.Title = strings.TrimSpace(p.Title)
	if p.Authors == nil {
		p.Authors = []string{}
	}
	if p.References == nil {
		p.References = []string{}
	}
	keywords := make([]string, 0, len(p.Keywords))
	seen := make(map[string]bool, len(p.Keywords))
	for _, kw := range p.Keywords {
		kw = strings.TrimSpace(kw)
		folded := strings.ToLower(kw)
		if kw == "" || seen[folded] {
			continue
		}
		seen[folded] = true
		keywords = append(keywords, kw)
	}
	p.Keywords = keywords
	return p
}

// DOIFromKey returns the DOI inside a "doi:" key, or "".
func DOIFromKey(key string) string {
	if strings.HasPrefix(key, PrefixDOI) {
		return strings.TrimPrefix(key, PrefixDOI)
	}
	return ""
}

// ArxivFromKey returns the arXiv ID inside an "arxiv:" key, or "".
func ArxivFromKey(key string) string {
	if strings.HasPrefix(key, PrefixArxiv) {
		return strings.TrimPrefix(key, PrefixArxiv)
	}
	return ""
}
