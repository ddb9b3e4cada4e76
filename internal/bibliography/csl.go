// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bibliography exports graph nodes as CSL-YAML, the Citation Style
// Language format read by Pandoc and reference managers.
package bibliography

import (
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-spider/internal/identity"
	"github.com/pdiddy/research-spider/pkg/types"
)

// Item is one CSL bibliographic entry.
type Item struct {
	ID       string `yaml:"id"`
	Type     string `yaml:"type"`
	Title    string `yaml:"title"`
	Author   []Name `yaml:"author,omitempty"`
	Abstract string `yaml:"abstract,omitempty"`
	Issued   *Date  `yaml:"issued,omitempty"`
	DOI      string `yaml:"DOI,omitempty"`
	URL      string `yaml:"URL,omitempty"`
	Keyword  string `yaml:"keyword,omitempty"`
}

// Name is a person's name in CSL form.
type Name struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// Date holds CSL date-parts.
type Date struct {
	DateParts [][]int `yaml:"date-parts"`
}

// Write encodes every node of g to w as a CSL-YAML list, in graph order.
func Write(w io.Writer, g types.GraphResponse) error {
	items := make([]Item, len(g.Nodes))
	for i, n := range g.Nodes {
		items[i] = ItemFor(n.PaperMetadata)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encoding bibliography: %w", err)
	}
	return enc.Close()
}

// ItemFor converts one paper to a CSL entry.
func ItemFor(p types.PaperMetadata) Item {
	item := Item{
		ID:       p.ID,
		Type:     "article-journal",
		Title:    p.Title,
		Abstract: p.Abstract,
		DOI:      identity.DOIFromKey(p.ID),
		URL:      p.PDFLink,
		Keyword:  strings.Join(p.Keywords, ", "),
	}
	for _, a := range p.Authors {
		if n := parseName(a); n != (Name{}) {
			item.Author = append(item.Author, n)
		}
	}
	if p.Year > 0 {
		item.Issued = &Date{DateParts: [][]int{{p.Year}}}
	}
	if id := identity.ArxivFromKey(p.ID); id != "" {
		item.Type = "article"
		if item.URL == "" {
			item.URL = "https://arxiv.org/abs/" + id
		}
	}
	return item
}

// parseName splits "Given Family" on the last space and "Family, Given" on
// the comma. Single tokens use the literal field.
func parseName(name string) Name {
	name = strings.TrimSpace(name)
	if name == "" {
		return Name{}
	}
	if family, given, ok := strings.Cut(name, ","); ok {
		return Name{Family: strings.TrimSpace(family), Given: strings.TrimSpace(given)}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return Name{Literal: name}
	}
	return Name{
		Given:  strings.TrimSpace(name[:idx]),
		Family: name[idx+1:],
	}
}
