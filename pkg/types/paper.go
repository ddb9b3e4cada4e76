// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for research-spider: paper
// metadata, the typed paper graph, expansion requests, and configuration.
package types

import "encoding/json"

// InputType classifies the free text a user submits.
type InputType string

const (
	InputResearchPlan InputType = "research_plan"
	InputPaperLink    InputType = "paper_link"
)

// PaperMetadata describes one paper as returned by the input analyzer or a
// discovery source.
type PaperMetadata struct {
	// ID is the stable key. Optional until the paper is resolved; graph
	// nodes always carry the dedup key here.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Title is the paper title. Required.
	Title string `json:"title" yaml:"title"`

	// Abstract is the paper abstract, if known.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Keywords has set semantics: order carries no meaning.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// Authors lists display names in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Year is the publication year, zero when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// PDFLink is an open-access PDF URL, if known.
	PDFLink string `json:"pdf_link,omitempty" yaml:"pdf_link,omitempty"`

	// Source tags provenance: a discovery adapter name, "claude" for
	// summarised research plans, or the resolver that fetched the input.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// References holds external identifiers (DOIs) of works this paper
	// cites. Used for citation discovery.
	References []string `json:"references" yaml:"references"`
}

// paperAlias strips the JSON methods so they can delegate to the default codec.
type paperAlias PaperMetadata

// MarshalJSON always emits keywords, authors and references as arrays.
func (p PaperMetadata) MarshalJSON() ([]byte, error) {
	a := paperAlias(p.withEmptySlices())
	return json.Marshal(a)
}

// UnmarshalJSON accepts null or missing arrays and replaces them with empty ones.
func (p *PaperMetadata) UnmarshalJSON(data []byte) error {
	var a paperAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = PaperMetadata(a).withEmptySlices()
	return nil
}

func (p PaperMetadata) withEmptySlices() PaperMetadata {
	if p.Keywords == nil {
		p.Keywords = []string{}
	}
	if p.Authors == nil {
		p.Authors = []string{}
	}
	if p.References == nil {
		p.References = []string{}
	}
	return p
}

// FirstAuthor returns the first listed author or "".
func (p PaperMetadata) FirstAuthor() string {
	if len(p.Authors) == 0 {
		return ""
	}
	return p.Authors[0]
}
