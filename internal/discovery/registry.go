// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discovery

import (
	"net/http"

	"github.com/pdiddy/research-spider/pkg/types"
)

// Wrapper decorates a source, for example with a cache.
type Wrapper func(Source) Source

// Sources builds the enabled adapters in their fixed registration order:
// citation sources first, then semantic, keyword, and author. Each source
// is passed through wrap when it is non-nil.
func Sources(cfg types.DiscoveryConfig, client *http.Client, wrap Wrapper) []Source {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	var s2 *SemanticScholar
	if cfg.EnableSemanticScholar {
		s2 = &SemanticScholar{
			Client:     client,
			APIKey:     cfg.SemanticScholarAPIKey,
			UserAgent:  cfg.UserAgent,
			MaxRetries: cfg.MaxRetries,
		}
	}
	var oa *OpenAlex
	if cfg.EnableOpenAlex {
		oa = &OpenAlex{
			Client:     client,
			Email:      cfg.OpenAlexEmail,
			UserAgent:  cfg.UserAgent,
			MaxRetries: cfg.MaxRetries,
		}
	}

	var out []Source
	add := func(s Source) {
		if wrap != nil {
			s = wrap(s)
		}
		out = append(out, s)
	}

	if s2 != nil {
		add(SemanticScholarCitations{s2})
		add(SemanticScholarReferences{s2})
	}
	if oa != nil {
		add(OpenAlexReferences{oa})
	}
	if s2 != nil {
		add(SemanticScholarSearch{s2})
	}
	if cfg.EnableArxiv {
		add(&ArxivSearch{Client: client, UserAgent: cfg.UserAgent, MaxRetries: cfg.MaxRetries})
	}
	if oa != nil {
		add(OpenAlexKeywords{oa})
		add(OpenAlexAuthors{oa})
	}
	return out
}
