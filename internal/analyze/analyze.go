// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyze turns the free text a user submits into root metadata
// for an expansion: a resolved paper for links and identifiers, or a
// summarized pseudo-paper for research plans.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pdiddy/research-spider/pkg/types"
)

// PaperLookup fetches a paper by a Semantic Scholar lookup id
// ("DOI:x", "ARXIV:x", "URL:u"). *discovery.SemanticScholar satisfies it.
type PaperLookup interface {
	Paper(ctx context.Context, lookupID string) (types.PaperMetadata, error)
}

// WorkLookup fetches a work by DOI. *discovery.OpenAlex satisfies it.
type WorkLookup interface {
	WorkByDOI(ctx context.Context, doi string) (types.PaperMetadata, error)
}

// PlanSummarizer turns a research plan into root metadata.
// *chat.Service satisfies it.
type PlanSummarizer interface {
	SummarizePlan(ctx context.Context, plan string) (types.PaperMetadata, error)
}

// Analyzer classifies and resolves submitted text. Any lookup may be nil
// when the matching source is disabled.
type Analyzer struct {
	papers PaperLookup
	works  WorkLookup
	plans  PlanSummarizer

	client     *http.Client
	userAgent  string
	maxRetries int
	logger     *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithHTTPClient sets the client and User-Agent used for landing pages.
func WithHTTPClient(c *http.Client, userAgent string, maxRetries int) Option {
	return func(a *Analyzer) {
		a.client = c
		a.userAgent = userAgent
		a.maxRetries = maxRetries
	}
}

// WithLogger sets the analyzer logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// New creates an Analyzer.
func New(papers PaperLookup, works WorkLookup, plans PlanSummarizer, opts ...Option) *Analyzer {
	a := &Analyzer{
		papers: papers,
		works:  works,
		plans:  plans,
		client: http.DefaultClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze classifies text and returns root metadata for it. Empty text
// is ErrInvalidRequest; a paper link nothing can resolve is
// ErrInputUnresolvable.
func (a *Analyzer) Analyze(ctx context.Context, text string) (types.InputType, types.PaperMetadata, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", types.PaperMetadata{}, fmt.Errorf("%w: input text is required", types.ErrInvalidRequest)
	}

	kind, id := Classify(text)
	if kind == types.InputResearchPlan {
		if a.plans == nil {
			return kind, types.PaperMetadata{}, fmt.Errorf("%w: no plan summarizer configured", types.ErrInputUnresolvable)
		}
		m, err := a.plans.SummarizePlan(ctx, text)
		if err != nil {
			return kind, types.PaperMetadata{}, fmt.Errorf("summarizing plan: %w", err)
		}
		return kind, m, nil
	}

	m, err := a.resolve(ctx, id)
	if err != nil {
		return kind, types.PaperMetadata{}, err
	}
	return kind, m, nil
}

// resolve tries each lookup in turn: Semantic Scholar by DOI, arXiv id or
// URL, then OpenAlex by DOI, then the landing page of a plain URL.
func (a *Analyzer) resolve(ctx context.Context, id Identifier) (types.PaperMetadata, error) {
	plainURL := id.URL != "" && id.DOI == "" && id.ArxivID == ""

	var lookup string
	switch {
	case id.DOI != "":
		lookup = "DOI:" + id.DOI
	case id.ArxivID != "":
		lookup = "ARXIV:" + id.ArxivID
	case plainURL:
		lookup = "URL:" + id.URL
	}

	if a.papers != nil && lookup != "" {
		m, err := a.papers.Paper(ctx, lookup)
		if err == nil && m.Title != "" {
			return m, nil
		}
		if err := a.check(ctx, "semantic scholar lookup", lookup, err); err != nil {
			return types.PaperMetadata{}, err
		}
	}

	if m, ok, err := a.workByDOI(ctx, id.DOI); ok || err != nil {
		return m, err
	}

	if plainURL {
		page, err := a.fetchLanding(ctx, id.URL)
		if err := a.check(ctx, "landing page", id.URL, err); err != nil {
			return types.PaperMetadata{}, err
		}
		if page.Title != "" {
			return page.metadata(id.URL), nil
		}
		if m, ok, err := a.workByDOI(ctx, page.DOI); ok || err != nil {
			return m, err
		}
	}

	return types.PaperMetadata{}, types.ErrInputUnresolvable
}

func (a *Analyzer) workByDOI(ctx context.Context, doi string) (types.PaperMetadata, bool, error) {
	if a.works == nil || doi == "" {
		return types.PaperMetadata{}, false, nil
	}
	m, err := a.works.WorkByDOI(ctx, doi)
	if err == nil && m.Title != "" {
		return m, true, nil
	}
	return types.PaperMetadata{}, false, a.check(ctx, "openalex lookup", doi, err)
}

// check logs a failed lookup and returns an error only when the request
// itself was cancelled.
func (a *Analyzer) check(ctx context.Context, step, target string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Debug("input resolution step failed", "step", step, "target", target, "error", err)
	return nil
}
