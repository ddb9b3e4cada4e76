// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pdiddy/research-spider/internal/analyze"
	"github.com/pdiddy/research-spider/internal/cache"
	"github.com/pdiddy/research-spider/internal/chat"
	"github.com/pdiddy/research-spider/internal/discovery"
	"github.com/pdiddy/research-spider/internal/expand"
	"github.com/pdiddy/research-spider/internal/observability"
	"github.com/pdiddy/research-spider/pkg/types"
)

// app is the wired component graph shared by serve, analyze and expand.
type app struct {
	analyzer *analyze.Analyzer
	engine   *expand.Engine
	chat     *chat.Service
	store    *cache.Store
}

// Close releases the candidate cache.
func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// newApp builds every component from cfg. m may be nil.
func newApp(cfg types.Config, logger *slog.Logger, m *observability.Metrics) (*app, error) {
	client := &http.Client{Timeout: cfg.Discovery.Timeout}
	a := &app{}

	var wrap discovery.Wrapper
	if cfg.Discovery.Cache.Path != "" {
		store, err := cache.Open(cfg.Discovery.Cache)
		if err != nil {
			return nil, fmt.Errorf("opening candidate cache: %w", err)
		}
		a.store = store
		wrap = cache.Wrapper(store, m)
		logger.Info("candidate cache enabled", "path", cfg.Discovery.Cache.Path, "ttl", cfg.Discovery.Cache.TTL)
	}

	sources := discovery.Sources(cfg.Discovery, client, wrap)
	if len(sources) == 0 {
		logger.Warn("all discovery sources are disabled; graphs will contain only the root")
	}
	fanout := discovery.NewFanout(sources, cfg.Discovery, discovery.WithLogger(logger), discovery.WithMetrics(m))
	a.engine = expand.NewEngine(fanout, cfg.Expansion, expand.WithLogger(logger), expand.WithMetrics(m))

	var backend chat.Backend
	if cfg.Chat.APIKey != "" {
		backend = &chat.AnthropicBackend{
			Client:     &http.Client{Timeout: cfg.Chat.Timeout},
			APIKey:     cfg.Chat.APIKey,
			Model:      cfg.Chat.Model,
			MaxRetries: cfg.Discovery.MaxRetries,
		}
	} else {
		logger.Warn("no Anthropic API key configured; chat answers are stubbed")
	}
	a.chat = chat.NewService(backend, cfg.Chat, chat.WithLogger(logger), chat.WithMetrics(m))

	var papers analyze.PaperLookup
	if cfg.Discovery.EnableSemanticScholar {
		papers = &discovery.SemanticScholar{
			Client:     client,
			APIKey:     cfg.Discovery.SemanticScholarAPIKey,
			UserAgent:  cfg.Discovery.UserAgent,
			MaxRetries: cfg.Discovery.MaxRetries,
		}
	}
	var works analyze.WorkLookup
	if cfg.Discovery.EnableOpenAlex {
		works = &discovery.OpenAlex{
			Client:     client,
			Email:      cfg.Discovery.OpenAlexEmail,
			UserAgent:  cfg.Discovery.UserAgent,
			MaxRetries: cfg.Discovery.MaxRetries,
		}
	}
	a.analyzer = analyze.New(papers, works, a.chat,
		analyze.WithHTTPClient(client, cfg.Discovery.UserAgent, cfg.Discovery.MaxRetries),
		analyze.WithLogger(logger))

	return a, nil
}
