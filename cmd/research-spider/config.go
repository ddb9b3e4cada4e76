// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/research-spider/internal/secrets"
	"github.com/pdiddy/research-spider/pkg/types"
)

// setDefaults registers every configurable key so that environment
// variables (RESEARCH_SPIDER_EXPANSION_CONCURRENCY, ...) reach Unmarshal.
func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.session_ttl", d.Server.SessionTTL)

	v.SetDefault("discovery.timeout", d.Discovery.Timeout)
	v.SetDefault("discovery.user_agent", d.Discovery.UserAgent)
	v.SetDefault("discovery.source_timeout", d.Discovery.SourceTimeout)
	v.SetDefault("discovery.per_source_limit", d.Discovery.PerSourceLimit)
	v.SetDefault("discovery.requests_per_second", d.Discovery.RequestsPerSecond)
	v.SetDefault("discovery.max_retries", d.Discovery.MaxRetries)
	v.SetDefault("discovery.enable_semantic_scholar", d.Discovery.EnableSemanticScholar)
	v.SetDefault("discovery.enable_openalex", d.Discovery.EnableOpenAlex)
	v.SetDefault("discovery.enable_arxiv", d.Discovery.EnableArxiv)
	v.SetDefault("discovery.semantic_scholar_api_key", "")
	v.SetDefault("discovery.openalex_email", "")
	v.SetDefault("discovery.cache.path", d.Discovery.Cache.Path)
	v.SetDefault("discovery.cache.ttl", d.Discovery.Cache.TTL)

	v.SetDefault("expansion.default_max_nodes", d.Expansion.DefaultMaxNodes)
	v.SetDefault("expansion.default_max_depth", d.Expansion.DefaultMaxDepth)
	v.SetDefault("expansion.max_nodes_limit", d.Expansion.MaxNodesLimit)
	v.SetDefault("expansion.max_depth_limit", d.Expansion.MaxDepthLimit)
	v.SetDefault("expansion.concurrency", d.Expansion.Concurrency)
	v.SetDefault("expansion.cross_link_fanouts", d.Expansion.CrossLinkFanouts)

	v.SetDefault("chat.model", d.Chat.Model)
	v.SetDefault("chat.api_key", "")
	v.SetDefault("chat.max_tokens", d.Chat.MaxTokens)
	v.SetDefault("chat.timeout", d.Chat.Timeout)
	v.SetDefault("chat.context_limit", d.Chat.ContextLimit)
}

// loadConfig decodes the viper settings over the defaults and fills
// missing credentials from the loaded secrets.
func loadConfig(v *viper.Viper, loaded map[string]string) (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	secrets.Apply(&cfg, loaded)
	return cfg, nil
}

// newLogger builds the process logger: JSON for the server, text for
// one-shot commands.
func newLogger(w io.Writer, level string, json bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
