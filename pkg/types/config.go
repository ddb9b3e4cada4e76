// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "research-spider/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// CacheConfig holds settings for the discovery candidate cache.
type CacheConfig struct {
	// Path is the SQLite database file. Empty disables caching.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// TTL is how long cached candidate lists stay valid (default 24h).
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
}

// DiscoveryConfig holds settings for the discovery sources and fan-out.
type DiscoveryConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// SourceTimeout bounds every single source call (default 15s).
	SourceTimeout time.Duration `json:"source_timeout" yaml:"source_timeout" mapstructure:"source_timeout"`

	// PerSourceLimit caps the candidates one source returns per call (default 5).
	PerSourceLimit int `json:"per_source_limit" yaml:"per_source_limit" mapstructure:"per_source_limit"`

	// RequestsPerSecond limits calls per source. Zero disables limiting.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// MaxRetries bounds HTTP 429 retries inside adapters (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	EnableSemanticScholar bool `json:"enable_semantic_scholar" yaml:"enable_semantic_scholar" mapstructure:"enable_semantic_scholar"`
	EnableOpenAlex        bool `json:"enable_openalex" yaml:"enable_openalex" mapstructure:"enable_openalex"`
	EnableArxiv           bool `json:"enable_arxiv" yaml:"enable_arxiv" mapstructure:"enable_arxiv"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty" mapstructure:"semantic_scholar_api_key"`

	// OpenAlexEmail is sent as mailto for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty" mapstructure:"openalex_email"`

	Cache CacheConfig `json:"cache" yaml:"cache" mapstructure:"cache"`
}

// ExpansionConfig holds graph expansion defaults and limits.
type ExpansionConfig struct {
	// DefaultMaxNodes applies when a request omits max_nodes (default 30).
	DefaultMaxNodes int `json:"default_max_nodes" yaml:"default_max_nodes" mapstructure:"default_max_nodes"`

	// DefaultMaxDepth applies when a request omits max_depth (default 2).
	DefaultMaxDepth int `json:"default_max_depth" yaml:"default_max_depth" mapstructure:"default_max_depth"`

	// MaxNodesLimit is the largest accepted max_nodes (default 100).
	MaxNodesLimit int `json:"max_nodes_limit" yaml:"max_nodes_limit" mapstructure:"max_nodes_limit"`

	// MaxDepthLimit is the largest accepted max_depth (default 5).
	MaxDepthLimit int `json:"max_depth_limit" yaml:"max_depth_limit" mapstructure:"max_depth_limit"`

	// Concurrency is how many frontier items are fanned out at once (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`

	// CrossLinkFanouts bounds the extra fan-outs run after the node budget
	// is spent, used only to discover edges among admitted nodes (default 5).
	// Fan-outs of one chunk that were in flight when the budget ran out
	// count against it; they can exceed it by at most Concurrency-1.
	CrossLinkFanouts int `json:"cross_link_fanouts" yaml:"cross_link_fanouts" mapstructure:"cross_link_fanouts"`
}

// AIConfig holds settings for the conversational backend.
type AIConfig struct {
	// Model is the AI model identifier.
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxTokens bounds the answer length (default 400).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// Timeout bounds one backend call (default 15s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// ContextLimit is the default number of related papers passed to chat (default 10).
	ContextLimit int `json:"context_limit" yaml:"context_limit" mapstructure:"context_limit"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Addr is the listen address (default ":8000").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// SessionTTL evicts sessions idle for longer than this (default 1h).
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl" mapstructure:"session_ttl"`
}

// Config groups all component configurations.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Discovery DiscoveryConfig `json:"discovery" yaml:"discovery" mapstructure:"discovery"`
	Expansion ExpansionConfig `json:"expansion" yaml:"expansion" mapstructure:"expansion"`
	Chat      AIConfig        `json:"chat" yaml:"chat" mapstructure:"chat"`
}

// DefaultConfig returns the configuration used when no file or flag
// overrides a setting.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:       ":8000",
			SessionTTL: time.Hour,
		},
		Discovery: DiscoveryConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "research-spider/0.1",
			},
			SourceTimeout:         15 * time.Second,
			PerSourceLimit:        5,
			RequestsPerSecond:     5,
			MaxRetries:            2,
			EnableSemanticScholar: true,
			EnableOpenAlex:        true,
			EnableArxiv:           true,
			Cache: CacheConfig{
				TTL: 24 * time.Hour,
			},
		},
		Expansion: ExpansionConfig{
			DefaultMaxNodes:  30,
			DefaultMaxDepth:  2,
			MaxNodesLimit:    100,
			MaxDepthLimit:    5,
			Concurrency:      4,
			CrossLinkFanouts: 5,
		},
		Chat: AIConfig{
			Model:        "claude-3-5-sonnet-20240620",
			MaxTokens:    400,
			Timeout:      15 * time.Second,
			ContextLimit: 10,
		},
	}
}
