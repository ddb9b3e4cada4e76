// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-spider/internal/secrets"
	"github.com/pdiddy/research-spider/pkg/types"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("RESEARCH_SPIDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, types.DefaultConfig())
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper(), nil)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), cfg)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("RESEARCH_SPIDER_EXPANSION_CONCURRENCY", "8")
	t.Setenv("RESEARCH_SPIDER_SERVER_SESSION_TTL", "2h")
	t.Setenv("RESEARCH_SPIDER_DISCOVERY_ENABLE_ARXIV", "false")
	t.Setenv("RESEARCH_SPIDER_DISCOVERY_USER_AGENT", "spider-test/1.0")

	cfg, err := loadConfig(newTestViper(), nil)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Expansion.Concurrency)
	assert.Equal(t, 2*time.Hour, cfg.Server.SessionTTL)
	assert.False(t, cfg.Discovery.EnableArxiv)
	assert.Equal(t, "spider-test/1.0", cfg.Discovery.UserAgent)
	assert.Equal(t, 30, cfg.Expansion.DefaultMaxNodes)
}

func TestLoadConfigSecretsFillGaps(t *testing.T) {
	v := newTestViper()
	v.Set("chat.api_key", "from-config")

	cfg, err := loadConfig(v, map[string]string{
		secrets.AnthropicAPIKey:       "from-secrets",
		secrets.SemanticScholarAPIKey: "s2-key",
	})
	require.NoError(t, err)
	assert.Equal(t, "from-config", cfg.Chat.APIKey)
	assert.Equal(t, "s2-key", cfg.Discovery.SemanticScholarAPIKey)
	assert.Empty(t, cfg.Discovery.OpenAlexEmail)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", true)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger, err = newLogger(&buf, "debug", false)
	require.NoError(t, err)
	logger.Debug("text line")
	assert.Contains(t, buf.String(), "msg=\"text line\"")

	_, err = newLogger(&buf, "loud", false)
	assert.Error(t, err)
}

func TestWriteOutput(t *testing.T) {
	v := analyzeOutput{
		InputType: types.InputPaperLink,
		Metadata:  types.PaperMetadata{ID: "10.1000/x", Title: "A Paper", Year: 2020},
	}

	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, "json", v))
	assert.Contains(t, buf.String(), `"input_type": "paper_link"`)
	assert.Contains(t, buf.String(), `  "metadata": {`)

	buf.Reset()
	require.NoError(t, writeOutput(&buf, "yaml", v))
	assert.Contains(t, buf.String(), "input_type: paper_link\n")
	assert.Contains(t, buf.String(), "  title: A Paper\n")

	assert.ErrorContains(t, writeOutput(&buf, "xml", v), `unsupported format "xml"`)
}
