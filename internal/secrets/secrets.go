// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API credentials from a directory of plain-text
// files and the environment. Each file holds one secret: the filename is
// the key name and the trimmed contents are the value. An environment
// variable, when set, overrides the file.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/research-spider/pkg/types"
)

// Key file names.
const (
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	AnthropicAPIKey       = "anthropic-api-key"
	OpenAlexEmail         = "openalex-email"
)

// EnvVars maps each key to the environment variable that overrides it.
var EnvVars = map[string]string{
	SemanticScholarAPIKey: "SEMANTIC_SCHOLAR_API_KEY",
	AnthropicAPIKey:       "ANTHROPIC_API_KEY",
	OpenAlexEmail:         "OPENALEX_EMAIL",
}

// Load reads every regular, non-hidden file in dir, then applies
// environment overrides from EnvVars. A missing directory is not an
// error. Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	secrets, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	for key, env := range EnvVars {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			secrets[key] = v
		}
	}
	return secrets, nil
}

func readDir(dir string) (map[string]string, error) {
	secrets := make(map[string]string)
	if dir == "" {
		return secrets, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return secrets, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[name] = value
		}
	}
	return secrets, nil
}

// Apply fills credentials in cfg that are still empty. Values already set
// by the config file or flags win.
func Apply(cfg *types.Config, secrets map[string]string) {
	if cfg.Discovery.SemanticScholarAPIKey == "" {
		cfg.Discovery.SemanticScholarAPIKey = secrets[SemanticScholarAPIKey]
	}
	if cfg.Discovery.OpenAlexEmail == "" {
		cfg.Discovery.OpenAlexEmail = secrets[OpenAlexEmail]
	}
	if cfg.Chat.APIKey == "" {
		cfg.Chat.APIKey = secrets[AnthropicAPIKey]
	}
}
