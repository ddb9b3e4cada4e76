// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-spider CLI: an HTTP
// server for the graph explorer plus one-shot analyze and expand commands.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-spider/internal/secrets"
	"github.com/pdiddy/research-spider/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from the secrets directory and
// the environment at startup.
var loadedSecrets map[string]string

var rootCmd = &cobra.Command{
	Use:   "research-spider",
	Short: "Explore the neighbourhood of a research paper as a graph",
	Long: `research-spider turns a paper link or a free-text research plan into a
bounded graph of related papers. Related papers are discovered through
citations, semantic similarity, shared keywords, and shared authors using
Semantic Scholar, OpenAlex, and arXiv.

Run "research-spider serve" for the HTTP API used by the graph explorer, or
the analyze and expand commands for one-shot use from a terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			slog.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-spider.yaml or ~/.config/research-spider/research-spider.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of credential files")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("cache", "", "SQLite file for cached discovery results (empty disables)")
	viper.BindPFlag("discovery.cache.path", rootCmd.PersistentFlags().Lookup("cache"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-spider")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-spider"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_SPIDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper(), types.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
