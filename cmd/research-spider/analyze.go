// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-spider/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <text...>",
	Short: "Classify input and resolve it to root metadata",
	Long: `Analyze decides whether the input is a paper link (DOI, arXiv id, or URL)
or a research plan, then resolves it: papers through Semantic Scholar,
OpenAlex, or the landing page; plans through the chat backend or a local
summary when no API key is configured.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("format", "json", "output format: json or yaml")
	rootCmd.AddCommand(analyzeCmd)
}

type analyzeOutput struct {
	InputType types.InputType     `json:"input_type" yaml:"input_type"`
	Metadata  types.PaperMetadata `json:"metadata" yaml:"metadata"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(os.Stderr, level, false)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(viper.GetViper(), loadedSecrets)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	kind, meta, err := a.analyzer.Analyze(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("analyzing input: %w", err)
	}
	format, _ := cmd.Flags().GetString("format")
	return writeOutput(cmd.OutOrStdout(), format, analyzeOutput{InputType: kind, Metadata: meta})
}
