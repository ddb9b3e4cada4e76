// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-spider/internal/bibliography"
	"github.com/pdiddy/research-spider/internal/expand"
	"github.com/pdiddy/research-spider/pkg/types"
)

var expandCmd = &cobra.Command{
	Use:   "expand",
	Short: "Expand a graph of related papers from a root",
	Long: `Expand builds a bounded graph around a root paper and prints it. The root
is given by --title (optionally with --doi), or by --input, which is first
passed through the same analysis as the analyze command. A summary of the
run is written to stderr. --format csl prints the nodes as a CSL-YAML
bibliography for Pandoc or a reference manager.`,
	RunE: runExpand,
}

func init() {
	expandCmd.Flags().String("title", "", "root paper title")
	expandCmd.Flags().String("doi", "", "root paper DOI")
	expandCmd.Flags().String("input", "", "free text, DOI, arXiv id or URL to analyze into the root")
	expandCmd.Flags().Int("max-nodes", 0, "node budget (default from config, 30)")
	expandCmd.Flags().Int("max-depth", -1, "maximum BFS depth (default from config, 2)")
	expandCmd.Flags().String("format", "json", "output format: json, yaml, or csl (CSL-YAML bibliography)")

	rootCmd.AddCommand(expandCmd)
}

func runExpand(cmd *cobra.Command, args []string) error {
	title, _ := cmd.Flags().GetString("title")
	doi, _ := cmd.Flags().GetString("doi")
	input, _ := cmd.Flags().GetString("input")
	if title == "" && input == "" {
		return fmt.Errorf("provide --title or --input")
	}

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

	root := types.PaperMetadata{ID: doi, Title: title}
	if input != "" {
		_, root, err = a.analyzer.Analyze(cmd.Context(), input)
		if err != nil {
			return fmt.Errorf("analyzing input: %w", err)
		}
	}

	req := types.ExpansionRequest{
		RootMetadata: root,
		MaxNodes:     cfg.Expansion.DefaultMaxNodes,
		MaxDepth:     cfg.Expansion.DefaultMaxDepth,
	}
	if n, _ := cmd.Flags().GetInt("max-nodes"); n != 0 {
		req.MaxNodes = n
	}
	if d, _ := cmd.Flags().GetInt("max-depth"); d >= 0 {
		req.MaxDepth = d
	}

	g, stats, err := a.engine.Expand(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("expanding graph: %w", err)
	}
	printStats(cmd.ErrOrStderr(), stats)

	format, _ := cmd.Flags().GetString("format")
	if format == "csl" {
		return bibliography.Write(cmd.OutOrStdout(), g)
	}
	return writeOutput(cmd.OutOrStdout(), format, g)
}

func printStats(w io.Writer, s expand.Stats) {
	fmt.Fprintf(w, "Graph: %d nodes, %d edges, %d fan-outs (%d cross-link) in %s\n",
		s.Nodes, s.Edges, s.Fanouts, s.CrossLinkFanouts, s.Duration.Round(time.Millisecond))
	if s.BudgetExhausted {
		fmt.Fprintln(w, "  node budget exhausted: more related papers were found than admitted")
	}
	for _, e := range s.SourceErrors {
		fmt.Fprintf(w, "  source %s (%s) failed for %s: %v\n", e.Source, e.Signal, e.PaperID, e.Err)
	}
}
