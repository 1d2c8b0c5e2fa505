package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-intel/internal/observability"
	"github.com/jonathan/job-intel/internal/parsing"
)

var (
	parseJobURL  string
	parseJobJSON bool
)

var parseJobCmd = &cobra.Command{
	Use:   "parse-job",
	Short: "Fetch a job posting and print its extracted details",
	Long:  "Fetch a job posting and extract its title, company, location, summary and key points without calling the language model.",
	RunE:  runParseJob,
}

func init() {
	parseJobCmd.Flags().StringVarP(&parseJobURL, "url", "u", "", "Job posting URL (required)")
	parseJobCmd.Flags().BoolVar(&parseJobJSON, "json", false, "Print details as JSON")
	_ = parseJobCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(parseJobCmd)
}

func runParseJob(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.FetchTimeout.Std())
	defer cancel()

	doc, err := newFetcher(cfg, outboundClient(cfg)).Fetch(ctx, parseJobURL)
	if err != nil {
		return fmt.Errorf("failed to fetch job posting: %w", err)
	}
	details, err := parsing.ExtractDetails(doc.HTML, doc.FinalURL, parsing.WithSummarySentences(parsing.DetailSummarySentences))
	if err != nil {
		return fmt.Errorf("failed to extract job details: %w", err)
	}

	if parseJobJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(details)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintJobDetails(details)
	return nil
}
