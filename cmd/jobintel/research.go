package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-intel/internal/observability"
	"github.com/jonathan/job-intel/internal/research"
)

var (
	researchCompany string
	researchJSON    bool
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Research a company from its official website",
	Long:  "Search for a company's official site, fetch its about, values and product pages, and print the facts found.",
	RunE:  runResearch,
}

func init() {
	researchCmd.Flags().StringVarP(&researchCompany, "company", "c", "", "Company name (required)")
	researchCmd.Flags().BoolVar(&researchJSON, "json", false, "Print the research payload as JSON")
	_ = researchCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, _ []string) error {
	company := strings.TrimSpace(researchCompany)
	if company == "" {
		return fmt.Errorf("--company must not be blank")
	}

	agg, err := newResearcher(cmd.Context(), cfg, outboundClient(cfg))
	if err != nil {
		return err
	}
	if !agg.Enabled() {
		return research.ErrSearchNotConfigured
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ResearchTimeout.Std())
	defer cancel()
	payload, err := agg.Research(ctx, company)
	if err != nil {
		return fmt.Errorf("company research failed: %w", err)
	}

	if researchJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintResearch(payload)
	return nil
}
