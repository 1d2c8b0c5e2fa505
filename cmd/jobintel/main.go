// Package main provides the entry point for the job intelligence server and
// its companion CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-intel/internal/config"
	"github.com/jonathan/job-intel/internal/logging"
)

var (
	configPath string
	logLevel   string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "jobintel",
	Short: "Job intelligence server and CLI",
	Long: "jobintel fetches a job posting, optionally researches the hiring company, " +
		"and drafts a tailored cover letter, streaming progress as Server-Sent Events.",
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		opts := logging.FromEnv()
		if logLevel != "" {
			opts.Level = logLevel
		}
		logging.Init(opts)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
