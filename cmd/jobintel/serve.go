package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/job-intel/internal/server"
	"github.com/jonathan/job-intel/internal/server/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start an HTTP server that streams job intelligence runs over Server-Sent Events.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	port := cfg.Port
	if servePort != 0 {
		port = servePort
	}

	rl := ratelimit.LoadConfig()
	if rl.Enabled {
		rl.EndpointConfigs = ratelimit.PipelineEndpoints(cfg.RateLimit, cfg.RateWindow.Std())
	}

	srv := server.New(server.Config{
		Port:           port,
		APIKey:         cfg.APIKey,
		Heartbeat:      cfg.Heartbeat.Std(),
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      rl,
	}, server.Deps{
		Pipeline:     a.orchestrator,
		Fetcher:      a.fetcher,
		Resumes:      a.resumes,
		FetchTimeout: cfg.FetchTimeout.Std(),
	})
	return srv.Start()
}
