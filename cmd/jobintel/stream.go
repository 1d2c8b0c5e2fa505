package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-intel/internal/observability"
	"github.com/jonathan/job-intel/internal/pipeline"
	"github.com/jonathan/job-intel/internal/streamclient"
)

var (
	streamJobURL      string
	streamResumeID    string
	streamResearch    bool
	streamPreferences string
	streamServer      string
	streamAPIKey      string
	streamJSON        bool
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Run the pipeline for one job posting and print its progress",
	Long: "Run the job intelligence pipeline for one posting. With --server the run " +
		"is requested from a running server and its event stream is consumed; " +
		"otherwise it runs in process.",
	RunE: runStream,
}

func init() {
	streamCmd.Flags().StringVarP(&streamJobURL, "url", "u", "", "Job posting URL (required)")
	streamCmd.Flags().StringVarP(&streamResumeID, "resume", "r", "", "Résumé id (required)")
	streamCmd.Flags().BoolVar(&streamResearch, "research", false, "Research the hiring company")
	streamCmd.Flags().StringVar(&streamPreferences, "preferences", "", "Preferences as JSON, or free-text notes")
	streamCmd.Flags().StringVar(&streamServer, "server", "", "Base URL of a running jobintel server")
	streamCmd.Flags().StringVar(&streamAPIKey, "api-key", "", "Shared secret for --server (defaults to JOB_INTEL_API_KEY)")
	streamCmd.Flags().BoolVar(&streamJSON, "json", false, "Print the result payload as JSON")
	_ = streamCmd.MarkFlagRequired("url")
	_ = streamCmd.MarkFlagRequired("resume")
	rootCmd.AddCommand(streamCmd)
}

// parsePreferences reads a JSON value, falling back to the raw text.
func parsePreferences(raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func runStream(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := pipeline.Request{
		JobURL:          streamJobURL,
		ResumeID:        streamResumeID,
		IncludeResearch: streamResearch,
		Preferences:     parsePreferences(streamPreferences),
	}
	printer := observability.NewPrinter(cmd.ErrOrStderr())

	var (
		result *pipeline.ResultPayload
		err    error
	)
	if streamServer != "" {
		result, err = streamRemote(ctx, req, printer)
	} else {
		result, err = streamLocal(ctx, req, printer)
	}
	if err != nil {
		return err
	}

	if streamJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintResult(result)
	return nil
}

func streamRemote(ctx context.Context, req pipeline.Request, printer *observability.Printer) (*pipeline.ResultPayload, error) {
	key := streamAPIKey
	if key == "" {
		key = cfg.APIKey
	}
	client := streamclient.New(streamServer, streamclient.WithAPIKey(key))
	out, err := client.Stream(ctx, req, streamclient.Handlers{OnProgress: printer.PrintProgress})
	var se *streamclient.StreamError
	if errors.As(err, &se) {
		printer.PrintError(se.Message)
	}
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

func streamLocal(ctx context.Context, req pipeline.Request, printer *observability.Printer) (*pipeline.ResultPayload, error) {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	var result *pipeline.ResultPayload
	emitter := pipeline.EmitterFunc(func(event string, payload any) error {
		switch p := payload.(type) {
		case pipeline.ProgressEvent:
			printer.PrintProgress(p)
		case *pipeline.ResultPayload:
			result = p
		case pipeline.ErrorPayload:
			printer.PrintError(p.Message)
		}
		return nil
	})

	if err := a.orchestrator.Run(ctx, req, emitter); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("run finished without a result")
	}
	return result, nil
}
