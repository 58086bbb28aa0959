package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"kelly-curve-lab/internal/observability"
	"kelly-curve-lab/internal/orchestrator"
	"kelly-curve-lab/internal/pipeline"
	"kelly-curve-lab/internal/reporting"
)

// Output file names written by generate.
const (
	reportFile = "REPORT.md"
	curvesCSV  = "curves.csv"
	pointsCSV  = "curve_points.csv"
	curvesJSON = "curves.json"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		requestsPath string
		pricesPath   string
		outDir       string
		failOnError  bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate curves for every row of a request table",
		Long: `Generate reads curve requests from a CSV table, generates a curve for each
one concurrently and writes a markdown report, CSV summaries and the full
records as JSON to the output directory.

A failed request is reported and does not stop the others.

Examples:
  kellycurve generate --requests requests.csv --prices prices.csv
  kellycurve generate --config prod.yaml --requests requests.csv --out out/`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			reqs, err := readRequests(requestsPath)
			if err != nil {
				return err
			}

			b, err := openBackends(ctx, a.cfg, pricesPath, a.log)
			if err != nil {
				return err
			}
			defer b.Close()

			metrics := observability.NewMetrics("", nil)
			engine, err := pipeline.FromConfig(a.cfg, b.prices, metrics, a.log.With().Str("component", "pipeline").Logger())
			if err != nil {
				return err
			}

			orch := orchestrator.New(orchestrator.Options{
				Engine:    engine,
				Store:     b.curves,
				Publisher: b.publisher,
				Workers:   a.cfg.Batch.Workers,
				Progress: orchestrator.SerializedProgress(func(ev orchestrator.ProgressEvent) {
					a.log.Debug().
						Int("index", ev.Index).
						Str("asset", ev.Asset).
						Int("done", ev.Done).
						Int("total", ev.Total).
						Msg("boundary progress")
				}),
				Metrics: metrics,
				Logger:  a.log.With().Str("component", "orchestrator").Logger(),
			})

			result, runErr := orch.Run(ctx, reqs)
			if result == nil {
				return runErr
			}

			failures := make([]string, len(result.Failures))
			for i, f := range result.Failures {
				failures[i] = f.String()
			}
			report := reporting.NewGenerator(b.curves).WithFailures(failures).FromRecords(result.Records)
			if err := writeOutputs(outDir, report, result); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generated %d/%d curves in %s\n",
				result.Succeeded, result.Requested, result.Duration.Round(time.Millisecond))
			for _, name := range []string{reportFile, curvesCSV, pointsCSV, curvesJSON} {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", filepath.Join(outDir, name))
			}
			for kind, n := range result.FailureKinds() {
				fmt.Fprintf(cmd.OutOrStdout(), "  failed (%s): %d\n", kind, n)
			}

			switch {
			case runErr != nil:
				return runErr
			case result.PublishErr != nil:
				return fmt.Errorf("publish: %w", result.PublishErr)
			case failOnError && result.Failed > 0:
				return fmt.Errorf("%d of %d requests failed", result.Failed, result.Requested)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&requestsPath, "requests", "", "CSV table of curve requests")
	cmd.Flags().StringVar(&pricesPath, "prices", "", "CSV price table to import before generating")
	cmd.Flags().StringVar(&outDir, "out", "out", "output directory")
	cmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "exit non-zero if any request fails")
	_ = cmd.MarkFlagRequired("requests")
	return cmd
}

func writeOutputs(dir string, report *reporting.Report, result *orchestrator.RunResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	records, err := json.MarshalIndent(result.Records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	files := map[string][]byte{
		reportFile: []byte(reporting.RenderMarkdown(report)),
		curvesCSV:  []byte(reporting.RenderCSV(report.Curves)),
		pointsCSV:  []byte(reporting.RenderPointsCSV(result.Records)),
		curvesJSON: records,
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
