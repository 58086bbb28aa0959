package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"kelly-curve-lab/internal/dataset"
	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/pipeline"
)

// openEnd is the default window end: every timestamp.
const openEnd = "9223372036854775807"

// window holds the training-window flags shared by fit and pdf.
type window struct {
	pricesPath string
	asset      string
	start      string
	end        string
}

func (w *window) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&w.pricesPath, "prices", "", "CSV price table to import first")
	cmd.Flags().StringVar(&w.asset, "asset", "", "asset column of the price table")
	cmd.Flags().StringVar(&w.start, "start", "0", "window start (YYYY-MM-DD, RFC 3339 or Unix ms)")
	cmd.Flags().StringVar(&w.end, "end", openEnd, "window end (YYYY-MM-DD, RFC 3339 or Unix ms)")
	_ = cmd.MarkFlagRequired("asset")
}

func (w *window) bounds() (startMs, endMs int64, err error) {
	if startMs, err = dataset.ParseTime(w.start); err != nil {
		return 0, 0, fmt.Errorf("--start: %w", err)
	}
	if endMs, err = dataset.ParseTime(w.end); err != nil {
		return 0, 0, fmt.Errorf("--end: %w", err)
	}
	return startMs, endMs, nil
}

func newFitCmd(a *app) *cobra.Command {
	var w window
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit the daily return distribution of an asset",
		Long: `Fit estimates the piecewise distribution of daily log returns over the
training window: a skewed Student-t center with Pareto tails. The fitted
parameters are printed as JSON.

Example:
  kellycurve fit --prices prices.csv --asset BTC --start 2022-01-01 --end 2023-12-31`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			startMs, endMs, err := w.bounds()
			if err != nil {
				return err
			}

			b, err := openBackends(ctx, a.cfg, w.pricesPath, a.log)
			if err != nil {
				return err
			}
			defer b.Close()

			engine, err := pipeline.FromConfig(a.cfg, b.prices, nil, a.log)
			if err != nil {
				return err
			}
			fit, _, err := engine.FitWindow(ctx, w.asset, startMs, endMs)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(fit)
		},
	}
	w.register(cmd)
	return cmd
}

func newPDFCmd(a *app) *cobra.Command {
	var (
		w     window
		day   int
		price float64
	)
	cmd := &cobra.Command{
		Use:   "pdf",
		Short: "Print the price PDF of an asset after a number of days",
		Long: `Pdf fits the daily return distribution, convolves it to the given day and
maps it onto prices around the current price. The result is printed as a
price,density CSV.

Example:
  kellycurve pdf --prices prices.csv --asset BTC --day 30 --price 42000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			startMs, endMs, err := w.bounds()
			if err != nil {
				return err
			}

			b, err := openBackends(ctx, a.cfg, w.pricesPath, a.log)
			if err != nil {
				return err
			}
			defer b.Close()

			engine, err := pipeline.FromConfig(a.cfg, b.prices, nil, a.log)
			if err != nil {
				return err
			}
			pdf, _, err := engine.PricePDF(ctx, domain.CurveRequest{
				Asset:          w.asset,
				Label:          "pdf",
				StartMs:        startMs,
				EndMs:          endMs,
				StrikeFraction: 1,
				CurrentPrice:   price,
			}, day)
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), renderPDF(pdf))
			return err
		},
	}
	w.register(cmd)
	cmd.Flags().IntVar(&day, "day", 1, "days after the current price")
	cmd.Flags().Float64Var(&price, "price", 1, "current price of the asset")
	return cmd
}

func renderPDF(pdf domain.PDF) string {
	var sb strings.Builder
	sb.WriteString("price,density\n")
	for i := range pdf.X {
		sb.WriteString(strconv.FormatFloat(pdf.X[i], 'g', -1, 64))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(pdf.Density[i], 'g', -1, 64))
		sb.WriteByte('\n')
	}
	return sb.String()
}
