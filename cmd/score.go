package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urban-climate-lab/resilience-cli/internal/export"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score sections against the active vulnerability indicators",
	Long: `Loads the point dataset, fits per-field normalization windows from the
5th-95th percentile of the observed values, and computes each section's
composite vulnerability score as the mean of the selected indicators.

Examples:
  # Score with heat and drought active
  score --fields heat,SPEI

  # Export all four default indicators to a spreadsheet
  score --fields heat,SPEI,pop_sex3,renda --format xlsx --output scores.xlsx

  # Only sections inside the focus circle
  score --fields heat --focus-only`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("fields", "", "comma-separated indicator names to activate")
	f.Bool("focus-only", false, "limit output to sections inside the focus circle")
	f.String("output", "", "output file path (default: stdout)")
	f.String("format", "table", "output format: table, csv or xlsx")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("score"); err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	focusOnly, _ := cmd.Flags().GetBool("focus-only")
	fieldsFlag, _ := cmd.Flags().GetString("fields")

	if format != "table" && format != "csv" && format != "xlsx" {
		return eris.Errorf("score: --format must be table, csv or xlsx (got %q)", format)
	}

	sess, err := buildSession(ctx)
	if err != nil {
		return err
	}
	if fieldsFlag != "" {
		if err := toggleFields(sess, splitAndTrim(fieldsFlag)); err != nil {
			return err
		}
	}

	zap.L().Info("scoring complete",
		zap.Int("points", len(sess.Points())),
		zap.Strings("active", sess.ActiveFields()),
	)

	points := sess.Points()
	results := sess.Results()

	table := &export.Table{Header: []string{"name", "lng", "lat", "score", "in_focus"}}
	for i, p := range points {
		if focusOnly && !results[i].InFocus {
			continue
		}
		table.Rows = append(table.Rows, []string{
			p.Name,
			strconv.FormatFloat(p.Coord.Lng, 'f', 6, 64),
			strconv.FormatFloat(p.Coord.Lat, 'f', 6, 64),
			strconv.FormatFloat(results[i].Score, 'f', 4, 64),
			strconv.FormatBool(results[i].InFocus),
		})
	}

	w, closeOutput, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer closeOutput()

	if err := table.Write(w, format, "scores"); err != nil {
		return err
	}
	if outputPath != "" {
		fmt.Printf("Wrote %d rows to %s\n", len(table.Rows), outputPath)
	}
	return nil
}

func splitAndTrim(s string) []string {
	var result []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
