package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/locate-qa/internal/export"
	"github.com/sells-group/locate-qa/internal/model"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show the current analysis results table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		b, err := initBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.store.Migrate(ctx); err != nil {
			return err
		}

		results, err := b.store.ListAnalysisResults(ctx)
		if err != nil {
			return eris.Wrap(err, "results")
		}
		if len(results) == 0 {
			fmt.Fprintln(os.Stderr, "No analysis results found. Run an audit first.")
			return nil
		}

		if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
			if err := export.WriteResultRows(path, results); err != nil {
				return err
			}
			fmt.Printf("Results written to %s\n", path)
			return nil
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "table":
			formatResults(os.Stdout, results)
			return nil
		case "yaml":
			return yaml.NewEncoder(os.Stdout).Encode(results)
		default:
			return eris.Errorf("results: unknown format %q (want table or yaml)", format)
		}
	},
}

func init() {
	resultsCmd.Flags().String("format", "table", "output format: table or yaml")
	resultsCmd.Flags().String("xlsx", "", "write results to an XLSX file instead of stdout")
	rootCmd.AddCommand(resultsCmd)
}

// formatResults writes the analysis table to w.
func formatResults(out io.Writer, results []model.CategoryResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CATEGORY\tPOINTS_PASSED\tPASS_RATE\tMAX_DISTANCE")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%.1f\n", r.Category, r.PointsPassed, r.PassRate, r.MaxDistance)
	}
	_ = w.Flush()
}
