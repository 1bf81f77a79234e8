package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locate-qa/internal/category"
	"github.com/sells-group/locate-qa/internal/classify"
	"github.com/sells-group/locate-qa/internal/export"
	"github.com/sells-group/locate-qa/internal/model"
	"github.com/sells-group/locate-qa/internal/report"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Classify every point and score the run",
	Long: `Runs the proximity audit over all locate points: assigns each point to
a distance band, evaluates the locate-score and GPS gates, writes the
derived fields back, and recreates the analysis results table.

Categories come from the config file or from repeated --category flags:

  audit --category "Excellent:5::auth" --category "Good:15:P|F:auth"

Flag format is NAME:MAX_FEET[:PASS_VALUES[:auth]], pass values separated
by "|".`,
	RunE: runAudit,
}

func init() {
	f := auditCmd.Flags()
	f.StringArray("category", nil, "distance band as NAME:MAX_FEET[:PASS_VALUES[:auth]] (repeatable)")
	f.Float64("threshold", 0, "required overall pass rate percent (default from config)")
	f.Float64("min-score", -1, "minimum locate score (default from config)")
	f.String("gps-codes", "", "comma-separated valid GPS fix codes (default from config)")
	f.String("xlsx", "", "also write the run summary to an XLSX file")

	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if err := cfg.Validate("audit"); err != nil {
		return err
	}

	specs, err := auditCategorySpecs(cmd)
	if err != nil {
		return err
	}
	table, err := category.Build(specs)
	if err != nil {
		return err
	}

	threshold := cfg.Audit.PassThresholdPercent
	if v, _ := cmd.Flags().GetFloat64("threshold"); v > 0 {
		threshold = v
	}
	minScore := cfg.Audit.MinLocateScore
	if v, _ := cmd.Flags().GetFloat64("min-score"); v >= 0 {
		minScore = v
	}
	gpsCodes := cfg.Audit.GPSCodes()
	if v, _ := cmd.Flags().GetString("gps-codes"); v != "" {
		gpsCodes = strings.Split(v, ",")
		for i := range gpsCodes {
			gpsCodes[i] = strings.TrimSpace(gpsCodes[i])
		}
	}

	b, err := initBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.store.Migrate(ctx); err != nil {
		return err
	}

	rules := classify.Rules{
		MinLocateScore: minScore,
		ValidGPSCodes:  classify.GPSCodeSet(gpsCodes),
	}
	if tableHasPassValues(table) {
		rules.PassLookup = func(lineID int64) (string, bool, error) {
			return b.store.LinePassValue(ctx, lineID)
		}
	}

	run, err := b.store.CreateRun(ctx)
	if err != nil {
		return err
	}
	log := zap.L().With(zap.String("run", run.ID))
	log.Info("audit started",
		zap.Int("categories", table.Count()),
		zap.Float64("threshold", threshold),
	)

	points, err := b.store.ListPoints(ctx)
	if err != nil {
		return failRun(ctx, b, run, eris.Wrap(err, "audit: list points"))
	}

	classifier := classify.New(table, rules)
	for i := range points {
		p := &points[i]
		if err := classifier.Classify(p); err != nil {
			return failRun(ctx, b, run, err)
		}
		if p.NearDistanceM == nil {
			continue
		}
		if err := b.store.WritePointDerived(ctx, p); err != nil {
			return failRun(ctx, b, run, err)
		}
	}

	summary := report.Build(table, classifier.Result(), threshold)

	if err := b.store.ReplaceAnalysisResults(ctx, summary.Categories); err != nil {
		return failRun(ctx, b, run, err)
	}

	run.Status = model.RunStatusComplete
	run.TotalPoints = summary.TotalPoints
	run.ProcessedPoints = summary.ProcessedPoints
	run.OverallPassRate = summary.OverallPassRate
	run.Passed = summary.Passed
	if err := b.store.FinishRun(ctx, run); err != nil {
		return err
	}

	log.Info("audit complete",
		zap.Int("total_points", summary.TotalPoints),
		zap.Int("processed_points", summary.ProcessedPoints),
		zap.Float64("overall_pass_rate", summary.OverallPassRate),
		zap.Bool("passed", summary.Passed),
	)

	summary.Render(os.Stdout)

	if path, _ := cmd.Flags().GetString("xlsx"); path != "" {
		if err := export.WriteResults(path, summary); err != nil {
			return err
		}
		fmt.Printf("\nSummary written to %s\n", path)
	}

	return nil
}

// auditCategorySpecs resolves the band list: --category flags win over
// the config file.
func auditCategorySpecs(cmd *cobra.Command) ([]category.Spec, error) {
	raw, _ := cmd.Flags().GetStringArray("category")
	if len(raw) == 0 {
		if len(cfg.Custom) == 0 {
			return nil, eris.Wrap(category.ErrConfiguration, "no categories configured: set categories in config.yaml or pass --category")
		}
		return cfg.Custom, nil
	}

	specs := make([]category.Spec, 0, len(raw))
	for _, r := range raw {
		s, err := parseCategoryFlag(r)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// parseCategoryFlag parses NAME:MAX_FEET[:PASS_VALUES[:auth]].
func parseCategoryFlag(raw string) (category.Spec, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 4 {
		return category.Spec{}, eris.Wrapf(category.ErrConfiguration,
			"--category %q: want NAME:MAX_FEET[:PASS_VALUES[:auth]]", raw)
	}

	spec := category.Spec{Name: strings.TrimSpace(parts[0])}

	dist, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return category.Spec{}, eris.Wrapf(category.ErrConfiguration,
			"--category %q: bad max distance %q", raw, parts[1])
	}
	spec.MaxDistance = dist

	if len(parts) >= 3 && parts[2] != "" {
		spec.PassValues = strings.Split(parts[2], "|")
	}
	if len(parts) == 4 {
		switch parts[3] {
		case "auth":
			spec.RequiresAuthentication = true
		case "noauth", "":
		default:
			return category.Spec{}, eris.Wrapf(category.ErrConfiguration,
				"--category %q: last field must be auth or noauth", raw)
		}
	}

	return spec, nil
}

func tableHasPassValues(table *category.Table) bool {
	for _, band := range table.Bands() {
		if band.HasPassValues() {
			return true
		}
	}
	return false
}

// failRun marks the run failed before surfacing the error. The marking
// is best-effort: the original error always wins.
func failRun(ctx context.Context, b *backend, run *model.Run, err error) error {
	run.Status = model.RunStatusFailed
	if ferr := b.store.FinishRun(ctx, run); ferr != nil {
		zap.L().Warn("could not mark run failed", zap.Error(ferr))
	}
	return err
}
