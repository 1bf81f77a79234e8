package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locate-qa/internal/importer"
	"github.com/sells-group/locate-qa/internal/shapeload"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load locate points and facility lines",
}

var importPointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Load or refresh locate points from a CSV export",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		csvPath, _ := cmd.Flags().GetString("csv")
		if csvPath == "" {
			return eris.New("import points: --csv is required")
		}

		points, err := importer.ReadPoints(csvPath)
		if err != nil {
			return err
		}
		if len(points) == 0 {
			fmt.Println("No points found in CSV.")
			return nil
		}

		b, err := initBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.store.Migrate(ctx); err != nil {
			return err
		}

		stats, err := b.store.UpsertPoints(ctx, points)
		if err != nil {
			return eris.Wrap(err, "import points")
		}

		zap.L().Info("points imported",
			zap.Int("inserted", stats.Inserted),
			zap.Int("updated", stats.Updated),
			zap.Int("replaced", stats.Replaced),
		)
		fmt.Printf("Points: %d inserted, %d updated, %d replaced (location change)\n",
			stats.Inserted, stats.Updated, stats.Replaced)
		return nil
	},
}

var importLinesCmd = &cobra.Command{
	Use:   "lines",
	Short: "Load facility lines from a shapefile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		shpPath, _ := cmd.Flags().GetString("shp")
		if shpPath == "" {
			return eris.New("import lines: --shp is required")
		}

		idField, _ := cmd.Flags().GetString("id-field")
		if idField == "" {
			idField = cfg.Lines.IDField
		}
		passField, _ := cmd.Flags().GetString("pass-field")
		if passField == "" {
			passField = cfg.Lines.PassField
		}

		lines, err := shapeload.ParseLines(shpPath, shapeload.Options{
			IDField:   idField,
			PassField: passField,
		})
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			fmt.Println("No line features found in shapefile.")
			return nil
		}

		b, err := initBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.store.Migrate(ctx); err != nil {
			return err
		}

		n, err := b.store.InsertLines(ctx, lines)
		if err != nil {
			return eris.Wrap(err, "import lines")
		}

		zap.L().Info("lines imported", zap.Int64("count", n))
		fmt.Printf("Loaded %d facility lines.\n", n)
		return nil
	},
}

func init() {
	importPointsCmd.Flags().String("csv", "", "path to the locate-point CSV export")
	importLinesCmd.Flags().String("shp", "", "path to the facility-line shapefile")
	importLinesCmd.Flags().String("id-field", "", "line id attribute (default from config)")
	importLinesCmd.Flags().String("pass-field", "", "pass/fail text attribute (default from config)")

	importCmd.AddCommand(importPointsCmd)
	importCmd.AddCommand(importLinesCmd)
	rootCmd.AddCommand(importCmd)
}
