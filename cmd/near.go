package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/locate-qa/internal/model"
)

var nearCmd = &cobra.Command{
	Use:   "near",
	Short: "Compute each point's nearest facility line",
	Long:  "Runs the nearest-neighbor pass over every locate point and stores the (distance, line) result for the audit to consume.",
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

		provider, err := b.initProvider(ctx)
		if err != nil {
			return err
		}

		points, err := b.store.ListPoints(ctx)
		if err != nil {
			return eris.Wrap(err, "near: list points")
		}

		var matched, unmatched int
		for i := range points {
			p := &points[i]

			dist, lineID, ok, err := provider.Nearest(ctx, p.Latitude, p.Longitude)
			if err != nil {
				return eris.Wrapf(err, "near: point %s", p.ExternalID)
			}

			if !ok {
				unmatched++
				if err := b.store.SetPointNearest(ctx, p.ID, nil, model.NoNearLine); err != nil {
					return err
				}
				continue
			}

			matched++
			if err := b.store.SetPointNearest(ctx, p.ID, &dist, lineID); err != nil {
				return err
			}
		}

		zap.L().Info("nearest-neighbor pass complete",
			zap.Int("matched", matched),
			zap.Int("unmatched", unmatched),
		)
		fmt.Printf("Nearest lines computed for %d points (%d without a match).\n", matched, unmatched)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nearCmd)
}
