package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema on the configured store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		b, err := initBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		if err := b.store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}

		fmt.Println("Schema is up to date.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
