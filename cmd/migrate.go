package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/centerrank/internal/store"
)

var migrateSeed string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the center directory schema and optionally seed it",
	Long:  "Applies the schema for the configured store. With --seed, upserts centers from a YAML fixture file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("schema migrated", zap.String("store", cfg.Store.Driver))

		if migrateSeed == "" {
			return nil
		}
		centers, err := store.LoadFixtures(migrateSeed)
		if err != nil {
			return err
		}
		if err := st.SaveCenters(ctx, centers); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d centers from %s\n", len(centers), migrateSeed)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateSeed, "seed", "", "YAML fixture file of centers to upsert")
	rootCmd.AddCommand(migrateCmd)
}
