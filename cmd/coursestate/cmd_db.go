package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/coursestate/internal/scheduler"
	"github.com/user/coursestate/internal/state"
)

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd, dbCleanupCmd)
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the state database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}

		db, err := state.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		if err := state.Migrate(db); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "migrated %s\n", cfg.Database.Path)
		return nil
	},
}

var dbCleanupCmd = &cobra.Command{
	Use:   "cleanup-history",
	Short: "Prune history rows older than the retention window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		db, err := state.Open(cfg.Database.Path)
		if err != nil {
			return err
		}

		retention := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
		pruner := scheduler.NewPruner(db, retention, cfg.History.CleanupBatchSize)
		removed, err := pruner.Run(context.Background())
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "removed %d history rows\n", removed)
		return nil
	},
}
