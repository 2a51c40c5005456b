package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cashback_bot/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	conn, err := db.Init(cfg)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer db.Close(conn)
	log.Info("✅ Migrations applied", zap.String("driver", cfg.DBDriver))
	return nil
}
