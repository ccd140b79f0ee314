package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/supercheck/core/internal/logging"
	"github.com/supercheck/core/internal/repo"
)

var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(false); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := repo.Open(cfg.GetDatabasePath(), logging.Logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := repo.Migrate(db, logging.Logger); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	pterm.Success.Printf("Migrations applied to %s\n", cfg.GetDatabasePath())
	return nil
}
