package commands

import (
	"database/sql"
	"fmt"

	"github.com/supercheck/core/internal/config"
	"github.com/supercheck/core/internal/logging"
	"github.com/supercheck/core/internal/repo"
)

func loadConfig(cmd cobraFlagGetter) (*config.Config, error) {
	configPath, _ := cmd.GetString("config")
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// cobraFlagGetter is the subset of *cobra.Command/*pflag.FlagSet this
// package needs, kept narrow so loadConfig doesn't import cobra directly.
type cobraFlagGetter interface {
	GetString(name string) (string, error)
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	database, err := repo.OpenWithMigrations(cfg.GetDatabasePath(), logging.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}
