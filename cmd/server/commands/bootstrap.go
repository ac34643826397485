package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/OpenNSW/taskrunner/internal/config"
	"github.com/OpenNSW/taskrunner/internal/database"
	"github.com/OpenNSW/taskrunner/internal/logging"
	"github.com/OpenNSW/taskrunner/internal/task/model"
)

// loadConfig reads the environment and applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = strings.ToLower(level)
	}
	return cfg, logging.Setup(cfg.Log), nil
}

// openDatabase connects and, when migrate is set, brings the schema up to date.
func openDatabase(cfg *config.Config, migrate bool) (*gorm.DB, error) {
	db, err := database.New(&cfg.Database, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := database.Migrate(db, model.Models()...); err != nil {
			_ = database.Close(db)
			return nil, err
		}
		slog.Info("database schema migrated")
	}
	return db, nil
}
