package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/OpenNSW/taskrunner/internal/database"
)

func (c *CLI) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := openDatabase(cfg, true)
			if err != nil {
				return err
			}
			defer func() {
				if err := database.Close(db); err != nil {
					slog.Error("failed to close database", "error", err)
				}
			}()
			return nil
		},
	}
}
