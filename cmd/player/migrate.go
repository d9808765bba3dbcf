package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/config"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/db"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the replica tables used by PLAYER_SOURCE=postgres",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.LoadForMigrate()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger = logging.Setup(c.Environment)

		conn, err := db.Connect(cmd.Context(), c.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db init: %w", err)
		}
		defer conn.Close()

		applied, err := db.RunMigrations(cmd.Context(), conn, c.MigrationsPath)
		if err != nil {
			return fmt.Errorf("db migrate: %w", err)
		}
		logger.Info().Int("applied", applied).Str("path", c.MigrationsPath).Msg("migrations complete")
		return nil
	},
}
