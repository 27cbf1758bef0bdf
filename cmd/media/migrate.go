package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aiden-ho/twitter-server/internal/config"
	"github.com/Aiden-ho/twitter-server/internal/logging"
	"github.com/Aiden-ho/twitter-server/internal/storage/postgres"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the video status and outbox tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is empty")
			}
			logger := logging.Configure(logging.Config{Level: cfg.LogLevel, Service: "media"})

			db, err := postgres.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("db connect: %w", err)
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			logger.Info().Msg("schema applied")
			return nil
		},
	}
}
