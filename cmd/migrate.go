package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bottlecrm/authd/internal/config"
	"github.com/bottlecrm/authd/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Applies the embedded schema migrations against the configured
postgres DSN. Safe to run repeatedly; an up-to-date schema is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Store.Type != "postgres" {
			return fmt.Errorf("migrations only apply to the postgres store (configured: %s)", cfg.Store.Type)
		}

		log.Info().Msg("Applying migrations...")
		if err := store.Migrate(cfg.Store.DSN); err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}

		log.Info().Msgf("%s migrations applied", greenCheck)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
