package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/eazyy/fulfillment/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Connect(cfg.DB)
		if err != nil {
			return err
		}
		defer db.Close(database)

		if err := db.Migrate(database); err != nil {
			return err
		}
		log.Info().Msg("Database migrated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
