package main

import (
	"context"

	"github.com/maxaizer/vacancy-dispatcher/internal/config"
	"github.com/maxaizer/vacancy-dispatcher/internal/repositories"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(_ context.Context, cfg *config.Config) error {
			dbContext, err := repositories.NewDbContext(cfg.DB.Driver, cfg.DB.ConnectionString)
			if err != nil {
				return err
			}
			defer dbContext.Close()

			if err = dbContext.Migrate(); err != nil {
				return err
			}
			log.Info("database schema is up to date")
			return nil
		})
	},
}
