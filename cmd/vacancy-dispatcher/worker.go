package main

import (
	"context"
	"errors"

	"github.com/maxaizer/vacancy-dispatcher/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a delivery queue worker",
	Long: "Consumes delivery tasks from the shared Redis stream and sends them to Telegram. " +
		"Run several workers to scale delivery out.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(runWorker)
	},
}

func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.Queue.Driver != config.QueueDriverRedis {
		return errors.New("a standalone worker needs queue.driver: redis")
	}

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.deliveryWorker().Run(ctx)
	log.Info("Worker stopped.")
	return nil
}
