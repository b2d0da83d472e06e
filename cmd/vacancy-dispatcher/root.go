package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/maxaizer/vacancy-dispatcher/internal/config"
	"github.com/maxaizer/vacancy-dispatcher/internal/logger"
	"github.com/spf13/cobra"
)

const app = "vacancy-dispatcher"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "vacancy-dispatcher classifies scraped vacancies and delivers them to Telegram subscribers",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is ./configs/config.yaml or CONFIG_PATH)")

	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd)
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.Get(), nil
}

// withRuntime loads the config, sets up logging and runs fn until SIGINT or SIGTERM.
func withRuntime(fn func(ctx context.Context, cfg *config.Config) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Setup(ctx, cfg.Logger)
	defer logger.Cleanup()

	return fn(ctx, cfg)
}
