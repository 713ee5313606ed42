package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/estudio-ia-videos/timeline-relay/internal/server"
	"github.com/estudio-ia-videos/timeline-relay/pkg/config"
	"github.com/estudio-ia-videos/timeline-relay/pkg/logging"
)

func newServeCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLogger := logging.New("info", "text")
			cfg, err := config.Load(bootLogger, *configFlag)
			if err != nil {
				return err
			}

			logger := logging.New(cfg.Log.Level, cfg.Log.Format)
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app := server.NewApp(logger, ctx, cfg)
			if err := app.Run(); err != nil {
				return err
			}
			logger.Info("Application shut down successfully.")
			return nil
		},
	}
}
