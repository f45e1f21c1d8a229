package cli

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Fumiaki0604/reqflow/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			pipeline, closeFn, err := buildPipeline(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			notifier := buildNotifier(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Printf("listening on :%s", cfg.Server.Port)
			return server.New(pipeline, notifier, cfg).Run(ctx)
		},
	}
}
