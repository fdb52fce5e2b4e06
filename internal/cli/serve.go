package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ppiankov/truthgate/internal/pipeline"
	"github.com/ppiankov/truthgate/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the research API over HTTP",
	Long: `Serve exposes:
  POST /v1/research  research request JSON -> response JSON
  POST /v1/gate      narrative + claim table -> gate result
  GET  /healthz      liveness

Example:
  truthgate serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if err := checkLLMKey(cfg); err != nil {
			return err
		}

		p, err := pipeline.NewFromConfig(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return server.NewServer(p, cfg.Server, Version).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}
