package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/born-ml/gradcam/internal/eventlog"
	"github.com/born-ml/gradcam/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Loads the weights once and serves:
  POST   /api/explain      {"image_path": "...", "group": "...", "target": "ai|human"}
  DELETE /api/clear
  POST   /api/device-data
  GET    /health`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			exp, err := a.explainer()
			if err != nil {
				return err
			}
			events, err := eventlog.Open(a.cfg.DeviceLog.Path)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(exp, events, a.cfg.Explain.OutputDir, a.logger)
			return srv.ListenAndServe(ctx, a.cfg.Server.Addr, grace)
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 10*time.Second, "shutdown grace period")
	return cmd
}
