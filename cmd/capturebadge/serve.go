package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/capturebadge"
	"pkt.systems/capturebadge/internal/appconfig"
	"pkt.systems/capturebadge/internal/version"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve [origin]",
		Short: "Run the native messaging host on stdin/stdout",
		// Browsers append the caller origin or manifest path.
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				logger = logger.With("caller", args[0])
			}
			logger.Info("host starting", "version", version.Current())
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)

			server, err := capturebadge.New(ctx, cfg, capturebadge.ServerDeps{
				In:     cmd.InOrStdin(),
				Out:    os.Stdout,
				Engine: capturebadge.EngineDeps{Logger: logger},
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := server.Start(ctx); err != nil {
				return err
			}
			waitErr := server.Wait()
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
			defer cancel()
			if err := server.Stop(stopCtx); err != nil {
				logger.Warn("server stop failed", "err", err)
			}
			return waitErr
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func shutdownTimeout(cfg appconfig.Config) time.Duration {
	if cfg.Host.ShutdownTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	// Stop applies the configured timeout itself; leave headroom for close.
	return time.Duration(cfg.Host.ShutdownTimeoutSeconds+1) * time.Second
}
