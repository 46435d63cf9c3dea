package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/flowgraph/internal/api"
	"github.com/dshills/flowgraph/internal/app"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := root.cfg, root.logger
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, logger, app.Options{TraceWriter: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := a.Close(closeCtx); err != nil {
					logger.Error("close", "error", err)
				}
			}()

			deps := api.Deps{Runner: a, Store: a.Store, Logger: logger}
			if cfg.Telemetry.Metrics {
				deps.Gatherer = a.Registry
			}
			if cfg.Telemetry.Tracing {
				deps.TraceService = cfg.Telemetry.ServiceName
			}
			srv := api.NewServer(deps)

			server := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      srv.Handler(),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  60 * time.Second,
			}

			serverErrors := make(chan error, 1)
			go func() {
				logger.Info("server starting", "address", cfg.Server.Addr, "store", cfg.Store.Driver)
				serverErrors <- server.ListenAndServe()
			}()

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(shutdown)

			select {
			case err := <-serverErrors:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server: %w", err)
				}
			case sig := <-shutdown:
				logger.Info("shutdown signal received", "signal", sig.String())

				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					logger.Error("server shutdown", "error", err)
					if err := server.Close(); err != nil {
						logger.Error("server close", "error", err)
					}
				}
				logger.Info("server stopped gracefully")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
