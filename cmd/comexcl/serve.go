package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/comexcl/internal/core"
	"github.com/JonMunkholm/comexcl/internal/web"
)

func newServeCmd() *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve imports over HTTP",
		Long:  "Run an HTTP server answering POST /importar with the same envelope the CLI prints.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(debug)
			if err != nil {
				return err
			}

			ctx, stop := handleSignals(cmd.Context())
			defer stop()

			// Persistence is available per request whenever a database is set.
			svc, pool, err := newService(ctx, cfg, true, true)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}

			limiter := core.NewRunLimiter(cfg.Server.MaxConcurrentRuns, cfg.Server.MaxRunWait)
			server := web.NewServer(svc, limiter, cfg)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			slog.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("shutdown error", "error", err)
				return err
			}
			slog.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Log at debug level")
	return cmd
}
