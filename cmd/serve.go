package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terrascope/terrascope/internal/api"
	"github.com/terrascope/terrascope/internal/config"
	"github.com/terrascope/terrascope/internal/harvest"
	"github.com/terrascope/terrascope/internal/store"
)

var (
	servePort   int
	serveNoSeed bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the property API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		s, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		c, closeCache := initCache(cfg.Cache)
		defer closeCache() //nolint:errcheck

		if cfg.Seed.OnStart && !serveNoSeed {
			if err := seedOnStart(ctx, s, cfg.Seed); err != nil {
				return err
			}
			api.InvalidateAnalytics(ctx, c)
		}

		h := api.NewHandler(s, c, cfg.Cache.TTL())
		h.SetMaxResults(cfg.Query.MaxResults)

		shutdown := time.Duration(cfg.Server.ShutdownTimeoutSecs) * time.Second
		return startServer(ctx, api.NewRouter(h), resolvePort(servePort, cfg.Server.Port), shutdown)
	},
}

// seedOnStart fills a sparse store with the synthetic grid, clearing it first.
func seedOnStart(ctx context.Context, s store.Store, sc config.SeedConfig) error {
	grid := harvest.DefaultGrid()
	if sc.GridSeed != 0 {
		grid.Seed = sc.GridSeed
	}
	_, err := harvest.Seed(ctx, s, harvest.Synthetic(grid), harvest.SeedOptions{
		Threshold: sc.Threshold,
		Reset:     true,
	})
	return err
}

func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler until ctx is done, then shuts down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int, shutdownTimeout time.Duration) error {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- eris.Wrap(err, "server listen")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return <-errCh
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoSeed, "no-seed", false, "skip seeding a sparse store on start")
	rootCmd.AddCommand(serveCmd)
}
