package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
)

const shutdownTimeout = 30 * time.Second

// NewServeCommand creates the serve command.
//
// On SIGINT/SIGTERM the server stops accepting connections, waits up to
// 30s for active requests, then lets queued jobs finish before returning.
func (a *App) NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the roster, reconciliation and session API.

Uploads are reconciled in the background by --workers goroutines; poll
GET /api/reconciliations/{id} for the outcome. Prometheus metrics are
exposed on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cmd.Flags().Int("workers", 0, "reconciliation workers (default 2)")
	return cmd
}

func (a *App) serve(ctx context.Context) error {
	st, err := a.Store()
	if err != nil {
		return err
	}
	a.rosterHealth(ctx, st)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := api.NewHandler(api.Config{
		Store:   st,
		Session: attendance.NewSession(),
		Reports: a.Reports(),
		Metrics: api.NewMetrics(reg),
		Log:     a.logger,
		Workers: a.config.Server.Workers,
	})
	handler.Jobs.Start()
	defer handler.Jobs.Stop()

	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: a.config.Server.AllowedOrigins,
		Gatherer:       reg,
	})

	server := &http.Server{
		Addr:         a.config.Server.Addr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info().Msg("server stopped; waiting for queued jobs")
	return nil
}
