package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/gbseg/internal/metrics"
	"github.com/cwbudde/gbseg/internal/server"
	"github.com/cwbudde/gbseg/internal/thermo/model"
	"github.com/spf13/cobra"
)

var (
	addr        string
	serviceDBs  []string
	withMetrics bool
	traceDir    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server",
	Long: `Starts the job API. Sweep jobs are submitted as JSON configurations and
report per-temperature progress over server-sent events. With --oracle-db the
built-in model is also served as an equilibrium service under /api/v1/oracle.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringSliceVar(&serviceDBs, "oracle-db", nil, "Model databases to serve as an equilibrium service")
	serveCmd.Flags().BoolVar(&withMetrics, "metrics", true, "Expose Prometheus metrics on /metrics")
	serveCmd.Flags().StringVar(&traceDir, "trace-dir", "", "Write a step trace per job below this directory")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var opts []server.Option
	if withMetrics {
		m := metrics.New()
		opts = append(opts, server.WithMetrics(m), server.WithOracleFactory(server.BackendFactory(m)))
	}
	if traceDir != "" {
		opts = append(opts, server.WithTraceDir(traceDir))
	}
	if len(serviceDBs) > 0 {
		oracle, err := model.Open(model.Options{Databases: serviceDBs})
		if err != nil {
			return fmt.Errorf("failed to open oracle databases: %w", err)
		}
		opts = append(opts, server.WithOracleService(oracle))
	}

	srv := server.NewServer(addr, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
