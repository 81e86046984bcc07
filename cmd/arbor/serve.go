package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/arbor"
	httpadapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve components, rendered pages and metrics over HTTP",
	Long: `Starts an HTTP server exposing the component markup under /components/,
server-rendered pages, the context API, a lifecycle event stream and
Prometheus metrics on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		port, _ := cmd.Flags().GetString("port")

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return err
		}
		streams := httpadapter.NewStreamManager()

		app, err := openApp(cmd.Context(), cfg, logger, nil,
			arbor.WithLifecycleHooks(metrics.Hooks()),
			arbor.WithLifecycleHooks(streams.Hooks()),
			arbor.WithLifecycleHooks(observability.LogHooks(logger)),
		)
		if err != nil {
			return err
		}
		defer closeQuietly(app)

		server := httpadapter.NewServer(app,
			httpadapter.WithStreams(streams),
			httpadapter.WithComponents(os.DirFS(cfg.Components)),
			httpadapter.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
			httpadapter.WithVersion(arbor.Version),
			httpadapter.WithLogger(logger),
		)

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting arbor server", "addr", srv.Addr, "components", cfg.Components)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err

		case sig := <-shutdown:
			logger.Info("Shutting down", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			logger.Info("Arbor server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
