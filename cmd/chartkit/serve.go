package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/comalice/chartkit/internal/core"
	"github.com/comalice/chartkit/internal/httpapi"
	"github.com/comalice/chartkit/internal/production"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Serve one machine instance over HTTP",
		Long:  `Starts a machine and exposes it as a JSON API (POST /events, GET /state, GET /can/{event}, GET /matches, GET /graph) with Prometheus metrics on GET /metrics.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, _ := cmd.Flags().GetString("port")
			logger, err := loggerFor(cmd)
			if err != nil {
				return err
			}
			def, err := loadDefinition(args[0])
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics, err := production.NewMetricsObserver(reg)
			if err != nil {
				return err
			}

			m, cleanup, err := newMachine(cmd.Context(), cmd, def, logger, core.WithObserver(metrics))
			if cleanup != nil {
				defer cleanup()
			}
			if err != nil {
				return err
			}
			defer m.Stop()

			srv := &http.Server{
				Addr:              ":" + port,
				Handler:           httpapi.NewHandler(m, httpapi.WithGatherer(reg), httpapi.WithLogger(logger)),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Channel to listen for errors coming from the listener.
			serverErrors := make(chan error, 1)
			go func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Serving %s (machine %s) on %s\n", def.ID(), m.ID(), srv.Addr)
				serverErrors <- srv.ListenAndServe()
			}()

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(shutdown)

			select {
			case err := <-serverErrors:
				return fmt.Errorf("server: %w", err)
			case sig := <-shutdown:
				logger.Info("shutting down", "signal", sig.String())
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					logger.Warn("graceful shutdown did not complete", "error", err)
					return srv.Close()
				}
				return nil
			}
		},
	}
	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	addMachineFlags(cmd)
	return cmd
}
