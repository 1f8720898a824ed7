package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/callpipe/internal/config"
	"github.com/tjfontaine/callpipe/internal/server"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	var (
		port  int
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo target and recorded invocations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(flags, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.close()

			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if watch {
				if path := watchedConfigPath(flags.configPath); path != "" {
					w, err := config.NewWatcher(path, a.logger)
					if err != nil {
						return err
					}
					defer w.Close()
					if err := w.Watch(ctx, a.reloadPipeline); err != nil {
						return err
					}
				}
			}
			return runServer(ctx, a)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the pipeline when the config file changes")
	return cmd
}

// watchedConfigPath returns the config file in use, or "" when running on
// defaults and the environment only.
func watchedConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(config.DefaultPath); err == nil {
		return config.DefaultPath
	}
	return ""
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, a *app) error {
	srv := server.New(server.Options{
		Port:    a.cfg.Server.Port,
		Logger:  a.logger,
		Caller:  a.proxy,
		Store:   a.store,
		Metrics: a.metrics,
	})

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutdown signal received, stopping server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("server stopped", slog.String("error", err.Error()))
		return err
	}
	a.logger.Info("server shutdown complete")
	return nil
}
