package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentsea/agentd/internal/clock"
	"github.com/agentsea/agentd/internal/config"
	"github.com/agentsea/agentd/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFlags(cmd.Flags())
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.Server.LogLevel, cfg.Server.LogFormat, os.Stderr)
		if err != nil {
			return err
		}
		log.Info("config loaded", "port", cfg.Server.Port, "grpc_addr", cfg.GRPC.Addr, "recordings_dir", cfg.Recording.Dir)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return newDaemon(cfg, log, clock.Real(), nil).run(ctx)
	},
}

func init() {
	config.RegisterFlags(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd)
}

func (d *daemon) run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + d.cfg.Server.Port,
		Handler:           d.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var lis net.Listener
	if d.grpc != nil {
		l, err := net.Listen("tcp", d.cfg.GRPC.Addr)
		if err != nil {
			return err
		}
		lis = l
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.log.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if lis != nil {
		g.Go(func() error {
			d.log.Info("grpc listening", "addr", d.cfg.GRPC.Addr)
			return d.grpc.Serve(lis)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		d.log.Info("shutdown signal received; stopping servers")
		d.stopAll()
		sctx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
		defer cancel()
		if d.grpc != nil {
			d.grpc.GracefulStop()
		}
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
