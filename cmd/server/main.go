package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"efti-gate/internal/platform/config"
	"efti-gate/internal/platform/httpserver"
	"efti-gate/internal/platform/logger"
	"efti-gate/internal/platform/tracing"
)

// main wires the gate, then runs the HTTP surface, the notification consumer
// and the timeout sweeper until SIGINT or SIGTERM.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Error("efti gate stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.Gate.OwnerID)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("trace flush failed", "error", err)
		}
	}()

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	srv := httpserver.New(cfg.Addr, app.router())
	g, gctx := errgroup.WithContext(ctx)

	log.Info("starting efti gate", "addr", cfg.Addr, "gate_id", cfg.Gate.OwnerID)
	g.Go(func() error {
		return httpserver.Serve(gctx, srv, log)
	})
	g.Go(func() error {
		return ignoreCanceled(app.sweeper.Run(gctx))
	})
	if app.consumer != nil {
		g.Go(func() error {
			return ignoreCanceled(app.consumer.Run(gctx))
		})
	} else {
		log.Warn("KAFKA_BROKERS not set, access point notifications are not consumed")
	}

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
