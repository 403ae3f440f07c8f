package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"campusmarket/internal/infra/config"
	"campusmarket/internal/infra/grpcsrv"
	ginserver "campusmarket/internal/infra/http/gin"
	"campusmarket/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger := obs.NewLogger("dev", "info")
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	health := obs.HealthHandlers{Ready: app.ready.Run, Timeout: 2 * time.Second}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, health, app.handlers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "store", cfg.StoreDriver, "feed", cfg.FeedDriver, "cursors", cfg.CursorDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		return nil
	})
	if cfg.GRPCHealthAddr != "" {
		g.Go(func() error {
			return grpcsrv.NewHealthServer(app.ready.Run, 5*time.Second, logger).Serve(gctx, cfg.GRPCHealthAddr)
		})
	}
	if app.feed != nil {
		g.Go(func() error {
			err := app.feed.Run(gctx, app.feedTopics)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if app.relay != nil {
		g.Go(func() error {
			err := app.relay.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("server failed", "error", err)
		app.close(logger)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}
