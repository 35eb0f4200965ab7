package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tatuticket/internal/auth"
	"tatuticket/internal/bootstrap"
	"tatuticket/internal/config"
	"tatuticket/internal/httpapi"
	"tatuticket/pkg/logger"
	"tatuticket/pkg/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	rt, err := bootstrap.Open(rootCtx, cfg, log, nil)
	if err != nil {
		log.Error("billing init failed", "err", err)
		os.Exit(1)
	}
	defer rt.Close()

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:      authManager,
		Billing:   rt.Processor,
		Summaries: rt.Calculator,
		Ready: func(ctx context.Context) error {
			return utils.HealthCheck(ctx, rt.DB, 2*time.Second)
		},
	}
	registerRoutes(r, h, auth.RequireAccessToken(authManager), cfg.DevLoginEnabled())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Manual fan-out runs can take a while.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := rt.Scheduler.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("billing scheduler stopped", "err", err)
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	select {
	case <-schedDone:
	case <-shutdownCtx.Done():
		log.Warn("billing scheduler did not stop before shutdown deadline")
	}
}
