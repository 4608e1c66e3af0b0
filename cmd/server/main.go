package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mx-space/press/internal/app"
	"github.com/mx-space/press/internal/config"
	"github.com/mx-space/press/internal/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (default config.yml)")
	createAdmin := flag.String("create-admin", "", `Create or reset an admin account ("username:password") and exit`)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot, _ := zap.NewProduction()
		boot.Fatal("failed to load config", zap.Error(err))
	}

	log, err := logger.New(logger.Options{Env: cfg.Env, Dir: cfg.LogFileDir()})
	if err != nil {
		log, _ = zap.NewProduction()
		log.Warn("log pipeline unavailable, fallback to zap production logger", zap.Error(err))
	}
	defer log.Sync()

	ctx := context.Background()
	application, err := app.New(ctx, log, cfg)
	if err != nil {
		log.Fatal("failed to initialize app", zap.Error(err))
	}

	if *createAdmin != "" {
		u, err := application.CreateAdmin(ctx, *createAdmin)
		application.Shutdown(ctx)
		if err != nil {
			log.Fatal("failed to create admin", zap.Error(err))
		}
		log.Info("admin ready", zap.String("username", u.Username), zap.String("group", cfg.Auth.AdminGroup))
		return
	}

	srv := &http.Server{
		Addr:              application.Addr(),
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	application.Shutdown(shutdownCtx)
	log.Info("server exited")
}
