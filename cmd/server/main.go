package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"directory-server-lite/internal/auth"
	"directory-server-lite/internal/config"
	"directory-server-lite/internal/directory"
	"directory-server-lite/internal/handler"
	"directory-server-lite/internal/hub"
	"directory-server-lite/internal/logging"
	"directory-server-lite/internal/query"
	"directory-server-lite/internal/server"
	"directory-server-lite/internal/store"
	"directory-server-lite/internal/userapi"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}

	logger := logging.SetupLogger(cfg.AppEnv, cfg.LogLevel, os.Stdout)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.NewWithOptions(store.Options{SessionsStateFile: cfg.SessionsFile})
	client := userapi.New(cfg.UpstreamBaseURL, cfg.UpstreamTimeout)
	h := hub.New()

	opts := query.Options{
		RetryCount:  cfg.RetryCount,
		RetryDelay:  cfg.RetryDelay,
		GCTime:      query.DefaultGCTime,
		ShouldRetry: userapi.IsRetryable,
	}
	svc := directory.NewService(ctx, client, st, directory.Config{
		PageSize:       cfg.PageSize,
		ListOptions:    opts.WithStaleTime(cfg.StaleTime),
		SearchOptions:  opts.WithStaleTime(cfg.SearchStaleTime),
		DetailOptions:  opts.WithStaleTime(cfg.DetailStaleTime),
		SessionIdleTTL: cfg.SessionIdleTTL,
	}, handler.HubNotifier{Hub: h})
	go svc.Run(ctx)

	tokenCfg := auth.DefaultTokenConfig(cfg.MasterSecret)
	tokenCfg.Expiry = cfg.TokenExpiry

	router := server.NewRouter(server.Deps{
		Context:            ctx,
		Service:            svc,
		Hub:                h,
		TokenConfig:        tokenCfg,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		Logger:             logger,
	})

	logger.Info("listening", "config", cfg)
	if err := server.Run(ctx, cfg, router); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
