/*
Package main is the entry point for the SDT Chat server.

It loads configuration, initializes the global logger, connects PostgreSQL
(running migrations) and, when login tokens are enforced, Redis. It then
starts the channel directory and the HTTP server, and shuts everything down
in order on SIGINT or SIGTERM.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sdtchat/internal/app/chat"
	"sdtchat/internal/app/db"
	"sdtchat/internal/app/identity"
	"sdtchat/internal/configs"
	"sdtchat/internal/handler"
	"sdtchat/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("require_identity_token", cfg.RequireIdentityToken).
		Int("history_limit", cfg.HistoryLimit).
		Dur("room_idle_timeout", cfg.RoomIdleTimeout).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to initialize database")
	}
	defer pool.Close()

	store := db.NewStore(pool)

	deps := &handler.AppDeps{
		Config:   cfg,
		Channels: store,
	}

	if cfg.RequireIdentityToken {
		redisClient, err := identity.Connect(ctx, identity.Config{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err != nil {
			logx.Fatal(err, "Failed to connect to Redis")
		}
		defer redisClient.Close()

		deps.Identity = identity.NewRedisResolver(redisClient)
	}

	directory := chat.NewDirectory(store, chat.Options{
		HistoryLimit:        cfg.HistoryLimit,
		ElevatedAdminID:     cfg.ElevatedAdminID,
		AllowSelfModeration: cfg.AllowSelfModeration,
		IdleTimeout:         cfg.RoomIdleTimeout,
		PersistTimeout:      cfg.PersistTimeout,
	})
	deps.Directory = directory

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler.Router(deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("SDT Chat Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	// Rooms close their sessions with "going away" so clients reconnect elsewhere.
	directory.Shutdown()

	logx.Info("Server gracefully stopped.")
}
