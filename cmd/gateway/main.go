package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"llm_billing_gateway/internal/app"
	"llm_billing_gateway/internal/config"
	"llm_billing_gateway/internal/httpapi"
	"llm_billing_gateway/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := utils.ConfigureLogging(utils.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	defer utils.SyncLogging()

	logger := utils.NewLogger("gateway")
	if len(cfg.JWTSecret) == 0 {
		logger.Warn("JWT_SECRET is empty, admin endpoints will reject every token")
	}

	ctx := context.Background()
	a, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Error("failed to build gateway", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(a.HTTPDependencies(), httpapi.Config{JWTSecret: cfg.JWTSecret})

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:    addr,
		Handler: router,
		// Leave room for the provider call on top of request parsing
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Provider.RequestTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("billing gateway listening",
			"addr", addr,
			"balance_mode", a.Ledger.Mode(),
			"storage", cfg.Storage.Backend,
			"provider", cfg.Provider.Type,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("gateway stopped")
}
