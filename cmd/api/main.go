// cmd/api/main.go
// Gin RESTful API 入口

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"mail-merge/internal/api/routes"
	"mail-merge/internal/config"
	"mail-merge/internal/logger"
	"mail-merge/internal/services"
)

func main() {
	// 載入設定
	cfg := config.Load()

	log := logger.New(cfg.Env, cfg.LogLevel, cfg.LogFile, false)
	defer func() { _ = log.Sync() }()

	log.Info("Starting Mail Merge API Server...", zap.String("env", cfg.Env))

	// 初始化發送服務
	router := services.NewDefaultMailRouter(cfg, log)
	if err := router.ValidateConfiguration(); err != nil {
		log.Fatal("Invalid delivery configuration", zap.Error(err))
	}

	// 初始化批次狀態儲存 (KeyDB 或記憶體)
	statusStore, keydbService, err := services.NewStatusStore(cfg)
	if err != nil {
		log.Fatal("Failed to connect to KeyDB", zap.Error(err))
	}
	if keydbService != nil {
		defer keydbService.Close()
	}

	dispatcher := services.NewDispatcher(cfg, router, log)
	runManager := services.NewRunManager(dispatcher, statusStore, log)

	tokenService := services.NewTokenService(cfg.JWTSecret)
	if !tokenService.Enabled() {
		log.Warn("JWT_SECRET is not set, API authentication is disabled")
	}

	// 註冊路由
	engine := routes.NewRouter(&routes.Dependencies{
		Config:        cfg,
		Logger:        log,
		Dispatcher:    dispatcher,
		RunManager:    runManager,
		TemplateStore: services.NewTemplateStore(cfg.TemplatesFile, log),
		ConfigStore:   services.NewConfigStore(cfg.ConfigFile, log),
		TokenService:  tokenService,
		KeyDBService:  keydbService,
	})

	// 建立 HTTP Server
	srv := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: engine,
	}

	go func() {
		log.Info("API Server listening", zap.String("port", cfg.APIPort), zap.String("provider", router.Route().Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down API server...")

	// 優雅關閉：停止接收請求，再等待進行中的批次停下
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	runManager.GracefulShutdown(ctx)

	log.Info("API Server stopped")
}
