// cmd/smtp-sink/main.go
// SMTP Sink 入口程式
// 本機收信測試伺服器，收到的郵件記錄到日誌並可存成 .eml

package main

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"mail-merge/internal/config"
	"mail-merge/internal/logger"
	"mail-merge/internal/smtp"
)

func main() {
	// 載入設定
	cfg := config.Load()

	log := logger.New(cfg.Env, cfg.LogLevel, cfg.LogFile, false)
	defer func() { _ = log.Sync() }()

	log.Info("Starting Mail Merge SMTP sink...")

	opts, err := smtp.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatal("Failed to prepare SMTP sink", zap.Error(err))
	}

	if opts.AuthRequired && (opts.Username == "" || opts.Password == "") {
		log.Fatal("SMTP_SINK_USERNAME and SMTP_SINK_PASSWORD are required when SMTP_SINK_AUTH_REQUIRED is set")
	}

	server := smtp.NewServer(opts, smtp.NewStore(cfg.SMTPSinkOutputDir), log)

	// 啟動 SMTP 伺服器（非同步）
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("SMTP sink error", zap.Error(err))
		}
	}()

	log.Info("Press Ctrl+C to stop")

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// 優雅關機
	if err := server.Shutdown(); err != nil {
		log.Error("Failed to shut down SMTP sink", zap.Error(err))
	}

	log.Info("SMTP sink stopped", zap.Int("messages_received", server.Store().Count()))
}
