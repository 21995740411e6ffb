package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"forward_bot/internal/app"
	"forward_bot/internal/config"
	"forward_bot/internal/logger"
)

func main() {
	// 初始化logger
	logger.Init()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		logger.L().Fatalf("Failed to load config: %v", err)
	}

	// 初始化应用
	application, err := app.New(cfg)
	if err != nil {
		logger.L().Fatalf("Failed to initialize app: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.L().Errorf("App run error: %v", err)
	}

	// 优雅关闭（有界超时，投递重试上限保证能收敛）
	closeCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := application.Close(closeCtx); err != nil {
		logger.L().Errorf("Failed to close app: %v", err)
	}

	logger.L().Info("Forward bot exited")
}
