package app

import (
	"context"
	"fmt"

	"forward_bot/internal/config"
	"forward_bot/internal/forwarder"
	"forward_bot/internal/logger"
	"forward_bot/internal/mongo"
	"forward_bot/internal/sink"
	"forward_bot/internal/source/mtproto"
)

// App 应用服务容器
// 负责管理所有服务的生命周期（初始化、运行、关闭）
type App struct {
	MongoDB  *mongo.Client
	Pipeline *forwarder.Service
}

// New 初始化应用及其所有服务
// 按顺序初始化各个服务，任何服务初始化失败都会返回错误
func New(cfg *config.Config) (*App, error) {
	app := &App{}

	// 初始化 MongoDB
	mongoClient, err := mongo.InitFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init MongoDB failed: %w", err)
	}
	app.MongoDB = mongoClient
	logger.L().Info("MongoDB initialized successfully")

	// 初始化投递出口（Bot API）
	botClient, err := sink.NewBot(cfg.TelegramToken)
	if err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init delivery sink failed: %w", err)
	}
	deliverySink := sink.NewTelegramSink(botClient)

	// 账号消息源工厂（MTProto）
	factory := mtproto.Factory(mtproto.Config{
		APIID:      cfg.TelegramAPIID,
		APIHash:    cfg.TelegramAPIHash,
		SessionDir: cfg.SessionDir,
	})

	// 初始化转发管道
	pipeline, err := forwarder.New(cfg, mongoClient.Database(), deliverySink, factory)
	if err != nil {
		app.Close(context.Background())
		return nil, fmt.Errorf("init forward pipeline failed: %w", err)
	}
	app.Pipeline = pipeline
	logger.L().Info("Forward pipeline initialized successfully")

	return app, nil
}

// Run 启动管道并阻塞到 ctx 取消
func (a *App) Run(ctx context.Context) error {
	if err := a.Pipeline.Start(ctx); err != nil {
		return fmt.Errorf("start forward pipeline failed: %w", err)
	}

	<-ctx.Done()
	return nil
}

// Close 优雅关闭所有服务
// 应该在应用退出时调用，确保资源正确释放
func (a *App) Close(ctx context.Context) error {
	if a.Pipeline != nil {
		if err := a.Pipeline.Stop(ctx); err != nil {
			logger.L().Errorf("Failed to stop forward pipeline: %v", err)
		}
	}

	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil {
			return fmt.Errorf("close MongoDB failed: %w", err)
		}
	}

	return nil
}
