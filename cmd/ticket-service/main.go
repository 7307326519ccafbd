package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"ticketboard.com/internal/ticket/app"
	"ticketboard.com/internal/ticket/config"
	pkgconfig "ticketboard.com/pkg/config"
	"ticketboard.com/pkg/logger"
)

func main() {
	// 收到 SIGINT/SIGTERM 时取消，触发优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 配置加载前先用默认 logger
	logger.Log = logger.New(config.ServiceName, "info", zapcore.AddSync(os.Stderr))

	var cfg config.Cfg
	if _, err := pkgconfig.LoadAndWatch(config.ServiceName, &cfg, pkgconfig.WithDefaults(config.Defaults())); err != nil {
		logger.Fatal(ctx, "load config", zap.Error(err))
	}
	app.InitLogger(cfg)
	logger.Info(ctx, "服务开始启动", zap.String("http", cfg.HTTP.Addr), zap.String("db", cfg.Db.Type))

	a, err := app.New(ctx, cfg)
	if err != nil {
		// 存储不可达直接退出
		logger.Error(ctx, "startup failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error(ctx, "service stopped with error", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
	logger.Info(context.Background(), "service stopped")
}
