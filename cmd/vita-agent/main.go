package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/yuqie6/VitaQuest/internal/bootstrap"
	"github.com/yuqie6/VitaQuest/internal/httpapi"
	"github.com/yuqie6/VitaQuest/internal/pkg/config"
	"github.com/yuqie6/VitaQuest/internal/service"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath, cfgErr := config.DefaultConfigPath()
	if cfgErr == nil {
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			_ = config.WriteFile(cfgPath, config.Default())
		}
	}

	core, err := bootstrap.NewCore(cfgPath)
	if err != nil {
		slog.Error("启动失败", "error", err)
		os.Exit(1)
	}
	defer core.Close()

	slog.Info("VitaQuest Agent 启动中...", "name", core.Cfg.App.Name, "version", core.Cfg.App.Version)

	// 积分规则热更新
	if core.Cfg.Storage.RewardsPath != "" {
		if err := service.WatchRewardsTable(ctx, core.Cfg.Storage.RewardsPath, core.Rewards); err != nil {
			slog.Warn("启动积分规则监听失败", "error", err)
		}
	}

	// 每次进程启动触发一次远端同步；游客身份是空操作
	go core.Services.Sync.Start(ctx)

	srv, err := httpapi.Start(ctx, core, httpapi.Options{ListenAddr: core.Cfg.Server.ListenAddr})
	if err != nil {
		slog.Error("启动本地 API 失败", "error", err)
		os.Exit(1)
	}
	slog.Info("VitaQuest Agent 已启动", "base_url", srv.BaseURL())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("收到退出信号，正在关闭...")
	cancel()
	_ = srv.Shutdown(context.Background())
}
