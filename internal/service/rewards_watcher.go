package service

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchRewardsTable 监听积分规则文件变化并热更新
// 监听文件所在目录而非文件本身，兼容编辑器的原子写（重命名替换）
func WatchRewardsTable(ctx context.Context, path string, provider *RewardsProvider) error {
	if path == "" || provider == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}

	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				provider.Replace(LoadRewardsTable(path))
				slog.Info("积分规则已热更新", "path", path)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("积分规则监听错误", "error", err)
			}
		}
	}()

	slog.Info("开始监听积分规则文件", "path", path)
	return nil
}
