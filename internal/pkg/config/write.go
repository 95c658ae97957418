package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

func DefaultConfigPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("获取可执行文件路径失败: %w", err)
	}
	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, "config", "config.yaml"), nil
}

// Default 返回写入初始配置文件时使用的默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "vita-agent",
			Version:  "0.1.0",
			LogLevel: "info",
		},
		Identity: IdentityConfig{
			UserID: "guest",
			Guest:  true,
		},
		Storage: StorageConfig{
			DBPath:     "./data/vita.db",
			MemoryPath: "./data/coach_memory",
		},
		Remote: RemoteConfig{
			Enabled:    false,
			TimeoutSec: 15,
			MaxRetries: 3,
		},
		AI: AIConfig{
			Chat:  ChatConfig{BaseURL: "https://api.deepseek.com", Model: "deepseek-chat"},
			Embed: EmbedConfig{BaseURL: "https://api.siliconflow.cn", Model: "BAAI/bge-m3"},
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:0",
		},
	}
}

func WriteFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cfg 不能为空")
	}
	if path == "" {
		return fmt.Errorf("path 不能为空")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	payload := map[string]any{
		"app": map[string]any{
			"name":      cfg.App.Name,
			"version":   cfg.App.Version,
			"log_level": cfg.App.LogLevel,
			"log_path":  cfg.App.LogPath,
		},
		"identity": map[string]any{
			"user_id": cfg.Identity.UserID,
			"guest":   cfg.Identity.Guest,
		},
		"storage": map[string]any{
			"db_path":      cfg.Storage.DBPath,
			"rewards_path": cfg.Storage.RewardsPath,
			"memory_path":  cfg.Storage.MemoryPath,
		},
		"remote": map[string]any{
			"enabled":     cfg.Remote.Enabled,
			"base_url":    cfg.Remote.BaseURL,
			"api_key":     cfg.Remote.APIKey,
			"timeout_sec": cfg.Remote.TimeoutSec,
			"max_retries": cfg.Remote.MaxRetries,
		},
		"ai": map[string]any{
			"chat": map[string]any{
				"api_key":  cfg.AI.Chat.APIKey,
				"base_url": cfg.AI.Chat.BaseURL,
				"model":    cfg.AI.Chat.Model,
			},
			"embed": map[string]any{
				"api_key":  cfg.AI.Embed.APIKey,
				"base_url": cfg.AI.Embed.BaseURL,
				"model":    cfg.AI.Embed.Model,
			},
		},
		"server": map[string]any{
			"listen_addr": cfg.Server.ListenAddr,
		},
	}

	b, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
