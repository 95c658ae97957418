package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Identity IdentityConfig `mapstructure:"identity"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	AI       AIConfig       `mapstructure:"ai"`
	Server   ServerConfig   `mapstructure:"server"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
}

// IdentityConfig 当前身份
// 认证在外部完成，这里只消费结果；Guest 为 true 时完全绕过远端同步
type IdentityConfig struct {
	UserID string `mapstructure:"user_id"`
	Guest  bool   `mapstructure:"guest"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	DBPath      string `mapstructure:"db_path"`
	RewardsPath string `mapstructure:"rewards_path"` // 积分规则 YAML，留空用内置默认
	MemoryPath  string `mapstructure:"memory_path"`  // 周报长期记忆存储目录
}

// RemoteConfig 远端记录库配置
type RemoteConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// AIConfig AI 配置
type AIConfig struct {
	Chat  ChatConfig  `mapstructure:"chat"`
	Embed EmbedConfig `mapstructure:"embed"`
}

// ChatConfig 对话模型配置
type ChatConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Path    string `mapstructure:"path"` // 端点路径，留空用客户端默认值
	Model   string `mapstructure:"model"`
}

// EmbedConfig 向量化模型配置
type EmbedConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Path    string `mapstructure:"path"` // 端点路径，留空用客户端默认值
	Model   string `mapstructure:"model"`
}

// ServerConfig 本地 HTTP 服务配置
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认查找路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("VITA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 处理环境变量占位符
	cfg.AI.Chat.APIKey = expandEnv(cfg.AI.Chat.APIKey)
	cfg.AI.Embed.APIKey = expandEnv(cfg.AI.Embed.APIKey)
	cfg.Remote.APIKey = expandEnv(cfg.Remote.APIKey)

	// 处理相对路径
	cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)
	if cfg.Storage.RewardsPath != "" {
		cfg.Storage.RewardsPath = resolvePath(cfg.Storage.RewardsPath)
	}
	cfg.Storage.MemoryPath = resolvePath(cfg.Storage.MemoryPath)

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "vita-agent")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")

	// Identity
	v.SetDefault("identity.user_id", "guest")
	v.SetDefault("identity.guest", true)

	// Storage
	v.SetDefault("storage.db_path", "./data/vita.db")
	v.SetDefault("storage.memory_path", "./data/coach_memory")

	// Remote
	v.SetDefault("remote.enabled", false)
	v.SetDefault("remote.timeout_sec", 15)
	v.SetDefault("remote.max_retries", 3)

	// AI
	v.SetDefault("ai.chat.base_url", "https://api.deepseek.com")
	v.SetDefault("ai.chat.model", "deepseek-chat")
	v.SetDefault("ai.embed.base_url", "https://api.siliconflow.cn")
	v.SetDefault("ai.embed.model", "BAAI/bge-m3")

	// Server
	v.SetDefault("server.listen_addr", "127.0.0.1:0")
}

// expandEnv 展开环境变量占位符 ${VAR}
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return s
}

// resolvePath 解析相对路径为绝对路径
func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	// 获取可执行文件目录
	exe, err := os.Executable()
	if err != nil {
		return path
	}

	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, path)
}

// LoggerOptions 日志配置
type LoggerOptions struct {
	Level     string
	Path      string // 留空输出到 stdout
	Component string
}

// SetupLogger 根据配置设置日志；返回的 Closer 在进程退出时关闭日志文件
func SetupLogger(opts LoggerOptions) (io.Closer, error) {
	var logLevel slog.Level
	switch strings.ToLower(opts.Level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	var closer io.Closer
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err == nil {
			f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				out = f
				closer = f
			} else {
				slog.Warn("打开日志文件失败，回退到 stdout", "path", opts.Path, "error", err)
			}
		}
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	slog.SetDefault(logger)
	return closer, nil
}
