package bootstrap

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yuqie6/VitaQuest/internal/ai"
	"github.com/yuqie6/VitaQuest/internal/eventbus"
	"github.com/yuqie6/VitaQuest/internal/pkg/config"
	"github.com/yuqie6/VitaQuest/internal/remote"
	"github.com/yuqie6/VitaQuest/internal/repository"
	"github.com/yuqie6/VitaQuest/internal/service"
)

// Core 持有跨二进制共享的核心依赖
type Core struct {
	Cfg       *config.Config
	DB        *repository.Database
	Hub       *eventbus.Hub
	Rewards   *service.RewardsProvider
	LogCloser io.Closer

	Repos struct {
		Activity    *repository.ActivityRepository
		Profile     *repository.ProfileRepository
		Grant       *repository.GrantRepository
		CoachReport *repository.CoachReportRepository
	}

	Services struct {
		Ledger *service.LedgerService
		Gate   *service.RewardGate
		Sync   *service.SyncController
		Coach  *service.CoachService
	}

	Clients struct {
		Remote *remote.Client
		Chat   *ai.ChatClient
		Embed  *ai.EmbedClient
	}
}

// NewCore 构建核心依赖（不触发同步）
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logCloser, _ := config.SetupLogger(config.LoggerOptions{
		Level:     cfg.App.LogLevel,
		Path:      cfg.App.LogPath,
		Component: filepath.Base(os.Args[0]),
	})

	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db, LogCloser: logCloser}
	c.Hub = eventbus.NewHub()
	c.Rewards = service.NewRewardsProvider(service.LoadRewardsTable(cfg.Storage.RewardsPath))

	// Repos
	c.Repos.Activity = repository.NewActivityRepository(db.DB)
	c.Repos.Profile = repository.NewProfileRepository(db.DB)
	c.Repos.Grant = repository.NewGrantRepository(db.DB)
	c.Repos.CoachReport = repository.NewCoachReportRepository(db.DB)

	// Clients
	if cfg.Remote.Enabled {
		c.Clients.Remote = remote.NewClient(&remote.Config{
			BaseURL:    cfg.Remote.BaseURL,
			APIKey:     cfg.Remote.APIKey,
			Timeout:    time.Duration(cfg.Remote.TimeoutSec) * time.Second,
			MaxRetries: cfg.Remote.MaxRetries,
		})
	}
	c.Clients.Chat = ai.NewChatClient(&ai.ChatConfig{
		APIKey:  cfg.AI.Chat.APIKey,
		BaseURL: cfg.AI.Chat.BaseURL,
		Path:    cfg.AI.Chat.Path,
		Model:   cfg.AI.Chat.Model,
	})
	c.Clients.Embed = ai.NewEmbedClient(&ai.EmbedConfig{
		APIKey:  cfg.AI.Embed.APIKey,
		BaseURL: cfg.AI.Embed.BaseURL,
		Path:    cfg.AI.Embed.Path,
		Model:   cfg.AI.Embed.Model,
	})

	// Services
	c.Services.Ledger = service.NewLedgerService(c.Repos.Activity, c.Repos.Profile, c.Rewards, c.Hub)
	c.Services.Gate = service.NewRewardGate(c.Repos.Grant, c.Hub)

	var fetcher service.SnapshotFetcher
	if c.Clients.Remote != nil && c.Clients.Remote.IsConfigured() {
		fetcher = c.Clients.Remote
	}
	c.Services.Sync = service.NewSyncController(
		service.SyncControllerConfig{
			Identity: cfg.Identity.UserID,
			Guest:    cfg.Identity.Guest,
			Timeout:  time.Duration(cfg.Remote.TimeoutSec) * time.Second,
		},
		fetcher,
		c.Repos.Activity,
		c.Repos.Profile,
		c.Services.Ledger,
		c.Hub,
	)

	var analyzer service.CoachAnalyzer
	if c.Clients.Chat.IsConfigured() {
		analyzer = ai.NewCoach(c.Clients.Chat)
	}
	var memory service.CoachMemory
	if analyzer != nil {
		mem, err := service.NewChromemCoachMemory(c.Clients.Embed, &service.CoachMemoryConfig{
			StoragePath: cfg.Storage.MemoryPath,
		})
		if err != nil {
			slog.Warn("初始化周报记忆失败，跳过长期记忆", "error", err)
		} else {
			memory = mem
		}
	}
	c.Services.Coach = service.NewCoachService(
		analyzer,
		memory,
		c.Repos.Activity,
		c.Repos.CoachReport,
		c.Services.Ledger,
		c.Services.Gate,
		c.Rewards,
	)

	return c, nil
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	var dbErr error
	if c.DB != nil {
		dbErr = c.DB.Close()
	}
	if c.LogCloser != nil {
		_ = c.LogCloser.Close()
	}
	return dbErr
}
