package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yuqie6/VitaQuest/internal/eventbus"
	"github.com/yuqie6/VitaQuest/internal/model"
	"github.com/yuqie6/VitaQuest/internal/repository"
)

// SyncState 同步状态机状态
type SyncState string

const (
	SyncIdle          SyncState = "idle"
	SyncSyncing       SyncState = "syncing"
	SyncSynced        SyncState = "synced"
	SyncSyncedOffline SyncState = "synced_offline" // 用户显式放弃远端，接受本地缓存；终态，诊断上可区分
	SyncFailed        SyncState = "failed"
)

// ErrSyncPending 同步未决：Syncing 或未处理的 Failed 期间禁止读写被门控的状态
var ErrSyncPending = errors.New("远端同步未完成，数据暂不可用")

// 失败原因，面向用户展示；超时与一般网络失败可区分
const (
	reasonTimeout = "同步超时，请检查网络后重试"
	reasonFetch   = "拉取云端数据失败"
	reasonMerge   = "云端数据写入本地失败"
)

// SyncController 远端同步状态机
// Idle → Syncing → {Synced | Failed}；Failed → Syncing（重试）
// 或 Failed → SyncedOffline（用户选择离线数据）。
// 游客身份完全绕过状态机，始终视为 Synced。
// 状态只存在于内存，进程启动时重建。
type SyncController struct {
	mu     sync.Mutex
	state  SyncState
	reason string

	identity string
	guest    bool

	fetcher      SnapshotFetcher
	activityRepo *repository.ActivityRepository
	profileRepo  *repository.ProfileRepository
	ledger       *LedgerService
	hub          *eventbus.Hub
	timeout      time.Duration
}

// SyncControllerConfig 同步控制器配置
type SyncControllerConfig struct {
	Identity string
	Guest    bool
	Timeout  time.Duration // 远端拉取的有界超时
}

// NewSyncController 创建同步控制器
// fetcher 为 nil（远端未配置）时与游客等价：直接 Synced
func NewSyncController(
	cfg SyncControllerConfig,
	fetcher SnapshotFetcher,
	activityRepo *repository.ActivityRepository,
	profileRepo *repository.ProfileRepository,
	ledger *LedgerService,
	hub *eventbus.Hub,
) *SyncController {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &SyncController{
		state:        SyncIdle,
		identity:     cfg.Identity,
		guest:        cfg.Guest,
		fetcher:      fetcher,
		activityRepo: activityRepo,
		profileRepo:  profileRepo,
		ledger:       ledger,
		hub:          hub,
		timeout:      cfg.Timeout,
	}
	if c.guest || c.fetcher == nil {
		c.state = SyncSynced
	}
	return c
}

// Start 会话开始时触发一次同步（Idle → Syncing）
// 游客身份是空操作；重复调用只生效一次
func (c *SyncController) Start(ctx context.Context) {
	c.mu.Lock()
	if c.state != SyncIdle {
		c.mu.Unlock()
		return
	}
	c.toSyncing()
	c.mu.Unlock()

	c.runSync(ctx)
}

// Retry 失败后用户发起重试（Failed → Syncing）
// 合并幂等 + 对账自愈，at-least-once 语义足够，不需要取消在途请求
func (c *SyncController) Retry(ctx context.Context) {
	c.mu.Lock()
	if c.state != SyncFailed {
		c.mu.Unlock()
		return
	}
	c.toSyncing()
	c.mu.Unlock()

	c.runSync(ctx)
}

// UseOfflineData 失败后用户选择离线数据（Failed → SyncedOffline，终态）
func (c *SyncController) UseOfflineData() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != SyncFailed {
		return
	}
	c.setState(SyncSyncedOffline, "")
	slog.Info("用户选择离线数据，放弃远端同步", "identity", c.identity)
}

// Guard 被门控状态的读写检查
// Syncing 或未处理的 Failed 期间返回 ErrSyncPending，防止读到合并一半的数据
func (c *SyncController) Guard() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case SyncSynced, SyncSyncedOffline:
		return nil
	default:
		return ErrSyncPending
	}
}

// Status 当前状态快照，供 UI 轮询/订阅
func (c *SyncController) Status() (state SyncState, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.reason
}

// runSync 执行一次拉取+合并；调用前必须已处于 Syncing
func (c *SyncController) runSync(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	snapshot, err := c.fetcher.FetchSnapshot(fetchCtx, c.identity)
	if err != nil {
		reason := reasonFetch
		if errors.Is(err, context.DeadlineExceeded) {
			reason = reasonTimeout
		}
		// 超时/失败不应用任何部分合并
		slog.Warn("远端同步失败", "identity", c.identity, "error", err)
		c.fail(reason)
		return
	}

	if err := c.merge(ctx, snapshot); err != nil {
		slog.Error("合并远端快照失败", "identity", c.identity, "error", err)
		c.fail(reasonMerge)
		return
	}

	c.mu.Lock()
	c.setState(SyncSynced, "")
	c.mu.Unlock()
	slog.Info("远端同步完成", "identity", c.identity, "entries", len(snapshot.Activities))
}

// merge 将远端快照落地本地
// 历史集合以远端为权威整体替换；档案派生字段不信任远端值，交由账本重算
func (c *SyncController) merge(ctx context.Context, snapshot *model.RemoteSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("快照不能为空")
	}

	entries := snapshot.Activities
	for i := range entries {
		// 远端导出的条目可能缺身份字段，统一补齐
		if entries[i].Identity == "" {
			entries[i].Identity = c.identity
		}
	}
	if err := c.activityRepo.ReplaceAll(ctx, c.identity, entries); err != nil {
		return err
	}

	// 非派生的档案字段按远端合并
	profile, err := c.profileRepo.GetOrCreate(ctx, c.identity)
	if err != nil {
		return err
	}
	if snapshot.Profile.DisplayName != "" && snapshot.Profile.DisplayName != profile.DisplayName {
		if err := c.profileRepo.UpdateDisplayName(ctx, c.identity, snapshot.Profile.DisplayName); err != nil {
			return err
		}
	}
	if len(snapshot.Profile.Badges) > 0 {
		badges := make(model.BadgeSet, len(snapshot.Profile.Badges))
		for _, id := range snapshot.Profile.Badges {
			badges.Add(id)
		}
		if err := c.profileRepo.UpdateBadges(ctx, c.identity, badges); err != nil {
			return err
		}
	}

	// 对账重算 TotalPoints/Level，远端缓存值仅作诊断参考
	if _, err := c.ledger.Reconcile(ctx, c.identity); err != nil {
		return err
	}
	return nil
}

func (c *SyncController) fail(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setState(SyncFailed, reason)
}

// toSyncing 调用方必须持有 c.mu
func (c *SyncController) toSyncing() {
	c.setState(SyncSyncing, "")
}

// setState 调用方必须持有 c.mu
func (c *SyncController) setState(state SyncState, reason string) {
	c.state = state
	c.reason = reason

	if c.hub != nil {
		c.hub.Publish(eventbus.Event{
			Type: eventbus.EventSyncState,
			Data: map[string]any{
				"identity": c.identity,
				"state":    string(state),
				"reason":   reason,
			},
		})
	}
}
