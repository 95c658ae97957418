package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yuqie6/VitaQuest/internal/eventbus"
	"github.com/yuqie6/VitaQuest/internal/model"
	"github.com/yuqie6/VitaQuest/internal/repository"
)

// LedgerService 积分账本
// 档案中的 TotalPoints/Level 是缓存值，权威值永远是对全部活动日志的求和。
// 所有写路径（打卡、清空、重置、同步合并）都经由这里触发对账自愈。
type LedgerService struct {
	activityRepo *repository.ActivityRepository
	profileRepo  *repository.ProfileRepository
	rewards      *RewardsProvider
	hub          *eventbus.Hub
}

// NewLedgerService 创建账本服务
func NewLedgerService(
	activityRepo *repository.ActivityRepository,
	profileRepo *repository.ProfileRepository,
	rewards *RewardsProvider,
	hub *eventbus.Hub,
) *LedgerService {
	return &LedgerService{
		activityRepo: activityRepo,
		profileRepo:  profileRepo,
		rewards:      rewards,
		hub:          hub,
	}
}

// SumPoints 对活动条目求和 - 纯折叠，不做去重校验
// 求和满足交换律，与条目顺序无关；防重复是时间窗口门控的职责
func SumPoints(entries []model.ActivityEntry, table *RewardsTable) int {
	total := 0
	for i := range entries {
		total += table.PointsFor(&entries[i])
	}
	return total
}

// Reconcile 对账：重算权威总积分，纠正档案缓存
// 缓存不一致不是错误，是预期的自愈路径，静默纠正
func (s *LedgerService) Reconcile(ctx context.Context, identity string) (*model.Profile, error) {
	entries, err := s.activityRepo.ListByIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("对账读取日志失败: %w", err)
	}

	table := s.rewards.Current()
	total := SumPoints(entries, table)
	level := LevelFor(total, table.LevelThresholds)

	profile, err := s.profileRepo.GetOrCreate(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("对账读取档案失败: %w", err)
	}

	if profile.TotalPoints == total && profile.Level == level {
		return profile, nil
	}

	slog.Debug("账本对账纠正缓存",
		"identity", identity,
		"cached_points", profile.TotalPoints,
		"computed_points", total,
		"cached_level", profile.Level,
		"computed_level", level,
	)

	// TotalPoints 与 Level 同一次更新落库
	if err := s.profileRepo.UpdateDerived(ctx, identity, total, level); err != nil {
		return nil, fmt.Errorf("对账写回档案失败: %w", err)
	}
	profile.TotalPoints = total
	profile.Level = level

	s.publish(identity, total, level)
	return profile, nil
}

// LogActivity 追加一条活动并立即对账
// 条目不允许携带积分，积分只由规则表解析
func (s *LedgerService) LogActivity(ctx context.Context, entry *model.ActivityEntry) (*model.Profile, error) {
	if entry == nil {
		return nil, fmt.Errorf("entry 不能为空")
	}
	if entry.Identity == "" {
		return nil, fmt.Errorf("entry.Identity 不能为空")
	}
	if entry.Kind == "" {
		return nil, fmt.Errorf("entry.Kind 不能为空")
	}

	if err := s.activityRepo.Append(ctx, entry); err != nil {
		return nil, err
	}

	// 对账读取的是追加后的日志状态，不依赖任何中间缓存
	return s.Reconcile(ctx, entry.Identity)
}

// ClearKind 清空某类型历史并对账
func (s *LedgerService) ClearKind(ctx context.Context, identity, kind string) (*model.Profile, error) {
	if _, err := s.activityRepo.ClearKind(ctx, identity, kind); err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, identity)
}

// Reset 整体重置某身份的日志并对账（档案归零）
func (s *LedgerService) Reset(ctx context.Context, identity string) (*model.Profile, error) {
	if _, err := s.activityRepo.ResetIdentity(ctx, identity); err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, identity)
}

// Progress 读取当前进度（读路径也触发对账，防御遗漏的写路径）
func (s *LedgerService) Progress(ctx context.Context, identity string) (*model.Profile, error) {
	return s.Reconcile(ctx, identity)
}

func (s *LedgerService) publish(identity string, total, level int) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(eventbus.Event{
		Type: eventbus.EventLedgerUpdated,
		Data: map[string]any{
			"identity":     identity,
			"total_points": total,
			"level":        level,
		},
	})
}
