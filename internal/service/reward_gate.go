package service

import (
	"context"
	"fmt"
	"time"

	"github.com/yuqie6/VitaQuest/internal/eventbus"
	"github.com/yuqie6/VitaQuest/internal/model"
	"github.com/yuqie6/VitaQuest/internal/repository"
)

// GateWindow 门控时间窗口策略
type GateWindow string

const (
	// WindowDaily 同一本地日历日（年月日相同）内只放行一次，不是滚动 24 小时
	WindowDaily GateWindow = "day"
	// WindowWeekly 滚动 7×24 小时内只放行一次
	WindowWeekly GateWindow = "week"
	// WindowISOWeek 同一 ISO 年+周序号内只放行一次
	// 仅每周问答使用；与 WindowWeekly 是两种不同的“周”语义，不可混用
	WindowISOWeek GateWindow = "iso_week"
)

// 内置门控功能键
const (
	FeatureCoachReport = "coach_report" // AI 教练周报（滚动周窗口）
	FeatureQuizWeekly  = "quiz_weekly"  // 每周问答（ISO 周窗口）
	FeatureQuizDaily   = "quiz_daily"   // 每日问答（日历日窗口）
)

// WindowForFeature 内置功能的窗口策略；未登记的功能由调用方自行指定
func WindowForFeature(feature string) (GateWindow, bool) {
	switch feature {
	case FeatureCoachReport:
		return WindowWeekly, true
	case FeatureQuizWeekly:
		return WindowISOWeek, true
	case FeatureQuizDaily:
		return WindowDaily, true
	}
	return "", false
}

// RewardGate 时间窗口门控 - 防刷/防重复发放
// 发放时间按 (identity, feature) 持久化，写入后立即可见
type RewardGate struct {
	grantRepo *repository.GrantRepository
	hub       *eventbus.Hub
}

// NewRewardGate 创建门控
func NewRewardGate(grantRepo *repository.GrantRepository, hub *eventbus.Hub) *RewardGate {
	return &RewardGate{grantRepo: grantRepo, hub: hub}
}

// CanGrant 判断当前时刻能否放行
// 无历史发放记录时无条件放行（首次使用 fail-open）；被拒绝不是错误
func (g *RewardGate) CanGrant(ctx context.Context, identity, feature string, now time.Time, window GateWindow) (bool, error) {
	grant, err := g.grantRepo.Get(ctx, identity, feature)
	if err != nil {
		return false, err
	}
	if grant == nil {
		return true, nil
	}

	last := time.UnixMilli(grant.GrantedAt).In(now.Location())

	switch window {
	case WindowDaily:
		return !sameCalendarDay(last, now), nil
	case WindowWeekly:
		return now.Sub(last) > 7*24*time.Hour, nil
	case WindowISOWeek:
		return !sameISOWeek(last, now), nil
	default:
		return false, fmt.Errorf("未知的门控窗口: %s", window)
	}
}

// RecordGrant 记录本次发放，后续 CanGrant 立即观察到
func (g *RewardGate) RecordGrant(ctx context.Context, identity, feature string, now time.Time) error {
	err := g.grantRepo.Upsert(ctx, &model.RewardGrant{
		Identity:  identity,
		Feature:   feature,
		GrantedAt: now.UnixMilli(),
	})
	if err != nil {
		return err
	}

	if g.hub != nil {
		g.hub.Publish(eventbus.Event{
			Type: eventbus.EventRewardGranted,
			Data: map[string]any{
				"identity": identity,
				"feature":  feature,
			},
		})
	}
	return nil
}

// TryGrant 检查并记录，一步完成；返回是否放行
func (g *RewardGate) TryGrant(ctx context.Context, identity, feature string, now time.Time, window GateWindow) (bool, error) {
	ok, err := g.CanGrant(ctx, identity, feature, now, window)
	if err != nil || !ok {
		return false, err
	}
	if err := g.RecordGrant(ctx, identity, feature, now); err != nil {
		return false, err
	}
	return true, nil
}

// sameCalendarDay 判断两个时刻是否处于同一本地日历日
func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// sameISOWeek 判断两个时刻是否处于同一 ISO 年+周
func sameISOWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}
