package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuqie6/VitaQuest/internal/ai"
	"github.com/yuqie6/VitaQuest/internal/model"
	"github.com/yuqie6/VitaQuest/internal/repository"
)

// ErrCoachNotConfigured AI 教练未配置
var ErrCoachNotConfigured = errors.New("AI 教练未配置")

// ErrCoachGated 周报在当前时间窗口内已生成过
var ErrCoachGated = errors.New("本周周报已生成，请下周再来")

// 同一日期范围的周报在此时效内直接复用，不重复消耗 AI 调用
const coachReportMaxAge = 24 * time.Hour

// CoachService AI 教练周报服务
// 周报是付费/高成本动作，经由时间窗口门控（滚动 7×24h）防刷
type CoachService struct {
	analyzer     CoachAnalyzer
	memory       CoachMemory
	activityRepo *repository.ActivityRepository
	reportRepo   *repository.CoachReportRepository
	ledger       *LedgerService
	gate         *RewardGate
	rewards      *RewardsProvider
}

// NewCoachService 创建教练服务
func NewCoachService(
	analyzer CoachAnalyzer,
	memory CoachMemory,
	activityRepo *repository.ActivityRepository,
	reportRepo *repository.CoachReportRepository,
	ledger *LedgerService,
	gate *RewardGate,
	rewards *RewardsProvider,
) *CoachService {
	return &CoachService{
		analyzer:     analyzer,
		memory:       memory,
		activityRepo: activityRepo,
		reportRepo:   reportRepo,
		ledger:       ledger,
		gate:         gate,
		rewards:      rewards,
	}
}

// IsConfigured 检查 AI 教练是否可用
func (s *CoachService) IsConfigured() bool {
	return s != nil && s.analyzer != nil
}

// GenerateWeeklyReport 生成最近 7 天的健康周报
// 门控放行才调用 AI；生成成功后记录发放时间并入长期记忆
func (s *CoachService) GenerateWeeklyReport(ctx context.Context, identity string, now time.Time) (*model.CoachReport, error) {
	if !s.IsConfigured() {
		return nil, ErrCoachNotConfigured
	}

	startDate := now.AddDate(0, 0, -7).Format("2006-01-02")
	endDate := now.Format("2006-01-02")

	// 新鲜的同范围周报直接复用
	if cached, err := s.reportRepo.GetByRange(ctx, identity, startDate, endDate, coachReportMaxAge); err == nil && cached != nil {
		slog.Debug("复用已生成的周报", "identity", identity, "start", startDate, "end", endDate)
		return cached, nil
	}

	ok, err := s.gate.CanGrant(ctx, identity, FeatureCoachReport, now, WindowWeekly)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCoachGated
	}

	digest, err := s.buildDigest(ctx, identity, now)
	if err != nil {
		return nil, err
	}
	digest.StartDate = startDate
	digest.EndDate = endDate

	// 检索相似历史周报作为上下文；检索失败不阻塞生成
	if s.memory != nil {
		query := fmt.Sprintf("本周积分 %d，活动 %d 次", digest.TotalPoints, sumCounts(digest.KindCounts))
		memories, err := s.memory.SearchSimilar(ctx, query, 3)
		if err != nil {
			slog.Warn("检索历史周报失败", "error", err)
		} else {
			digest.Memories = memories
		}
	}

	advice, err := s.analyzer.GenerateWeeklyReport(ctx, digest)
	if err != nil {
		return nil, err
	}

	report := &model.CoachReport{
		Identity:    identity,
		StartDate:   startDate,
		EndDate:     endDate,
		Overview:    advice.Overview,
		Highlights:  model.JSONArray(advice.Highlights),
		Suggestions: advice.Suggestions,
		TotalPoints: digest.TotalPoints,
		EntryCount:  sumCounts(digest.KindCounts),
	}
	if err := s.reportRepo.Upsert(ctx, report); err != nil {
		return nil, err
	}

	if err := s.gate.RecordGrant(ctx, identity, FeatureCoachReport, now); err != nil {
		return nil, err
	}

	if s.memory != nil {
		if err := s.memory.Index(ctx, report); err != nil {
			slog.Warn("索引周报失败", "error", err)
		}
	}

	slog.Info("生成健康周报", "identity", identity, "start", startDate, "end", endDate)
	return report, nil
}

// History 历史周报
func (s *CoachService) History(ctx context.Context, identity string, limit int) ([]model.CoachReport, error) {
	return s.reportRepo.ListByIdentity(ctx, identity, limit)
}

// buildDigest 汇总最近 7 天的活动数据
func (s *CoachService) buildDigest(ctx context.Context, identity string, now time.Time) (*ai.WeeklyReportRequest, error) {
	startMs, endMs := repository.WeekRange(now)
	entries, err := s.activityRepo.ListByTimeRange(ctx, identity, startMs, endMs)
	if err != nil {
		return nil, err
	}

	table := s.rewards.Current()
	kindCounts := make(map[string]int)
	weekPoints := 0
	for i := range entries {
		kindCounts[entries[i].Kind]++
		weekPoints += table.PointsFor(&entries[i])
	}

	profile, err := s.ledger.Progress(ctx, identity)
	if err != nil {
		return nil, err
	}

	return &ai.WeeklyReportRequest{
		TotalPoints: weekPoints,
		Level:       profile.Level,
		KindCounts:  kindCounts,
	}, nil
}

func sumCounts(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}
