package service

import (
	"context"

	"github.com/yuqie6/VitaQuest/internal/ai"
	"github.com/yuqie6/VitaQuest/internal/model"
)

// 外部依赖的最小接口集合（ISP）

// SnapshotFetcher 远端记录库的单一网络操作：按身份拉取整包快照
// 由 internal/remote 实现；测试中用假实现替换
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, identity string) (*model.RemoteSnapshot, error)
}

// CoachAnalyzer AI 教练的生成入口
// 由 internal/ai 实现；未配置 API Key 时为 nil
type CoachAnalyzer interface {
	GenerateWeeklyReport(ctx context.Context, req *ai.WeeklyReportRequest) (*ai.WeeklyReportResult, error)
}

// CoachMemory 周报长期记忆：索引历史周报，检索相似内容作为生成上下文
type CoachMemory interface {
	Index(ctx context.Context, report *model.CoachReport) error
	SearchSimilar(ctx context.Context, query string, limit int) ([]string, error)
}
