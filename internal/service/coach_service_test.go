package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yuqie6/VitaQuest/internal/ai"
	"github.com/yuqie6/VitaQuest/internal/model"
	"github.com/yuqie6/VitaQuest/internal/repository"
	"github.com/yuqie6/VitaQuest/internal/testutil"
)

// fakeAnalyzer 固定返回一份周报内容
type fakeAnalyzer struct {
	lastReq *ai.WeeklyReportRequest
	err     error
	calls   int
}

func (f *fakeAnalyzer) GenerateWeeklyReport(ctx context.Context, req *ai.WeeklyReportRequest) (*ai.WeeklyReportResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &ai.WeeklyReportResult{
		Overview:    "本周完成得不错",
		Highlights:  []string{"坚持喝水"},
		Suggestions: "尝试早睡",
	}, nil
}

// fakeMemory 记录索引和检索调用
type fakeMemory struct {
	indexed   []string
	recalled  []string
	searchErr error
}

func (f *fakeMemory) Index(ctx context.Context, report *model.CoachReport) error {
	f.indexed = append(f.indexed, report.StartDate)
	return nil
}

func (f *fakeMemory) SearchSimilar(ctx context.Context, query string, limit int) ([]string, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.recalled, nil
}

func newTestCoach(t *testing.T, analyzer CoachAnalyzer, memory CoachMemory) (*CoachService, *LedgerService) {
	t.Helper()
	db := testutil.OpenTestDB(t)
	activityRepo := repository.NewActivityRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	rewards := NewRewardsProvider(nil)
	ledger := NewLedgerService(activityRepo, profileRepo, rewards, nil)
	gate := NewRewardGate(repository.NewGrantRepository(db), nil)
	coach := NewCoachService(
		analyzer, memory,
		activityRepo, repository.NewCoachReportRepository(db),
		ledger, gate, rewards,
	)
	return coach, ledger
}

func TestCoachService_NotConfigured(t *testing.T) {
	coach, _ := newTestCoach(t, nil, nil)

	if coach.IsConfigured() {
		t.Fatal("nil analyzer should report not configured")
	}
	_, err := coach.GenerateWeeklyReport(context.Background(), "u1", time.Now())
	if !errors.Is(err, ErrCoachNotConfigured) {
		t.Fatalf("err = %v, want ErrCoachNotConfigured", err)
	}
}

func TestCoachService_GenerateWeeklyReport(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	memory := &fakeMemory{recalled: []string{"上周喝水偏少"}}
	coach, ledger := newTestCoach(t, analyzer, memory)
	ctx := context.Background()
	now := time.Now()

	_, _ = ledger.LogActivity(ctx, model.NewActivityEntry("u1", model.KindWater, ""))
	_, _ = ledger.LogActivity(ctx, model.NewActivityEntry("u1", model.KindQuiz, model.VariantQuizDaily))

	report, err := coach.GenerateWeeklyReport(ctx, "u1", now)
	if err != nil {
		t.Fatalf("GenerateWeeklyReport error: %v", err)
	}
	if report.Overview != "本周完成得不错" {
		t.Fatalf("Overview = %q", report.Overview)
	}
	if report.TotalPoints != 25 {
		t.Fatalf("week points = %d, want 25", report.TotalPoints)
	}
	if report.EntryCount != 2 {
		t.Fatalf("entry count = %d, want 2", report.EntryCount)
	}

	// 长期记忆作为生成上下文传给分析器，并在生成后索引新周报
	if len(analyzer.lastReq.Memories) != 1 {
		t.Fatalf("memories = %v, want recalled context", analyzer.lastReq.Memories)
	}
	if len(memory.indexed) != 1 {
		t.Fatalf("indexed = %v, want new report indexed", memory.indexed)
	}

	history, err := coach.History(ctx, "u1", 10)
	if err != nil || len(history) != 1 {
		t.Fatalf("History = %d err=%v, want 1", len(history), err)
	}
}

func TestCoachService_ReusesFreshReport(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	coach, _ := newTestCoach(t, analyzer, nil)
	ctx := context.Background()
	now := time.Now()

	first, err := coach.GenerateWeeklyReport(ctx, "u1", now)
	if err != nil {
		t.Fatalf("first report error: %v", err)
	}

	// 同一日期范围内的重复请求复用已生成的新鲜周报，不再调用 AI
	again, err := coach.GenerateWeeklyReport(ctx, "u1", now)
	if err != nil {
		t.Fatalf("repeat request should reuse the fresh report, got %v", err)
	}
	if again.Overview != first.Overview {
		t.Fatalf("reused overview = %q, want %q", again.Overview, first.Overview)
	}
	if analyzer.calls != 1 {
		t.Fatalf("analyzer calls = %d, want 1", analyzer.calls)
	}
}

func TestCoachService_Gated(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	coach, _ := newTestCoach(t, analyzer, nil)
	ctx := context.Background()
	now := time.Now()

	if _, err := coach.GenerateWeeklyReport(ctx, "u1", now); err != nil {
		t.Fatalf("first report error: %v", err)
	}

	// 滚动周窗口内第二次请求被门控拒绝，不再调用 AI
	_, err := coach.GenerateWeeklyReport(ctx, "u1", now.Add(2*24*time.Hour))
	if !errors.Is(err, ErrCoachGated) {
		t.Fatalf("err = %v, want ErrCoachGated", err)
	}
	if analyzer.calls != 1 {
		t.Fatalf("analyzer calls = %d, want 1", analyzer.calls)
	}

	// 窗口过后放行
	if _, err := coach.GenerateWeeklyReport(ctx, "u1", now.Add(8*24*time.Hour)); err != nil {
		t.Fatalf("report after window error: %v", err)
	}
}

func TestCoachService_AnalyzerFailureDoesNotRecordGrant(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("api unavailable")}
	coach, _ := newTestCoach(t, analyzer, nil)
	ctx := context.Background()
	now := time.Now()

	if _, err := coach.GenerateWeeklyReport(ctx, "u1", now); err == nil {
		t.Fatal("analyzer failure should surface")
	}

	// 失败不计入发放，恢复后可立即重试
	analyzer.err = nil
	if _, err := coach.GenerateWeeklyReport(ctx, "u1", now); err != nil {
		t.Fatalf("retry after failure error: %v", err)
	}
}

func TestCoachService_SearchFailureIsNonBlocking(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	memory := &fakeMemory{searchErr: errors.New("embed unavailable")}
	coach, _ := newTestCoach(t, analyzer, memory)

	if _, err := coach.GenerateWeeklyReport(context.Background(), "u1", time.Now()); err != nil {
		t.Fatalf("search failure should not block generation: %v", err)
	}
}
