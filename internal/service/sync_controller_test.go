package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/yuqie6/VitaQuest/internal/model"
	"github.com/yuqie6/VitaQuest/internal/repository"
	"github.com/yuqie6/VitaQuest/internal/testutil"
)

// fakeFetcher 可编程的远端快照假实现
type fakeFetcher struct {
	snapshot *model.RemoteSnapshot
	err      error
	calls    int
}

func (f *fakeFetcher) FetchSnapshot(ctx context.Context, identity string) (*model.RemoteSnapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

type syncFixture struct {
	ledger       *LedgerService
	activityRepo *repository.ActivityRepository
	profileRepo  *repository.ProfileRepository
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	activityRepo := repository.NewActivityRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	return &syncFixture{
		ledger:       NewLedgerService(activityRepo, profileRepo, NewRewardsProvider(nil), nil),
		activityRepo: activityRepo,
		profileRepo:  profileRepo,
	}
}

func (fx *syncFixture) controller(cfg SyncControllerConfig, fetcher SnapshotFetcher) *SyncController {
	return NewSyncController(cfg, fetcher, fx.activityRepo, fx.profileRepo, fx.ledger, nil)
}

func TestSyncController_GuestStartsSynced(t *testing.T) {
	fx := newSyncFixture(t)
	c := fx.controller(SyncControllerConfig{Identity: "guest", Guest: true}, &fakeFetcher{})

	if state, _ := c.Status(); state != SyncSynced {
		t.Fatalf("guest state = %s, want synced", state)
	}
	if err := c.Guard(); err != nil {
		t.Fatalf("guest guard should pass, got %v", err)
	}

	fetcher := &fakeFetcher{}
	c = fx.controller(SyncControllerConfig{Identity: "guest", Guest: true}, fetcher)
	c.Start(context.Background())
	if fetcher.calls != 0 {
		t.Fatal("guest should never hit the network")
	}
}

func TestSyncController_NilFetcherStartsSynced(t *testing.T) {
	fx := newSyncFixture(t)
	c := fx.controller(SyncControllerConfig{Identity: "u1"}, nil)

	if state, _ := c.Status(); state != SyncSynced {
		t.Fatalf("state = %s, want synced when remote is not configured", state)
	}
}

func TestSyncController_SuccessfulSync(t *testing.T) {
	fx := newSyncFixture(t)
	ctx := context.Background()

	// 本地残留一条旧日志，合并后应被远端整体替换
	_, _ = fx.ledger.LogActivity(ctx, model.NewActivityEntry("u1", model.KindMood, ""))

	fetcher := &fakeFetcher{
		snapshot: &model.RemoteSnapshot{
			Identity: "u1",
			Profile: model.RemoteProfile{
				DisplayName: "小明",
				Badges:      []string{"early_bird"},
				TotalPoints: 777, // 远端缓存值不可信，仅诊断参考
				Level:       9,
			},
			Activities: []model.ActivityEntry{
				*model.NewActivityEntry("u1", model.KindWater, ""),
				*model.NewActivityEntry("u1", model.KindQuiz, model.VariantQuizDaily),
			},
		},
	}
	c := fx.controller(SyncControllerConfig{Identity: "u1"}, fetcher)

	if err := c.Guard(); !errors.Is(err, ErrSyncPending) {
		t.Fatalf("idle guard should block, got %v", err)
	}

	c.Start(ctx)

	if state, reason := c.Status(); state != SyncSynced || reason != "" {
		t.Fatalf("state = %s reason = %q, want synced", state, reason)
	}
	if err := c.Guard(); err != nil {
		t.Fatalf("guard after sync should pass, got %v", err)
	}

	profile, err := fx.ledger.Progress(ctx, "u1")
	if err != nil {
		t.Fatalf("Progress error: %v", err)
	}
	// 派生值由本地重算：5 + 20 = 25，不采用远端的 777
	if profile.TotalPoints != 25 {
		t.Fatalf("TotalPoints = %d, want 25 (recomputed, not remote value)", profile.TotalPoints)
	}
	if profile.DisplayName != "小明" {
		t.Fatalf("DisplayName = %q, want merged from remote", profile.DisplayName)
	}
	if !profile.Badges.Has("early_bird") {
		t.Fatal("badges should merge from remote")
	}

	entries, err := fx.activityRepo.ListByIdentity(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByIdentity error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want local history replaced by remote's 2", len(entries))
	}
}

func TestSyncController_FetchFailure(t *testing.T) {
	fx := newSyncFixture(t)
	fetcher := &fakeFetcher{err: fmt.Errorf("connection refused")}
	c := fx.controller(SyncControllerConfig{Identity: "u1"}, fetcher)

	c.Start(context.Background())

	state, reason := c.Status()
	if state != SyncFailed {
		t.Fatalf("state = %s, want failed", state)
	}
	if reason != reasonFetch {
		t.Fatalf("reason = %q, want fetch failure reason", reason)
	}
	if err := c.Guard(); !errors.Is(err, ErrSyncPending) {
		t.Fatalf("failed guard should block, got %v", err)
	}
}

func TestSyncController_TimeoutIsDistinguishable(t *testing.T) {
	fx := newSyncFixture(t)
	fetcher := &fakeFetcher{err: fmt.Errorf("拉取快照: %w", context.DeadlineExceeded)}
	c := fx.controller(SyncControllerConfig{Identity: "u1"}, fetcher)

	c.Start(context.Background())

	if state, reason := c.Status(); state != SyncFailed || reason != reasonTimeout {
		t.Fatalf("state = %s reason = %q, want failed with timeout reason", state, reason)
	}
}

func TestSyncController_RetryAfterFailure(t *testing.T) {
	fx := newSyncFixture(t)
	fetcher := &fakeFetcher{err: fmt.Errorf("connection refused")}
	c := fx.controller(SyncControllerConfig{Identity: "u1"}, fetcher)
	ctx := context.Background()

	c.Start(ctx)
	if state, _ := c.Status(); state != SyncFailed {
		t.Fatalf("state = %s, want failed", state)
	}

	// 故障恢复后重试成功
	fetcher.err = nil
	fetcher.snapshot = &model.RemoteSnapshot{Identity: "u1"}
	c.Retry(ctx)

	if state, reason := c.Status(); state != SyncSynced || reason != "" {
		t.Fatalf("state = %s reason = %q, want synced after retry", state, reason)
	}
}

func TestSyncController_RetryOnlyFromFailed(t *testing.T) {
	fx := newSyncFixture(t)
	fetcher := &fakeFetcher{snapshot: &model.RemoteSnapshot{Identity: "u1"}}
	c := fx.controller(SyncControllerConfig{Identity: "u1"}, fetcher)
	ctx := context.Background()

	c.Retry(ctx)
	if fetcher.calls != 0 {
		t.Fatal("retry from idle should be a no-op")
	}

	c.Start(ctx)
	calls := fetcher.calls
	c.Retry(ctx)
	if fetcher.calls != calls {
		t.Fatal("retry from synced should be a no-op")
	}
}

func TestSyncController_UseOfflineData(t *testing.T) {
	fx := newSyncFixture(t)
	fetcher := &fakeFetcher{err: fmt.Errorf("connection refused")}
	c := fx.controller(SyncControllerConfig{Identity: "u1"}, fetcher)
	ctx := context.Background()

	// 非 Failed 状态下是空操作
	c.UseOfflineData()
	if state, _ := c.Status(); state != SyncIdle {
		t.Fatalf("state = %s, want idle unchanged", state)
	}

	c.Start(ctx)
	c.UseOfflineData()

	state, reason := c.Status()
	if state != SyncSyncedOffline || reason != "" {
		t.Fatalf("state = %s reason = %q, want synced_offline", state, reason)
	}
	if err := c.Guard(); err != nil {
		t.Fatalf("offline guard should pass, got %v", err)
	}

	// 终态：重试不再生效
	calls := fetcher.calls
	c.Retry(ctx)
	if fetcher.calls != calls {
		t.Fatal("synced_offline is terminal, retry should be a no-op")
	}
}

func TestSyncController_StartOnlyOnce(t *testing.T) {
	fx := newSyncFixture(t)
	fetcher := &fakeFetcher{snapshot: &model.RemoteSnapshot{Identity: "u1"}}
	c := fx.controller(SyncControllerConfig{Identity: "u1"}, fetcher)
	ctx := context.Background()

	c.Start(ctx)
	c.Start(ctx)
	if fetcher.calls != 1 {
		t.Fatalf("fetcher called %d times, want 1", fetcher.calls)
	}
}

func TestSyncController_MergeBackfillsIdentity(t *testing.T) {
	fx := newSyncFixture(t)
	entry := model.NewActivityEntry("", model.KindWater, "")
	fetcher := &fakeFetcher{
		snapshot: &model.RemoteSnapshot{
			Identity:   "u1",
			Activities: []model.ActivityEntry{*entry},
		},
	}
	c := fx.controller(SyncControllerConfig{Identity: "u1", Timeout: time.Second}, fetcher)
	ctx := context.Background()

	c.Start(ctx)

	entries, err := fx.activityRepo.ListByIdentity(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByIdentity error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 with identity backfilled", len(entries))
	}
}
