package repository

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/VitaQuest/internal/model"
	"github.com/yuqie6/VitaQuest/internal/testutil"
)

func TestActivityRepositoryAppendAndList(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	if err := repo.Append(ctx, nil); err == nil {
		t.Fatal("nil entry should be rejected")
	}

	e1 := model.NewActivityEntry("u1", model.KindWater, "")
	e1.Timestamp = 2000
	e2 := model.NewActivityEntry("u1", model.KindMeal, "")
	e2.Timestamp = 1000
	for _, e := range []*model.ActivityEntry{e1, e2} {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	entries, err := repo.ListByIdentity(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByIdentity error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	// 按时间升序返回
	if entries[0].Kind != model.KindMeal || entries[1].Kind != model.KindWater {
		t.Fatalf("entries not sorted by timestamp: %v %v", entries[0].Kind, entries[1].Kind)
	}
}

func TestActivityRepositoryListByKind(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	_ = repo.Append(ctx, model.NewActivityEntry("u1", model.KindWater, ""))
	_ = repo.Append(ctx, model.NewActivityEntry("u1", model.KindWater, ""))
	_ = repo.Append(ctx, model.NewActivityEntry("u1", model.KindMeal, ""))

	entries, err := repo.ListByKind(ctx, "u1", model.KindWater)
	if err != nil {
		t.Fatalf("ListByKind error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("water entries = %d, want 2", len(entries))
	}

	count, err := repo.CountByKind(ctx, "u1", model.KindMeal)
	if err != nil || count != 1 {
		t.Fatalf("CountByKind = %d err=%v, want 1", count, err)
	}
}

func TestActivityRepositoryListByTimeRange(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	now := time.Now()
	inWindow := model.NewActivityEntry("u1", model.KindWater, "")
	inWindow.Timestamp = now.Add(-time.Hour).UnixMilli()
	outOfWindow := model.NewActivityEntry("u1", model.KindWater, "")
	outOfWindow.Timestamp = now.Add(-10 * 24 * time.Hour).UnixMilli()
	_ = repo.Append(ctx, inWindow)
	_ = repo.Append(ctx, outOfWindow)

	startMs, endMs := WeekRange(now)
	entries, err := repo.ListByTimeRange(ctx, "u1", startMs, endMs)
	if err != nil {
		t.Fatalf("ListByTimeRange error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries in week window = %d, want 1", len(entries))
	}
}

func TestActivityRepositoryGetKindStats(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = repo.Append(ctx, model.NewActivityEntry("u1", model.KindWater, ""))
	}
	_ = repo.Append(ctx, model.NewActivityEntry("u1", model.KindSleep, ""))
	_ = repo.Append(ctx, model.NewActivityEntry("u2", model.KindWater, ""))

	stats, err := repo.GetKindStats(ctx, "u1")
	if err != nil {
		t.Fatalf("GetKindStats error: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("stats = %d kinds, want 2", len(stats))
	}
	// 按条目数降序
	if stats[0].Kind != model.KindWater || stats[0].EntryCount != 3 {
		t.Fatalf("top stat = %+v, want water×3", stats[0])
	}
}

func TestActivityRepositoryClearKindAndReset(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	_ = repo.Append(ctx, model.NewActivityEntry("u1", model.KindWater, ""))
	_ = repo.Append(ctx, model.NewActivityEntry("u1", model.KindMeal, ""))

	deleted, err := repo.ClearKind(ctx, "u1", model.KindWater)
	if err != nil {
		t.Fatalf("ClearKind error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	deleted, err = repo.ResetIdentity(ctx, "u1")
	if err != nil {
		t.Fatalf("ResetIdentity error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want remaining 1", deleted)
	}

	entries, _ := repo.ListByIdentity(ctx, "u1")
	if len(entries) != 0 {
		t.Fatalf("entries after reset = %d, want 0", len(entries))
	}
}

func TestActivityRepositoryReplaceAll(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	_ = repo.Append(ctx, model.NewActivityEntry("u1", model.KindMood, ""))
	_ = repo.Append(ctx, model.NewActivityEntry("u2", model.KindMood, ""))

	incoming := []model.ActivityEntry{
		*model.NewActivityEntry("u1", model.KindWater, ""),
		*model.NewActivityEntry("u1", model.KindQuiz, model.VariantQuizDaily),
	}
	if err := repo.ReplaceAll(ctx, "u1", incoming); err != nil {
		t.Fatalf("ReplaceAll error: %v", err)
	}

	entries, _ := repo.ListByIdentity(ctx, "u1")
	if len(entries) != 2 {
		t.Fatalf("u1 entries = %d, want replaced by 2", len(entries))
	}
	// 其他身份的数据不受影响
	other, _ := repo.ListByIdentity(ctx, "u2")
	if len(other) != 1 {
		t.Fatalf("u2 entries = %d, want untouched 1", len(other))
	}

	// 空快照替换后清空
	if err := repo.ReplaceAll(ctx, "u1", nil); err != nil {
		t.Fatalf("ReplaceAll(empty) error: %v", err)
	}
	entries, _ = repo.ListByIdentity(ctx, "u1")
	if len(entries) != 0 {
		t.Fatalf("u1 entries = %d, want 0 after empty replace", len(entries))
	}
}

func TestDayRange(t *testing.T) {
	startMs, endMs, err := DayRange("2026-08-10")
	if err != nil {
		t.Fatalf("DayRange error: %v", err)
	}
	if endMs-startMs != 24*60*60*1000-1 {
		t.Fatalf("day span = %d ms, want 86399999", endMs-startMs)
	}

	if _, _, err := DayRange("not-a-date"); err == nil {
		t.Fatal("invalid date should return error")
	}
}

func TestWeekRange(t *testing.T) {
	now := time.Now()
	startMs, endMs := WeekRange(now)
	if endMs != now.UnixMilli() {
		t.Fatalf("end = %d, want now", endMs)
	}
	if endMs-startMs != 7*24*60*60*1000 {
		t.Fatalf("week span = %d ms, want 7 days", endMs-startMs)
	}
}
