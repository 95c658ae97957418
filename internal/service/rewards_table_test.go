package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yuqie6/VitaQuest/internal/model"
)

func TestRewardsTablePointsFor(t *testing.T) {
	table := DefaultRewardsTable()

	cases := []struct {
		kind    string
		variant string
		want    int
	}{
		{model.KindWater, "", 5},
		{model.KindMeal, "", 10},
		{model.KindHabit, "", 15},
		{model.KindQuiz, model.VariantQuizDaily, 20},
		{model.KindQuiz, model.VariantQuizWeekly, 50},
		{"unknown", "", 0},
	}

	for _, tc := range cases {
		entry := &model.ActivityEntry{Kind: tc.kind, Variant: tc.variant}
		got := table.PointsFor(entry)
		if got != tc.want {
			t.Errorf("PointsFor(%s/%s) = %d, want %d", tc.kind, tc.variant, got, tc.want)
		}
	}
}

func TestRewardsTablePointsFor_VariantFallback(t *testing.T) {
	// 未登记的子类型回退到类型基础积分
	table := DefaultRewardsTable()
	entry := &model.ActivityEntry{Kind: model.KindWater, Variant: "morning"}
	if got := table.PointsFor(entry); got != 5 {
		t.Fatalf("unregistered variant should fall back to kind points, got %d", got)
	}
}

func TestRewardsTableValidate(t *testing.T) {
	if err := DefaultRewardsTable().Validate(); err != nil {
		t.Fatalf("default table should be valid: %v", err)
	}

	bad := DefaultRewardsTable()
	bad.LevelThresholds = []int{0, 300, 100}
	if err := bad.Validate(); err == nil {
		t.Fatal("unsorted thresholds should fail validation")
	}

	bad = DefaultRewardsTable()
	bad.LevelThresholds = nil
	if err := bad.Validate(); err == nil {
		t.Fatal("empty thresholds should fail validation")
	}

	bad = DefaultRewardsTable()
	bad.Points[model.KindWater] = -1
	if err := bad.Validate(); err == nil {
		t.Fatal("negative points should fail validation")
	}
}

func TestLoadRewardsTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	content := []byte(`points:
  water: 7
variant_points:
  quiz/daily: 25
level_thresholds: [0, 50, 200]
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write rewards file: %v", err)
	}

	table := LoadRewardsTable(path)
	if got := table.PointsFor(&model.ActivityEntry{Kind: model.KindWater}); got != 7 {
		t.Fatalf("water points = %d, want 7", got)
	}
	if got := table.PointsFor(&model.ActivityEntry{Kind: model.KindQuiz, Variant: model.VariantQuizDaily}); got != 25 {
		t.Fatalf("quiz/daily points = %d, want 25", got)
	}
	if len(table.LevelThresholds) != 3 {
		t.Fatalf("thresholds = %v, want 3 entries", table.LevelThresholds)
	}
}

func TestLoadRewardsTable_MissingFileFallsBack(t *testing.T) {
	table := LoadRewardsTable(filepath.Join(t.TempDir(), "nope.yaml"))
	if got := table.PointsFor(&model.ActivityEntry{Kind: model.KindWater}); got != 5 {
		t.Fatalf("missing file should fall back to defaults, water=%d", got)
	}
}

func TestLoadRewardsTable_InvalidFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.yaml")
	if err := os.WriteFile(path, []byte("level_thresholds: [300, 100]\n"), 0644); err != nil {
		t.Fatalf("write rewards file: %v", err)
	}

	table := LoadRewardsTable(path)
	if len(table.LevelThresholds) != 8 {
		t.Fatalf("invalid file should fall back to defaults, thresholds=%v", table.LevelThresholds)
	}
}

func TestRewardsProviderReplace(t *testing.T) {
	provider := NewRewardsProvider(nil)
	if provider.Current() == nil {
		t.Fatal("provider should fall back to default table")
	}

	custom := DefaultRewardsTable()
	custom.Points[model.KindWater] = 99
	provider.Replace(custom)

	if got := provider.Current().Points[model.KindWater]; got != 99 {
		t.Fatalf("after replace water=%d, want 99", got)
	}

	provider.Replace(nil)
	if got := provider.Current().Points[model.KindWater]; got != 99 {
		t.Fatal("nil replace should keep current table")
	}
}
