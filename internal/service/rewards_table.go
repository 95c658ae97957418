package service

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/yuqie6/VitaQuest/internal/model"
	"go.yaml.in/yaml/v3"
)

// RewardsTable 积分规则表 - 领域配置，不是派生状态
// 积分值只在这里定义，打卡入口不允许自带积分
type RewardsTable struct {
	// Points 按活动类型的基础积分
	Points map[string]int `yaml:"points"`
	// VariantPoints 按 "kind/variant" 的子类型积分，优先于 Points
	VariantPoints map[string]int `yaml:"variant_points"`
	// LevelThresholds 升级阈值，严格升序，下标 0 对应等级 1
	LevelThresholds []int `yaml:"level_thresholds"`
}

// DefaultRewardsTable 内置默认规则
func DefaultRewardsTable() *RewardsTable {
	return &RewardsTable{
		Points: map[string]int{
			model.KindWater:  5,
			model.KindMeal:   10,
			model.KindSleep:  10,
			model.KindMood:   5,
			model.KindHabit:  15,
			model.KindSocial: 10,
			model.KindPlan:   10,
		},
		VariantPoints: map[string]int{
			model.KindQuiz + "/" + model.VariantQuizDaily:  20,
			model.KindQuiz + "/" + model.VariantQuizWeekly: 50,
		},
		LevelThresholds: []int{0, 100, 300, 700, 1500, 3000, 6000, 10000},
	}
}

// PointsFor 解析单个条目的积分值
// 先按 kind/variant 查子类型表，再回退到 kind 基础表；未知类型计 0 分
func (t *RewardsTable) PointsFor(entry *model.ActivityEntry) int {
	if t == nil || entry == nil {
		return 0
	}
	if entry.Variant != "" {
		if pts, ok := t.VariantPoints[entry.Kind+"/"+entry.Variant]; ok {
			return pts
		}
	}
	if pts, ok := t.Points[entry.Kind]; ok {
		return pts
	}
	slog.Warn("未知活动类型，计 0 分", "kind", entry.Kind, "variant", entry.Variant)
	return 0
}

// Validate 校验规则表
func (t *RewardsTable) Validate() error {
	if t == nil {
		return fmt.Errorf("规则表不能为空")
	}
	if len(t.LevelThresholds) == 0 {
		return fmt.Errorf("升级阈值不能为空")
	}
	if !sort.IntsAreSorted(t.LevelThresholds) {
		return fmt.Errorf("升级阈值必须升序")
	}
	for key, pts := range t.Points {
		if pts < 0 {
			return fmt.Errorf("积分不能为负: %s=%d", key, pts)
		}
	}
	for key, pts := range t.VariantPoints {
		if pts < 0 {
			return fmt.Errorf("积分不能为负: %s=%d", key, pts)
		}
	}
	return nil
}

// LoadRewardsTable 从 YAML 文件加载规则表
// 文件不存在时回退到内置默认值；解析失败同样回退并告警，不阻塞启动
func LoadRewardsTable(path string) *RewardsTable {
	if path == "" {
		return DefaultRewardsTable()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("读取积分规则文件失败，使用默认规则", "path", path, "error", err)
		}
		return DefaultRewardsTable()
	}

	table := DefaultRewardsTable()
	if err := yaml.Unmarshal(data, table); err != nil {
		slog.Warn("解析积分规则文件失败，使用默认规则", "path", path, "error", err)
		return DefaultRewardsTable()
	}
	if err := table.Validate(); err != nil {
		slog.Warn("积分规则文件非法，使用默认规则", "path", path, "error", err)
		return DefaultRewardsTable()
	}

	slog.Info("加载积分规则文件", "path", path)
	return table
}

// RewardsProvider 提供当前生效的规则表，支持热更新
type RewardsProvider struct {
	mu    sync.RWMutex
	table *RewardsTable
}

// NewRewardsProvider 创建规则表提供者
func NewRewardsProvider(table *RewardsTable) *RewardsProvider {
	if table == nil {
		table = DefaultRewardsTable()
	}
	return &RewardsProvider{table: table}
}

// Current 返回当前生效的规则表
func (p *RewardsProvider) Current() *RewardsTable {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.table
}

// Replace 替换规则表
func (p *RewardsProvider) Replace(table *RewardsTable) {
	if table == nil {
		return
	}
	p.mu.Lock()
	p.table = table
	p.mu.Unlock()
}
