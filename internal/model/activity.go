package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// 活动类型（Kind）。每种打卡/记录动作对应一种类型，
// 积分值由 RewardsTable 决定，条目本身不携带积分。
const (
	KindWater  = "water"  // 喝水打卡
	KindMeal   = "meal"   // 饮食记录
	KindSleep  = "sleep"  // 睡眠记录
	KindMood   = "mood"   // 心情记录
	KindHabit  = "habit"  // 戒除风险习惯打卡
	KindSocial = "social" // 社区互动
	KindQuiz   = "quiz"   // 健康知识问答
	KindPlan   = "plan"   // 健康计划
)

// Quiz 子类型（Variant）。日常问答与每周问答积分不同，
// 积分解析必须看 Variant，不能只看 Kind。
const (
	VariantQuizDaily  = "daily"
	VariantQuizWeekly = "weekly"
)

// AllKinds 返回所有活动类型，顺序固定
func AllKinds() []string {
	return []string{
		KindWater, KindMeal, KindSleep, KindMood,
		KindHabit, KindSocial, KindQuiz, KindPlan,
	}
}

// ActivityEntry 活动日志条目 - 只追加，创建后不可变
// 只能通过显式的按类型清空或整体重置删除
type ActivityEntry struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Identity  string    `gorm:"size:100;index:idx_activity_identity_kind" json:"identity"`
	Kind      string    `gorm:"size:30;index:idx_activity_identity_kind" json:"kind"`
	Variant   string    `gorm:"size:30" json:"variant,omitempty"` // 子类型判别字段，如 quiz 的 daily/weekly
	Timestamp int64     `gorm:"index" json:"timestamp"`           // Unix 时间戳 (毫秒)
	Payload   JSONMap   `gorm:"type:text" json:"payload"`         // 类型相关字段 (毫升数、餐别、时长等)
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (ActivityEntry) TableName() string {
	return "activity_entries"
}

// NewActivityEntry 创建新的活动条目
func NewActivityEntry(identity, kind, variant string) *ActivityEntry {
	return &ActivityEntry{
		ID:        uuid.NewString(),
		Identity:  identity,
		Kind:      kind,
		Variant:   variant,
		Timestamp: time.Now().UnixMilli(),
		Payload:   make(JSONMap),
	}
}

// JSONMap 用于存储 JSON 格式的类型相关负载
type JSONMap map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner 接口
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONMap)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid type for JSONMap")
	}

	return json.Unmarshal(bytes, j)
}
