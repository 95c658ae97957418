package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"sort"
	"time"
)

// Profile 用户档案
// TotalPoints 与 Level 是派生字段：只允许账本对账（LedgerService.Reconcile）
// 一次性写入，任何其他代码路径直接改写都是缺陷。
type Profile struct {
	Identity    string    `gorm:"primaryKey;size:100" json:"identity"`
	DisplayName string    `gorm:"size:100" json:"display_name"`
	TotalPoints int       `gorm:"default:0" json:"total_points"` // 派生：所有活动条目积分之和
	Level       int       `gorm:"default:1" json:"level"`        // 派生：由 TotalPoints 查阈值表得到
	Badges      BadgeSet  `gorm:"type:text" json:"badges"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Profile) TableName() string {
	return "profiles"
}

// BadgeSet 徽章集合，按 JSON 数组持久化，输出时排序保证稳定
type BadgeSet map[string]struct{}

// Has 判断是否持有徽章
func (b BadgeSet) Has(id string) bool {
	_, ok := b[id]
	return ok
}

// Add 加入徽章
func (b BadgeSet) Add(id string) {
	if b == nil || id == "" {
		return
	}
	b[id] = struct{}{}
}

// List 返回排序后的徽章列表
func (b BadgeSet) List() []string {
	out := make([]string, 0, len(b))
	for id := range b {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Value 实现 driver.Valuer 接口
func (b BadgeSet) Value() (driver.Value, error) {
	return json.Marshal(b.List())
}

// Scan 实现 sql.Scanner 接口
func (b *BadgeSet) Scan(value interface{}) error {
	*b = make(BadgeSet)
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid type for BadgeSet")
	}
	if len(bytes) == 0 {
		return nil
	}

	var ids []string
	if err := json.Unmarshal(bytes, &ids); err != nil {
		return err
	}
	for _, id := range ids {
		(*b)[id] = struct{}{}
	}
	return nil
}

// MarshalJSON 以排序数组形式输出
func (b BadgeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.List())
}

// UnmarshalJSON 从数组形式读入
func (b *BadgeSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*b = make(BadgeSet, len(ids))
	for _, id := range ids {
		(*b)[id] = struct{}{}
	}
	return nil
}
