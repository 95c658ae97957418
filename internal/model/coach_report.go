package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// CoachReport AI 教练周报
// (Identity, StartDate, EndDate) 唯一，重复生成时覆盖
type CoachReport struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Identity    string    `gorm:"size:100;uniqueIndex:uniq_coach_range" json:"identity"`
	StartDate   string    `gorm:"size:10;uniqueIndex:uniq_coach_range" json:"start_date"` // YYYY-MM-DD
	EndDate     string    `gorm:"size:10;uniqueIndex:uniq_coach_range" json:"end_date"`   // YYYY-MM-DD
	Overview    string    `gorm:"type:text" json:"overview"`                              // AI 生成的概述
	Highlights  JSONArray `gorm:"type:text" json:"highlights"`                            // 做得好的地方
	Suggestions string    `gorm:"type:text" json:"suggestions"`                           // 下周建议
	TotalPoints int       `gorm:"default:0" json:"total_points"`                          // 本周获得积分
	EntryCount  int       `gorm:"default:0" json:"entry_count"`                           // 本周活动条目数
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (CoachReport) TableName() string {
	return "coach_reports"
}

// JSONArray 按 JSON 数组持久化的字符串列表
type JSONArray []string

// Value 实现 driver.Valuer 接口
func (a JSONArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return json.Marshal(a)
}

// Scan 实现 sql.Scanner 接口
func (a *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid type for JSONArray")
	}
	if len(bytes) == 0 {
		*a = nil
		return nil
	}

	return json.Unmarshal(bytes, a)
}
