package model

import "time"

// RewardGrant 奖励发放记录 - 时间窗口门控的持久化状态
// (Identity, Feature) 唯一，只保留最近一次发放时间
type RewardGrant struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Identity  string    `gorm:"size:100;index:idx_grant_identity_feature,unique" json:"identity"`
	Feature   string    `gorm:"size:100;index:idx_grant_identity_feature,unique" json:"feature"` // 功能键，如 sleep_checkin、coach_report
	GrantedAt int64     `gorm:"not null" json:"granted_at"`                                      // Unix 时间戳 (毫秒)
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (RewardGrant) TableName() string {
	return "reward_grants"
}
