package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/VitaQuest/internal/model"
	"gorm.io/gorm"
)

// ProfileRepository 用户档案仓储
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository 创建仓储
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetOrCreate 获取档案，不存在则创建默认档案
func (r *ProfileRepository) GetOrCreate(ctx context.Context, identity string) (*model.Profile, error) {
	if identity == "" {
		return nil, fmt.Errorf("identity 不能为空")
	}

	var profile model.Profile
	err := r.db.WithContext(ctx).Where("identity = ?", identity).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询档案失败: %w", err)
	}

	profile = model.Profile{
		Identity: identity,
		Level:    1,
		Badges:   make(model.BadgeSet),
	}
	if err := r.db.WithContext(ctx).Create(&profile).Error; err != nil {
		return nil, fmt.Errorf("创建档案失败: %w", err)
	}
	return &profile, nil
}

// UpdateDerived 写入派生字段
// TotalPoints 与 Level 必须同一条 UPDATE 落库，读者不会观察到二者不一致
func (r *ProfileRepository) UpdateDerived(ctx context.Context, identity string, totalPoints, level int) error {
	err := r.db.WithContext(ctx).
		Model(&model.Profile{}).
		Where("identity = ?", identity).
		Updates(map[string]interface{}{
			"total_points": totalPoints,
			"level":        level,
		}).Error
	if err != nil {
		return fmt.Errorf("更新档案派生字段失败: %w", err)
	}
	return nil
}

// UpdateBadges 更新徽章集合
func (r *ProfileRepository) UpdateBadges(ctx context.Context, identity string, badges model.BadgeSet) error {
	err := r.db.WithContext(ctx).
		Model(&model.Profile{}).
		Where("identity = ?", identity).
		Update("badges", badges).Error
	if err != nil {
		return fmt.Errorf("更新徽章失败: %w", err)
	}
	return nil
}

// UpdateDisplayName 更新显示名
func (r *ProfileRepository) UpdateDisplayName(ctx context.Context, identity, name string) error {
	err := r.db.WithContext(ctx).
		Model(&model.Profile{}).
		Where("identity = ?", identity).
		Update("display_name", name).Error
	if err != nil {
		return fmt.Errorf("更新显示名失败: %w", err)
	}
	return nil
}
