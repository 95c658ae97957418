package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/VitaQuest/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GrantRepository 奖励发放记录仓储
type GrantRepository struct {
	db *gorm.DB
}

// NewGrantRepository 创建仓储
func NewGrantRepository(db *gorm.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// Get 获取某身份某功能的最近发放记录，不存在返回 nil
func (r *GrantRepository) Get(ctx context.Context, identity, feature string) (*model.RewardGrant, error) {
	var grant model.RewardGrant
	err := r.db.WithContext(ctx).
		Where("identity = ? AND feature = ?", identity, feature).
		First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询发放记录失败: %w", err)
	}
	return &grant, nil
}

// Upsert 写入发放时间，已存在则覆盖
func (r *GrantRepository) Upsert(ctx context.Context, grant *model.RewardGrant) error {
	if grant == nil {
		return fmt.Errorf("grant 不能为空")
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}, {Name: "feature"}},
		DoUpdates: clause.AssignmentColumns([]string{"granted_at", "updated_at"}),
	}).Create(grant).Error
	if err != nil {
		return fmt.Errorf("写入发放记录失败: %w", err)
	}
	return nil
}

// ListByIdentity 获取某身份的全部发放记录
func (r *GrantRepository) ListByIdentity(ctx context.Context, identity string) ([]model.RewardGrant, error) {
	var grants []model.RewardGrant
	err := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		Order("feature ASC").
		Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("查询发放记录失败: %w", err)
	}
	return grants, nil
}

// DeleteByIdentity 删除某身份的全部发放记录（整体数据重置）
func (r *GrantRepository) DeleteByIdentity(ctx context.Context, identity string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		Delete(&model.RewardGrant{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除发放记录失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}
