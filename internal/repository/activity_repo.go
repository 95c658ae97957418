package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yuqie6/VitaQuest/internal/model"
	"gorm.io/gorm"
)

// ActivityRepository 活动日志仓储
// 日志为只追加集合：除按类型清空与整体重置外不提供删改接口
type ActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository 创建仓储
func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append 追加单个活动条目
func (r *ActivityRepository) Append(ctx context.Context, entry *model.ActivityEntry) error {
	if entry == nil {
		return fmt.Errorf("entry 不能为空")
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("追加活动条目失败: %w", err)
	}
	return nil
}

// ListByIdentity 获取某身份的全部活动条目
func (r *ActivityRepository) ListByIdentity(ctx context.Context, identity string) ([]model.ActivityEntry, error) {
	var entries []model.ActivityEntry
	err := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		Order("timestamp ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("查询活动条目失败: %w", err)
	}
	return entries, nil
}

// ListByKind 获取某身份某类型的活动条目
func (r *ActivityRepository) ListByKind(ctx context.Context, identity, kind string) ([]model.ActivityEntry, error) {
	var entries []model.ActivityEntry
	err := r.db.WithContext(ctx).
		Where("identity = ? AND kind = ?", identity, kind).
		Order("timestamp ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("查询活动条目失败: %w", err)
	}
	return entries, nil
}

// ListByTimeRange 按时间范围查询某身份的活动条目
func (r *ActivityRepository) ListByTimeRange(ctx context.Context, identity string, startMs, endMs int64) ([]model.ActivityEntry, error) {
	var entries []model.ActivityEntry
	err := r.db.WithContext(ctx).
		Where("identity = ? AND timestamp >= ? AND timestamp <= ?", identity, startMs, endMs).
		Order("timestamp ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("查询活动条目失败: %w", err)
	}
	return entries, nil
}

// CountByKind 统计某身份某类型的条目数
func (r *ActivityRepository) CountByKind(ctx context.Context, identity, kind string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ActivityEntry{}).
		Where("identity = ? AND kind = ?", identity, kind).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计活动条目失败: %w", err)
	}
	return count, nil
}

// KindStat 按类型聚合的条目统计
type KindStat struct {
	Kind       string `json:"kind"`
	EntryCount int64  `json:"entry_count"`
}

// GetKindStats 获取某身份按类型聚合的条目统计
func (r *ActivityRepository) GetKindStats(ctx context.Context, identity string) ([]KindStat, error) {
	var stats []KindStat
	err := r.db.WithContext(ctx).
		Model(&model.ActivityEntry{}).
		Select("kind, COUNT(*) as entry_count").
		Where("identity = ?", identity).
		Group("kind").
		Order("entry_count DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("查询活动统计失败: %w", err)
	}
	return stats, nil
}

// ClearKind 清空某身份某类型的全部历史（用户显式操作，如清空喝水记录）
func (r *ActivityRepository) ClearKind(ctx context.Context, identity, kind string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("identity = ? AND kind = ?", identity, kind).
		Delete(&model.ActivityEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("清空活动记录失败: %w", result.Error)
	}

	slog.Info("清空活动记录", "identity", identity, "kind", kind, "deleted", result.RowsAffected)
	return result.RowsAffected, nil
}

// ResetIdentity 删除某身份的全部活动条目（整体数据重置）
func (r *ActivityRepository) ResetIdentity(ctx context.Context, identity string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		Delete(&model.ActivityEntry{})
	if result.Error != nil {
		return 0, fmt.Errorf("重置活动记录失败: %w", result.Error)
	}

	slog.Info("重置活动记录", "identity", identity, "deleted", result.RowsAffected)
	return result.RowsAffected, nil
}

// ReplaceAll 以远端快照整体替换某身份的活动条目（事务包裹）
// 同步合并专用：远端对历史集合是权威数据源
func (r *ActivityRepository) ReplaceAll(ctx context.Context, identity string, entries []model.ActivityEntry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("identity = ?", identity).Delete(&model.ActivityEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.CreateInBatches(entries, 100).Error
	})
	if err != nil {
		return fmt.Errorf("替换活动记录失败: %w", err)
	}

	slog.Debug("替换活动记录", "identity", identity, "count", len(entries))
	return nil
}
