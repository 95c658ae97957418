package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yuqie6/VitaQuest/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CoachReportRepository AI 教练周报仓储
type CoachReportRepository struct {
	db *gorm.DB
}

// NewCoachReportRepository 创建仓储
func NewCoachReportRepository(db *gorm.DB) *CoachReportRepository {
	return &CoachReportRepository{db: db}
}

// Upsert 插入或更新
func (r *CoachReportRepository) Upsert(ctx context.Context, report *model.CoachReport) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity"}, {Name: "start_date"}, {Name: "end_date"}},
		UpdateAll: true,
	}).Create(report).Error
}

// GetByRange 按日期范围获取（带缓存时效检查）
func (r *CoachReportRepository) GetByRange(ctx context.Context, identity, startDate, endDate string, maxAge time.Duration) (*model.CoachReport, error) {
	var report model.CoachReport
	err := r.db.WithContext(ctx).
		Where("identity = ? AND start_date = ? AND end_date = ?", identity, startDate, endDate).
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询周报失败: %w", err)
	}

	// 检查缓存是否过期
	if maxAge > 0 && time.Since(report.UpdatedAt) > maxAge {
		return nil, nil // 过期，返回 nil 触发重新生成
	}

	return &report, nil
}

// ListByIdentity 获取历史周报（按开始日期倒序）
func (r *CoachReportRepository) ListByIdentity(ctx context.Context, identity string, limit int) ([]model.CoachReport, error) {
	var reports []model.CoachReport
	query := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		Order("start_date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("查询历史周报失败: %w", err)
	}
	return reports, nil
}
