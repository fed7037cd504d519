package repository

import (
	"context"

	"gorm.io/gorm"

	"j-planner/backend/internal/model"
)

// ChangeLogRepository 课时变更日志数据访问接口
type ChangeLogRepository interface {
	BatchCreate(ctx context.Context, logs []model.SessionChangeLog) error
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.SessionChangeLog, int64, error)
}

type changeLogRepo struct {
	db *gorm.DB
}

// NewChangeLogRepo 创建 ChangeLogRepository 实例
func NewChangeLogRepo(db *gorm.DB) ChangeLogRepository {
	return &changeLogRepo{db: db}
}

func (r *changeLogRepo) BatchCreate(ctx context.Context, logs []model.SessionChangeLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&logs, 200).Error
}

func (r *changeLogRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]model.SessionChangeLog, int64, error) {
	var logs []model.SessionChangeLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.SessionChangeLog{}).
		Where("user_id = ?", userID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, total, err
}
