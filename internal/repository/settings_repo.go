package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"j-planner/backend/internal/model"
)

// SettingsRepository 用户排程偏好数据访问接口
type SettingsRepository interface {
	// 未保存过时返回 gorm.ErrRecordNotFound
	Get(ctx context.Context, userID string) (*model.PlannerSettings, error)
	Upsert(ctx context.Context, s *model.PlannerSettings) error
}

type settingsRepo struct {
	db *gorm.DB
}

// NewSettingsRepo 创建 SettingsRepository 实例
func NewSettingsRepo(db *gorm.DB) SettingsRepository {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) Get(ctx context.Context, userID string) (*model.PlannerSettings, error) {
	var s model.PlannerSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepo) Upsert(ctx context.Context, s *model.PlannerSettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"day_start_hour", "day_end_hour", "lunch_break_start", "lunch_break_end",
				"max_hours_per_day", "distribute_evenly", "catalog_id", "custom_intervals", "updated_at",
			}),
		}).
		Create(s).Error
}
