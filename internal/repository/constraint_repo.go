package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"j-planner/backend/internal/model"
)

// ConstraintRepository 占用时间数据访问接口
type ConstraintRepository interface {
	Create(ctx context.Context, c *model.Constraint) error
	BatchCreate(ctx context.Context, cs []model.Constraint) error
	GetByID(ctx context.Context, userID, id string) (*model.Constraint, error)
	ListByUser(ctx context.Context, userID string) ([]model.Constraint, error)
	// 按日期区间 [from, to) 列出
	ListByUserBetween(ctx context.Context, userID string, from, to time.Time) ([]model.Constraint, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAllByUser(ctx context.Context, userID string) error
}

type constraintRepo struct {
	db *gorm.DB
}

// NewConstraintRepo 创建 ConstraintRepository 实例
func NewConstraintRepo(db *gorm.DB) ConstraintRepository {
	return &constraintRepo{db: db}
}

func (r *constraintRepo) Create(ctx context.Context, c *model.Constraint) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *constraintRepo) BatchCreate(ctx context.Context, cs []model.Constraint) error {
	if len(cs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&cs, 200).Error
}

func (r *constraintRepo) GetByID(ctx context.Context, userID, id string) (*model.Constraint, error) {
	var c model.Constraint
	err := r.db.WithContext(ctx).
		Where("constraint_id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *constraintRepo) ListByUser(ctx context.Context, userID string) ([]model.Constraint, error) {
	var cs []model.Constraint
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date ASC, start_hour ASC").
		Find(&cs).Error
	return cs, err
}

func (r *constraintRepo) ListByUserBetween(ctx context.Context, userID string, from, to time.Time) ([]model.Constraint, error) {
	var cs []model.Constraint
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date < ?", userID, from.Format("2006-01-02"), to.Format("2006-01-02")).
		Order("date ASC, start_hour ASC").
		Find(&cs).Error
	return cs, err
}

func (r *constraintRepo) Delete(ctx context.Context, userID, id string) error {
	result := r.db.WithContext(ctx).
		Where("constraint_id = ? AND user_id = ?", id, userID).
		Delete(&model.Constraint{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *constraintRepo) DeleteAllByUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.Constraint{}).Error
}
