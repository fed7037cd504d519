package repository

import (
	"context"

	"gorm.io/gorm"

	"j-planner/backend/internal/model"
	pkgerrors "j-planner/backend/pkg/errors"
)

// CourseRepository 课程数据访问接口（课时随课程一起读写）
type CourseRepository interface {
	// 创建课程及其全部课时
	Create(ctx context.Context, course *model.Course) error
	GetByID(ctx context.Context, userID, courseID string) (*model.Course, error)
	// 按名称查找（不区分大小写），用于聊天指令
	GetByName(ctx context.Context, userID, name string) (*model.Course, error)
	// 列出用户全部课程，课时按 position 排序
	ListByUser(ctx context.Context, userID string) ([]model.Course, error)
	// 更新课程基本信息（乐观锁）
	Update(ctx context.Context, course *model.Course) error
	// 删除课程及其课时
	Delete(ctx context.Context, userID, courseID string) error
	// 删除用户全部课程，返回删除数量
	DeleteAllByUser(ctx context.Context, userID string) (int64, error)
}

// ── Course Repository 实现 ──

type courseRepo struct {
	db *gorm.DB
}

// NewCourseRepo 创建 CourseRepository 实例
func NewCourseRepo(db *gorm.DB) CourseRepository {
	return &courseRepo{db: db}
}

func preloadSessions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *courseRepo) Create(ctx context.Context, course *model.Course) error {
	return r.db.WithContext(ctx).Create(course).Error
}

func (r *courseRepo) GetByID(ctx context.Context, userID, courseID string) (*model.Course, error) {
	var course model.Course
	err := r.db.WithContext(ctx).
		Preload("Sessions", preloadSessions).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) GetByName(ctx context.Context, userID, name string) (*model.Course, error) {
	var course model.Course
	err := r.db.WithContext(ctx).
		Preload("Sessions", preloadSessions).
		Where("user_id = ? AND LOWER(name) = LOWER(?)", userID, name).
		Order("created_at ASC").
		First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *courseRepo) ListByUser(ctx context.Context, userID string) ([]model.Course, error) {
	var courses []model.Course
	err := r.db.WithContext(ctx).
		Preload("Sessions", preloadSessions).
		Where("user_id = ?", userID).
		Order("created_at ASC, course_id ASC").
		Find(&courses).Error
	return courses, err
}

func (r *courseRepo) Update(ctx context.Context, course *model.Course) error {
	oldVersion := course.Version
	result := r.db.WithContext(ctx).
		Model(course).
		Where("course_id = ? AND version = ?", course.CourseID, oldVersion).
		Updates(map[string]interface{}{
			"name":          course.Name,
			"hours_per_day": course.HoursPerDay,
			"description":   course.Description,
			"version":       oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	course.Version = oldVersion + 1
	return nil
}

func (r *courseRepo) Delete(ctx context.Context, userID, courseID string) error {
	if err := r.db.WithContext(ctx).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Delete(&model.StudySession{}).Error; err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Delete(&model.Course{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *courseRepo) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.StudySession{}).Error; err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.Course{})
	return result.RowsAffected, result.Error
}
