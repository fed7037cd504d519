package repository

import (
	"context"

	"gorm.io/gorm"

	"j-planner/backend/internal/model"
)

// SessionRepository 复习课时数据访问接口
type SessionRepository interface {
	// 写回一次排程的结果（日期与标记位）
	SaveSchedule(ctx context.Context, sessions []model.StudySession) error
	// 更新完成状态
	UpdateCompletion(ctx context.Context, session *model.StudySession) error
	Delete(ctx context.Context, userID, sessionID string) error
}

type sessionRepo struct {
	db *gorm.DB
}

// NewSessionRepo 创建 SessionRepository 实例
func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) SaveSchedule(ctx context.Context, sessions []model.StudySession) error {
	for i := range sessions {
		s := &sessions[i]
		err := r.db.WithContext(ctx).
			Model(&model.StudySession{}).
			Where("session_id = ?", s.SessionID).
			Updates(map[string]interface{}{
				"date":            s.Date,
				"rescheduled":     s.Rescheduled,
				"needs_attention": s.NeedsAttention,
				"updated_at":      gorm.Expr("NOW()"),
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *sessionRepo) UpdateCompletion(ctx context.Context, session *model.StudySession) error {
	return r.db.WithContext(ctx).
		Model(&model.StudySession{}).
		Where("session_id = ?", session.SessionID).
		Updates(map[string]interface{}{
			"completed":    session.Completed,
			"success":      session.Success,
			"completed_at": session.CompletedAt,
			"updated_at":   gorm.Expr("NOW()"),
		}).Error
}

func (r *sessionRepo) Delete(ctx context.Context, userID, sessionID string) error {
	result := r.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Delete(&model.StudySession{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
