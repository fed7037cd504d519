package model

import (
	"time"

	"gorm.io/datatypes"
)

// SessionChangeLog 课时日期变更记录，对应 session_change_logs（纯审计日志）
type SessionChangeLog struct {
	ChangeLogID string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"change_log_id"`
	UserID      string         `gorm:"type:uuid;not null;index"                       json:"user_id"`
	CourseID    string         `gorm:"type:uuid;not null"                             json:"course_id"`
	SessionID   string         `gorm:"type:uuid;not null"                             json:"session_id"`
	IntervalKey string         `gorm:"type:varchar(20);not null"                      json:"interval_key"`
	FromDate    time.Time      `gorm:"type:timestamptz;not null"                      json:"from_date"`
	ToDate      time.Time      `gorm:"type:timestamptz;not null"                      json:"to_date"`
	ChangeType  string         `gorm:"type:varchar(20);not null"                      json:"change_type"` // manual_move | rebalance
	Detail      datatypes.JSON `gorm:"type:jsonb"                                     json:"detail,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

func (SessionChangeLog) TableName() string { return "session_change_logs" }
