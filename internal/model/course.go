package model

import "time"

// Course 课程表，对应 courses
type Course struct {
	CourseID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"course_id"`
	UserID      string    `gorm:"type:uuid;not null;index"                       json:"user_id"`
	Name        string    `gorm:"type:varchar(200);not null"                     json:"name"`
	HoursPerDay float64   `gorm:"type:numeric(4,2);not null"                     json:"hours_per_day"`
	StartDate   time.Time `gorm:"type:date;not null"                             json:"start_date"`
	CatalogID   string    `gorm:"type:varchar(50);not null;default:'classic'"    json:"catalog_id"`
	Description string    `gorm:"type:varchar(500)"                              json:"description,omitempty"`
	VersionedModel

	// 关联
	Sessions []StudySession `gorm:"foreignKey:CourseID;references:CourseID" json:"sessions,omitempty"`
}

// TableName 指定表名
func (Course) TableName() string { return "courses" }

// StudySession 复习课时表，对应 study_sessions
type StudySession struct {
	SessionID      string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"session_id"`
	CourseID       string     `gorm:"type:uuid;not null;index"                       json:"course_id"`
	UserID         string     `gorm:"type:uuid;not null;index"                       json:"user_id"`
	IntervalKey    string     `gorm:"type:varchar(20);not null"                      json:"interval_key"`
	IntervalLabel  string     `gorm:"type:varchar(100)"                              json:"interval_label"`
	Position       int        `gorm:"type:smallint;not null"                         json:"position"`
	Date           time.Time  `gorm:"type:timestamptz;not null;index"                json:"date"`
	OriginalDate   time.Time  `gorm:"type:timestamptz;not null"                      json:"original_date"`
	Completed      bool       `gorm:"not null;default:false"                         json:"completed"`
	Success        *bool      `                                                      json:"success"`
	CompletedAt    *time.Time `gorm:"type:timestamptz"                               json:"completed_at,omitempty"`
	Rescheduled    bool       `gorm:"not null;default:false"                         json:"rescheduled"`
	NeedsAttention bool       `gorm:"not null;default:false"                         json:"needs_attention"`
	BaseModel
}

// TableName 指定表名
func (StudySession) TableName() string { return "study_sessions" }
