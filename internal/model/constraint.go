package model

import "time"

// Constraint 占用时间表，对应 constraints
type Constraint struct {
	ConstraintID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"constraint_id"`
	UserID       string    `gorm:"type:uuid;not null;index"                       json:"user_id"`
	Date         time.Time `gorm:"type:date;not null;index"                       json:"date"`
	StartHour    int       `gorm:"type:smallint;not null"                         json:"start_hour"`
	EndHour      int       `gorm:"type:smallint;not null"                         json:"end_hour"`
	Description  string    `gorm:"type:varchar(200);not null"                     json:"description"`
	Type         string    `gorm:"type:varchar(20);not null;default:'manual'"     json:"type"` // manual | auto | recurring
	SoftDeleteModel
}

// TableName 指定表名
func (Constraint) TableName() string { return "constraints" }
