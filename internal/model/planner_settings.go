package model

import "gorm.io/datatypes"

// PlannerSettings 用户排程偏好，对应 planner_settings（每用户一行）
type PlannerSettings struct {
	UserID           string                    `gorm:"type:uuid;primaryKey"                        json:"user_id"`
	DayStartHour     int                       `gorm:"type:smallint;not null;default:9"            json:"day_start_hour"`
	DayEndHour       int                       `gorm:"type:smallint;not null;default:19"           json:"day_end_hour"`
	LunchBreakStart  int                       `gorm:"type:smallint;not null;default:13"           json:"lunch_break_start"`
	LunchBreakEnd    int                       `gorm:"type:smallint;not null;default:14"           json:"lunch_break_end"`
	MaxHoursPerDay   float64                   `gorm:"type:numeric(4,2);not null;default:9"        json:"max_hours_per_day"`
	DistributeEvenly bool                      `gorm:"not null;default:false"                      json:"distribute_evenly"`
	CatalogID        string                    `gorm:"type:varchar(50);not null;default:'classic'" json:"catalog_id"`
	CustomIntervals  datatypes.JSONSlice[int]  `gorm:"type:jsonb"                                  json:"custom_intervals,omitempty"`
	BaseModel
}

// TableName 指定表名
func (PlannerSettings) TableName() string { return "planner_settings" }
