package dto

// ── 排程偏好 DTO ──

// UpdateSettingsRequest 修改偏好；未提供的字段保持不变
type UpdateSettingsRequest struct {
	DayStartHour     *int     `json:"day_start_hour"    binding:"omitempty,hour"`
	DayEndHour       *int     `json:"day_end_hour"      binding:"omitempty,hour"`
	LunchBreakStart  *int     `json:"lunch_break_start" binding:"omitempty,hour"`
	LunchBreakEnd    *int     `json:"lunch_break_end"   binding:"omitempty,hour"`
	MaxHoursPerDay   *float64 `json:"max_hours_per_day" binding:"omitempty,gt=0,lte=24"`
	DistributeEvenly *bool    `json:"distribute_evenly"`
	CatalogID        *string  `json:"catalog_id"        binding:"omitempty,max=50"`
	CustomIntervals  []int    `json:"custom_intervals"  binding:"omitempty,max=30,dive,min=0,max=3650"`
}

// SettingsResponse 当前偏好
type SettingsResponse struct {
	DayStartHour     int        `json:"day_start_hour"`
	DayEndHour       int        `json:"day_end_hour"`
	LunchBreakStart  int        `json:"lunch_break_start"`
	LunchBreakEnd    int        `json:"lunch_break_end"`
	MaxHoursPerDay   float64    `json:"max_hours_per_day"`
	DistributeEvenly bool       `json:"distribute_evenly"`
	CatalogID        string     `json:"catalog_id"`
	CustomIntervals  []int      `json:"custom_intervals,omitempty"`
	Intervals        []Interval `json:"intervals"` // 生效的间隔方案
}

// SettingsMutationResponse 修改偏好响应
type SettingsMutationResponse struct {
	Settings SettingsResponse `json:"settings"`
	Warnings []PlanWarning    `json:"warnings,omitempty"`
}

// Interval 间隔
type Interval struct {
	Key        string `json:"key"`
	OffsetDays int    `json:"offset_days"`
	Label      string `json:"label"`
}

// CatalogResponse 可选间隔方案
type CatalogResponse struct {
	ID        string     `json:"id"`
	Intervals []Interval `json:"intervals"`
}
