package dto

// ── 计划视图 DTO ──

// WeeklyPlanRequest 周计划查询参数
type WeeklyPlanRequest struct {
	WeekOffset int `form:"week_offset" binding:"omitempty,min=-520,max=520"`
}

// PlannedSession 带时段的课时
type PlannedSession struct {
	SessionID      string  `json:"session_id"`
	CourseID       string  `json:"course_id"`
	CourseName     string  `json:"course_name"`
	IntervalKey    string  `json:"interval_key"`
	IntervalLabel  string  `json:"interval_label"`
	Hours          float64 `json:"hours"`
	StartTime      string  `json:"start_time"` // HH:MM
	EndTime        string  `json:"end_time"`
	Completed      bool    `json:"completed"`
	Success        *bool   `json:"success"`
	Rescheduled    bool    `json:"rescheduled"`
	NeedsAttention bool    `json:"needs_attention"`
}

// DayPlan 一天的计划
type DayPlan struct {
	Date        string               `json:"date"`
	Weekday     string               `json:"weekday"`
	IsSunday    bool                 `json:"is_sunday"`
	TotalHours  float64              `json:"total_hours"` // 仅统计未完成课时
	Sessions    []PlannedSession     `json:"sessions"`
	Constraints []ConstraintResponse `json:"constraints"`
}

// WeeklyPlanResponse 周计划
type WeeklyPlanResponse struct {
	WeekOffset int       `json:"week_offset"`
	WeekStart  string    `json:"week_start"`
	WeekEnd    string    `json:"week_end"`
	TotalHours float64   `json:"total_hours"`
	Days       []DayPlan `json:"days"`
}

// TodayResponse 今日待办
type TodayResponse struct {
	Date       string           `json:"date"`
	TotalHours float64          `json:"total_hours"`
	Sessions   []PlannedSession `json:"sessions"`
}

// SessionChange 一次重排中的日期变更
type SessionChange struct {
	CourseID    string `json:"course_id"`
	CourseName  string `json:"course_name"`
	SessionID   string `json:"session_id"`
	IntervalKey string `json:"interval_key"`
	From        string `json:"from"`
	To          string `json:"to"`
}

// RebalanceResponse 重排结果
type RebalanceResponse struct {
	Moved    int             `json:"moved"`
	Changes  []SessionChange `json:"changes"`
	Warnings []PlanWarning   `json:"warnings,omitempty"`
}

// StatsResponse 学习统计
type StatsResponse struct {
	TotalCourses   int     `json:"total_courses"`
	TotalSessions  int     `json:"total_sessions"`
	Completed      int     `json:"completed"`
	Succeeded      int     `json:"succeeded"`
	SuccessRate    float64 `json:"success_rate"` // 百分比，保留一位小数
	PendingHours   float64 `json:"pending_hours"`
	Overdue        int     `json:"overdue"`
	NeedsAttention int     `json:"needs_attention"`
	Rescheduled    int     `json:"rescheduled"`
}

// ChangeLogListRequest 变更日志查询参数
type ChangeLogListRequest struct {
	PaginationRequest
}

// ChangeLogResponse 变更日志
type ChangeLogResponse struct {
	ID          string `json:"id"`
	CourseID    string `json:"course_id"`
	SessionID   string `json:"session_id"`
	IntervalKey string `json:"interval_key"`
	FromDate    string `json:"from_date"`
	ToDate      string `json:"to_date"`
	ChangeType  string `json:"change_type"`
	CreatedAt   string `json:"created_at"`
}
