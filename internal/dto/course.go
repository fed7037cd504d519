package dto

// ── 课程模块 DTO ──

// CreateCourseRequest 创建课程请求
type CreateCourseRequest struct {
	Name        string  `json:"name"          binding:"required,min=1,max=200"`
	HoursPerDay float64 `json:"hours_per_day" binding:"required,gt=0,lte=24"`
	StartDate   string  `json:"start_date"    binding:"omitempty,dateonly"` // 缺省为今天
	CatalogID   string  `json:"catalog_id"    binding:"omitempty,max=50"`
	Description string  `json:"description"   binding:"omitempty,max=500"`
}

// UpdateCourseRequest 修改课程请求（乐观锁）
type UpdateCourseRequest struct {
	Name        *string  `json:"name"          binding:"omitempty,min=1,max=200"`
	HoursPerDay *float64 `json:"hours_per_day" binding:"omitempty,gt=0,lte=24"`
	Description *string  `json:"description"   binding:"omitempty,max=500"`
	Version     int      `json:"version"       binding:"required,min=1"`
}

// DeleteRequest 删除类操作的查询参数
type DeleteRequest struct {
	Rebalance bool `form:"rebalance"`
}

// MoveSessionRequest 手动移动课时请求
type MoveSessionRequest struct {
	Date string `json:"date" binding:"required,dateonly"`
}

// CompleteSessionRequest 标记课时完成请求
type CompleteSessionRequest struct {
	Success *bool `json:"success" binding:"required"`
}

// ── 响应 ──

// SessionResponse 课时响应
type SessionResponse struct {
	ID             string `json:"id"`
	CourseID       string `json:"course_id"`
	IntervalKey    string `json:"interval_key"`
	IntervalLabel  string `json:"interval_label"`
	Date           string `json:"date"`
	OriginalDate   string `json:"original_date"`
	Completed      bool   `json:"completed"`
	Success        *bool  `json:"success"`
	Rescheduled    bool   `json:"rescheduled"`
	NeedsAttention bool   `json:"needs_attention"`
}

// CourseResponse 课程响应
type CourseResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	HoursPerDay float64           `json:"hours_per_day"`
	StartDate   string            `json:"start_date"`
	CatalogID   string            `json:"catalog_id"`
	Description string            `json:"description,omitempty"`
	Version     int               `json:"version"`
	Completed   int               `json:"completed"`
	Total       int               `json:"total"`
	Sessions    []SessionResponse `json:"sessions"`
	CreatedAt   string            `json:"created_at"`
}

// CourseMutationResponse 课程写操作响应（附重排告警）
type CourseMutationResponse struct {
	Course   *CourseResponse `json:"course,omitempty"`
	Warnings []PlanWarning   `json:"warnings,omitempty"`
}

// DeleteResponse 删除操作响应
type DeleteResponse struct {
	Deleted       int64         `json:"deleted"`
	CourseRemoved bool          `json:"course_removed,omitempty"` // 删除最后一个课时时课程一并删除
	Warnings      []PlanWarning `json:"warnings,omitempty"`
}
