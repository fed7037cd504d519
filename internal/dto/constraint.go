package dto

// ── 占用时间模块 DTO ──

// CreateConstraintRequest 创建占用请求；start/end 缺省为全天
type CreateConstraintRequest struct {
	Date        string `json:"date"        binding:"required,dateonly"`
	StartHour   *int   `json:"start_hour"  binding:"omitempty,hour"`
	EndHour     *int   `json:"end_hour"    binding:"omitempty,hour"`
	Description string `json:"description" binding:"omitempty,max=200"`
	Type        string `json:"type"        binding:"omitempty,oneof=manual auto recurring"`
}

// ListConstraintRequest 占用列表查询参数
type ListConstraintRequest struct {
	From string `form:"from" binding:"omitempty,dateonly"`
	To   string `form:"to"   binding:"omitempty,dateonly"`
}

// ── 响应 ──

// ConstraintResponse 占用响应
type ConstraintResponse struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	StartHour   int    `json:"start_hour"`
	EndHour     int    `json:"end_hour"`
	FullDay     bool   `json:"full_day"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// ConstraintMutationResponse 占用写操作响应
type ConstraintMutationResponse struct {
	Constraint *ConstraintResponse `json:"constraint,omitempty"`
	Warnings   []PlanWarning       `json:"warnings,omitempty"`
}

// ImportICSResponse 日历导入结果
type ImportICSResponse struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []string      `json:"errors,omitempty"`
	Warnings []PlanWarning `json:"warnings,omitempty"`
}

// ImportICSURLRequest 从订阅地址导入日历
type ImportICSURLRequest struct {
	URL string `json:"url" binding:"required,url,max=1000"`
}
