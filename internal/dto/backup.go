package dto

// ── 导入导出 / 备份 DTO ──
// 导出文档沿用产品既有的 camelCase JSON 格式

// ExportVersion 当前导出格式版本
const ExportVersion = "1.0"

// ExportDocument 完整导出文档
type ExportDocument struct {
	Version    string     `json:"version"`
	ExportDate string     `json:"exportDate"`
	Data       ExportData `json:"data"`
}

// ExportData 导出数据
type ExportData struct {
	Courses     []ExportCourse     `json:"courses"`
	Constraints []ExportConstraint `json:"constraints"`
	Settings    *ExportSettings    `json:"settings,omitempty"`
}

// ExportCourse 导出课程
type ExportCourse struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	HoursPerDay float64         `json:"hoursPerDay"`
	StartDate   string          `json:"startDate"`
	CatalogID   string          `json:"catalogId,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	Sessions    []ExportSession `json:"sessions"`
}

// ExportSession 导出课时
type ExportSession struct {
	ID             string `json:"id,omitempty"`
	IntervalKey    string `json:"interval"`
	Date           string `json:"date"`
	OriginalDate   string `json:"originalDate"`
	Completed      bool   `json:"completed"`
	Success        *bool  `json:"success"`
	Rescheduled    bool   `json:"rescheduled"`
	NeedsAttention bool   `json:"needsAttention,omitempty"`
}

// ExportConstraint 导出占用
type ExportConstraint struct {
	ID          string `json:"id,omitempty"`
	Date        string `json:"date"`
	StartHour   int    `json:"startHour"`
	EndHour     int    `json:"endHour"`
	Description string `json:"description"`
	Type        string `json:"type,omitempty"`
}

// ExportSettings 导出偏好
type ExportSettings struct {
	WorkingHours ExportWorkingHours `json:"workingHours"`
	CatalogID    string             `json:"catalogId,omitempty"`
	JIntervals   []int              `json:"jIntervals"`
}

// ExportWorkingHours 工作时段
type ExportWorkingHours struct {
	Start            int          `json:"start"`
	End              int          `json:"end"`
	LunchBreak       ExportPeriod `json:"lunchBreak"`
	MaxHoursPerDay   float64      `json:"maxHoursPerDay,omitempty"`
	DistributeEvenly bool         `json:"distributeEvenly,omitempty"`
}

// ExportPeriod 起止小时
type ExportPeriod struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ImportResponse 导入结果
type ImportResponse struct {
	Courses     int           `json:"courses"`
	Constraints int           `json:"constraints"`
	Message     string        `json:"message"`
	Warnings    []PlanWarning `json:"warnings,omitempty"`
}

// BackupResponse 备份对象
type BackupResponse struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
}

// RestoreBackupRequest 从备份恢复请求
type RestoreBackupRequest struct {
	Key string `json:"key" binding:"required,max=300"`
}
