package dto

// ── 聊天指令 DTO ──

// CommandRequest 聊天指令请求
type CommandRequest struct {
	Message string `json:"message" binding:"required,min=1,max=500"`
}

// CommandResponse 聊天指令响应
type CommandResponse struct {
	Kind     string        `json:"kind"`
	Reply    string        `json:"reply"`
	Data     interface{}   `json:"data,omitempty"`
	Warnings []PlanWarning `json:"warnings,omitempty"`
}
