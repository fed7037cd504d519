package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"j-planner/backend/config"
)

// 事件类型
const (
	EventPlanningReorganized = "planning_reorganized"
	EventDataImported        = "data_imported"
	EventCourseAdded         = "course_added"
)

// Event 推送给外部系统的事件
type Event struct {
	Type      string      `json:"event"`
	UserID    string      `json:"user_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Notifier 事件通知接口
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Nop 不发送任何通知
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// HTTPNotifier 以 JSON POST 推送事件；发送失败只记录日志
type HTTPNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// New 根据配置创建通知器，未启用时返回 Nop
func New(cfg *config.WebhookConfig, logger *zap.Logger) Notifier {
	if !cfg.Enabled || cfg.URL == "" {
		return Nop{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPNotifier{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify 异步发送，不阻塞业务请求
func (n *HTTPNotifier) Notify(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	// 请求上下文结束后仍需完成发送
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := n.send(ctx, event); err != nil {
			n.logger.Warn("webhook 发送失败",
				zap.String("event", event.Type),
				zap.String("user_id", event.UserID),
				zap.Error(err),
			)
		}
	}()
}

func (n *HTTPNotifier) send(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "j-planner-webhook/1.0")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook 返回状态码 %d", resp.StatusCode)
	}
	return nil
}
