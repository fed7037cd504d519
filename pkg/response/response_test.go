package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("响应体不是合法 JSON: %v", err)
	}
	return body
}

func TestOKPage_TotalPages(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OKPage(c, []int{1, 2}, 21, 1, 10)

	body := decode(t, w)
	p := body["data"].(map[string]interface{})["pagination"].(map[string]interface{})
	if p["total_pages"].(float64) != 3 {
		t.Errorf("期望 total_pages=3，实际 %v", p["total_pages"])
	}
}

func TestErrorShortcuts(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(c *gin.Context)
		status int
		code   float64
	}{
		{"Conflict", func(c *gin.Context) { Conflict(c, 40901, "冲突") }, http.StatusConflict, 40901},
		{"TooManyRequests", func(c *gin.Context) { TooManyRequests(c, 42901, "限流") }, http.StatusTooManyRequests, 42901},
		{"Unprocessable", func(c *gin.Context) { UnprocessableEntity(c, 42201, "无法排程") }, http.StatusUnprocessableEntity, 42201},
		{"Internal", InternalError, http.StatusInternalServerError, 50000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.fn(c)
			if w.Code != tt.status {
				t.Errorf("期望状态码 %d，实际 %d", tt.status, w.Code)
			}
			if got := decode(t, w)["code"].(float64); got != tt.code {
				t.Errorf("期望 code=%v，实际 %v", tt.code, got)
			}
		})
	}
}
