package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"j-planner/backend/internal/command"
	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/service"
	pkgerrors "j-planner/backend/pkg/errors"
	"j-planner/backend/pkg/jwt"
	"j-planner/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := RegisterValidators(); err != nil {
		panic(err)
	}
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AuthService ──

type mockAuthService struct {
	tokenResult *dto.TokenResponse
	err         error
	meResult    *dto.UserResponse
	logoutCalls int
	lastClaims  *jwt.Claims
}

func (m *mockAuthService) Register(_ context.Context, _ *dto.RegisterRequest) (*dto.TokenResponse, error) {
	return m.tokenResult, m.err
}
func (m *mockAuthService) Login(_ context.Context, _ *dto.LoginRequest) (*dto.TokenResponse, error) {
	return m.tokenResult, m.err
}
func (m *mockAuthService) Refresh(_ context.Context, _ *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	return m.tokenResult, m.err
}
func (m *mockAuthService) Logout(_ context.Context, claims *jwt.Claims, _ *dto.LogoutRequest) error {
	m.logoutCalls++
	m.lastClaims = claims
	return m.err
}
func (m *mockAuthService) Me(_ context.Context, _ string) (*dto.UserResponse, error) {
	return m.meResult, m.err
}

// ── Mock CourseService ──

type mockCourseService struct {
	mutation      *dto.CourseMutationResponse
	session       *dto.SessionResponse
	deleted       *dto.DeleteResponse
	err           error
	lastRebalance bool
	lastDate      string
	lastSuccess   bool
}

func (m *mockCourseService) Create(_ context.Context, _ string, _ *dto.CreateCourseRequest) (*dto.CourseMutationResponse, error) {
	return m.mutation, m.err
}
func (m *mockCourseService) List(_ context.Context, _ string) ([]dto.CourseResponse, error) {
	return []dto.CourseResponse{}, m.err
}
func (m *mockCourseService) Get(_ context.Context, _, _ string) (*dto.CourseResponse, error) {
	if m.mutation == nil {
		return nil, m.err
	}
	return m.mutation.Course, m.err
}
func (m *mockCourseService) Update(_ context.Context, _, _ string, _ *dto.UpdateCourseRequest) (*dto.CourseMutationResponse, error) {
	return m.mutation, m.err
}
func (m *mockCourseService) Delete(_ context.Context, _, _ string, rebalance bool) (*dto.DeleteResponse, error) {
	m.lastRebalance = rebalance
	return m.deleted, m.err
}
func (m *mockCourseService) DeleteAll(_ context.Context, _ string) (*dto.DeleteResponse, error) {
	return m.deleted, m.err
}
func (m *mockCourseService) DeleteSession(_ context.Context, _, _, _ string, rebalance bool) (*dto.DeleteResponse, error) {
	m.lastRebalance = rebalance
	return m.deleted, m.err
}
func (m *mockCourseService) CompleteSession(_ context.Context, _, _, _ string, success bool) (*dto.SessionResponse, error) {
	m.lastSuccess = success
	return m.session, m.err
}
func (m *mockCourseService) MoveSession(_ context.Context, _, _, _, date string) (*dto.SessionResponse, error) {
	m.lastDate = date
	return m.session, m.err
}

// ── Mock ConstraintService ──

type mockConstraintService struct {
	importResult *dto.ImportICSResponse
	err          error
	uploaded     string
	fetchedURL   string
	lastList     *dto.ListConstraintRequest
}

func (m *mockConstraintService) Add(_ context.Context, _ string, _ *dto.CreateConstraintRequest) (*dto.ConstraintMutationResponse, error) {
	return &dto.ConstraintMutationResponse{}, m.err
}
func (m *mockConstraintService) List(_ context.Context, _ string, req *dto.ListConstraintRequest) ([]dto.ConstraintResponse, error) {
	m.lastList = req
	return []dto.ConstraintResponse{}, m.err
}
func (m *mockConstraintService) Delete(_ context.Context, _, _ string, _ bool) (*dto.DeleteResponse, error) {
	return &dto.DeleteResponse{Deleted: 1}, m.err
}
func (m *mockConstraintService) ImportICS(_ context.Context, _ string, r io.Reader) (*dto.ImportICSResponse, error) {
	b, _ := io.ReadAll(r)
	m.uploaded = string(b)
	return m.importResult, m.err
}
func (m *mockConstraintService) ImportICSFromURL(_ context.Context, _, url string) (*dto.ImportICSResponse, error) {
	m.fetchedURL = url
	return m.importResult, m.err
}

// ── Mock PlanningService ──

type mockPlanningService struct {
	err        error
	lastOffset int
	logs       []dto.ChangeLogResponse
	total      int64
}

func (m *mockPlanningService) Rebalance(_ context.Context, _ string) (*dto.RebalanceResponse, error) {
	return &dto.RebalanceResponse{}, m.err
}
func (m *mockPlanningService) WeeklyPlan(_ context.Context, _ string, weekOffset int) (*dto.WeeklyPlanResponse, error) {
	m.lastOffset = weekOffset
	return &dto.WeeklyPlanResponse{WeekOffset: weekOffset}, m.err
}
func (m *mockPlanningService) Today(_ context.Context, _ string) (*dto.TodayResponse, error) {
	return &dto.TodayResponse{}, m.err
}
func (m *mockPlanningService) Stats(_ context.Context, _ string) (*dto.StatsResponse, error) {
	return &dto.StatsResponse{}, m.err
}
func (m *mockPlanningService) ChangeLogs(_ context.Context, _ string, _ *dto.ChangeLogListRequest) ([]dto.ChangeLogResponse, int64, error) {
	return m.logs, m.total, m.err
}

// ── Mock SettingsService ──

type mockSettingsService struct {
	err error
}

func (m *mockSettingsService) Get(_ context.Context, _ string) (*dto.SettingsResponse, error) {
	return &dto.SettingsResponse{}, m.err
}
func (m *mockSettingsService) Update(_ context.Context, _ string, _ *dto.UpdateSettingsRequest) (*dto.SettingsMutationResponse, error) {
	return &dto.SettingsMutationResponse{}, m.err
}
func (m *mockSettingsService) Catalogs() []dto.CatalogResponse {
	return []dto.CatalogResponse{{ID: "classic"}}
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) WeeklyPlanXLSX(_ context.Context, _ string, _ int) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}
func (m *mockExportService) SessionsICS(_ context.Context, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ── Mock BackupService ──

type mockBackupService struct {
	err      error
	imported *dto.ExportDocument
}

func (m *mockBackupService) Export(_ context.Context, _ string) (*dto.ExportDocument, error) {
	return &dto.ExportDocument{Version: dto.ExportVersion}, m.err
}
func (m *mockBackupService) Import(_ context.Context, _ string, doc *dto.ExportDocument) (*dto.ImportResponse, error) {
	m.imported = doc
	return &dto.ImportResponse{Courses: len(doc.Data.Courses)}, m.err
}
func (m *mockBackupService) Backup(_ context.Context, _ string) (*dto.BackupResponse, error) {
	return &dto.BackupResponse{}, m.err
}
func (m *mockBackupService) ListBackups(_ context.Context, _ string) ([]dto.BackupResponse, error) {
	return nil, m.err
}
func (m *mockBackupService) Restore(_ context.Context, _, _ string) (*dto.ImportResponse, error) {
	return &dto.ImportResponse{}, m.err
}

// ── Mock CommandService ──

type mockCommandService struct {
	result *dto.CommandResponse
	err    error
}

func (m *mockCommandService) Execute(_ context.Context, _ string, _ *dto.CommandRequest) (*dto.CommandResponse, error) {
	return m.result, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setAuth(c *gin.Context) {
	c.Set(ctxUserID, "test-user-id")
	c.Set(ctxClaims, &jwt.Claims{UserID: "test-user-id", Role: "member", TokenType: jwt.TokenTypeAccess})
}

// authed 包装 handler，模拟 JWT 中间件已注入身份
func authed(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		setAuth(c)
		h(c)
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func serve(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status, code int) {
	t.Helper()
	if w.Code != status {
		t.Errorf("expected %d, got %d (body=%s)", status, w.Code, w.Body.String())
	}
	if resp := parseResponse(w); resp.Code != code {
		t.Errorf("expected code %d, got %d", code, resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// AuthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAuthHandler_Login_Success(t *testing.T) {
	mock := &mockAuthService{tokenResult: &dto.TokenResponse{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900}}
	h := NewAuthHandler(mock)
	r := gin.New()
	r.POST("/auth/login", h.Login)

	w := serve(r, "POST", "/auth/login", jsonBody(dto.LoginRequest{Email: "marie@test.fr", Password: "password123"}))

	expectStatus(t, w, http.StatusOK, 0)
}

func TestAuthHandler_Login_BadJSON(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})
	r := gin.New()
	r.POST("/auth/login", h.Login)

	w := serve(r, "POST", "/auth/login", strings.NewReader("invalid json"))

	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestAuthHandler_Login_InvalidEmail(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})
	r := gin.New()
	r.POST("/auth/login", h.Login)

	w := serve(r, "POST", "/auth/login", jsonBody(map[string]string{"email": "pas-un-email", "password": "x"}))

	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{err: service.ErrInvalidCredentials})
	r := gin.New()
	r.POST("/auth/login", h.Login)

	w := serve(r, "POST", "/auth/login", jsonBody(dto.LoginRequest{Email: "marie@test.fr", Password: "wrong"}))

	expectStatus(t, w, http.StatusUnauthorized, 11001)
}

func TestAuthHandler_Register_Duplicate(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{err: service.ErrEmailTaken})
	r := gin.New()
	r.POST("/auth/register", h.Register)

	w := serve(r, "POST", "/auth/register", jsonBody(dto.RegisterRequest{
		Name: "Marie", Email: "marie@test.fr", Password: "password123",
	}))

	expectStatus(t, w, http.StatusConflict, 11002)
}

func TestAuthHandler_Register_ShortPassword(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})
	r := gin.New()
	r.POST("/auth/register", h.Register)

	w := serve(r, "POST", "/auth/register", jsonBody(dto.RegisterRequest{
		Name: "Marie", Email: "marie@test.fr", Password: "court",
	}))

	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestAuthHandler_Refresh_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"过期", jwt.ErrTokenExpired, 11003},
		{"类型错误", jwt.ErrWrongTokenType, 11003},
		{"已作废", service.ErrTokenRevoked, 11004},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{err: tc.err})
			r := gin.New()
			r.POST("/auth/refresh", h.RefreshToken)

			w := serve(r, "POST", "/auth/refresh", jsonBody(dto.RefreshTokenRequest{RefreshToken: "old"}))

			expectStatus(t, w, http.StatusUnauthorized, tc.code)
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	mock := &mockAuthService{}
	h := NewAuthHandler(mock)
	r := gin.New()
	r.POST("/auth/logout", authed(h.Logout))
	r.POST("/auth/logout-anon", h.Logout)

	w := serve(r, "POST", "/auth/logout", nil)
	expectStatus(t, w, http.StatusOK, 0)
	if mock.logoutCalls != 1 || mock.lastClaims == nil || mock.lastClaims.UserID != "test-user-id" {
		t.Errorf("expected logout with access claims, got calls=%d claims=%+v", mock.logoutCalls, mock.lastClaims)
	}

	w = serve(r, "POST", "/auth/logout-anon", nil)
	expectStatus(t, w, http.StatusUnauthorized, 10002)
}

func TestAuthHandler_GetCurrentUser(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{meResult: &dto.UserResponse{ID: "test-user-id", Name: "Marie"}})
	r := gin.New()
	r.GET("/auth/me", authed(h.GetCurrentUser))

	w := serve(r, "GET", "/auth/me", nil)

	expectStatus(t, w, http.StatusOK, 0)
}

// ═══════════════════════════════════════════════════════════
// CourseHandler Tests
// ═══════════════════════════════════════════════════════════

func TestCourseHandler_Create(t *testing.T) {
	mock := &mockCourseService{mutation: &dto.CourseMutationResponse{Course: &dto.CourseResponse{ID: "c1", Name: "Anatomie"}}}
	h := NewCourseHandler(mock)
	r := gin.New()
	r.POST("/courses", authed(h.CreateCourse))

	w := serve(r, "POST", "/courses", jsonBody(dto.CreateCourseRequest{Name: "Anatomie", HoursPerDay: 2, StartDate: "2025-09-15"}))
	expectStatus(t, w, http.StatusCreated, 0)
}

func TestCourseHandler_Create_Validation(t *testing.T) {
	h := NewCourseHandler(&mockCourseService{})
	r := gin.New()
	r.POST("/courses", authed(h.CreateCourse))

	cases := map[string]interface{}{
		"缺少名称":  map[string]interface{}{"hours_per_day": 2},
		"时长为零":  map[string]interface{}{"name": "Anatomie", "hours_per_day": 0},
		"时长为负":  map[string]interface{}{"name": "Anatomie", "hours_per_day": -1},
		"日期格式错": map[string]interface{}{"name": "Anatomie", "hours_per_day": 2, "start_date": "15/09/2025"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := serve(r, "POST", "/courses", jsonBody(body))
			expectStatus(t, w, http.StatusBadRequest, 10001)
		})
	}
}

func TestCourseHandler_Unauthenticated(t *testing.T) {
	h := NewCourseHandler(&mockCourseService{})
	r := gin.New()
	r.GET("/courses", h.ListCourses)

	w := serve(r, "GET", "/courses", nil)

	expectStatus(t, w, http.StatusUnauthorized, 10002)
}

func TestCourseHandler_Get_NotFound(t *testing.T) {
	h := NewCourseHandler(&mockCourseService{err: service.ErrCourseNotFound})
	r := gin.New()
	r.GET("/courses/:id", authed(h.GetCourse))

	w := serve(r, "GET", "/courses/missing", nil)

	expectStatus(t, w, http.StatusNotFound, 12001)
}

func TestCourseHandler_Update_VersionConflict(t *testing.T) {
	h := NewCourseHandler(&mockCourseService{err: pkgerrors.ErrOptimisticLock})
	r := gin.New()
	r.PUT("/courses/:id", authed(h.UpdateCourse))

	w := serve(r, "PUT", "/courses/c1", jsonBody(map[string]interface{}{"name": "Anatomie II", "version": 1}))

	expectStatus(t, w, http.StatusConflict, 14002)
}

func TestCourseHandler_Delete_RebalanceFlag(t *testing.T) {
	mock := &mockCourseService{deleted: &dto.DeleteResponse{Deleted: 1}}
	h := NewCourseHandler(mock)
	r := gin.New()
	r.DELETE("/courses/:id", authed(h.DeleteCourse))

	w := serve(r, "DELETE", "/courses/c1", nil)
	expectStatus(t, w, http.StatusOK, 0)
	if mock.lastRebalance {
		t.Error("rebalance should default to false")
	}

	w = serve(r, "DELETE", "/courses/c1?rebalance=true", nil)
	expectStatus(t, w, http.StatusOK, 0)
	if !mock.lastRebalance {
		t.Error("expected rebalance=true to be forwarded")
	}
}

func TestCourseHandler_MoveSession(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		body   interface{}
		status int
		code   int
	}{
		{"成功", nil, dto.MoveSessionRequest{Date: "2025-09-19"}, http.StatusOK, 0},
		{"周日", service.ErrMoveToSunday, dto.MoveSessionRequest{Date: "2025-09-21"}, http.StatusBadRequest, 12004},
		{"冲突", service.ErrMoveConflict, dto.MoveSessionRequest{Date: "2025-09-18"}, http.StatusConflict, 12005},
		{"已完成", service.ErrSessionCompleted, dto.MoveSessionRequest{Date: "2025-09-18"}, http.StatusConflict, 12003},
		{"锁占用", pkgerrors.ErrLockBusy, dto.MoveSessionRequest{Date: "2025-09-18"}, http.StatusConflict, 14001},
		{"日期格式错", nil, dto.MoveSessionRequest{Date: "2025-13-40"}, http.StatusBadRequest, 10001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockCourseService{err: tc.err, session: &dto.SessionResponse{ID: "s1"}}
			h := NewCourseHandler(mock)
			r := gin.New()
			r.PUT("/courses/:id/sessions/:sid/move", authed(h.MoveSession))

			w := serve(r, "PUT", "/courses/c1/sessions/s1/move", jsonBody(tc.body))

			expectStatus(t, w, tc.status, tc.code)
		})
	}
}

func TestCourseHandler_CompleteSession_RequiresSuccess(t *testing.T) {
	mock := &mockCourseService{session: &dto.SessionResponse{ID: "s1"}}
	h := NewCourseHandler(mock)
	r := gin.New()
	r.PUT("/courses/:id/sessions/:sid/complete", authed(h.CompleteSession))

	w := serve(r, "PUT", "/courses/c1/sessions/s1/complete", jsonBody(map[string]interface{}{}))
	expectStatus(t, w, http.StatusBadRequest, 10001)

	// success=false 也是合法值
	w = serve(r, "PUT", "/courses/c1/sessions/s1/complete", jsonBody(map[string]interface{}{"success": false}))
	expectStatus(t, w, http.StatusOK, 0)
	if mock.lastSuccess {
		t.Error("expected success=false to be forwarded")
	}
}

// ═══════════════════════════════════════════════════════════
// ConstraintHandler Tests
// ═══════════════════════════════════════════════════════════

func TestConstraintHandler_Create_Validation(t *testing.T) {
	h := NewConstraintHandler(&mockConstraintService{})
	r := gin.New()
	r.POST("/constraints", authed(h.CreateConstraint))

	w := serve(r, "POST", "/constraints", jsonBody(map[string]interface{}{"date": "2025-09-16", "start_hour": 10, "end_hour": 25}))
	expectStatus(t, w, http.StatusBadRequest, 10001)

	w = serve(r, "POST", "/constraints", jsonBody(map[string]interface{}{"date": "demain"}))
	expectStatus(t, w, http.StatusBadRequest, 10001)

	w = serve(r, "POST", "/constraints", jsonBody(map[string]interface{}{"date": "2025-09-16", "start_hour": 0, "end_hour": 24}))
	expectStatus(t, w, http.StatusCreated, 0)
}

func TestConstraintHandler_Create_ReversedRange(t *testing.T) {
	h := NewConstraintHandler(&mockConstraintService{err: service.ErrInvalidHourRange})
	r := gin.New()
	r.POST("/constraints", authed(h.CreateConstraint))

	w := serve(r, "POST", "/constraints", jsonBody(map[string]interface{}{"date": "2025-09-16", "start_hour": 16, "end_hour": 14}))

	expectStatus(t, w, http.StatusBadRequest, 13002)
}

func TestConstraintHandler_List_Range(t *testing.T) {
	mock := &mockConstraintService{}
	h := NewConstraintHandler(mock)
	r := gin.New()
	r.GET("/constraints", authed(h.ListConstraints))

	w := serve(r, "GET", "/constraints?from=2025-09-15&to=2025-09-21", nil)
	expectStatus(t, w, http.StatusOK, 0)
	if mock.lastList == nil || mock.lastList.From != "2025-09-15" || mock.lastList.To != "2025-09-21" {
		t.Errorf("expected range to be forwarded, got %+v", mock.lastList)
	}

	w = serve(r, "GET", "/constraints?from=15-09", nil)
	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestConstraintHandler_ImportICS_Upload(t *testing.T) {
	mock := &mockConstraintService{importResult: &dto.ImportICSResponse{Imported: 2}}
	h := NewConstraintHandler(mock)
	r := gin.New()
	r.POST("/constraints/import", authed(h.ImportICS))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "agenda.ics")
	part.Write([]byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/constraints/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	expectStatus(t, w, http.StatusCreated, 0)
	if !strings.HasPrefix(mock.uploaded, "BEGIN:VCALENDAR") {
		t.Errorf("expected uploaded content to reach service, got %q", mock.uploaded)
	}
}

func TestConstraintHandler_ImportICS_URL(t *testing.T) {
	mock := &mockConstraintService{importResult: &dto.ImportICSResponse{Imported: 1}}
	h := NewConstraintHandler(mock)
	r := gin.New()
	r.POST("/constraints/import", authed(h.ImportICS))

	w := serve(r, "POST", "/constraints/import", jsonBody(dto.ImportICSURLRequest{URL: "https://example.org/agenda.ics"}))
	expectStatus(t, w, http.StatusCreated, 0)
	if mock.fetchedURL != "https://example.org/agenda.ics" {
		t.Errorf("expected url to be forwarded, got %q", mock.fetchedURL)
	}
}

func TestConstraintHandler_ImportICS_Errors(t *testing.T) {
	h := NewConstraintHandler(&mockConstraintService{})
	r := gin.New()
	r.POST("/constraints/import", authed(h.ImportICS))

	w := serve(r, "POST", "/constraints/import", jsonBody(map[string]string{}))
	expectStatus(t, w, http.StatusBadRequest, 13000)

	cases := []struct {
		err    error
		status int
		code   int
	}{
		{service.ErrICSEmpty, http.StatusUnprocessableEntity, 13005},
		{errors.Join(service.ErrICSFetch, errors.New("timeout")), http.StatusBadRequest, 13004},
		{service.ErrICSInvalid, http.StatusBadRequest, 13003},
	}
	for _, tc := range cases {
		h := NewConstraintHandler(&mockConstraintService{err: tc.err})
		r := gin.New()
		r.POST("/constraints/import", authed(h.ImportICS))
		w := serve(r, "POST", "/constraints/import", jsonBody(dto.ImportICSURLRequest{URL: "https://example.org/a.ics"}))
		expectStatus(t, w, tc.status, tc.code)
	}
}

// ═══════════════════════════════════════════════════════════
// PlanningHandler / SettingsHandler Tests
// ═══════════════════════════════════════════════════════════

func TestPlanningHandler_WeeklyPlan_Offset(t *testing.T) {
	mock := &mockPlanningService{}
	h := NewPlanningHandler(mock)
	r := gin.New()
	r.GET("/planning/week", authed(h.WeeklyPlan))

	w := serve(r, "GET", "/planning/week?week_offset=-2", nil)
	expectStatus(t, w, http.StatusOK, 0)
	if mock.lastOffset != -2 {
		t.Errorf("expected offset -2, got %d", mock.lastOffset)
	}

	w = serve(r, "GET", "/planning/week?week_offset=abc", nil)
	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestPlanningHandler_Rebalance_LockBusy(t *testing.T) {
	h := NewPlanningHandler(&mockPlanningService{err: pkgerrors.ErrLockBusy})
	r := gin.New()
	r.POST("/planning/rebalance", authed(h.Rebalance))

	w := serve(r, "POST", "/planning/rebalance", nil)

	expectStatus(t, w, http.StatusConflict, 14001)
}

func TestPlanningHandler_ChangeLogs_Pagination(t *testing.T) {
	mock := &mockPlanningService{logs: []dto.ChangeLogResponse{{ID: "l1"}}, total: 45}
	h := NewPlanningHandler(mock)
	r := gin.New()
	r.GET("/planning/change-logs", authed(h.ListChangeLogs))

	w := serve(r, "GET", "/planning/change-logs?page=2&page_size=20", nil)
	expectStatus(t, w, http.StatusOK, 0)

	var resp struct {
		Data response.PageData `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Data.Pagination.Page != 2 || resp.Data.Pagination.TotalPages != 3 {
		t.Errorf("unexpected pagination: %+v", resp.Data.Pagination)
	}
}

func TestSettingsHandler_Update(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsService{err: service.ErrInvalidLunchBreak})
	r := gin.New()
	r.PUT("/settings", authed(h.UpdateSettings))

	w := serve(r, "PUT", "/settings", jsonBody(map[string]interface{}{"lunch_break_start": 15, "lunch_break_end": 14}))
	expectStatus(t, w, http.StatusBadRequest, 15002)

	w = serve(r, "PUT", "/settings", jsonBody(map[string]interface{}{"day_start_hour": 30}))
	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestSettingsHandler_Catalogs(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsService{})
	r := gin.New()
	r.GET("/settings/catalogs", h.ListCatalogs)

	w := serve(r, "GET", "/settings/catalogs", nil)

	expectStatus(t, w, http.StatusOK, 0)
}

// ═══════════════════════════════════════════════════════════
// Export / Backup Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_WeeklyPlan_Headers(t *testing.T) {
	mock := &mockExportService{buf: bytes.NewBufferString("xlsx"), filename: "planning_2025-09-15.xlsx"}
	h := NewExportHandler(mock)
	r := gin.New()
	r.GET("/export/week", authed(h.ExportWeeklyPlan))

	w := serve(r, "GET", "/export/week", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != contentTypeXLSX {
		t.Errorf("unexpected content type: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "planning_2025-09-15.xlsx") {
		t.Errorf("unexpected content disposition: %s", cd)
	}
}

func TestExportHandler_ICS_NoSessions(t *testing.T) {
	h := NewExportHandler(&mockExportService{err: service.ErrExportNoSessions})
	r := gin.New()
	r.GET("/export/ics", authed(h.ExportSessions))

	w := serve(r, "GET", "/export/ics", nil)

	expectStatus(t, w, http.StatusNotFound, 16101)
}

func TestBackupHandler_ImportJSON_Body(t *testing.T) {
	mock := &mockBackupService{}
	h := NewBackupHandler(mock)
	r := gin.New()
	r.POST("/import/json", authed(h.ImportJSON))

	doc := dto.ExportDocument{Version: "1.0", Data: dto.ExportData{Courses: []dto.ExportCourse{{Name: "Anatomie", HoursPerDay: 2}}}}
	w := serve(r, "POST", "/import/json", jsonBody(doc))

	expectStatus(t, w, http.StatusOK, 0)
	if mock.imported == nil || len(mock.imported.Data.Courses) != 1 {
		t.Errorf("expected document to reach service, got %+v", mock.imported)
	}
}

func TestBackupHandler_ImportJSON_File(t *testing.T) {
	mock := &mockBackupService{}
	h := NewBackupHandler(mock)
	r := gin.New()
	r.POST("/import/json", authed(h.ImportJSON))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "export.json")
	part.Write([]byte(`{"version":"1.0","data":{"courses":[{"name":"Anatomie","hoursPerDay":2}],"constraints":[]}}`))
	mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/import/json", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	expectStatus(t, w, http.StatusOK, 0)
	if mock.imported == nil || mock.imported.Data.Courses[0].Name != "Anatomie" {
		t.Errorf("expected file content to reach service, got %+v", mock.imported)
	}
}

func TestBackupHandler_Errors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"未启用", service.ErrBackupDisabled, http.StatusServiceUnavailable, 17004},
		{"不存在", service.ErrBackupNotFound, http.StatusNotFound, 17005},
		{"版本", service.ErrBackupVersion, http.StatusBadRequest, 17002},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewBackupHandler(&mockBackupService{err: tc.err})
			r := gin.New()
			r.POST("/backups/restore", authed(h.RestoreBackup))

			w := serve(r, "POST", "/backups/restore", jsonBody(dto.RestoreBackupRequest{Key: "backups/test-user-id/x.json"}))

			expectStatus(t, w, tc.status, tc.code)
		})
	}
}

// ═══════════════════════════════════════════════════════════
// CommandHandler Tests
// ═══════════════════════════════════════════════════════════

func TestCommandHandler_Execute(t *testing.T) {
	mock := &mockCommandService{result: &dto.CommandResponse{Kind: string(command.KindHelp), Reply: "ok"}}
	h := NewCommandHandler(mock)
	r := gin.New()
	r.POST("/chat", authed(h.Execute))

	w := serve(r, "POST", "/chat", jsonBody(dto.CommandRequest{Message: "Aide"}))
	expectStatus(t, w, http.StatusOK, 0)

	w = serve(r, "POST", "/chat", jsonBody(dto.CommandRequest{}))
	expectStatus(t, w, http.StatusBadRequest, 10001)
}

func TestCommandHandler_UnknownCommand(t *testing.T) {
	h := NewCommandHandler(&mockCommandService{err: command.ErrUnknownCommand})
	r := gin.New()
	r.POST("/chat", authed(h.Execute))

	w := serve(r, "POST", "/chat", jsonBody(dto.CommandRequest{Message: "bonjour"}))

	expectStatus(t, w, http.StatusUnprocessableEntity, 18001)
	if resp := parseResponse(w); resp.Details != command.HelpText {
		t.Errorf("expected help text in details, got %q", resp.Details)
	}
}

func TestCommandHandler_InternalError(t *testing.T) {
	h := NewCommandHandler(&mockCommandService{err: errors.New("db down")})
	r := gin.New()
	r.POST("/chat", authed(h.Execute))

	w := serve(r, "POST", "/chat", jsonBody(dto.CommandRequest{Message: "Aide"}))

	expectStatus(t, w, http.StatusInternalServerError, 50000)
}
