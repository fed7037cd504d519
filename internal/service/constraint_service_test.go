package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"j-planner/backend/internal/dto"
	"j-planner/backend/pkg/webhook"
)

func intPtr(v int) *int { return &v }

const testICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//j-planner//test//FR\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:tp-1@test\r\n" +
	"SUMMARY:TP Anatomie\r\n" +
	"DTSTART:20250917T100000Z\r\n" +
	"DTEND:20250917T120000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:free-1@test\r\n" +
	"SUMMARY:Disponible\r\n" +
	"TRANSP:TRANSPARENT\r\n" +
	"DTSTART:20250918T100000Z\r\n" +
	"DTEND:20250918T120000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:garde-1@test\r\n" +
	"SUMMARY:Garde\r\n" +
	"DTSTART;VALUE=DATE:20250920\r\n" +
	"DTEND;VALUE=DATE:20250921\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:old-1@test\r\n" +
	"SUMMARY:Ancien\r\n" +
	"DTSTART:20240101T100000Z\r\n" +
	"DTEND:20240101T110000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

// ── Add ──

func TestConstraintService_Add_RebalancesConflicts(t *testing.T) {
	env := setupTestEngine()
	courses := NewCourseService(env.engine)
	svc := NewConstraintService(env.engine)
	c := mustCreateCourse(t, courses, "Anatomie", 2, "2025-09-15")
	ctx := context.Background()

	resp, err := svc.Add(ctx, testUser, &dto.CreateConstraintRequest{Date: "2025-09-16", Description: "Stage"})
	if err != nil {
		t.Fatalf("Add 失败: %v", err)
	}
	if !resp.Constraint.FullDay || resp.Constraint.Type != ConstraintTypeManual {
		t.Errorf("缺省应为全天手动占用，实际: %+v", resp.Constraint)
	}

	got, _ := courses.Get(ctx, testUser, c.ID)
	j1 := sessionByKey(got, "J+1")
	if j1.Date != "2025-09-17" || !j1.Rescheduled {
		t.Errorf("J+1 应顺延到 9/17，实际: %+v", j1)
	}
	if j1.OriginalDate != "2025-09-16" {
		t.Errorf("original_date 不应变化，实际: %s", j1.OriginalDate)
	}

	found := false
	for _, typ := range env.notifier.types() {
		if typ == webhook.EventPlanningReorganized {
			found = true
		}
	}
	if !found {
		t.Error("有课时移动时应推送 planning_reorganized")
	}
}

func TestConstraintService_Add_PartialDayWithoutOverlap(t *testing.T) {
	env := setupTestEngine()
	courses := NewCourseService(env.engine)
	svc := NewConstraintService(env.engine)
	c := mustCreateCourse(t, courses, "Anatomie", 2, "2025-09-15")

	// 课时按 9:00 起算 2 小时，下午的占用不冲突
	_, err := svc.Add(context.Background(), testUser, &dto.CreateConstraintRequest{
		Date:      "2025-09-16",
		StartHour: intPtr(15),
		EndHour:   intPtr(17),
	})
	if err != nil {
		t.Fatalf("Add 失败: %v", err)
	}
	got, _ := courses.Get(context.Background(), testUser, c.ID)
	if d := sessionByKey(got, "J+1").Date; d != "2025-09-16" {
		t.Errorf("不冲突的占用不应移动课时，实际: %s", d)
	}
}

func TestConstraintService_Add_InvalidInput(t *testing.T) {
	env := setupTestEngine()
	svc := NewConstraintService(env.engine)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     dto.CreateConstraintRequest
		wantErr error
	}{
		{"结束早于开始", dto.CreateConstraintRequest{Date: "2025-09-16", StartHour: intPtr(12), EndHour: intPtr(10)}, ErrInvalidHourRange},
		{"起止相同", dto.CreateConstraintRequest{Date: "2025-09-16", StartHour: intPtr(10), EndHour: intPtr(10)}, ErrInvalidHourRange},
		{"日期格式错误", dto.CreateConstraintRequest{Date: "16-09-2025"}, ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Add(ctx, testUser, &tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("期望 %v，实际: %v", tt.wantErr, err)
			}
		})
	}
	if len(env.store.constraints) != 0 {
		t.Error("校验失败时不应写入占用")
	}
}

// ── List / Delete ──

func TestConstraintService_List_Range(t *testing.T) {
	env := setupTestEngine()
	svc := NewConstraintService(env.engine)
	ctx := context.Background()

	for _, d := range []string{"2025-09-16", "2025-09-18", "2025-09-25"} {
		if _, err := svc.Add(ctx, testUser, &dto.CreateConstraintRequest{Date: d}); err != nil {
			t.Fatalf("Add %s 失败: %v", d, err)
		}
	}

	all, err := svc.List(ctx, testUser, nil)
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("期望 3 条占用，实际: %d", len(all))
	}

	ranged, err := svc.List(ctx, testUser, &dto.ListConstraintRequest{From: "2025-09-17", To: "2025-09-25"})
	if err != nil {
		t.Fatalf("List 失败: %v", err)
	}
	if len(ranged) != 2 || ranged[0].Date != "2025-09-18" {
		t.Errorf("区间查询结果不符合预期: %+v", ranged)
	}
}

func TestConstraintService_Delete(t *testing.T) {
	env := setupTestEngine()
	courses := NewCourseService(env.engine)
	svc := NewConstraintService(env.engine)
	c := mustCreateCourse(t, courses, "Anatomie", 2, "2025-09-15")
	ctx := context.Background()

	added, err := svc.Add(ctx, testUser, &dto.CreateConstraintRequest{Date: "2025-09-16"})
	if err != nil {
		t.Fatalf("Add 失败: %v", err)
	}

	if _, err := svc.Delete(ctx, testUser, "missing", false); !errors.Is(err, ErrConstraintNotFound) {
		t.Errorf("期望 ErrConstraintNotFound，实际: %v", err)
	}

	if _, err := svc.Delete(ctx, testUser, added.Constraint.ID, true); err != nil {
		t.Fatalf("Delete 失败: %v", err)
	}
	got, _ := courses.Get(ctx, testUser, c.ID)
	j1 := sessionByKey(got, "J+1")
	if j1.Date != "2025-09-16" || j1.Rescheduled {
		t.Errorf("删除占用并重排后 J+1 应回到原日期，实际: %+v", j1)
	}
}

// ── ICS 导入 ──

func TestConstraintService_ImportICS(t *testing.T) {
	env := setupTestEngine()
	courses := NewCourseService(env.engine)
	svc := NewConstraintService(env.engine)
	c := mustCreateCourse(t, courses, "Anatomie", 2, "2025-09-15")
	ctx := context.Background()

	resp, err := svc.ImportICS(ctx, testUser, strings.NewReader(testICS))
	if err != nil {
		t.Fatalf("ImportICS 失败: %v", err)
	}
	if resp.Imported != 2 {
		t.Errorf("期望导入 2 条，实际: %d", resp.Imported)
	}
	if resp.Skipped != 2 {
		t.Errorf("透明事件与过期事件应被跳过，实际跳过: %d", resp.Skipped)
	}

	list, _ := svc.List(ctx, testUser, nil)
	if len(list) != 2 {
		t.Fatalf("期望 2 条占用，实际: %d", len(list))
	}
	if list[0].Date != "2025-09-17" || list[0].StartHour != 10 || list[0].EndHour != 12 || list[0].Type != ConstraintTypeAuto {
		t.Errorf("定时事件转换不符合预期: %+v", list[0])
	}
	if list[1].Date != "2025-09-20" || !list[1].FullDay {
		t.Errorf("全天事件转换不符合预期: %+v", list[1])
	}

	got, _ := courses.Get(ctx, testUser, c.ID)
	if d := sessionByKey(got, "J+2").Date; d != "2025-09-18" {
		t.Errorf("与 TP 冲突的 J+2 应移到 9/18，实际: %s", d)
	}

	again, err := svc.ImportICS(ctx, testUser, strings.NewReader(testICS))
	if err != nil {
		t.Fatalf("重复导入失败: %v", err)
	}
	if again.Imported != 0 {
		t.Errorf("重复导入不应叠加，实际导入: %d", again.Imported)
	}
	if list, _ := svc.List(ctx, testUser, nil); len(list) != 2 {
		t.Errorf("重复导入后仍应为 2 条占用，实际: %d", len(list))
	}
}

func TestConstraintService_ImportICS_Empty(t *testing.T) {
	env := setupTestEngine()
	svc := NewConstraintService(env.engine)

	empty := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//FR\r\nEND:VCALENDAR\r\n"
	if _, err := svc.ImportICS(context.Background(), testUser, strings.NewReader(empty)); !errors.Is(err, ErrICSEmpty) {
		t.Errorf("期望 ErrICSEmpty，实际: %v", err)
	}
}

func TestConstraintService_ImportICSFromURL(t *testing.T) {
	env := setupTestEngine()
	svc := NewConstraintService(env.engine).(*constraintService)

	var fetched string
	svc.fetch = func(url string) (io.ReadCloser, error) {
		fetched = url
		return io.NopCloser(strings.NewReader(testICS)), nil
	}
	resp, err := svc.ImportICSFromURL(context.Background(), testUser, "https://calendar.example.com/feed.ics")
	if err != nil {
		t.Fatalf("ImportICSFromURL 失败: %v", err)
	}
	if fetched != "https://calendar.example.com/feed.ics" {
		t.Errorf("期望请求订阅地址，实际: %s", fetched)
	}
	if resp.Imported != 2 {
		t.Errorf("期望导入 2 条，实际: %d", resp.Imported)
	}

	boom := errors.New("network down")
	svc.fetch = func(string) (io.ReadCloser, error) { return nil, boom }
	if _, err := svc.ImportICSFromURL(context.Background(), testUser, "https://x"); !errors.Is(err, boom) {
		t.Errorf("期望透传获取错误，实际: %v", err)
	}
}
