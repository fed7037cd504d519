package service

import (
	"context"
	"testing"
	"time"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/model"
)

// ── 周计划 ──

func TestPlanningService_WeeklyPlan_Structure(t *testing.T) {
	env := setupTestEngine()
	courses := NewCourseService(env.engine)
	svc := NewPlanningService(env.engine)
	mustCreateCourse(t, courses, "Anatomie", 3, "2025-09-15")
	env.clock.Advance(time.Minute)
	mustCreateCourse(t, courses, "Physiologie", 3, "2025-09-15")

	plan, err := svc.WeeklyPlan(context.Background(), testUser, 0)
	if err != nil {
		t.Fatalf("WeeklyPlan 失败: %v", err)
	}
	if plan.WeekStart != "2025-09-15" || plan.WeekEnd != "2025-09-21" {
		t.Errorf("周范围不符合预期: %s ~ %s", plan.WeekStart, plan.WeekEnd)
	}
	if len(plan.Days) != 7 {
		t.Fatalf("期望 7 天，实际: %d", len(plan.Days))
	}
	if plan.Days[0].Weekday != "Lundi" || !plan.Days[6].IsSunday {
		t.Errorf("星期标记不符合预期: %s / %v", plan.Days[0].Weekday, plan.Days[6].IsSunday)
	}

	monday := plan.Days[0]
	if len(monday.Sessions) != 2 {
		t.Fatalf("周一期望 2 个课时，实际: %d", len(monday.Sessions))
	}
	first, second := monday.Sessions[0], monday.Sessions[1]
	if first.CourseName != "Anatomie" || first.StartTime != "09:00" || first.EndTime != "12:00" {
		t.Errorf("第一个时段不符合预期: %+v", first)
	}
	// 12:00 起 3 小时会跨过午休，顺延到 14:00
	if second.StartTime != "14:00" || second.EndTime != "17:00" {
		t.Errorf("第二个时段应避开午休，实际: %s-%s", second.StartTime, second.EndTime)
	}
	if monday.TotalHours != 6 {
		t.Errorf("周一总时长期望 6，实际: %g", monday.TotalHours)
	}
	// 周一到周三各 6h
	if plan.TotalHours != 18 {
		t.Errorf("本周总时长期望 18，实际: %g", plan.TotalHours)
	}
}

func TestPlanningService_WeeklyPlan_Offset(t *testing.T) {
	env := setupTestEngine()
	mustCreateCourse(t, NewCourseService(env.engine), "Anatomie", 2, "2025-09-15")
	svc := NewPlanningService(env.engine)

	plan, err := svc.WeeklyPlan(context.Background(), testUser, 1)
	if err != nil {
		t.Fatalf("WeeklyPlan 失败: %v", err)
	}
	if plan.WeekStart != "2025-09-22" {
		t.Errorf("下周应从 9/22 开始，实际: %s", plan.WeekStart)
	}
	thursday := plan.Days[3]
	if thursday.Weekday != "Jeudi" || len(thursday.Sessions) != 1 || thursday.Sessions[0].IntervalKey != "J+10" {
		t.Errorf("周四应有 J+10，实际: %+v", thursday)
	}
}

func TestPlanningService_WeeklyPlan_CacheInvalidatedByWrites(t *testing.T) {
	env := setupTestEngine()
	svc := NewPlanningService(env.engine)
	ctx := context.Background()

	first, err := svc.WeeklyPlan(ctx, testUser, 0)
	if err != nil {
		t.Fatalf("WeeklyPlan 失败: %v", err)
	}

	// 绕过 Service 直接写存储，缓存仍然命中
	env.store.constraints["direct"] = &model.Constraint{
		ConstraintID: "direct", UserID: testUser, Date: day(2025, 9, 16), StartHour: 0, EndHour: 24, Description: "x",
	}
	cached, _ := svc.WeeklyPlan(ctx, testUser, 0)
	if cached != first {
		t.Error("第二次读取应命中缓存")
	}

	if _, err := NewConstraintService(env.engine).Add(ctx, testUser, &dto.CreateConstraintRequest{Date: "2025-09-18"}); err != nil {
		t.Fatalf("Add 失败: %v", err)
	}
	fresh, _ := svc.WeeklyPlan(ctx, testUser, 0)
	if fresh == first {
		t.Fatal("写操作后应重新计算")
	}
	if len(fresh.Days[1].Constraints) != 1 || len(fresh.Days[3].Constraints) != 1 {
		t.Errorf("周二与周四应各有一条占用")
	}
}

// ── 今日 ──

func TestPlanningService_Today_HidesCompleted(t *testing.T) {
	env := setupTestEngine()
	courses := NewCourseService(env.engine)
	svc := NewPlanningService(env.engine)
	ctx := context.Background()

	a := mustCreateCourse(t, courses, "Anatomie", 2, "2025-09-15")
	env.clock.Advance(time.Minute)
	mustCreateCourse(t, courses, "Physiologie", 1, "2025-09-15")

	if _, err := courses.CompleteSession(ctx, testUser, a.ID, sessionByKey(a, "J0").ID, true); err != nil {
		t.Fatalf("CompleteSession 失败: %v", err)
	}

	today, err := svc.Today(ctx, testUser)
	if err != nil {
		t.Fatalf("Today 失败: %v", err)
	}
	if today.Date != "2025-09-15" {
		t.Errorf("日期不符合预期: %s", today.Date)
	}
	if len(today.Sessions) != 1 || today.Sessions[0].CourseName != "Physiologie" {
		t.Errorf("今日只应列出未完成课时，实际: %+v", today.Sessions)
	}
	if today.TotalHours != 1 {
		t.Errorf("今日时长期望 1，实际: %g", today.TotalHours)
	}
}

// ── 重排 ──

func TestPlanningService_Rebalance_PullsOverdueToToday(t *testing.T) {
	env := setupTestEngine()
	courses := NewCourseService(env.engine)
	svc := NewPlanningService(env.engine)
	ctx := context.Background()
	c := mustCreateCourse(t, courses, "Anatomie", 2, "2025-09-15")

	// 周三
	env.clock.Advance(48 * time.Hour)
	resp, err := svc.Rebalance(ctx, testUser)
	if err != nil {
		t.Fatalf("Rebalance 失败: %v", err)
	}
	if resp.Moved != 2 {
		t.Fatalf("期望移动 J0 与 J+1，实际: %d", resp.Moved)
	}
	for _, ch := range resp.Changes {
		if ch.To != "2025-09-17" || ch.CourseName != "Anatomie" {
			t.Errorf("逾期课时应移到今天，实际: %+v", ch)
		}
	}

	got, _ := courses.Get(ctx, testUser, c.ID)
	if s := sessionByKey(got, "J0"); s.Date != "2025-09-17" || !s.Rescheduled {
		t.Errorf("J0 不符合预期: %+v", s)
	}

	logs, total, err := svc.ChangeLogs(ctx, testUser, &dto.ChangeLogListRequest{})
	if err != nil {
		t.Fatalf("ChangeLogs 失败: %v", err)
	}
	if total != 2 || len(logs) != 2 || logs[0].ChangeType != ChangeTypeRebalance {
		t.Errorf("变更日志不符合预期: total=%d logs=%+v", total, logs)
	}

	again, _ := svc.Rebalance(ctx, testUser)
	if again.Moved != 0 {
		t.Errorf("重排应幂等，第二次移动: %d", again.Moved)
	}
}

// ── 统计 ──

func TestPlanningService_Stats(t *testing.T) {
	env := setupTestEngine()
	courses := NewCourseService(env.engine)
	svc := NewPlanningService(env.engine)
	ctx := context.Background()
	c := mustCreateCourse(t, courses, "Anatomie", 2, "2025-09-15")

	if _, err := courses.CompleteSession(ctx, testUser, c.ID, sessionByKey(c, "J0").ID, true); err != nil {
		t.Fatalf("CompleteSession 失败: %v", err)
	}
	if _, err := courses.CompleteSession(ctx, testUser, c.ID, sessionByKey(c, "J+10").ID, false); err != nil {
		t.Fatalf("CompleteSession 失败: %v", err)
	}
	// 周四：J+1、J+2 已逾期
	env.clock.Advance(72 * time.Hour)

	stats, err := svc.Stats(ctx, testUser)
	if err != nil {
		t.Fatalf("Stats 失败: %v", err)
	}
	if stats.TotalCourses != 1 || stats.TotalSessions != 6 {
		t.Errorf("总数不符合预期: %+v", stats)
	}
	if stats.Completed != 2 || stats.Succeeded != 1 || stats.SuccessRate != 50 {
		t.Errorf("完成统计不符合预期: %+v", stats)
	}
	if stats.PendingHours != 8 {
		t.Errorf("待完成时长期望 8，实际: %g", stats.PendingHours)
	}
	if stats.Overdue != 2 {
		t.Errorf("逾期期望 2，实际: %d", stats.Overdue)
	}
}
