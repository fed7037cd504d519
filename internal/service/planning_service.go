package service

import (
	"context"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/model"
	"j-planner/backend/internal/planner"
	"j-planner/backend/internal/repository"
	"j-planner/backend/pkg/cache"
)

// PlanningService 计划视图与重排业务接口
type PlanningService interface {
	// 手动触发整体重排
	Rebalance(ctx context.Context, userID string) (*dto.RebalanceResponse, error)
	// 本周（按 weekOffset 平移）周一至周日的计划
	WeeklyPlan(ctx context.Context, userID string, weekOffset int) (*dto.WeeklyPlanResponse, error)
	// 今日待完成课时
	Today(ctx context.Context, userID string) (*dto.TodayResponse, error)
	Stats(ctx context.Context, userID string) (*dto.StatsResponse, error)
	ChangeLogs(ctx context.Context, userID string, req *dto.ChangeLogListRequest) ([]dto.ChangeLogResponse, int64, error)
}

type planningService struct {
	*planEngine
}

// NewPlanningService 创建 PlanningService 实例
func NewPlanningService(engine *planEngine) PlanningService {
	return &planningService{planEngine: engine}
}

var frenchWeekdays = [...]string{"Dimanche", "Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi"}

// ════════════════════════════════════════════════════════════
// Rebalance
// ════════════════════════════════════════════════════════════

func (s *planningService) Rebalance(ctx context.Context, userID string) (*dto.RebalanceResponse, error) {
	outcome, err := s.mutate(ctx, userID, func(_ *repository.Repository, _ *planState) (bool, error) {
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(outcome.state.courses))
	for _, c := range outcome.state.courses {
		names[c.CourseID] = c.Name
	}
	resp := &dto.RebalanceResponse{
		Moved:    len(outcome.changes),
		Changes:  make([]dto.SessionChange, 0, len(outcome.changes)),
		Warnings: outcome.warnings,
	}
	for _, ch := range outcome.changes {
		resp.Changes = append(resp.Changes, dto.SessionChange{
			CourseID:    ch.CourseID,
			CourseName:  names[ch.CourseID],
			SessionID:   ch.SessionID,
			IntervalKey: ch.IntervalKey,
			From:        planner.DayKey(ch.From.In(s.loc)),
			To:          planner.DayKey(ch.To.In(s.loc)),
		})
	}
	s.logger.Info("计划已重排", zap.String("user_id", userID), zap.Int("moved", resp.Moved))
	return resp, nil
}

// ════════════════════════════════════════════════════════════
// 周计划 / 今日
// ════════════════════════════════════════════════════════════

// weekStart 本周周一
func weekStart(today time.Time) time.Time {
	shift := (int(today.Weekday()) + 6) % 7
	return planner.AddDays(today, -shift)
}

func (s *planningService) WeeklyPlan(ctx context.Context, userID string, weekOffset int) (*dto.WeeklyPlanResponse, error) {
	today := s.today()
	key := cache.Key(userID, "week", strconv.Itoa(weekOffset), planner.DayKey(today))
	if v, ok := s.cache.Get(key); ok {
		return v.(*dto.WeeklyPlanResponse), nil
	}

	st, err := s.load(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	monday := planner.AddDays(weekStart(today), 7*weekOffset)
	resp := &dto.WeeklyPlanResponse{
		WeekOffset: weekOffset,
		WeekStart:  planner.DayKey(monday),
		WeekEnd:    planner.DayKey(planner.AddDays(monday, 6)),
		Days:       s.planDays(st, monday, 7),
	}
	for _, d := range resp.Days {
		resp.TotalHours += d.TotalHours
	}
	s.cache.Set(key, resp)
	return resp, nil
}

func (s *planningService) Today(ctx context.Context, userID string) (*dto.TodayResponse, error) {
	today := s.today()
	key := cache.Key(userID, "today", planner.DayKey(today))
	if v, ok := s.cache.Get(key); ok {
		return v.(*dto.TodayResponse), nil
	}

	st, err := s.load(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	day := s.planDays(st, today, 1)[0]
	resp := &dto.TodayResponse{
		Date:       day.Date,
		TotalHours: day.TotalHours,
		Sessions:   make([]dto.PlannedSession, 0, len(day.Sessions)),
	}
	for _, ps := range day.Sessions {
		if !ps.Completed {
			resp.Sessions = append(resp.Sessions, ps)
		}
	}
	s.cache.Set(key, resp)
	return resp, nil
}

// planDays 从 from 开始连续 n 天的计划，每天的课时按课程创建顺序计算时段
func (e *planEngine) planDays(st *planState, from time.Time, n int) []dto.DayPlan {
	constraints := e.toPlannerConstraints(st.constraints)

	type daySession struct {
		course  *model.Course
		session *model.StudySession
	}
	byDay := make(map[string][]daySession)
	until := planner.AddDays(from, n)
	for ci := range st.courses {
		c := &st.courses[ci]
		for si := range c.Sessions {
			day := sessionDay(c.Sessions[si].Date, e.loc)
			if day.Before(from) || !day.Before(until) {
				continue
			}
			k := planner.DayKey(day)
			byDay[k] = append(byDay[k], daySession{course: c, session: &c.Sessions[si]})
		}
	}

	days := make([]dto.DayPlan, 0, n)
	for i := 0; i < n; i++ {
		date := planner.AddDays(from, i)
		k := planner.DayKey(date)
		dp := dto.DayPlan{
			Date:        k,
			Weekday:     frenchWeekdays[date.Weekday()],
			IsSunday:    date.Weekday() == time.Sunday,
			Sessions:    []dto.PlannedSession{},
			Constraints: []dto.ConstraintResponse{},
		}

		entries := byDay[k]
		durations := make([]float64, len(entries))
		for j, ds := range entries {
			durations[j] = ds.course.HoursPerDay
		}
		slots := planner.PlanDay(date, durations, st.prefs, constraints)
		for j, ds := range entries {
			sess := ds.session
			label := sess.IntervalLabel
			if label == "" {
				label = planner.LabelFor(sess.IntervalKey)
			}
			dp.Sessions = append(dp.Sessions, dto.PlannedSession{
				SessionID:      sess.SessionID,
				CourseID:       ds.course.CourseID,
				CourseName:     ds.course.Name,
				IntervalKey:    sess.IntervalKey,
				IntervalLabel:  label,
				Hours:          ds.course.HoursPerDay,
				StartTime:      slots[j].Start.Format("15:04"),
				EndTime:        slots[j].End.Format("15:04"),
				Completed:      sess.Completed,
				Success:        sess.Success,
				Rescheduled:    sess.Rescheduled,
				NeedsAttention: sess.NeedsAttention,
			})
			if !sess.Completed {
				dp.TotalHours += ds.course.HoursPerDay
			}
		}

		for ci := range st.constraints {
			if planner.SameDay(dayIn(st.constraints[ci].Date, e.loc), date) {
				dp.Constraints = append(dp.Constraints, toConstraintResponse(&st.constraints[ci]))
			}
		}
		days = append(days, dp)
	}
	return days
}

// ════════════════════════════════════════════════════════════
// 统计 / 变更日志
// ════════════════════════════════════════════════════════════

func (s *planningService) Stats(ctx context.Context, userID string) (*dto.StatsResponse, error) {
	courses, err := s.repo.Course.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询课程失败", zap.Error(err))
		return nil, err
	}
	today := s.today()
	stats := &dto.StatsResponse{TotalCourses: len(courses)}
	for _, c := range courses {
		for _, sess := range c.Sessions {
			stats.TotalSessions++
			if sess.Rescheduled {
				stats.Rescheduled++
			}
			if sess.Completed {
				stats.Completed++
				if sess.Success != nil && *sess.Success {
					stats.Succeeded++
				}
				continue
			}
			stats.PendingHours += c.HoursPerDay
			if sess.NeedsAttention {
				stats.NeedsAttention++
			}
			if sessionDay(sess.Date, s.loc).Before(today) {
				stats.Overdue++
			}
		}
	}
	if stats.Completed > 0 {
		rate := float64(stats.Succeeded) / float64(stats.Completed) * 100
		stats.SuccessRate = math.Round(rate*10) / 10
	}
	return stats, nil
}

func (s *planningService) ChangeLogs(ctx context.Context, userID string, req *dto.ChangeLogListRequest) ([]dto.ChangeLogResponse, int64, error) {
	logs, total, err := s.repo.ChangeLog.ListByUser(ctx, userID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询变更日志失败", zap.Error(err))
		return nil, 0, err
	}
	out := make([]dto.ChangeLogResponse, 0, len(logs))
	for i := range logs {
		out = append(out, toChangeLogResponse(&logs[i], s.loc))
	}
	return out, total, nil
}
