package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"j-planner/backend/internal/command"
	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/model"
	"j-planner/backend/internal/planner"
	"j-planner/backend/internal/repository"
)

// CommandService 聊天指令分发
type CommandService interface {
	Execute(ctx context.Context, userID string, req *dto.CommandRequest) (*dto.CommandResponse, error)
}

type commandService struct {
	repo        *repository.Repository
	courses     CourseService
	constraints ConstraintService
	planning    PlanningService
	engine      *planEngine
	logger      *zap.Logger
}

// NewCommandService 创建 CommandService 实例
func NewCommandService(engine *planEngine, courses CourseService, constraints ConstraintService, planning PlanningService) CommandService {
	return &commandService{
		repo:        engine.repo,
		courses:     courses,
		constraints: constraints,
		planning:    planning,
		engine:      engine,
		logger:      engine.logger,
	}
}

func (s *commandService) Execute(ctx context.Context, userID string, req *dto.CommandRequest) (*dto.CommandResponse, error) {
	cmd, err := command.Parse(req.Message, s.engine.now().In(s.engine.loc))
	if err != nil {
		return nil, err
	}

	s.logger.Debug("执行聊天指令", zap.String("user_id", userID), zap.String("kind", string(cmd.Kind())))

	switch c := cmd.(type) {
	case command.AddCourse:
		return s.addCourse(ctx, userID, c)
	case command.AddConstraint:
		return s.addConstraint(ctx, userID, c)
	case command.MoveSession:
		return s.moveSession(ctx, userID, c)
	case command.DeleteCourse:
		return s.deleteCourse(ctx, userID, c)
	case command.DeleteAllCourses:
		resp, err := s.courses.DeleteAll(ctx, userID)
		if err != nil {
			return nil, err
		}
		return reply(c.Kind(), fmt.Sprintf("%d cours supprimé(s).", resp.Deleted), resp), nil
	case command.DeleteSession:
		return s.deleteSession(ctx, userID, c)
	case command.ListConstraints:
		list, err := s.constraints.List(ctx, userID, nil)
		if err != nil {
			return nil, err
		}
		return reply(c.Kind(), describeConstraints(list), list), nil
	case command.WeeklyPlan:
		plan, err := s.planning.WeeklyPlan(ctx, userID, c.WeekOffset)
		if err != nil {
			return nil, err
		}
		return reply(c.Kind(), describeWeek(plan), plan), nil
	case command.TodayPlan:
		today, err := s.planning.Today(ctx, userID)
		if err != nil {
			return nil, err
		}
		return reply(c.Kind(), describeToday(today), today), nil
	default:
		return reply(command.KindHelp, "Commandes disponibles :\n"+command.HelpText, nil), nil
	}
}

func reply(kind command.Kind, text string, data interface{}) *dto.CommandResponse {
	return &dto.CommandResponse{Kind: string(kind), Reply: text, Data: data}
}

// ── 各指令 ──

func (s *commandService) addCourse(ctx context.Context, userID string, c command.AddCourse) (*dto.CommandResponse, error) {
	resp, err := s.courses.Create(ctx, userID, &dto.CreateCourseRequest{
		Name:        c.Name,
		HoursPerDay: c.HoursPerDay,
		StartDate:   planner.DayKey(c.StartDate),
	})
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Cours « %s » ajouté : %d sessions de %gh planifiées à partir du %s.",
		resp.Course.Name, resp.Course.Total, resp.Course.HoursPerDay, frenchDay(c.StartDate.Format(dateLayout)))
	out := reply(c.Kind(), text, resp.Course)
	out.Warnings = resp.Warnings
	return out, nil
}

func (s *commandService) addConstraint(ctx context.Context, userID string, c command.AddConstraint) (*dto.CommandResponse, error) {
	start, end := c.StartHour, c.EndHour
	resp, err := s.constraints.Add(ctx, userID, &dto.CreateConstraintRequest{
		Date:        planner.DayKey(c.Date),
		StartHour:   &start,
		EndHour:     &end,
		Description: c.Description,
	})
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Contrainte « %s » ajoutée le %s de %dh à %dh. Planning réorganisé.",
		resp.Constraint.Description, frenchDay(resp.Constraint.Date), start, end)
	if resp.Constraint.FullDay {
		text = fmt.Sprintf("Contrainte « %s » ajoutée le %s (toute la journée). Planning réorganisé.",
			resp.Constraint.Description, frenchDay(resp.Constraint.Date))
	}
	out := reply(c.Kind(), text, resp.Constraint)
	out.Warnings = resp.Warnings
	return out, nil
}

func (s *commandService) moveSession(ctx context.Context, userID string, c command.MoveSession) (*dto.CommandResponse, error) {
	course, err := s.courseByName(ctx, userID, c.CourseName)
	if err != nil {
		return nil, err
	}
	sess := findSession(course, c.IntervalKey, planner.DayKey(c.From), s.engine)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	moved, err := s.courses.MoveSession(ctx, userID, course.CourseID, sess.SessionID, planner.DayKey(c.To))
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Session %s de « %s » déplacée au %s.", c.IntervalKey, course.Name, frenchDay(moved.Date))
	return reply(c.Kind(), text, moved), nil
}

func (s *commandService) deleteCourse(ctx context.Context, userID string, c command.DeleteCourse) (*dto.CommandResponse, error) {
	course, err := s.courseByName(ctx, userID, c.Name)
	if err != nil {
		return nil, err
	}
	resp, err := s.courses.Delete(ctx, userID, course.CourseID, false)
	if err != nil {
		return nil, err
	}
	return reply(c.Kind(), fmt.Sprintf("Cours « %s » supprimé.", course.Name), resp), nil
}

func (s *commandService) deleteSession(ctx context.Context, userID string, c command.DeleteSession) (*dto.CommandResponse, error) {
	course, err := s.courseByName(ctx, userID, c.CourseName)
	if err != nil {
		return nil, err
	}
	sess := findSession(course, c.IntervalKey, "", s.engine)
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	resp, err := s.courses.DeleteSession(ctx, userID, course.CourseID, sess.SessionID, false)
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Session %s de « %s » supprimée.", c.IntervalKey, course.Name)
	if resp.CourseRemoved {
		text += " C'était la dernière session : le cours a été supprimé."
	}
	return reply(c.Kind(), text, resp), nil
}

func (s *commandService) courseByName(ctx context.Context, userID, name string) (*model.Course, error) {
	course, err := s.repo.Course.GetByName(ctx, userID, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.Error(err))
		return nil, err
	}
	return course, nil
}

// findSession 按间隔查找课时；day 非空时优先匹配当天的课时
func findSession(course *model.Course, intervalKey, day string, e *planEngine) *model.StudySession {
	var fallback *model.StudySession
	for i := range course.Sessions {
		sess := &course.Sessions[i]
		if !strings.EqualFold(sess.IntervalKey, intervalKey) {
			continue
		}
		if day == "" || planner.DayKey(sessionDay(sess.Date, e.loc)) == day {
			return sess
		}
		if fallback == nil {
			fallback = sess
		}
	}
	return fallback
}

// ── 回复文本 ──

func frenchDay(date string) string {
	if len(date) != len(dateLayout) {
		return date
	}
	return date[8:10] + "/" + date[5:7] + "/" + date[0:4]
}

func describeConstraints(list []dto.ConstraintResponse) string {
	if len(list) == 0 {
		return "Aucune contrainte enregistrée."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d contrainte(s) :", len(list))
	for _, c := range list {
		if c.FullDay {
			fmt.Fprintf(&b, "\n- %s : %s (toute la journée)", frenchDay(c.Date), c.Description)
		} else {
			fmt.Fprintf(&b, "\n- %s : %s de %dh à %dh", frenchDay(c.Date), c.Description, c.StartHour, c.EndHour)
		}
	}
	return b.String()
}

func describeWeek(plan *dto.WeeklyPlanResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Planning du %s au %s (%gh à faire) :", frenchDay(plan.WeekStart), frenchDay(plan.WeekEnd), plan.TotalHours)
	for _, d := range plan.Days {
		if d.IsSunday {
			fmt.Fprintf(&b, "\n%s %s : repos", d.Weekday, frenchDay(d.Date))
			continue
		}
		if len(d.Sessions) == 0 {
			fmt.Fprintf(&b, "\n%s %s : libre", d.Weekday, frenchDay(d.Date))
			continue
		}
		fmt.Fprintf(&b, "\n%s %s :", d.Weekday, frenchDay(d.Date))
		for _, ps := range d.Sessions {
			mark := ""
			if ps.Completed {
				mark = " ✓"
			}
			fmt.Fprintf(&b, "\n  %s-%s %s (%s)%s", ps.StartTime, ps.EndTime, ps.CourseName, ps.IntervalKey, mark)
		}
	}
	return b.String()
}

func describeToday(t *dto.TodayResponse) string {
	if len(t.Sessions) == 0 {
		return "Rien de prévu aujourd'hui."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Aujourd'hui (%s), %gh de révision :", frenchDay(t.Date), t.TotalHours)
	for _, ps := range t.Sessions {
		fmt.Fprintf(&b, "\n- %s-%s %s (%s)", ps.StartTime, ps.EndTime, ps.CourseName, ps.IntervalLabel)
	}
	return b.String()
}
