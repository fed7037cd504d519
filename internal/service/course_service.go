package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/model"
	"j-planner/backend/internal/planner"
	"j-planner/backend/internal/repository"
	"j-planner/backend/pkg/webhook"
)

// ── 课程模块业务错误 ──

var (
	ErrCourseNotFound   = errors.New("课程不存在")
	ErrSessionNotFound  = errors.New("课时不存在")
	ErrSessionCompleted = errors.New("已完成的课时不可移动")
	ErrMoveToSunday     = errors.New("周日不安排复习")
	ErrMoveConflict     = errors.New("目标日期与占用时间冲突")
	ErrInvalidDate      = errors.New("日期格式无效，应为 YYYY-MM-DD")
	ErrInvalidCatalog   = errors.New("间隔方案无效")
)

// CourseService 课程与课时业务接口
type CourseService interface {
	// 创建课程：生成课时后对全部课程重排
	Create(ctx context.Context, userID string, req *dto.CreateCourseRequest) (*dto.CourseMutationResponse, error)
	List(ctx context.Context, userID string) ([]dto.CourseResponse, error)
	Get(ctx context.Context, userID, courseID string) (*dto.CourseResponse, error)
	// 修改课程；时长变化时重排
	Update(ctx context.Context, userID, courseID string, req *dto.UpdateCourseRequest) (*dto.CourseMutationResponse, error)
	Delete(ctx context.Context, userID, courseID string, rebalance bool) (*dto.DeleteResponse, error)
	DeleteAll(ctx context.Context, userID string) (*dto.DeleteResponse, error)
	// 删除课时；删除最后一个课时时课程一并删除
	DeleteSession(ctx context.Context, userID, courseID, sessionID string, rebalance bool) (*dto.DeleteResponse, error)
	// 标记完成，冻结该课时，不触发重排
	CompleteSession(ctx context.Context, userID, courseID, sessionID string, success bool) (*dto.SessionResponse, error)
	// 手动移动课时，不触发重排
	MoveSession(ctx context.Context, userID, courseID, sessionID, date string) (*dto.SessionResponse, error)
}

type courseService struct {
	*planEngine
}

// NewCourseService 创建 CourseService 实例
func NewCourseService(engine *planEngine) CourseService {
	return &courseService{planEngine: engine}
}

// ════════════════════════════════════════════════════════════
// Create
// ════════════════════════════════════════════════════════════

func (s *courseService) Create(ctx context.Context, userID string, req *dto.CreateCourseRequest) (*dto.CourseMutationResponse, error) {
	start := s.today()
	if req.StartDate != "" {
		d, err := parseDay(req.StartDate, s.loc)
		if err != nil {
			return nil, ErrInvalidDate
		}
		start = d
	}

	var courseID string
	outcome, err := s.mutate(ctx, userID, func(tx *repository.Repository, st *planState) (bool, error) {
		catalog := st.catalog
		if req.CatalogID != "" {
			c, err := s.registry.Get(req.CatalogID)
			if err != nil {
				return false, fmt.Errorf("%w: %s", ErrInvalidCatalog, req.CatalogID)
			}
			catalog = c
		}

		course := s.buildCourse(userID, req.Name, req.HoursPerDay, req.Description, start, catalog)
		if err := tx.Course.Create(ctx, course); err != nil {
			s.logger.Error("创建课程失败", zap.Error(err))
			return false, err
		}
		courseID = course.CourseID
		st.courses = append(st.courses, *course)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	course, _ := outcome.state.findCourse(courseID)
	s.notify(ctx, userID, webhook.EventCourseAdded, map[string]interface{}{
		"course_id":     course.CourseID,
		"name":          course.Name,
		"hours_per_day": course.HoursPerDay,
		"sessions":      len(course.Sessions),
	})
	s.logger.Info("课程已创建", zap.String("user_id", userID), zap.String("course_id", courseID))

	return &dto.CourseMutationResponse{
		Course:   toCourseResponse(course, s.loc),
		Warnings: outcome.warnings,
	}, nil
}

// buildCourse 生成课程及初始课时
func (e *planEngine) buildCourse(userID, name string, hours float64, description string, start time.Time, catalog planner.Catalog) *model.Course {
	course := &model.Course{
		CourseID:    uuid.NewString(),
		UserID:      userID,
		Name:        name,
		HoursPerDay: hours,
		StartDate:   dateColumn(start),
		CatalogID:   catalog.ID,
		Description: description,
	}
	course.CreatedAt = e.now()
	course.UpdatedAt = course.CreatedAt
	course.Version = 1

	for i, ps := range planner.GenerateSessions(start, catalog, uuid.NewString) {
		course.Sessions = append(course.Sessions, model.StudySession{
			SessionID:     ps.ID,
			CourseID:      course.CourseID,
			UserID:        userID,
			IntervalKey:   ps.IntervalKey,
			IntervalLabel: planner.LabelFor(ps.IntervalKey),
			Position:      i,
			Date:          ps.Date,
			OriginalDate:  ps.OriginalDate,
			Rescheduled:   ps.Rescheduled,
		})
	}
	return course
}

// ════════════════════════════════════════════════════════════
// 查询
// ════════════════════════════════════════════════════════════

func (s *courseService) List(ctx context.Context, userID string) ([]dto.CourseResponse, error) {
	courses, err := s.repo.Course.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询课程失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.CourseResponse, 0, len(courses))
	for i := range courses {
		out = append(out, *toCourseResponse(&courses[i], s.loc))
	}
	return out, nil
}

func (s *courseService) Get(ctx context.Context, userID, courseID string) (*dto.CourseResponse, error) {
	course, err := s.repo.Course.GetByID(ctx, userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		s.logger.Error("查询课程失败", zap.Error(err))
		return nil, err
	}
	return toCourseResponse(course, s.loc), nil
}

// ════════════════════════════════════════════════════════════
// Update
// ════════════════════════════════════════════════════════════

func (s *courseService) Update(ctx context.Context, userID, courseID string, req *dto.UpdateCourseRequest) (*dto.CourseMutationResponse, error) {
	outcome, err := s.mutate(ctx, userID, func(tx *repository.Repository, st *planState) (bool, error) {
		course, ok := st.findCourse(courseID)
		if !ok {
			return false, ErrCourseNotFound
		}
		hoursChanged := false
		if req.Name != nil {
			course.Name = *req.Name
		}
		if req.Description != nil {
			course.Description = *req.Description
		}
		if req.HoursPerDay != nil && *req.HoursPerDay != course.HoursPerDay {
			course.HoursPerDay = *req.HoursPerDay
			hoursChanged = true
		}
		// 客户端持有的版本号参与乐观锁比较
		course.Version = req.Version
		if err := tx.Course.Update(ctx, course); err != nil {
			return false, err
		}
		return hoursChanged, nil
	})
	if err != nil {
		return nil, err
	}
	course, _ := outcome.state.findCourse(courseID)
	return &dto.CourseMutationResponse{
		Course:   toCourseResponse(course, s.loc),
		Warnings: outcome.warnings,
	}, nil
}

// ════════════════════════════════════════════════════════════
// 删除
// ════════════════════════════════════════════════════════════

func (s *courseService) Delete(ctx context.Context, userID, courseID string, rebalance bool) (*dto.DeleteResponse, error) {
	outcome, err := s.mutate(ctx, userID, func(tx *repository.Repository, st *planState) (bool, error) {
		if _, ok := st.findCourse(courseID); !ok {
			return false, ErrCourseNotFound
		}
		if err := tx.Course.Delete(ctx, userID, courseID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, ErrCourseNotFound
			}
			s.logger.Error("删除课程失败", zap.Error(err))
			return false, err
		}
		st.removeCourse(courseID)
		return rebalance, nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.DeleteResponse{Deleted: 1, CourseRemoved: true, Warnings: outcome.warnings}, nil
}

func (s *courseService) DeleteAll(ctx context.Context, userID string) (*dto.DeleteResponse, error) {
	var deleted int64
	_, err := s.mutate(ctx, userID, func(tx *repository.Repository, st *planState) (bool, error) {
		n, err := tx.Course.DeleteAllByUser(ctx, userID)
		if err != nil {
			s.logger.Error("删除全部课程失败", zap.Error(err))
			return false, err
		}
		deleted = n
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.DeleteResponse{Deleted: deleted, CourseRemoved: deleted > 0}, nil
}

func (s *courseService) DeleteSession(ctx context.Context, userID, courseID, sessionID string, rebalance bool) (*dto.DeleteResponse, error) {
	removed := false
	outcome, err := s.mutate(ctx, userID, func(tx *repository.Repository, st *planState) (bool, error) {
		course, ok := st.findCourse(courseID)
		if !ok {
			return false, ErrCourseNotFound
		}
		idx := sessionIndex(course, sessionID)
		if idx < 0 {
			return false, ErrSessionNotFound
		}

		if len(course.Sessions) == 1 {
			if err := tx.Course.Delete(ctx, userID, courseID); err != nil {
				s.logger.Error("删除课程失败", zap.Error(err))
				return false, err
			}
			st.removeCourse(courseID)
			removed = true
			return rebalance, nil
		}

		if err := tx.Session.Delete(ctx, userID, sessionID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, ErrSessionNotFound
			}
			s.logger.Error("删除课时失败", zap.Error(err))
			return false, err
		}
		course.Sessions = append(course.Sessions[:idx], course.Sessions[idx+1:]...)
		return rebalance, nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.DeleteResponse{Deleted: 1, CourseRemoved: removed, Warnings: outcome.warnings}, nil
}

func sessionIndex(course *model.Course, sessionID string) int {
	for i := range course.Sessions {
		if course.Sessions[i].SessionID == sessionID {
			return i
		}
	}
	return -1
}

// ════════════════════════════════════════════════════════════
// 完成 / 移动
// ════════════════════════════════════════════════════════════

func (s *courseService) CompleteSession(ctx context.Context, userID, courseID, sessionID string, success bool) (*dto.SessionResponse, error) {
	var result *model.StudySession
	_, err := s.mutate(ctx, userID, func(tx *repository.Repository, st *planState) (bool, error) {
		course, ok := st.findCourse(courseID)
		if !ok {
			return false, ErrCourseNotFound
		}
		idx := sessionIndex(course, sessionID)
		if idx < 0 {
			return false, ErrSessionNotFound
		}
		ms := &course.Sessions[idx]
		now := s.now()
		ms.Completed = true
		ms.Success = &success
		ms.CompletedAt = &now
		if err := tx.Session.UpdateCompletion(ctx, ms); err != nil {
			s.logger.Error("更新课时完成状态失败", zap.Error(err))
			return false, err
		}
		result = ms
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	resp := toSessionResponse(result, s.loc)
	return &resp, nil
}

func (s *courseService) MoveSession(ctx context.Context, userID, courseID, sessionID, date string) (*dto.SessionResponse, error) {
	target, err := parseDay(date, s.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}

	var result *model.StudySession
	_, err = s.mutate(ctx, userID, func(tx *repository.Repository, st *planState) (bool, error) {
		course, ok := st.findCourse(courseID)
		if !ok {
			return false, ErrCourseNotFound
		}
		idx := sessionIndex(course, sessionID)
		if idx < 0 {
			return false, ErrSessionNotFound
		}
		ms := &course.Sessions[idx]
		if err := s.checkMoveTarget(ms, course.HoursPerDay, target, st); err != nil {
			return false, err
		}

		from := sessionDay(ms.Date, s.loc)
		ms.Date = target
		ms.Rescheduled = true
		ms.NeedsAttention = false
		if err := tx.Session.SaveSchedule(ctx, []model.StudySession{*ms}); err != nil {
			s.logger.Error("移动课时失败", zap.Error(err))
			return false, err
		}
		logs := s.changeLogs(userID, ChangeTypeManualMove, []planner.Change{{
			CourseID: courseID, SessionID: sessionID, IntervalKey: ms.IntervalKey, From: from, To: target,
		}})
		if err := tx.ChangeLog.BatchCreate(ctx, logs); err != nil {
			s.logger.Error("写入变更日志失败", zap.Error(err))
			return false, err
		}
		result = ms
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	resp := toSessionResponse(result, s.loc)
	return &resp, nil
}

// checkMoveTarget 已完成、周日、与占用冲突的目标一律拒绝
func (s *courseService) checkMoveTarget(ms *model.StudySession, hours float64, target time.Time, st *planState) error {
	if ms.Completed {
		return ErrSessionCompleted
	}
	if target.Weekday() == time.Sunday {
		return ErrMoveToSunday
	}
	if planner.HasConflict(target, hours, s.toPlannerConstraints(st.constraints), st.prefs) {
		return ErrMoveConflict
	}
	return nil
}
