package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"j-planner/backend/config"
	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/model"
	"j-planner/backend/internal/planner"
	"j-planner/backend/internal/repository"
	"j-planner/backend/pkg/cache"
	"j-planner/backend/pkg/webhook"
)

// ── 排程引擎 ──────────────────────────────────────────────
//
// 各业务 Service 共用：
//   - 用户级加锁
//   - 读取课程/占用/偏好并转换为 planner 类型（统一到排程时区零点）
//   - 运行 planner.Rebalance 并在事务内写回差异与变更日志
//   - 提交后失效缓存、推送 webhook
// ─────────────────────────────────────────────────────────────

// 变更类型
const (
	ChangeTypeManualMove = "manual_move"
	ChangeTypeRebalance  = "rebalance"
)

// Clock 当前时间来源，测试中注入固定时间
type Clock func() time.Time

type planEngine struct {
	cfg      *config.PlannerConfig
	repo     *repository.Repository
	registry planner.Registry
	locker   Locker
	cache    *cache.PlanCache
	notifier webhook.Notifier
	now      Clock
	loc      *time.Location
	logger   *zap.Logger
}

// planState 某用户在一次操作中的完整排程输入
type planState struct {
	userID      string
	today       time.Time
	settings    *model.PlannerSettings
	prefs       planner.TimePreferences
	catalog     planner.Catalog
	courses     []model.Course
	constraints []model.Constraint
}

// rebalanceOutcome 一次重排写回后的结果
type rebalanceOutcome struct {
	state    *planState
	changes  []planner.Change
	warnings []dto.PlanWarning
}

func (e *planEngine) today() time.Time {
	return planner.Midnight(e.now().In(e.loc))
}

// withLock 在用户级锁内执行 fn
func (e *planEngine) withLock(ctx context.Context, userID string, fn func() error) error {
	release, err := e.locker.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// ── 偏好与间隔方案 ──

func (e *planEngine) defaultSettings(userID string) *model.PlannerSettings {
	return &model.PlannerSettings{
		UserID:           userID,
		DayStartHour:     e.cfg.DayStartHour,
		DayEndHour:       e.cfg.DayEndHour,
		LunchBreakStart:  e.cfg.LunchBreakStart,
		LunchBreakEnd:    e.cfg.LunchBreakEnd,
		MaxHoursPerDay:   e.cfg.MaxHoursPerDay,
		DistributeEvenly: e.cfg.DistributeEvenly,
		CatalogID:        e.cfg.DefaultCatalog,
	}
}

// loadSettings 读取用户偏好，未保存过时使用配置默认值
func (e *planEngine) loadSettings(ctx context.Context, repo *repository.Repository, userID string) (*model.PlannerSettings, error) {
	s, err := repo.Settings.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return e.defaultSettings(userID), nil
		}
		e.logger.Error("查询排程偏好失败", zap.Error(err))
		return nil, err
	}
	return s, nil
}

// catalogFor 自定义间隔优先，否则按 catalog_id 取注册方案
func (e *planEngine) catalogFor(s *model.PlannerSettings) (planner.Catalog, error) {
	if len(s.CustomIntervals) > 0 {
		return planner.NewCatalog("custom", []int(s.CustomIntervals))
	}
	id := s.CatalogID
	if id == "" {
		id = e.cfg.DefaultCatalog
	}
	return e.registry.Get(id)
}

func prefsFrom(s *model.PlannerSettings) planner.TimePreferences {
	return planner.TimePreferences{
		DayStartHour:     s.DayStartHour,
		DayEndHour:       s.DayEndHour,
		LunchBreakStart:  s.LunchBreakStart,
		LunchBreakEnd:    s.LunchBreakEnd,
		MaxHoursPerDay:   s.MaxHoursPerDay,
		DistributeEvenly: s.DistributeEvenly,
	}
}

// load 读取用户的全部排程输入
func (e *planEngine) load(ctx context.Context, repo *repository.Repository, userID string) (*planState, error) {
	settings, err := e.loadSettings(ctx, repo, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := e.catalogFor(settings)
	if err != nil {
		return nil, err
	}
	courses, err := repo.Course.ListByUser(ctx, userID)
	if err != nil {
		e.logger.Error("查询课程失败", zap.Error(err))
		return nil, err
	}
	constraints, err := repo.Constraint.ListByUser(ctx, userID)
	if err != nil {
		e.logger.Error("查询占用失败", zap.Error(err))
		return nil, err
	}
	return &planState{
		userID:      userID,
		today:       e.today(),
		settings:    settings,
		prefs:       prefsFrom(settings),
		catalog:     catalog,
		courses:     courses,
		constraints: constraints,
	}, nil
}

// rankCatalog 以用户方案的顺序为准，其他方案课程的间隔按偏移追加在后
func (e *planEngine) rankCatalog(st *planState) planner.Catalog {
	var extra []int
	for _, c := range st.courses {
		for _, s := range c.Sessions {
			if st.catalog.Index(s.IntervalKey) >= 0 {
				continue
			}
			if off, ok := planner.ParseIntervalKey(s.IntervalKey); ok {
				extra = append(extra, off)
			}
		}
	}
	return planner.Extend("rank", st.catalog, extra...)
}

// ── 类型转换 ──

// dayIn 把数据库日期（date 列按 UTC 零点读出）映射为排程时区的同一日历日
func dayIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// sessionDay 课时日期存储为排程时区零点的 timestamptz
func sessionDay(t time.Time, loc *time.Location) time.Time {
	return planner.Midnight(t.In(loc))
}

func (e *planEngine) toPlannerCourses(courses []model.Course) []planner.Course {
	out := make([]planner.Course, 0, len(courses))
	for _, c := range courses {
		pc := planner.Course{
			ID:          c.CourseID,
			Name:        c.Name,
			HoursPerDay: c.HoursPerDay,
			CreatedAt:   c.CreatedAt,
			Sessions:    make([]planner.Session, 0, len(c.Sessions)),
		}
		for _, s := range c.Sessions {
			pc.Sessions = append(pc.Sessions, planner.Session{
				ID:             s.SessionID,
				IntervalKey:    s.IntervalKey,
				Date:           sessionDay(s.Date, e.loc),
				OriginalDate:   sessionDay(s.OriginalDate, e.loc),
				Completed:      s.Completed,
				Success:        s.Success,
				Rescheduled:    s.Rescheduled,
				NeedsAttention: s.NeedsAttention,
			})
		}
		out = append(out, pc)
	}
	return out
}

func (e *planEngine) toPlannerConstraints(cs []model.Constraint) []planner.Constraint {
	out := make([]planner.Constraint, 0, len(cs))
	for _, c := range cs {
		out = append(out, planner.Constraint{
			ID:          c.ConstraintID,
			Date:        dayIn(c.Date, e.loc),
			StartHour:   c.StartHour,
			EndHour:     c.EndHour,
			Description: c.Description,
		})
	}
	return out
}

// ── 重排与写回 ──

// rebalance 对 st 运行重排，在 tx 内写回有变化的课时并记录变更日志
// 搜索上限内排不下的课时不视为失败：标记 needs_attention 并以告警返回
func (e *planEngine) rebalance(ctx context.Context, tx *repository.Repository, st *planState) (*rebalanceOutcome, error) {
	result, err := planner.Rebalance(
		e.toPlannerCourses(st.courses),
		e.toPlannerConstraints(st.constraints),
		e.rankCatalog(st),
		st.prefs,
		planner.Options{Today: st.today, MaxSearchDays: e.cfg.MaxSearchDays},
	)
	out := &rebalanceOutcome{}
	if err != nil {
		var exhausted *planner.ExhaustedError
		if !errors.As(err, &exhausted) {
			return nil, err
		}
		out.warnings = e.warningsFor(exhausted)
		e.logger.Warn("部分课时无法排入",
			zap.String("user_id", st.userID),
			zap.Int("count", len(exhausted.Sessions)),
		)
	}
	out.changes = result.Changes

	updated := make(map[string]planner.Session)
	for _, c := range result.Courses {
		for _, s := range c.Sessions {
			updated[s.ID] = s
		}
	}

	var dirty []model.StudySession
	for ci := range st.courses {
		for si := range st.courses[ci].Sessions {
			ms := &st.courses[ci].Sessions[si]
			ps, ok := updated[ms.SessionID]
			if !ok || ms.Completed {
				continue
			}
			if planner.SameDay(sessionDay(ms.Date, e.loc), ps.Date) &&
				ms.Rescheduled == ps.Rescheduled && ms.NeedsAttention == ps.NeedsAttention {
				continue
			}
			ms.Date = ps.Date
			ms.Rescheduled = ps.Rescheduled
			ms.NeedsAttention = ps.NeedsAttention
			dirty = append(dirty, *ms)
		}
	}

	if err := tx.Session.SaveSchedule(ctx, dirty); err != nil {
		e.logger.Error("写回排程失败", zap.Error(err))
		return nil, err
	}
	if err := tx.ChangeLog.BatchCreate(ctx, e.changeLogs(st.userID, ChangeTypeRebalance, out.changes)); err != nil {
		e.logger.Error("写入变更日志失败", zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (e *planEngine) warningsFor(exhausted *planner.ExhaustedError) []dto.PlanWarning {
	warnings := make([]dto.PlanWarning, 0, len(exhausted.Sessions))
	for _, u := range exhausted.Sessions {
		warnings = append(warnings, dto.PlanWarning{
			CourseID:    u.CourseID,
			CourseName:  u.CourseName,
			SessionID:   u.SessionID,
			IntervalKey: u.IntervalKey,
			Date:        planner.DayKey(u.From.In(e.loc)),
			Message:     fmt.Sprintf("%d 天内找不到可用日期，保留原日期，需要手动处理", e.maxSearchDays()),
		})
	}
	return warnings
}

func (e *planEngine) maxSearchDays() int {
	if e.cfg.MaxSearchDays > 0 {
		return e.cfg.MaxSearchDays
	}
	return planner.DefaultMaxSearchDays
}

func (e *planEngine) changeLogs(userID, changeType string, changes []planner.Change) []model.SessionChangeLog {
	logs := make([]model.SessionChangeLog, 0, len(changes))
	for _, c := range changes {
		logs = append(logs, model.SessionChangeLog{
			ChangeLogID: uuid.NewString(),
			UserID:      userID,
			CourseID:    c.CourseID,
			SessionID:   c.SessionID,
			IntervalKey: c.IntervalKey,
			FromDate:    c.From,
			ToDate:      c.To,
			ChangeType:  changeType,
			Detail:      datatypes.JSON(fmt.Sprintf(`{"from":%q,"to":%q}`, planner.DayKey(c.From), planner.DayKey(c.To))),
			CreatedAt:   e.now(),
		})
	}
	return logs
}

// mutate 加锁 → 事务内读取并修改 → 可选重排 → 提交后失效缓存
// fn 返回 true 表示需要在同一事务内重排
func (e *planEngine) mutate(ctx context.Context, userID string, fn func(tx *repository.Repository, st *planState) (bool, error)) (*rebalanceOutcome, error) {
	var outcome *rebalanceOutcome
	err := e.withLock(ctx, userID, func() error {
		return e.repo.Transaction(ctx, func(tx *repository.Repository) error {
			st, err := e.load(ctx, tx, userID)
			if err != nil {
				return err
			}
			doRebalance, err := fn(tx, st)
			if err != nil {
				return err
			}
			if !doRebalance {
				outcome = &rebalanceOutcome{state: st}
				return nil
			}
			outcome, err = e.rebalance(ctx, tx, st)
			if err != nil {
				return err
			}
			outcome.state = st
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	e.cache.InvalidateUser(userID)
	if len(outcome.changes) > 0 {
		e.notify(ctx, userID, webhook.EventPlanningReorganized, map[string]interface{}{
			"moved":    len(outcome.changes),
			"warnings": len(outcome.warnings),
		})
	}
	return outcome, nil
}

func (e *planEngine) notify(ctx context.Context, userID, event string, data interface{}) {
	e.notifier.Notify(ctx, webhook.Event{Type: event, UserID: userID, Timestamp: e.now().UTC(), Data: data})
}

// findCourse 在已加载的课程中按 ID 查找
func (st *planState) findCourse(courseID string) (*model.Course, bool) {
	for i := range st.courses {
		if st.courses[i].CourseID == courseID {
			return &st.courses[i], true
		}
	}
	return nil, false
}

// removeCourse 从内存状态中移除课程
func (st *planState) removeCourse(courseID string) {
	for i := range st.courses {
		if st.courses[i].CourseID == courseID {
			st.courses = append(st.courses[:i], st.courses[i+1:]...)
			return
		}
	}
}
