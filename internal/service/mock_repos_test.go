package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"j-planner/backend/internal/model"
	"j-planner/backend/internal/repository"
	pkgerrors "j-planner/backend/pkg/errors"
)

// ── Mock 数据存储 ──
// 课程与课时共用一份存储，模拟课时随课程读写

type mockStore struct {
	users       map[string]*model.User // key: user_id 或 "email:"+email
	courses     map[string]*model.Course
	constraints map[string]*model.Constraint
	settings    map[string]*model.PlannerSettings
	changeLogs  []model.SessionChangeLog
}

func newMockStore() *mockStore {
	return &mockStore{
		users:       make(map[string]*model.User),
		courses:     make(map[string]*model.Course),
		constraints: make(map[string]*model.Constraint),
		settings:    make(map[string]*model.PlannerSettings),
	}
}

// newMockRepository 组装未绑定数据库的聚合，Transaction 直接执行回调
func newMockRepository(store *mockStore) *repository.Repository {
	return &repository.Repository{
		User:       &mockUserRepo{store: store},
		Course:     &mockCourseRepo{store: store},
		Session:    &mockSessionRepo{store: store},
		Constraint: &mockConstraintRepo{store: store},
		Settings:   &mockSettingsRepo{store: store},
		ChangeLog:  &mockChangeLogRepo{store: store},
	}
}

func cloneCourse(c *model.Course) model.Course {
	out := *c
	out.Sessions = make([]model.StudySession, len(c.Sessions))
	copy(out.Sessions, c.Sessions)
	return out
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	store *mockStore
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = "test-user-" + user.Email
	}
	m.store.users[user.UserID] = user
	m.store.users["email:"+user.Email] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.store.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := m.store.users["email:"+strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.store.users[user.UserID] = user
	m.store.users["email:"+user.Email] = user
	return nil
}

// ── Mock CourseRepository ──

type mockCourseRepo struct {
	store *mockStore
}

func (m *mockCourseRepo) Create(_ context.Context, course *model.Course) error {
	c := cloneCourse(course)
	m.store.courses[course.CourseID] = &c
	return nil
}

func (m *mockCourseRepo) GetByID(_ context.Context, userID, courseID string) (*model.Course, error) {
	c, ok := m.store.courses[courseID]
	if !ok || c.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	out := cloneCourse(c)
	return &out, nil
}

func (m *mockCourseRepo) GetByName(_ context.Context, userID, name string) (*model.Course, error) {
	for _, c := range m.list(userID) {
		if strings.EqualFold(c.Name, name) {
			out := c
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCourseRepo) ListByUser(_ context.Context, userID string) ([]model.Course, error) {
	return m.list(userID), nil
}

func (m *mockCourseRepo) list(userID string) []model.Course {
	var out []model.Course
	for _, c := range m.store.courses {
		if c.UserID == userID {
			out = append(out, cloneCourse(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CourseID < out[j].CourseID
	})
	return out
}

func (m *mockCourseRepo) Update(_ context.Context, course *model.Course) error {
	stored, ok := m.store.courses[course.CourseID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != course.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.Name = course.Name
	stored.HoursPerDay = course.HoursPerDay
	stored.Description = course.Description
	stored.Version++
	course.Version = stored.Version
	return nil
}

func (m *mockCourseRepo) Delete(_ context.Context, userID, courseID string) error {
	c, ok := m.store.courses[courseID]
	if !ok || c.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(m.store.courses, courseID)
	return nil
}

func (m *mockCourseRepo) DeleteAllByUser(_ context.Context, userID string) (int64, error) {
	var n int64
	for id, c := range m.store.courses {
		if c.UserID == userID {
			delete(m.store.courses, id)
			n++
		}
	}
	return n, nil
}

// ── Mock SessionRepository ──

type mockSessionRepo struct {
	store *mockStore
}

func (m *mockSessionRepo) find(sessionID string) (*model.Course, int) {
	for _, c := range m.store.courses {
		for i := range c.Sessions {
			if c.Sessions[i].SessionID == sessionID {
				return c, i
			}
		}
	}
	return nil, -1
}

func (m *mockSessionRepo) SaveSchedule(_ context.Context, sessions []model.StudySession) error {
	for _, s := range sessions {
		c, i := m.find(s.SessionID)
		if c == nil {
			continue
		}
		c.Sessions[i].Date = s.Date
		c.Sessions[i].Rescheduled = s.Rescheduled
		c.Sessions[i].NeedsAttention = s.NeedsAttention
	}
	return nil
}

func (m *mockSessionRepo) UpdateCompletion(_ context.Context, session *model.StudySession) error {
	c, i := m.find(session.SessionID)
	if c == nil {
		return gorm.ErrRecordNotFound
	}
	c.Sessions[i].Completed = session.Completed
	c.Sessions[i].Success = session.Success
	c.Sessions[i].CompletedAt = session.CompletedAt
	return nil
}

func (m *mockSessionRepo) Delete(_ context.Context, userID, sessionID string) error {
	c, i := m.find(sessionID)
	if c == nil || c.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	c.Sessions = append(c.Sessions[:i], c.Sessions[i+1:]...)
	return nil
}

// ── Mock ConstraintRepository ──

type mockConstraintRepo struct {
	store *mockStore
}

func (m *mockConstraintRepo) Create(_ context.Context, c *model.Constraint) error {
	cc := *c
	m.store.constraints[c.ConstraintID] = &cc
	return nil
}

func (m *mockConstraintRepo) BatchCreate(ctx context.Context, cs []model.Constraint) error {
	for i := range cs {
		_ = m.Create(ctx, &cs[i])
	}
	return nil
}

func (m *mockConstraintRepo) GetByID(_ context.Context, userID, id string) (*model.Constraint, error) {
	c, ok := m.store.constraints[id]
	if !ok || c.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	out := *c
	return &out, nil
}

func (m *mockConstraintRepo) ListByUser(_ context.Context, userID string) ([]model.Constraint, error) {
	var out []model.Constraint
	for _, c := range m.store.constraints {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartHour < out[j].StartHour
	})
	return out, nil
}

func (m *mockConstraintRepo) ListByUserBetween(ctx context.Context, userID string, from, to time.Time) ([]model.Constraint, error) {
	all, _ := m.ListByUser(ctx, userID)
	var out []model.Constraint
	for _, c := range all {
		if !c.Date.Before(from) && c.Date.Before(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockConstraintRepo) Delete(_ context.Context, userID, id string) error {
	c, ok := m.store.constraints[id]
	if !ok || c.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(m.store.constraints, id)
	return nil
}

func (m *mockConstraintRepo) DeleteAllByUser(_ context.Context, userID string) error {
	for id, c := range m.store.constraints {
		if c.UserID == userID {
			delete(m.store.constraints, id)
		}
	}
	return nil
}

// ── Mock SettingsRepository ──

type mockSettingsRepo struct {
	store *mockStore
}

func (m *mockSettingsRepo) Get(_ context.Context, userID string) (*model.PlannerSettings, error) {
	if s, ok := m.store.settings[userID]; ok {
		out := *s
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSettingsRepo) Upsert(_ context.Context, s *model.PlannerSettings) error {
	out := *s
	m.store.settings[s.UserID] = &out
	return nil
}

// ── Mock ChangeLogRepository ──

type mockChangeLogRepo struct {
	store *mockStore
}

func (m *mockChangeLogRepo) BatchCreate(_ context.Context, logs []model.SessionChangeLog) error {
	m.store.changeLogs = append(m.store.changeLogs, logs...)
	return nil
}

func (m *mockChangeLogRepo) ListByUser(_ context.Context, userID string, offset, limit int) ([]model.SessionChangeLog, int64, error) {
	var all []model.SessionChangeLog
	for _, l := range m.store.changeLogs {
		if l.UserID == userID {
			all = append(all, l)
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}
