package planner

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultMaxSearchDays 单个课时最多向后搜索的天数（约 10 年）
const DefaultMaxSearchDays = 3650

// capacityEpsilon 吸收小数小时累加误差
const capacityEpsilon = 1e-9

var ErrSchedulingExhausted = errors.New("在搜索上限内找不到可用日期")

// Options 单次重排参数
type Options struct {
	Today         time.Time
	MaxSearchDays int
}

// Unplaced 未能排入的课时
type Unplaced struct {
	CourseID    string
	CourseName  string
	SessionID   string
	IntervalKey string
	From        time.Time
}

// ExhaustedError 携带所有未排入的课时
type ExhaustedError struct {
	Sessions []Unplaced
}

func (e *ExhaustedError) Error() string {
	keys := make([]string, 0, len(e.Sessions))
	for _, u := range e.Sessions {
		keys = append(keys, u.CourseName+" "+u.IntervalKey)
	}
	return fmt.Sprintf("%s: %s", ErrSchedulingExhausted.Error(), strings.Join(keys, ", "))
}

func (e *ExhaustedError) Unwrap() error { return ErrSchedulingExhausted }

// Change 一次日期变更
type Change struct {
	CourseID    string
	SessionID   string
	IntervalKey string
	From        time.Time
	To          time.Time
}

// Result 重排结果
type Result struct {
	Courses []Course
	Changes []Change
}

type pendingRef struct {
	course   int
	session  int
	original time.Time
	rank     int
	hours    float64
}

// Rebalance 对所有未完成课时重新分配日期
//
// 贪心、确定性：按 originalDate 升序、目录顺序、输入顺序依次放置，
// 跳过周日、冲突日与超出每日上限的日期。已完成课时不动也不计入容量。
// 输入不会被修改。存在无法放置的课时时，其余课时照常排入，
// 同时返回结果与 *ExhaustedError。
func Rebalance(courses []Course, constraints []Constraint, catalog Catalog, prefs TimePreferences, opts Options) (*Result, error) {
	out := cloneCourses(courses)
	maxDays := opts.MaxSearchDays
	if maxDays <= 0 {
		maxDays = DefaultMaxSearchDays
	}
	today := Midnight(opts.Today)

	var pending []pendingRef
	for ci, c := range out {
		for si, s := range c.Sessions {
			if s.Completed {
				continue
			}
			rank := catalog.Index(s.IntervalKey)
			if rank < 0 {
				rank = len(catalog.Intervals)
			}
			pending = append(pending, pendingRef{
				course:   ci,
				session:  si,
				original: Midnight(s.OriginalDate),
				rank:     rank,
				hours:    c.HoursPerDay,
			})
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		if !pending[i].original.Equal(pending[j].original) {
			return pending[i].original.Before(pending[j].original)
		}
		return pending[i].rank < pending[j].rank
	})

	result := &Result{Courses: out}
	dailyHours := make(map[string]float64)
	var unplaced []Unplaced

	for _, p := range pending {
		course := &out[p.course]
		s := &course.Sessions[p.session]

		candidate := p.original
		if candidate.Before(today) {
			candidate = today
		}

		placed := false
		for step := 0; step <= maxDays; step++ {
			if candidate.Weekday() == time.Sunday {
				candidate = AddDays(candidate, 1)
				continue
			}
			if HasConflict(candidate, p.hours, constraints, prefs) {
				candidate = AddDays(candidate, 1)
				continue
			}
			key := DayKey(candidate)
			if dailyHours[key]+p.hours <= prefs.MaxHoursPerDay+capacityEpsilon {
				dailyHours[key] += p.hours
				placed = true
				break
			}
			candidate = AddDays(candidate, 1)
		}

		if !placed {
			s.NeedsAttention = true
			unplaced = append(unplaced, Unplaced{
				CourseID:    course.ID,
				CourseName:  course.Name,
				SessionID:   s.ID,
				IntervalKey: s.IntervalKey,
				From:        s.Date,
			})
			continue
		}

		if !SameDay(s.Date, candidate) {
			result.Changes = append(result.Changes, Change{
				CourseID:    course.ID,
				SessionID:   s.ID,
				IntervalKey: s.IntervalKey,
				From:        s.Date,
				To:          candidate,
			})
		}
		s.Date = candidate
		s.Rescheduled = !SameDay(candidate, s.OriginalDate)
		s.NeedsAttention = false
	}

	if len(unplaced) > 0 {
		return result, &ExhaustedError{Sessions: unplaced}
	}
	return result, nil
}

func cloneCourses(courses []Course) []Course {
	out := make([]Course, len(courses))
	for i, c := range courses {
		out[i] = c
		out[i].Sessions = make([]Session, len(c.Sessions))
		for j, s := range c.Sessions {
			if s.Success != nil {
				v := *s.Success
				s.Success = &v
			}
			out[i].Sessions[j] = s
		}
	}
	return out
}
