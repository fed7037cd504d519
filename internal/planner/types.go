package planner

import "time"

// ── 排程核心数据结构 ──────────────────────────────────────
//
// planner 包是纯计算层：不做 I/O，不读全局配置，所有输入显式传入。
// 调用方（service 层）负责把所有日期统一到同一个时区的零点。
// ─────────────────────────────────────────────────────────────

// Session 单次复习课时
type Session struct {
	ID             string
	IntervalKey    string
	Date           time.Time
	OriginalDate   time.Time
	Completed      bool
	Success        *bool
	Rescheduled    bool
	NeedsAttention bool
}

// Course 课程，所有课时共用同一时长
type Course struct {
	ID          string
	Name        string
	HoursPerDay float64
	CreatedAt   time.Time
	Sessions    []Session
}

// Constraint 占用时间（按日匹配）
type Constraint struct {
	ID          string
	Date        time.Time
	StartHour   int
	EndHour     int
	Description string
}

// FullDay 0-24 视为全天占用
func (c Constraint) FullDay() bool {
	return c.StartHour == 0 && c.EndHour == 24
}

// TimePreferences 工作时段与每日上限
type TimePreferences struct {
	DayStartHour     int
	DayEndHour       int
	LunchBreakStart  int
	LunchBreakEnd    int
	MaxHoursPerDay   float64
	DistributeEvenly bool
}

// DefaultTimePreferences 默认 9:00-19:00，午休 13:00-14:00，每日 9 小时
func DefaultTimePreferences() TimePreferences {
	return TimePreferences{
		DayStartHour:    9,
		DayEndHour:      19,
		LunchBreakStart: 13,
		LunchBreakEnd:   14,
		MaxHoursPerDay:  9,
	}
}

// ── 日期工具 ──

// Midnight 截断到所在时区的零点
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay 按日历日比较（各自时区）
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DayKey 日期键 YYYY-MM-DD
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// AddDays 按日历日偏移，跨夏令时不漂移
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}
