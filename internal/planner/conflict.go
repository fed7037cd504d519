package planner

import "time"

// HasConflict 判断某日从 dayStart 起持续 duration 小时是否与占用冲突
//
// 只按日判断：课时一律假定从工作日开始时间起算，与实际排入的时段无关。
func HasConflict(date time.Time, durationHours float64, constraints []Constraint, prefs TimePreferences) bool {
	sessionStart := float64(prefs.DayStartHour)
	sessionEnd := sessionStart + durationHours

	for _, c := range constraints {
		if !SameDay(c.Date, date) {
			continue
		}
		if c.FullDay() {
			return true
		}
		if overlaps(sessionStart, sessionEnd, float64(c.StartHour), float64(c.EndHour)) {
			return true
		}
	}
	return false
}

// ConstraintsOn 筛选某日的占用
func ConstraintsOn(date time.Time, constraints []Constraint) []Constraint {
	var out []Constraint
	for _, c := range constraints {
		if SameDay(c.Date, date) {
			out = append(out, c)
		}
	}
	return out
}

// overlaps 半开区间 [aStart,aEnd) 与 [bStart,bEnd) 是否相交
func overlaps(aStart, aEnd, bStart, bEnd float64) bool {
	return !(aEnd <= bStart || aStart >= bEnd)
}
