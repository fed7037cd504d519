package planner

import (
	"sort"
	"time"
)

// slotStep 顺序模式下的扫描步长（分钟）
const slotStep = 30

// Slot 某课时在当天的起止时间
type Slot struct {
	Start time.Time
	End   time.Time
}

// ComputeSlot 计算单个课时在当天的起止时间
//
// 均分模式：可用时长（扣除午休）按当天课时数等分，落在午休内则推到午休结束。
// 顺序模式：以 30 分钟为步长寻找第一个不与午休、已排课时重叠的起点。
// 之后若与当天占用重叠则推到占用结束，超出下班时间则回退到 dayEnd-duration。
func ComputeSlot(date time.Time, durationHours float64, index, total int, prefs TimePreferences, constraints []Constraint, placed []Slot) Slot {
	dayStart := prefs.DayStartHour * 60
	dayEnd := prefs.DayEndHour * 60
	lunchStart := prefs.LunchBreakStart * 60
	lunchEnd := prefs.LunchBreakEnd * 60
	duration := int(durationHours*60 + 0.5)
	base := Midnight(date)

	var start int
	if prefs.DistributeEvenly && total > 1 {
		window := dayEnd - dayStart - (lunchEnd - lunchStart)
		slotSize := window / total
		start = dayStart + index*slotSize
		if start >= lunchStart && start < lunchEnd {
			start = lunchEnd
		}
	} else {
		start = dayStart
		busy := placedMinutes(base, placed)
		for cand := dayStart; cand+duration <= dayEnd; cand += slotStep {
			if overlapsMinutes(cand, cand+duration, lunchStart, lunchEnd) {
				continue
			}
			free := true
			for _, b := range busy {
				if overlapsMinutes(cand, cand+duration, b[0], b[1]) {
					free = false
					break
				}
			}
			if free {
				start = cand
				break
			}
		}
	}

	sameDay := ConstraintsOn(base, constraints)
	sort.SliceStable(sameDay, func(i, j int) bool { return sameDay[i].StartHour < sameDay[j].StartHour })
	for _, c := range sameDay {
		cStart, cEnd := c.StartHour*60, c.EndHour*60
		if overlapsMinutes(start, start+duration, cStart, cEnd) && cEnd > start {
			start = cEnd
		}
	}

	if start+duration > dayEnd {
		start = dayEnd - duration
	}

	return Slot{
		Start: atMinute(base, start),
		End:   atMinute(base, start+duration),
	}
}

// atMinute 当天第 minute 分钟的墙上时间，夏令时切换日也按钟面计算
func atMinute(day time.Time, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, day.Location())
}

func clockMinutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// PlanDay 依次为同一天的课时计算时段，前面的结果作为后面的已排时段
func PlanDay(date time.Time, durations []float64, prefs TimePreferences, constraints []Constraint) []Slot {
	slots := make([]Slot, 0, len(durations))
	for i, d := range durations {
		slots = append(slots, ComputeSlot(date, d, i, len(durations), prefs, constraints, slots))
	}
	return slots
}

func placedMinutes(base time.Time, placed []Slot) [][2]int {
	out := make([][2]int, 0, len(placed))
	for _, p := range placed {
		if !SameDay(p.Start, base) {
			continue
		}
		end := clockMinutes(p.End)
		if !SameDay(p.End, base) {
			end = 24 * 60
		}
		out = append(out, [2]int{clockMinutes(p.Start), end})
	}
	return out
}

func overlapsMinutes(aStart, aEnd, bStart, bEnd int) bool {
	return !(aEnd <= bStart || aStart >= bEnd)
}
