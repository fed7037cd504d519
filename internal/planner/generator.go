package planner

import "time"

// IDFunc 生成课时 ID
type IDFunc func() string

// GenerateSessions 按目录为新课程生成初始课时
//
// 起始日为周日时整体后移一天；单个课时落在周日时顺延到周一。
// 返回顺序与目录顺序一致。
func GenerateSessions(startDate time.Time, catalog Catalog, newID IDFunc) []Session {
	start := Midnight(startDate)
	if start.Weekday() == time.Sunday {
		start = AddDays(start, 1)
	}

	sessions := make([]Session, 0, len(catalog.Intervals))
	for _, iv := range catalog.Intervals {
		date := AddDays(start, iv.OffsetDays)
		bumped := false
		if date.Weekday() == time.Sunday {
			date = AddDays(date, 1)
			bumped = true
		}
		sessions = append(sessions, Session{
			ID:           newID(),
			IntervalKey:  iv.Key,
			Date:         date,
			OriginalDate: date,
			Rescheduled:  bumped && iv.OffsetDays > 0,
		})
	}
	return sessions
}
