package service

import (
	"time"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/model"
	"j-planner/backend/internal/planner"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = time.RFC3339
)

func toSessionResponse(s *model.StudySession, loc *time.Location) dto.SessionResponse {
	label := s.IntervalLabel
	if label == "" {
		label = planner.LabelFor(s.IntervalKey)
	}
	return dto.SessionResponse{
		ID:             s.SessionID,
		CourseID:       s.CourseID,
		IntervalKey:    s.IntervalKey,
		IntervalLabel:  label,
		Date:           s.Date.In(loc).Format(dateLayout),
		OriginalDate:   s.OriginalDate.In(loc).Format(dateLayout),
		Completed:      s.Completed,
		Success:        s.Success,
		Rescheduled:    s.Rescheduled,
		NeedsAttention: s.NeedsAttention,
	}
}

func toCourseResponse(c *model.Course, loc *time.Location) *dto.CourseResponse {
	resp := &dto.CourseResponse{
		ID:          c.CourseID,
		Name:        c.Name,
		HoursPerDay: c.HoursPerDay,
		StartDate:   c.StartDate.Format(dateLayout),
		CatalogID:   c.CatalogID,
		Description: c.Description,
		Version:     c.Version,
		Total:       len(c.Sessions),
		Sessions:    make([]dto.SessionResponse, 0, len(c.Sessions)),
		CreatedAt:   c.CreatedAt.In(loc).Format(dateTimeLayout),
	}
	for i := range c.Sessions {
		if c.Sessions[i].Completed {
			resp.Completed++
		}
		resp.Sessions = append(resp.Sessions, toSessionResponse(&c.Sessions[i], loc))
	}
	return resp
}

func toConstraintResponse(c *model.Constraint) dto.ConstraintResponse {
	return dto.ConstraintResponse{
		ID:          c.ConstraintID,
		Date:        c.Date.Format(dateLayout),
		StartHour:   c.StartHour,
		EndHour:     c.EndHour,
		FullDay:     c.StartHour == 0 && c.EndHour == 24,
		Description: c.Description,
		Type:        c.Type,
	}
}

func toIntervals(c planner.Catalog) []dto.Interval {
	out := make([]dto.Interval, 0, len(c.Intervals))
	for _, iv := range c.Intervals {
		out = append(out, dto.Interval{Key: iv.Key, OffsetDays: iv.OffsetDays, Label: iv.Label})
	}
	return out
}

func toSettingsResponse(s *model.PlannerSettings, catalog planner.Catalog) dto.SettingsResponse {
	return dto.SettingsResponse{
		DayStartHour:     s.DayStartHour,
		DayEndHour:       s.DayEndHour,
		LunchBreakStart:  s.LunchBreakStart,
		LunchBreakEnd:    s.LunchBreakEnd,
		MaxHoursPerDay:   s.MaxHoursPerDay,
		DistributeEvenly: s.DistributeEvenly,
		CatalogID:        s.CatalogID,
		CustomIntervals:  []int(s.CustomIntervals),
		Intervals:        toIntervals(catalog),
	}
}

func toChangeLogResponse(l *model.SessionChangeLog, loc *time.Location) dto.ChangeLogResponse {
	return dto.ChangeLogResponse{
		ID:          l.ChangeLogID,
		CourseID:    l.CourseID,
		SessionID:   l.SessionID,
		IntervalKey: l.IntervalKey,
		FromDate:    l.FromDate.In(loc).Format(dateLayout),
		ToDate:      l.ToDate.In(loc).Format(dateLayout),
		ChangeType:  l.ChangeType,
		CreatedAt:   l.CreatedAt.In(loc).Format(dateTimeLayout),
	}
}

// parseDay 解析 YYYY-MM-DD 为排程时区零点
func parseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, loc)
}

// dateColumn date 列写入值：保留日历日，时区无关
func dateColumn(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
