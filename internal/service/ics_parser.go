package service

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"j-planner/backend/internal/model"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 职责：将 iCalendar (RFC 5545) 中的忙碌事件转为占用时间（type=auto）。
//
//   - DTSTART/DTEND 确定日期与小时范围；开始取整点向下，结束向上取整
//   - 全天事件（VALUE=DATE）与跨天事件按天拆分，中间日为全天占用
//   - RRULE 仅展开 FREQ=DAILY / WEEKLY，其余按单次处理
//   - TRANSP:TRANSPARENT 与 STATUS:CANCELLED 的事件不占用时间
//   - 仅保留 [from, from+horizon) 内的占用
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize    = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout   = 30 * time.Second
	icsHorizonDays    = 365
	icsMaxOccurrences = 1000
	icsDescriptionMax = 200
)

// ConstraintTypeAuto 日历导入生成的占用
const ConstraintTypeAuto = "auto"

// FetchICSContent 从 URL 获取 ICS 内容
func FetchICSContent(rawURL string) (io.ReadCloser, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}

	client := &http.Client{Timeout: icsFetchTimeout}
	resp, err := client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}
	// 限制响应体大小，防止恶意 URL 返回超大内容导致 OOM
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		Closer: resp.Body,
	}, nil
}

// busyEvent 解析中间结构
type busyEvent struct {
	summary string
	start   time.Time
	end     time.Time
	allDay  bool
}

// ICSImportResult 解析结果
type ICSImportResult struct {
	Constraints []model.Constraint
	Skipped     int
	Errors      []string
}

// ParseBusyICS 解析 ICS 并转为占用时间
func ParseBusyICS(reader io.Reader, userID string, loc *time.Location, from time.Time) (*ICSImportResult, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(reader, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrICSInvalid, err)
	}

	horizonEnd := from.AddDate(0, 0, icsHorizonDays)
	result := &ICSImportResult{}
	seen := make(map[string]bool)

	for _, evt := range cal.Events() {
		if !isBusy(evt) {
			result.Skipped++
			continue
		}
		base, err := parseBusyEvent(evt, loc)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, err.Error())
			continue
		}

		occurrences := expandOccurrences(evt, base, loc, horizonEnd)
		kept := 0
		for _, occ := range occurrences {
			for _, c := range splitByDay(occ, loc) {
				day := dayIn(c.Date, loc)
				if day.Before(from) || !day.Before(horizonEnd) {
					continue
				}
				key := fmt.Sprintf("%s|%d|%d|%s", c.Date.Format(dateLayout), c.StartHour, c.EndHour, c.Description)
				if seen[key] {
					continue
				}
				seen[key] = true
				c.ConstraintID = uuid.NewString()
				c.UserID = userID
				result.Constraints = append(result.Constraints, c)
				kept++
			}
		}
		if kept == 0 {
			result.Skipped++
		}
	}
	return result, nil
}

func isBusy(evt *ics.VEvent) bool {
	if p := evt.GetProperty(ics.ComponentPropertyTransp); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		return false
	}
	if p := evt.GetProperty(ics.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		return false
	}
	return true
}

func parseBusyEvent(evt *ics.VEvent, loc *time.Location) (busyEvent, error) {
	summary := "Événement calendrier"
	if p := evt.GetProperty(ics.ComponentPropertySummary); p != nil && strings.TrimSpace(p.Value) != "" {
		summary = strings.TrimSpace(p.Value)
	}
	if len([]rune(summary)) > icsDescriptionMax {
		summary = string([]rune(summary)[:icsDescriptionMax])
	}

	start, allDay, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return busyEvent{}, fmt.Errorf("%s: %w", summary, err)
	}
	end, _, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		// 无 DTEND：全天事件持续一天，其余默认 1 小时
		if allDay {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start.Add(time.Hour)
		}
	}
	if !end.After(start) {
		return busyEvent{}, fmt.Errorf("%s: 结束时间不晚于开始时间", summary)
	}
	return busyEvent{summary: summary, start: start, end: end, allDay: allDay}, nil
}

// expandOccurrences 展开 RRULE，返回所有出现（含首次）
func expandOccurrences(evt *ics.VEvent, base busyEvent, loc *time.Location, horizonEnd time.Time) []busyEvent {
	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		return []busyEvent{base}
	}

	rule := parseRRule(rruleProp.Value)
	step := 0
	switch rule.freq {
	case "DAILY":
		step = 1
	case "WEEKLY":
		step = 7
	default:
		return []busyEvent{base}
	}
	interval := rule.interval
	if interval < 1 {
		interval = 1
	}

	exDates := parseExDates(evt, loc)
	duration := base.end.Sub(base.start)

	var out []busyEvent
	current := base.start
	for count := 0; count < icsMaxOccurrences; count++ {
		if rule.count > 0 && count >= rule.count {
			break
		}
		if !rule.until.IsZero() && current.After(rule.until) {
			break
		}
		if !current.Before(horizonEnd) {
			break
		}
		if !exDates[current.Format("20060102")] {
			out = append(out, busyEvent{summary: base.summary, start: current, end: current.Add(duration), allDay: base.allDay})
		}
		current = current.AddDate(0, 0, step*interval)
	}
	return out
}

// splitByDay 按日历日拆分为占用时间
func splitByDay(e busyEvent, loc *time.Location) []model.Constraint {
	var out []model.Constraint
	day := dayIn(e.start.In(loc), loc)
	for day.Before(e.end) {
		next := day.AddDate(0, 0, 1)
		startHour, endHour := 0, 24
		if !e.allDay {
			if e.start.After(day) {
				startHour = e.start.Hour()
			}
			if e.end.Before(next) {
				endHour = e.end.Hour()
				if e.end.Minute() > 0 || e.end.Second() > 0 {
					endHour++
				}
			}
		}
		if endHour > startHour {
			out = append(out, model.Constraint{
				Date:        dateColumn(day),
				StartHour:   startHour,
				EndHour:     endHour,
				Description: e.summary,
				Type:        ConstraintTypeAuto,
			})
		}
		day = next
	}
	return out
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;COUNT=16;INTERVAL=1）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			fmt.Sscanf(kv[1], "%d", &r.interval)
		case "COUNT":
			fmt.Sscanf(kv[1], "%d", &r.count)
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", kv[1])
			if err != nil {
				t, _ = time.Parse("20060102", kv[1])
				t = t.Add(24*time.Hour - time.Second)
			}
			r.until = t
		}
	}
	return r
}

// parseExDates 解析事件中所有 EXDATE
func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		for _, v := range strings.Split(prop.Value, ",") {
			t, err := time.Parse("20060102T150405Z", v)
			if err == nil {
				t = t.In(loc)
			} else if t, err = time.ParseInLocation("20060102T150405", v, loc); err != nil {
				t, err = time.ParseInLocation("20060102", v, loc)
			}
			if err == nil {
				exDates[t.Format("20060102")] = true
			}
		}
	}
	return exDates
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性，返回是否为全天值
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, bool, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("缺少属性 %s", propName)
	}
	val := prop.Value

	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}

	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t.In(loc), false, nil
	}
	if t, err := time.Parse("20060102T150405", val); err == nil {
		zone := loc
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				zone = tzLoc
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, zone).In(loc), false, nil
	}
	if t, err := time.Parse("20060102", val); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true, nil
	}
	return time.Time{}, false, fmt.Errorf("无法解析日期: %s", val)
}
