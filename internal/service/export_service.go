package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/planner"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoSessions   = errors.New("没有待完成的课时可导出")
	ErrExportGenerateFail = errors.New("生成导出文件失败")
)

// icsDefaultStartHour 未算出时段时的默认开始时间
const icsDefaultStartHour = 9

var icsCategories = []string{"EDUCATION", "MEDICAL", "REVISION"}

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置响应头后写入 Response
type ExportService interface {
	// WeeklyPlanXLSX 周计划导出为 Excel
	WeeklyPlanXLSX(ctx context.Context, userID string, weekOffset int) (*bytes.Buffer, string, error)
	// SessionsICS 待完成课时导出为 iCalendar，每个课时带两个提醒
	SessionsICS(ctx context.Context, userID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	*planEngine
}

// NewExportService 创建 ExportService 实例
func NewExportService(engine *planEngine) ExportService {
	return &exportService{planEngine: engine}
}

// ═══════════════════════════════════════════════════════════
// WeeklyPlanXLSX
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 标题行：Planning semaine du <周一> au <周日>
//   - 表头：Jour | Date | Horaire | Cours | Intervalle | Heures | Statut
//   - 每个课时一行；无课时的日期输出一行 "-"
//   - 末行合计未完成时长

func (s *exportService) WeeklyPlanXLSX(ctx context.Context, userID string, weekOffset int) (*bytes.Buffer, string, error) {
	st, err := s.load(ctx, s.repo, userID)
	if err != nil {
		return nil, "", err
	}
	monday := planner.AddDays(weekStart(s.today()), 7*weekOffset)
	days := s.planDays(st, monday, 7)

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Planning"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	headers := []string{"Jour", "Date", "Horaire", "Cours", "Intervalle", "Heures", "Statut"}
	widths := []float64{12, 12, 14, 28, 22, 8, 14}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	title := fmt.Sprintf("Planning semaine du %s au %s", days[0].Date, days[len(days)-1].Date)
	f.SetCellValue(sheetName, "A1", title)
	f.MergeCell(sheetName, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	row := 2
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), row), h)
	}
	f.SetCellStyle(sheetName, cell("A", row), cell(colName(len(headers)-1), row), headerStyle)

	// 数据行
	row = 3
	total := 0.0
	for _, d := range days {
		if len(d.Sessions) == 0 {
			f.SetCellValue(sheetName, cell("A", row), d.Weekday)
			f.SetCellValue(sheetName, cell("B", row), d.Date)
			f.SetCellValue(sheetName, cell("C", row), "-")
			row++
			continue
		}
		for _, ps := range d.Sessions {
			f.SetCellValue(sheetName, cell("A", row), d.Weekday)
			f.SetCellValue(sheetName, cell("B", row), d.Date)
			f.SetCellValue(sheetName, cell("C", row), ps.StartTime+"-"+ps.EndTime)
			f.SetCellValue(sheetName, cell("D", row), ps.CourseName)
			f.SetCellValue(sheetName, cell("E", row), ps.IntervalLabel)
			f.SetCellValue(sheetName, cell("F", row), ps.Hours)
			f.SetCellValue(sheetName, cell("G", row), sessionStatus(ps))
			row++
		}
		total += d.TotalHours
	}
	f.SetCellValue(sheetName, cell("E", row), "Total à faire")
	f.SetCellValue(sheetName, cell("F", row), total)

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	return buf, fmt.Sprintf("planning_%s.xlsx", days[0].Date), nil
}

func sessionStatus(ps dto.PlannedSession) string {
	switch {
	case ps.Completed && ps.Success != nil && *ps.Success:
		return "Réussie"
	case ps.Completed:
		return "Terminée"
	case ps.NeedsAttention:
		return "À vérifier"
	case ps.Rescheduled:
		return "Reportée"
	default:
		return "À faire"
	}
}

// ═══════════════════════════════════════════════════════════
// SessionsICS
// ═══════════════════════════════════════════════════════════
//
// 每个待完成课时一个 VEVENT，时间取当天计算出的时段；
// 提醒为开始前 1 小时与 30 分钟。

func (s *exportService) SessionsICS(ctx context.Context, userID string) (*bytes.Buffer, string, error) {
	st, err := s.load(ctx, s.repo, userID)
	if err != nil {
		return nil, "", err
	}

	first, last, ok := pendingRange(st, s.loc)
	if !ok {
		return nil, "", ErrExportNoSessions
	}
	days := s.planDays(st, first, int(last.Sub(first).Hours()/24+0.5)+1)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//J-Planner//Planning de revision//FR")
	cal.SetXWRCalName("J-Planner")
	cal.SetXWRTimezone(s.loc.String())

	stamp := s.now().UTC()
	count := 0
	for _, d := range days {
		day, _ := parseDay(d.Date, s.loc)
		for _, ps := range d.Sessions {
			if ps.Completed {
				continue
			}
			start, end := eventWindow(day, ps, s.loc)

			evt := cal.AddEvent(ps.SessionID + "@j-planner")
			evt.SetDtStampTime(stamp)
			evt.SetStartAt(start)
			evt.SetEndAt(end)
			evt.SetSummary(fmt.Sprintf("Révision %s - %s", ps.CourseName, ps.IntervalLabel))
			evt.SetDescription(fmt.Sprintf("Cours : %s\nIntervalle : %s\nDurée : %gh", ps.CourseName, ps.IntervalLabel, ps.Hours))
			evt.SetStatus(ics.ObjectStatusConfirmed)
			for _, c := range icsCategories {
				evt.AddCategory(c)
			}
			for _, trigger := range []string{"-PT1H", "-PT30M"} {
				alarm := evt.AddAlarm()
				alarm.SetAction(ics.ActionDisplay)
				alarm.SetTrigger(trigger)
				alarm.SetDescription("Rappel : révision " + ps.CourseName)
			}
			count++
		}
	}
	if count == 0 {
		return nil, "", ErrExportNoSessions
	}

	buf := new(bytes.Buffer)
	if err := cal.SerializeTo(buf); err != nil {
		s.logger.Error("写入 ICS 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	return buf, fmt.Sprintf("j-planner_%s.ics", planner.DayKey(s.today())), nil
}

// pendingRange 未完成课时的最早与最晚日期
func pendingRange(st *planState, loc *time.Location) (time.Time, time.Time, bool) {
	var first, last time.Time
	found := false
	for _, c := range st.courses {
		for _, sess := range c.Sessions {
			if sess.Completed {
				continue
			}
			d := sessionDay(sess.Date, loc)
			if !found || d.Before(first) {
				first = d
			}
			if !found || d.After(last) {
				last = d
			}
			found = true
		}
	}
	return first, last, found
}

// eventWindow 时段解析失败时退回 09:00 开始
func eventWindow(day time.Time, ps dto.PlannedSession, loc *time.Location) (time.Time, time.Time) {
	duration := time.Duration(ps.Hours * float64(time.Hour))
	if t, err := time.ParseInLocation("15:04", ps.StartTime, loc); err == nil {
		start := time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc)
		return start, start.Add(duration)
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), icsDefaultStartHour, 0, 0, 0, loc)
	return start, start.Add(duration)
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
