package command

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnknownCommand = errors.New("无法识别的指令")
	ErrMoveFormat     = errors.New("移动指令格式无法识别")
	ErrDeleteFormat   = errors.New("删除指令格式无法识别")
	ErrInvalidDate    = errors.New("日期无效")
	ErrInvalidHours   = errors.New("时间范围无效")
)

const defaultCourseName = "Nouveau cours"

const defaultConstraintDescription = "Contrainte personnelle"

var monthNames = map[string]time.Month{
	"janvier": time.January, "février": time.February, "fevrier": time.February,
	"mars": time.March, "avril": time.April, "mai": time.May, "juin": time.June,
	"juillet": time.July, "août": time.August, "aout": time.August,
	"septembre": time.September, "octobre": time.October, "novembre": time.November,
	"décembre": time.December, "decembre": time.December,
}

const monthAlt = `janvier|février|fevrier|mars|avril|mai|juin|juillet|août|aout|septembre|octobre|novembre|décembre|decembre`

var (
	moveRe = regexp.MustCompile(`(?i)d[ée]placer\s+(?:le\s+)?(?:cours\s+)?(.+?)\s+(j\+?\d+)\s+du\s+(\d{1,2}/\d{1,2}(?:/\d{2,4})?)\s+au\s+(\d{1,2}/\d{1,2}(?:/\d{2,4})?)`)

	deleteSessionRe = regexp.MustCompile(`(?i)(?:supprimer|effacer|retirer)\s+(?:la\s+)?(?:session\s+)?(j\+?\d+)\s+(?:de\s+|du\s+cours\s+|du\s+)?([^,.\n]+)`)
	deleteCourseRe  = regexp.MustCompile(`(?i)(?:supprimer|effacer|retirer)\s+(?:le\s+cours\s+|le\s+|cours\s+)?([^,.\n]+)`)

	numericDateRe = regexp.MustCompile(`(?:le\s*)?\b(\d{1,2})[/\-](\d{1,2})(?:[/\-](\d{2,4}))?\b`)
	namedDateRe   = regexp.MustCompile(`(?i)(?:le\s*)?\b(\d{1,2})\s*(` + monthAlt + `)`)

	startNumericRe = regexp.MustCompile(`(?i)(?:démarrage|demarrage|début|debut|commencer|partir|depuis\s*le)\s*(?:du\s*|le\s*)?(\d{1,2})[/\-](\d{1,2})(?:[/\-](\d{2,4}))?`)
	startNamedRe   = regexp.MustCompile(`(?i)(?:démarrage|demarrage|début|debut|commencer|partir|depuis\s*le)\s*(?:du\s*|le\s*)?(\d{1,2})\s*(` + monthAlt + `)`)
	startTailRe    = regexp.MustCompile(`(?i)\s*(?:,\s*)?(?:démarrage|demarrage|début|debut|commencer|à\s*partir|a\s*partir|partir|depuis).*$`)

	rangeRe   = regexp.MustCompile(`(?i)(?:de\s*)?\b(\d{1,2})\s*h?(?:\d{2})?\s*(?:à|a|jusqu'à|jusqu'a|-)\s*(\d{1,2})\s*h`)
	betweenRe = regexp.MustCompile(`(?i)entre\s*(\d{1,2})\s*h?\s*et\s*(\d{1,2})\s*h?`)
	singleRe  = regexp.MustCompile(`(?i)\b(\d{1,2})h(?:\d{2})?`)

	hoursRe      = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:heures?|h\b)`)
	courseNameRe = regexp.MustCompile(`(?i)ajouter\s+(?:le\s+cours\s+|cours\s+)?(.*?)\s+avec\s+\d`)
	subjectRe    = regexp.MustCompile(`(?i)((?:anatomie|physiologie|pharmacologie|pathologie|histologie|biochimie)[^,.\n]*)`)
	hoursTailRe  = regexp.MustCompile(`(?i)\s*(?:avec\s*)?\d+(?:[.,]\d+)?\s*(?:heures?|h\b).*$`)

	intervalRe = regexp.MustCompile(`(?i)^j\+?(\d+)$`)
)

// Parse 解析一条聊天指令
//
// now 用于补全缺省年份与缺省日期。判断顺序与关键词重叠有关：
// 移动 → 删除 → 列出占用 → 新增占用 → 新增课程 → 周计划 → 今日 → 帮助。
func Parse(message string, now time.Time) (Command, error) {
	msg := strings.TrimSpace(message)
	lower := strings.ToLower(msg)

	switch {
	case containsAny(lower, "déplacer", "deplacer"):
		return parseMove(msg, now)

	case containsAny(lower, "supprimer", "effacer", "retirer"):
		return parseDelete(msg, lower)

	case strings.Contains(lower, "contraintes") ||
		(strings.Contains(lower, "liste") && containsAny(lower, "rdv", "rendez-vous")):
		return ListConstraints{}, nil

	case containsAny(lower, "contrainte", "empêche", "rendez-vous", "rdv", "occupation", "indisponible"):
		return parseConstraint(msg, lower, now)

	case containsAny(lower, "ajouter", "nouveau cours"):
		return parseAddCourse(msg, now)

	case strings.Contains(lower, "planning") && containsAny(lower, "semaine", "hebdo"):
		offset := 0
		if strings.Contains(lower, "prochaine") {
			offset = 1
		} else if strings.Contains(lower, "dernière") || strings.Contains(lower, "derniere") {
			offset = -1
		}
		return WeeklyPlan{WeekOffset: offset}, nil

	case strings.Contains(lower, "planning") || strings.Contains(lower, "aujourd"):
		return TodayPlan{}, nil

	case containsAny(lower, "aide", "help"):
		return Help{}, nil
	}

	return nil, ErrUnknownCommand
}

// ── 移动 ──

func parseMove(msg string, now time.Time) (Command, error) {
	m := moveRe.FindStringSubmatch(msg)
	if m == nil {
		return nil, ErrMoveFormat
	}
	from, err := parseSlashDate(m[3], now)
	if err != nil {
		return nil, err
	}
	to, err := parseSlashDate(m[4], now)
	if err != nil {
		return nil, err
	}
	return MoveSession{
		CourseName:  strings.TrimSpace(m[1]),
		IntervalKey: NormalizeIntervalKey(m[2]),
		From:        from,
		To:          to,
	}, nil
}

// ── 删除 ──

func parseDelete(msg, lower string) (Command, error) {
	if strings.Contains(lower, "tous") && containsAny(lower, "cours", "tout") {
		return DeleteAllCourses{}, nil
	}
	if m := deleteSessionRe.FindStringSubmatch(msg); m != nil {
		return DeleteSession{
			IntervalKey: NormalizeIntervalKey(m[1]),
			CourseName:  strings.TrimSpace(m[2]),
		}, nil
	}
	if m := deleteCourseRe.FindStringSubmatch(msg); m != nil {
		name := strings.TrimSpace(m[1])
		if name != "" {
			return DeleteCourse{Name: name}, nil
		}
	}
	return nil, ErrDeleteFormat
}

// ── 占用 ──

func parseConstraint(msg, lower string, now time.Time) (Command, error) {
	date, found, err := findDate(msg, now)
	if err != nil {
		return nil, err
	}
	if !found {
		date = midnight(now)
	}

	// 去掉日期片段，避免 "22/09 à 9h" 被当成时间段
	rest := namedDateRe.ReplaceAllString(numericDateRe.ReplaceAllString(msg, " "), " ")

	start, end := 0, 24
	if m := rangeRe.FindStringSubmatch(rest); m != nil {
		start, _ = strconv.Atoi(m[1])
		end, _ = strconv.Atoi(m[2])
	} else if m := betweenRe.FindStringSubmatch(rest); m != nil {
		start, _ = strconv.Atoi(m[1])
		end, _ = strconv.Atoi(m[2])
	} else if m := singleRe.FindStringSubmatch(rest); m != nil {
		start, _ = strconv.Atoi(m[1])
		end = start + 1
	}

	if containsAny(lower, "toute la journée", "toute la journee", "journée complète", "journee complete", "toute la matinée") {
		start, end = 0, 24
	}
	if start < 0 || start > 23 || end > 24 || end <= start {
		return nil, fmt.Errorf("%w: %dh-%dh", ErrInvalidHours, start, end)
	}

	return AddConstraint{
		Date:        date,
		StartHour:   start,
		EndHour:     end,
		Description: describeConstraint(lower),
	}, nil
}

func describeConstraint(lower string) string {
	switch {
	case containsAny(lower, "médical", "medical"):
		return "Rendez-vous médical"
	case containsAny(lower, "rendez-vous", "rdv"):
		return "Rendez-vous"
	case strings.Contains(lower, "formation"):
		return "Formation"
	case containsAny(lower, "voyage", "déplacement", "deplacement"):
		return "Voyage/Déplacement"
	}
	return defaultConstraintDescription
}

// ── 新增课程 ──

func parseAddCourse(msg string, now time.Time) (Command, error) {
	hours := 1.0
	if m := hoursRe.FindStringSubmatch(msg); m != nil {
		if v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64); err == nil && v > 0 {
			hours = v
		}
	}

	start := midnight(now)
	if m := startNumericRe.FindStringSubmatch(msg); m != nil {
		d, err := buildDate(m[1], m[2], m[3], now)
		if err != nil {
			return nil, err
		}
		start = d
	} else if m := startNamedRe.FindStringSubmatch(msg); m != nil {
		d, err := buildNamedDate(m[1], m[2], now)
		if err != nil {
			return nil, err
		}
		start = d
	}

	name := defaultCourseName
	if m := courseNameRe.FindStringSubmatch(msg); m != nil {
		if n := strings.TrimSpace(startTailRe.ReplaceAllString(m[1], "")); n != "" {
			name = n
		}
	} else if m := subjectRe.FindStringSubmatch(msg); m != nil {
		name = strings.TrimSpace(hoursTailRe.ReplaceAllString(startTailRe.ReplaceAllString(m[1], ""), ""))
	}

	return AddCourse{Name: name, HoursPerDay: hours, StartDate: start}, nil
}

// ── 日期工具 ──

// NormalizeIntervalKey j+10 / J10 / j0 → J+10 / J+10 / J0
func NormalizeIntervalKey(raw string) string {
	m := intervalRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return strings.ToUpper(raw)
	}
	n, _ := strconv.Atoi(m[1])
	if n == 0 {
		return "J0"
	}
	return "J+" + strconv.Itoa(n)
}

func findDate(msg string, now time.Time) (time.Time, bool, error) {
	if m := numericDateRe.FindStringSubmatch(msg); m != nil {
		d, err := buildDate(m[1], m[2], m[3], now)
		return d, true, err
	}
	if m := namedDateRe.FindStringSubmatch(msg); m != nil {
		d, err := buildNamedDate(m[1], m[2], now)
		return d, true, err
	}
	return time.Time{}, false, nil
}

func parseSlashDate(s string, now time.Time) (time.Time, error) {
	parts := strings.Split(s, "/")
	year := ""
	if len(parts) == 3 {
		year = parts[2]
	}
	return buildDate(parts[0], parts[1], year, now)
}

func buildDate(dayStr, monthStr, yearStr string, now time.Time) (time.Time, error) {
	d, _ := strconv.Atoi(dayStr)
	m, _ := strconv.Atoi(monthStr)
	y := now.Year()
	if yearStr != "" {
		y, _ = strconv.Atoi(yearStr)
		if y < 100 {
			y += 2000
		}
	}
	return validDate(y, time.Month(m), d, now.Location())
}

func buildNamedDate(dayStr, monthName string, now time.Time) (time.Time, error) {
	d, _ := strconv.Atoi(dayStr)
	m, ok := monthNames[strings.ToLower(monthName)]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDate, monthName)
	}
	return validDate(now.Year(), m, d, now.Location())
}

func validDate(y int, m time.Month, d int, loc *time.Location) (time.Time, error) {
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if t.Year() != y || t.Month() != m || t.Day() != d {
		return time.Time{}, fmt.Errorf("%w: %02d/%02d/%d", ErrInvalidDate, d, int(m), y)
	}
	return t, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
