// Package command 将聊天式文本指令解析为带类型的命令
//
// 解析器只负责文本 → 命令，不接触排程与存储；
// 命令由 service.CommandService 分发到具体业务操作。
package command

import "time"

// Kind 命令类型
type Kind string

const (
	KindAddCourse        Kind = "add_course"
	KindAddConstraint    Kind = "add_constraint"
	KindMoveSession      Kind = "move_session"
	KindDeleteCourse     Kind = "delete_course"
	KindDeleteAllCourses Kind = "delete_all_courses"
	KindDeleteSession    Kind = "delete_session"
	KindListConstraints  Kind = "list_constraints"
	KindWeeklyPlan       Kind = "weekly_plan"
	KindTodayPlan        Kind = "today_plan"
	KindHelp             Kind = "help"
)

// Command 已解析的命令
type Command interface {
	Kind() Kind
}

// AddCourse "Ajouter Anatomie avec 2 heures par jour début le 15/09"
type AddCourse struct {
	Name        string
	HoursPerDay float64
	StartDate   time.Time
}

// AddConstraint "Rendez-vous médical le 12 mars de 14h à 16h"
type AddConstraint struct {
	Date        time.Time
	StartHour   int
	EndHour     int
	Description string
}

// MoveSession "Déplacer cours Anatomie J+10 du 16/09 au 19/09"
type MoveSession struct {
	CourseName  string
	IntervalKey string
	From        time.Time
	To          time.Time
}

// DeleteCourse "Supprimer le cours Anatomie"
type DeleteCourse struct {
	Name string
}

// DeleteAllCourses "Supprimer tous les cours"
type DeleteAllCourses struct{}

// DeleteSession "Supprimer session J+7 de Physiologie"
type DeleteSession struct {
	IntervalKey string
	CourseName  string
}

// ListConstraints "Mes contraintes"
type ListConstraints struct{}

// WeeklyPlan "Planning de la semaine" / "Planning de la semaine prochaine"
type WeeklyPlan struct {
	WeekOffset int
}

// TodayPlan "Planning aujourd'hui"
type TodayPlan struct{}

// Help "Aide"
type Help struct{}

func (AddCourse) Kind() Kind        { return KindAddCourse }
func (AddConstraint) Kind() Kind    { return KindAddConstraint }
func (MoveSession) Kind() Kind      { return KindMoveSession }
func (DeleteCourse) Kind() Kind     { return KindDeleteCourse }
func (DeleteAllCourses) Kind() Kind { return KindDeleteAllCourses }
func (DeleteSession) Kind() Kind    { return KindDeleteSession }
func (ListConstraints) Kind() Kind  { return KindListConstraints }
func (WeeklyPlan) Kind() Kind       { return KindWeeklyPlan }
func (TodayPlan) Kind() Kind        { return KindTodayPlan }
func (Help) Kind() Kind             { return KindHelp }

// HelpText 支持的指令示例
const HelpText = `Ajouter Anatomie avec 2 heures par jour début le 15/09
Rendez-vous médical le 12 mars de 14h à 16h
Contrainte le 20/09 toute la journée
Déplacer cours Anatomie J+10 du 16/09 au 19/09
Supprimer le cours Anatomie
Supprimer session J+7 de Physiologie
Supprimer tous les cours
Mes contraintes
Planning de la semaine
Planning aujourd'hui`
