package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/model"
	"j-planner/backend/internal/planner"
	"j-planner/backend/internal/repository"
	"j-planner/backend/pkg/storage"
	"j-planner/backend/pkg/webhook"
)

// ── 备份模块业务错误 ──

var (
	ErrInvalidBackup  = errors.New("导入文件格式无效")
	ErrBackupVersion  = errors.New("不支持的导出文件版本")
	ErrBackupDisabled = errors.New("未启用备份存储")
	ErrBackupNotFound = errors.New("备份不存在")
	ErrBackupTooLarge = errors.New("导入数据量超出限制")
)

const maxImportedCourses = 500

// BackupStorage 备份对象存储
type BackupStorage interface {
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// BackupService 导入导出与备份业务接口
type BackupService interface {
	// Export 导出用户全部课程、占用与偏好
	Export(ctx context.Context, userID string) (*dto.ExportDocument, error)
	// Import 在一个事务内替换用户数据并重排
	Import(ctx context.Context, userID string, doc *dto.ExportDocument) (*dto.ImportResponse, error)
	Backup(ctx context.Context, userID string) (*dto.BackupResponse, error)
	ListBackups(ctx context.Context, userID string) ([]dto.BackupResponse, error)
	Restore(ctx context.Context, userID, key string) (*dto.ImportResponse, error)
}

type backupService struct {
	*planEngine
	store BackupStorage
}

// NewBackupService 创建 BackupService 实例；store 为 nil 时备份接口返回 ErrBackupDisabled
func NewBackupService(engine *planEngine, store BackupStorage) BackupService {
	return &backupService{planEngine: engine, store: store}
}

// ════════════════════════════════════════════════════════════
// Export
// ════════════════════════════════════════════════════════════

func (s *backupService) Export(ctx context.Context, userID string) (*dto.ExportDocument, error) {
	st, err := s.load(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	doc := &dto.ExportDocument{
		Version:    dto.ExportVersion,
		ExportDate: s.now().UTC().Format(time.RFC3339),
		Data: dto.ExportData{
			Courses:     make([]dto.ExportCourse, 0, len(st.courses)),
			Constraints: make([]dto.ExportConstraint, 0, len(st.constraints)),
		},
	}
	for _, c := range st.courses {
		ec := dto.ExportCourse{
			ID:          c.CourseID,
			Name:        c.Name,
			HoursPerDay: c.HoursPerDay,
			StartDate:   c.StartDate.Format(dateLayout),
			CatalogID:   c.CatalogID,
			Description: c.Description,
			CreatedAt:   c.CreatedAt.UTC().Format(time.RFC3339),
			Sessions:    make([]dto.ExportSession, 0, len(c.Sessions)),
		}
		for _, sess := range c.Sessions {
			ec.Sessions = append(ec.Sessions, dto.ExportSession{
				ID:             sess.SessionID,
				IntervalKey:    sess.IntervalKey,
				Date:           sessionDay(sess.Date, s.loc).Format(dateTimeLayout),
				OriginalDate:   sessionDay(sess.OriginalDate, s.loc).Format(dateTimeLayout),
				Completed:      sess.Completed,
				Success:        sess.Success,
				Rescheduled:    sess.Rescheduled,
				NeedsAttention: sess.NeedsAttention,
			})
		}
		doc.Data.Courses = append(doc.Data.Courses, ec)
	}
	for _, c := range st.constraints {
		doc.Data.Constraints = append(doc.Data.Constraints, dto.ExportConstraint{
			ID:          c.ConstraintID,
			Date:        c.Date.Format(dateLayout),
			StartHour:   c.StartHour,
			EndHour:     c.EndHour,
			Description: c.Description,
			Type:        c.Type,
		})
	}

	offsets := make([]int, 0, len(st.catalog.Intervals))
	for _, iv := range st.catalog.Intervals {
		offsets = append(offsets, iv.OffsetDays)
	}
	doc.Data.Settings = &dto.ExportSettings{
		WorkingHours: dto.ExportWorkingHours{
			Start:            st.settings.DayStartHour,
			End:              st.settings.DayEndHour,
			LunchBreak:       dto.ExportPeriod{Start: st.settings.LunchBreakStart, End: st.settings.LunchBreakEnd},
			MaxHoursPerDay:   st.settings.MaxHoursPerDay,
			DistributeEvenly: st.settings.DistributeEvenly,
		},
		CatalogID:  st.settings.CatalogID,
		JIntervals: offsets,
	}
	return doc, nil
}

// ════════════════════════════════════════════════════════════
// Import
// ════════════════════════════════════════════════════════════

func (s *backupService) Import(ctx context.Context, userID string, doc *dto.ExportDocument) (*dto.ImportResponse, error) {
	if doc == nil {
		return nil, ErrInvalidBackup
	}
	if doc.Version != "" && !strings.HasPrefix(doc.Version, "1.") {
		return nil, fmt.Errorf("%w: %s", ErrBackupVersion, doc.Version)
	}
	if len(doc.Data.Courses) > maxImportedCourses {
		return nil, ErrBackupTooLarge
	}

	var settings *model.PlannerSettings
	if doc.Data.Settings != nil {
		ps, err := s.importSettings(userID, doc.Data.Settings)
		if err != nil {
			return nil, err
		}
		settings = ps
	}
	constraints, err := s.importConstraints(userID, doc.Data.Constraints)
	if err != nil {
		return nil, err
	}

	outcome, err := s.mutate(ctx, userID, func(tx *repository.Repository, st *planState) (bool, error) {
		if settings != nil {
			if err := tx.Settings.Upsert(ctx, settings); err != nil {
				s.logger.Error("保存排程偏好失败", zap.Error(err))
				return false, err
			}
			catalog, err := s.catalogFor(settings)
			if err != nil {
				return false, ErrInvalidCatalog
			}
			st.settings, st.prefs, st.catalog = settings, prefsFrom(settings), catalog
		}

		courses, err := s.importCourses(userID, doc.Data.Courses, st.catalog)
		if err != nil {
			return false, err
		}

		if _, err := tx.Course.DeleteAllByUser(ctx, userID); err != nil {
			s.logger.Error("清空课程失败", zap.Error(err))
			return false, err
		}
		if err := tx.Constraint.DeleteAllByUser(ctx, userID); err != nil {
			s.logger.Error("清空占用失败", zap.Error(err))
			return false, err
		}
		for i := range courses {
			if err := tx.Course.Create(ctx, &courses[i]); err != nil {
				s.logger.Error("导入课程失败", zap.Error(err))
				return false, err
			}
		}
		if err := tx.Constraint.BatchCreate(ctx, constraints); err != nil {
			s.logger.Error("导入占用失败", zap.Error(err))
			return false, err
		}
		st.courses = courses
		st.constraints = constraints
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.ImportResponse{
		Courses:     len(outcome.state.courses),
		Constraints: len(outcome.state.constraints),
		Warnings:    outcome.warnings,
	}
	resp.Message = fmt.Sprintf("Import réussi : %d cours, %d contraintes", resp.Courses, resp.Constraints)
	s.notify(ctx, userID, webhook.EventDataImported, map[string]interface{}{
		"source":      "json",
		"courses":     resp.Courses,
		"constraints": resp.Constraints,
	})
	s.logger.Info("数据导入完成", zap.String("user_id", userID), zap.Int("courses", resp.Courses))
	return resp, nil
}

func (s *backupService) importSettings(userID string, es *dto.ExportSettings) (*model.PlannerSettings, error) {
	ps := s.defaultSettings(userID)
	wh := es.WorkingHours
	if wh.Start != 0 || wh.End != 0 {
		ps.DayStartHour, ps.DayEndHour = wh.Start, wh.End
		ps.LunchBreakStart, ps.LunchBreakEnd = wh.LunchBreak.Start, wh.LunchBreak.End
	}
	if wh.MaxHoursPerDay > 0 {
		ps.MaxHoursPerDay = wh.MaxHoursPerDay
	}
	ps.DistributeEvenly = wh.DistributeEvenly
	if es.CatalogID != "" {
		ps.CatalogID = es.CatalogID
	}

	// jIntervals 与所选方案一致时不保存为自定义间隔
	if len(es.JIntervals) > 0 {
		registered, err := s.registry.Get(ps.CatalogID)
		if err != nil || !sameOffsets(registered, es.JIntervals) {
			if _, err := planner.NewCatalog("custom", es.JIntervals); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
			}
			ps.CustomIntervals = es.JIntervals
		}
	}
	if _, err := s.catalogFor(ps); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if err := validatePrefs(prefsFrom(ps)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	return ps, nil
}

func sameOffsets(c planner.Catalog, offsets []int) bool {
	if len(c.Intervals) != len(offsets) {
		return false
	}
	for i, iv := range c.Intervals {
		if iv.OffsetDays != offsets[i] {
			return false
		}
	}
	return true
}

func (s *backupService) importConstraints(userID string, in []dto.ExportConstraint) ([]model.Constraint, error) {
	out := make([]model.Constraint, 0, len(in))
	for i, ec := range in {
		day, err := parseImportedDay(ec.Date, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: 第 %d 条占用日期无效", ErrInvalidBackup, i+1)
		}
		if ec.StartHour < 0 || ec.EndHour > 24 || ec.EndHour <= ec.StartHour {
			return nil, fmt.Errorf("%w: 第 %d 条占用时间范围无效", ErrInvalidBackup, i+1)
		}
		desc := strings.TrimSpace(ec.Description)
		if desc == "" {
			desc = defaultConstraintDescription
		}
		ctype := ec.Type
		if ctype == "" {
			ctype = ConstraintTypeManual
		}
		out = append(out, model.Constraint{
			ConstraintID: uuid.NewString(),
			UserID:       userID,
			Date:         dateColumn(day),
			StartHour:    ec.StartHour,
			EndHour:      ec.EndHour,
			Description:  desc,
			Type:         ctype,
		})
	}
	return out, nil
}

// importCourses 导入的课程统一换发新 ID；没有课时的课程按方案重新生成
func (s *backupService) importCourses(userID string, in []dto.ExportCourse, catalog planner.Catalog) ([]model.Course, error) {
	out := make([]model.Course, 0, len(in))
	for i, ec := range in {
		name := strings.TrimSpace(ec.Name)
		if name == "" || ec.HoursPerDay <= 0 || ec.HoursPerDay > 24 {
			return nil, fmt.Errorf("%w: 第 %d 门课程信息不完整", ErrInvalidBackup, i+1)
		}
		start, err := parseImportedDay(ec.StartDate, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: 课程 %s 开始日期无效", ErrInvalidBackup, name)
		}

		courseCatalog := catalog
		if ec.CatalogID != "" {
			if c, err := s.registry.Get(ec.CatalogID); err == nil {
				courseCatalog = c
			}
		}

		if len(ec.Sessions) == 0 {
			course := s.buildCourse(userID, name, ec.HoursPerDay, ec.Description, start, courseCatalog)
			out = append(out, *course)
			continue
		}

		course := model.Course{
			CourseID:    uuid.NewString(),
			UserID:      userID,
			Name:        name,
			HoursPerDay: ec.HoursPerDay,
			StartDate:   dateColumn(start),
			CatalogID:   courseCatalog.ID,
			Description: ec.Description,
		}
		course.CreatedAt = s.now()
		if t, err := time.Parse(time.RFC3339, ec.CreatedAt); err == nil {
			course.CreatedAt = t
		}
		course.UpdatedAt = s.now()
		course.Version = 1

		for j, es := range ec.Sessions {
			date, err := parseImportedDay(es.Date, s.loc)
			if err != nil {
				return nil, fmt.Errorf("%w: 课程 %s 第 %d 个课时日期无效", ErrInvalidBackup, name, j+1)
			}
			original := date
			if es.OriginalDate != "" {
				if d, err := parseImportedDay(es.OriginalDate, s.loc); err == nil {
					original = d
				}
			}
			key := es.IntervalKey
			if _, ok := planner.ParseIntervalKey(key); !ok {
				return nil, fmt.Errorf("%w: 课程 %s 间隔 %q 无效", ErrInvalidBackup, name, key)
			}
			sess := model.StudySession{
				SessionID:      uuid.NewString(),
				CourseID:       course.CourseID,
				UserID:         userID,
				IntervalKey:    key,
				IntervalLabel:  planner.LabelFor(key),
				Position:       j,
				Date:           date,
				OriginalDate:   original,
				Completed:      es.Completed,
				Success:        es.Success,
				Rescheduled:    es.Rescheduled,
				NeedsAttention: es.NeedsAttention,
			}
			if es.Completed {
				done := date
				sess.CompletedAt = &done
			}
			course.Sessions = append(course.Sessions, sess)
		}
		out = append(out, course)
	}
	return out, nil
}

// parseImportedDay 兼容 YYYY-MM-DD 与完整 ISO 时间
func parseImportedDay(s string, loc *time.Location) (time.Time, error) {
	if d, err := parseDay(s, loc); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return planner.Midnight(t.In(loc)), nil
}

// ════════════════════════════════════════════════════════════
// 对象存储备份
// ════════════════════════════════════════════════════════════

func (s *backupService) Backup(ctx context.Context, userID string) (*dto.BackupResponse, error) {
	if s.store == nil {
		return nil, ErrBackupDisabled
	}
	doc, err := s.Export(ctx, userID)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	now := s.now()
	key := storage.BackupKey(userID, now)
	if err := s.store.Put(ctx, key, data); err != nil {
		s.logger.Error("上传备份失败", zap.Error(err))
		return nil, err
	}
	return &dto.BackupResponse{
		Key:          key,
		Size:         int64(len(data)),
		LastModified: now.UTC().Format(time.RFC3339),
	}, nil
}

func (s *backupService) ListBackups(ctx context.Context, userID string) ([]dto.BackupResponse, error) {
	if s.store == nil {
		return nil, ErrBackupDisabled
	}
	objs, err := s.store.List(ctx, storage.UserPrefix(userID))
	if err != nil {
		s.logger.Error("列出备份失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.BackupResponse, 0, len(objs))
	for _, o := range objs {
		out = append(out, dto.BackupResponse{
			Key:          o.Key,
			Size:         o.Size,
			LastModified: o.LastModified.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

func (s *backupService) Restore(ctx context.Context, userID, key string) (*dto.ImportResponse, error) {
	if s.store == nil {
		return nil, ErrBackupDisabled
	}
	// 只能恢复自己目录下的备份
	if !strings.HasPrefix(key, storage.UserPrefix(userID)) || strings.Contains(key, "..") {
		return nil, ErrBackupNotFound
	}
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrBackupNotFound
		}
		s.logger.Error("下载备份失败", zap.Error(err))
		return nil, err
	}
	var doc dto.ExportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	return s.Import(ctx, userID, &doc)
}
