package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/model"
	"j-planner/backend/internal/repository"
	"j-planner/backend/pkg/webhook"
)

// ── 占用模块业务错误 ──

var (
	ErrConstraintNotFound = errors.New("占用不存在")
	ErrInvalidHourRange   = errors.New("时间范围无效，结束时间必须晚于开始时间")
	ErrICSEmpty           = errors.New("日历中没有可导入的忙碌事件")
	ErrICSInvalid         = errors.New("ICS 格式解析失败")
	ErrICSFetch           = errors.New("获取订阅日历失败")
)

// 占用类型
const (
	ConstraintTypeManual    = "manual"
	ConstraintTypeRecurring = "recurring"
)

const defaultConstraintDescription = "Contrainte personnelle"

// ConstraintService 占用时间业务接口
type ConstraintService interface {
	// 新增占用后对全部课程重排
	Add(ctx context.Context, userID string, req *dto.CreateConstraintRequest) (*dto.ConstraintMutationResponse, error)
	List(ctx context.Context, userID string, req *dto.ListConstraintRequest) ([]dto.ConstraintResponse, error)
	Delete(ctx context.Context, userID, constraintID string, rebalance bool) (*dto.DeleteResponse, error)
	// 从上传的日历导入忙碌事件
	ImportICS(ctx context.Context, userID string, reader io.Reader) (*dto.ImportICSResponse, error)
	// 从订阅地址导入
	ImportICSFromURL(ctx context.Context, userID, url string) (*dto.ImportICSResponse, error)
}

type constraintService struct {
	*planEngine
	fetch func(url string) (io.ReadCloser, error)
}

// NewConstraintService 创建 ConstraintService 实例
func NewConstraintService(engine *planEngine) ConstraintService {
	return &constraintService{planEngine: engine, fetch: FetchICSContent}
}

// ════════════════════════════════════════════════════════════
// Add
// ════════════════════════════════════════════════════════════

func (s *constraintService) Add(ctx context.Context, userID string, req *dto.CreateConstraintRequest) (*dto.ConstraintMutationResponse, error) {
	day, err := parseDay(req.Date, s.loc)
	if err != nil {
		return nil, ErrInvalidDate
	}
	startHour, endHour := 0, 24
	if req.StartHour != nil {
		startHour = *req.StartHour
	}
	if req.EndHour != nil {
		endHour = *req.EndHour
	}
	if endHour <= startHour {
		return nil, ErrInvalidHourRange
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = defaultConstraintDescription
	}
	ctype := req.Type
	if ctype == "" {
		ctype = ConstraintTypeManual
	}

	c := model.Constraint{
		ConstraintID: uuid.NewString(),
		UserID:       userID,
		Date:         dateColumn(day),
		StartHour:    startHour,
		EndHour:      endHour,
		Description:  description,
		Type:         ctype,
	}

	outcome, err := s.mutate(ctx, userID, func(tx *repository.Repository, st *planState) (bool, error) {
		if err := tx.Constraint.Create(ctx, &c); err != nil {
			s.logger.Error("创建占用失败", zap.Error(err))
			return false, err
		}
		st.constraints = append(st.constraints, c)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("占用已创建",
		zap.String("user_id", userID),
		zap.String("date", req.Date),
		zap.Int("moved", len(outcome.changes)),
	)
	resp := toConstraintResponse(&c)
	return &dto.ConstraintMutationResponse{Constraint: &resp, Warnings: outcome.warnings}, nil
}

// ════════════════════════════════════════════════════════════
// List / Delete
// ════════════════════════════════════════════════════════════

func (s *constraintService) List(ctx context.Context, userID string, req *dto.ListConstraintRequest) ([]dto.ConstraintResponse, error) {
	var (
		cs  []model.Constraint
		err error
	)
	if req != nil && (req.From != "" || req.To != "") {
		from, to, perr := s.rangeOf(req)
		if perr != nil {
			return nil, perr
		}
		cs, err = s.repo.Constraint.ListByUserBetween(ctx, userID, from, to)
	} else {
		cs, err = s.repo.Constraint.ListByUser(ctx, userID)
	}
	if err != nil {
		s.logger.Error("查询占用失败", zap.Error(err))
		return nil, err
	}
	out := make([]dto.ConstraintResponse, 0, len(cs))
	for i := range cs {
		out = append(out, toConstraintResponse(&cs[i]))
	}
	return out, nil
}

// rangeOf 缺省的一端不设限；to 为闭区间
func (s *constraintService) rangeOf(req *dto.ListConstraintRequest) (time.Time, time.Time, error) {
	from := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	if req.From != "" {
		d, err := time.Parse(dateLayout, req.From)
		if err != nil {
			return from, to, ErrInvalidDate
		}
		from = d
	}
	if req.To != "" {
		d, err := time.Parse(dateLayout, req.To)
		if err != nil {
			return from, to, ErrInvalidDate
		}
		to = d.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func (s *constraintService) Delete(ctx context.Context, userID, constraintID string, rebalance bool) (*dto.DeleteResponse, error) {
	outcome, err := s.mutate(ctx, userID, func(tx *repository.Repository, st *planState) (bool, error) {
		if err := tx.Constraint.Delete(ctx, userID, constraintID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, ErrConstraintNotFound
			}
			s.logger.Error("删除占用失败", zap.Error(err))
			return false, err
		}
		for i := range st.constraints {
			if st.constraints[i].ConstraintID == constraintID {
				st.constraints = append(st.constraints[:i], st.constraints[i+1:]...)
				break
			}
		}
		return rebalance, nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.DeleteResponse{Deleted: 1, Warnings: outcome.warnings}, nil
}

// ════════════════════════════════════════════════════════════
// ICS 导入
// ════════════════════════════════════════════════════════════

func (s *constraintService) ImportICS(ctx context.Context, userID string, reader io.Reader) (*dto.ImportICSResponse, error) {
	parsed, err := ParseBusyICS(reader, userID, s.loc, s.today())
	if err != nil {
		return nil, err
	}
	if len(parsed.Constraints) == 0 {
		return nil, ErrICSEmpty
	}

	outcome, err := s.mutate(ctx, userID, func(tx *repository.Repository, st *planState) (bool, error) {
		fresh := dropExisting(parsed.Constraints, st.constraints)
		parsed.Skipped += len(parsed.Constraints) - len(fresh)
		parsed.Constraints = fresh
		if len(fresh) == 0 {
			return false, nil
		}
		if err := tx.Constraint.BatchCreate(ctx, fresh); err != nil {
			s.logger.Error("批量创建占用失败", zap.Error(err))
			return false, err
		}
		st.constraints = append(st.constraints, fresh...)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, userID, webhook.EventDataImported, map[string]interface{}{
		"source":      "ics",
		"constraints": len(parsed.Constraints),
	})
	s.logger.Info("日历导入完成",
		zap.String("user_id", userID),
		zap.Int("imported", len(parsed.Constraints)),
		zap.Int("skipped", parsed.Skipped),
	)
	return &dto.ImportICSResponse{
		Imported: len(parsed.Constraints),
		Skipped:  parsed.Skipped,
		Errors:   parsed.Errors,
		Warnings: outcome.warnings,
	}, nil
}

func (s *constraintService) ImportICSFromURL(ctx context.Context, userID, url string) (*dto.ImportICSResponse, error) {
	body, err := s.fetch(url)
	if err != nil {
		s.logger.Warn("获取订阅日历失败", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrICSFetch, err)
	}
	defer body.Close()
	return s.ImportICS(ctx, userID, body)
}

// dropExisting 过滤掉与已有占用完全相同的条目，重复导入同一日历不会叠加
func dropExisting(incoming, existing []model.Constraint) []model.Constraint {
	seen := make(map[string]bool, len(existing))
	key := func(c *model.Constraint) string {
		return fmt.Sprintf("%s|%d|%d|%s", c.Date.Format(dateLayout), c.StartHour, c.EndHour, c.Description)
	}
	for i := range existing {
		seen[key(&existing[i])] = true
	}
	out := make([]model.Constraint, 0, len(incoming))
	for i := range incoming {
		if !seen[key(&incoming[i])] {
			out = append(out, incoming[i])
		}
	}
	return out
}
