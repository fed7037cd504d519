package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"j-planner/backend/internal/dto"
	"j-planner/backend/internal/planner"
	"j-planner/backend/internal/repository"
)

// ── 偏好模块业务错误 ──

var (
	ErrInvalidWorkingHours = errors.New("工作时段无效：开始时间必须早于结束时间")
	ErrInvalidLunchBreak   = errors.New("午休时段无效：必须位于工作时段内且开始早于结束")
	ErrInvalidMaxHours     = errors.New("每日最大时长必须大于 0 且不超过工作时长")
)

// SettingsService 排程偏好业务接口
type SettingsService interface {
	Get(ctx context.Context, userID string) (*dto.SettingsResponse, error)
	// 修改偏好后对全部课程重排
	Update(ctx context.Context, userID string, req *dto.UpdateSettingsRequest) (*dto.SettingsMutationResponse, error)
	// 可选的间隔方案
	Catalogs() []dto.CatalogResponse
}

type settingsService struct {
	*planEngine
}

// NewSettingsService 创建 SettingsService 实例
func NewSettingsService(engine *planEngine) SettingsService {
	return &settingsService{planEngine: engine}
}

func (s *settingsService) Get(ctx context.Context, userID string) (*dto.SettingsResponse, error) {
	settings, err := s.loadSettings(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalogFor(settings)
	if err != nil {
		return nil, err
	}
	resp := toSettingsResponse(settings, catalog)
	return &resp, nil
}

func (s *settingsService) Update(ctx context.Context, userID string, req *dto.UpdateSettingsRequest) (*dto.SettingsMutationResponse, error) {
	outcome, err := s.mutate(ctx, userID, func(tx *repository.Repository, st *planState) (bool, error) {
		next := *st.settings
		if req.DayStartHour != nil {
			next.DayStartHour = *req.DayStartHour
		}
		if req.DayEndHour != nil {
			next.DayEndHour = *req.DayEndHour
		}
		if req.LunchBreakStart != nil {
			next.LunchBreakStart = *req.LunchBreakStart
		}
		if req.LunchBreakEnd != nil {
			next.LunchBreakEnd = *req.LunchBreakEnd
		}
		if req.MaxHoursPerDay != nil {
			next.MaxHoursPerDay = *req.MaxHoursPerDay
		}
		if req.DistributeEvenly != nil {
			next.DistributeEvenly = *req.DistributeEvenly
		}
		if req.CatalogID != nil {
			next.CatalogID = *req.CatalogID
			// 切换到注册方案时清除自定义间隔
			if req.CustomIntervals == nil {
				next.CustomIntervals = nil
			}
		}
		if req.CustomIntervals != nil {
			next.CustomIntervals = req.CustomIntervals
		}

		prefs := prefsFrom(&next)
		if err := validatePrefs(prefs); err != nil {
			return false, err
		}
		catalog, err := s.catalogFor(&next)
		if err != nil {
			return false, ErrInvalidCatalog
		}

		if err := tx.Settings.Upsert(ctx, &next); err != nil {
			s.logger.Error("保存排程偏好失败", zap.Error(err))
			return false, err
		}
		st.settings = &next
		st.prefs = prefs
		st.catalog = catalog
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("排程偏好已更新", zap.String("user_id", userID), zap.Int("moved", len(outcome.changes)))
	return &dto.SettingsMutationResponse{
		Settings: toSettingsResponse(outcome.state.settings, outcome.state.catalog),
		Warnings: outcome.warnings,
	}, nil
}

// validatePrefs 工作时段、午休与每日上限的组合校验
func validatePrefs(p planner.TimePreferences) error {
	if p.DayStartHour >= p.DayEndHour {
		return ErrInvalidWorkingHours
	}
	if p.LunchBreakStart > p.LunchBreakEnd ||
		p.LunchBreakStart < p.DayStartHour || p.LunchBreakEnd > p.DayEndHour {
		return ErrInvalidLunchBreak
	}
	workable := float64(p.DayEndHour - p.DayStartHour - (p.LunchBreakEnd - p.LunchBreakStart))
	if p.MaxHoursPerDay <= 0 || p.MaxHoursPerDay > workable {
		return ErrInvalidMaxHours
	}
	return nil
}

func (s *settingsService) Catalogs() []dto.CatalogResponse {
	ids := s.registry.IDs()
	out := make([]dto.CatalogResponse, 0, len(ids))
	for _, id := range ids {
		c, err := s.registry.Get(id)
		if err != nil {
			continue
		}
		out = append(out, dto.CatalogResponse{ID: id, Intervals: toIntervals(c)})
	}
	return out
}
