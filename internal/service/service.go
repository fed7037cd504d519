package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"j-planner/backend/config"
	"j-planner/backend/internal/planner"
	"j-planner/backend/internal/repository"
	"j-planner/backend/pkg/cache"
	"j-planner/backend/pkg/jwt"
	"j-planner/backend/pkg/webhook"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	Course     CourseService
	Constraint ConstraintService
	Planning   PlanningService
	Settings   SettingsService
	Export     ExportService
	Backup     BackupService
	Command    CommandService
	Blacklist  TokenBlacklist
	Registry   planner.Registry
	Timezone   *time.Location
}

// Deps 构造 Service 所需的外部依赖；可选项为 nil 时使用降级实现
type Deps struct {
	Config    *config.Config
	Repo      *repository.Repository
	JWT       *jwt.Manager
	Logger    *zap.Logger
	Locker    Locker           // nil → 进程内锁
	Cache     *cache.PlanCache // nil → 按配置 TTL 新建
	Notifier  webhook.Notifier // nil → 不推送
	Blacklist TokenBlacklist   // nil → 登出不作废 token
	Store     BackupStorage    // nil → 备份接口不可用
	Clock     Clock            // nil → time.Now
}

// NewService 创建 Service 聚合
func NewService(d Deps) (*Service, error) {
	registry, err := BuildRegistry(&d.Config.Planner)
	if err != nil {
		return nil, err
	}
	if _, err := registry.Get(d.Config.Planner.DefaultCatalog); err != nil {
		return nil, fmt.Errorf("默认间隔方案无效: %w", err)
	}

	engine := &planEngine{
		cfg:      &d.Config.Planner,
		repo:     d.Repo,
		registry: registry,
		locker:   d.Locker,
		cache:    d.Cache,
		notifier: d.Notifier,
		now:      d.Clock,
		loc:      d.Config.Planner.Location(),
		logger:   d.Logger,
	}
	if engine.locker == nil {
		engine.locker = NewMemLocker(d.Config.Planner.LockWait)
	}
	if engine.cache == nil {
		engine.cache = cache.New(d.Config.Planner.CacheTTL)
	}
	if engine.notifier == nil {
		engine.notifier = webhook.Nop{}
	}
	if engine.now == nil {
		engine.now = time.Now
	}

	courses := NewCourseService(engine)
	constraints := NewConstraintService(engine)
	planning := NewPlanningService(engine)

	return &Service{
		Auth:       NewAuthService(d.Config, d.Repo, d.JWT, d.Blacklist, d.Logger),
		Course:     courses,
		Constraint: constraints,
		Planning:   planning,
		Settings:   NewSettingsService(engine),
		Export:     NewExportService(engine),
		Backup:     NewBackupService(engine, d.Store),
		Command:    NewCommandService(engine, courses, constraints, planning),
		Blacklist:  d.Blacklist,
		Registry:   registry,
		Timezone:   engine.loc,
	}, nil
}

// BuildRegistry 内置方案加上配置中的额外方案
func BuildRegistry(cfg *config.PlannerConfig) (planner.Registry, error) {
	registry := planner.DefaultRegistry()
	for id, offsets := range cfg.Catalogs {
		c, err := planner.NewCatalog(id, offsets)
		if err != nil {
			return nil, fmt.Errorf("配置的间隔方案 %s 无效: %w", id, err)
		}
		registry.Register(c)
	}
	return registry, nil
}
