package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"j-planner/backend/config"
	"j-planner/backend/internal/api/handler"
	"j-planner/backend/internal/api/router"
	"j-planner/backend/internal/repository"
	"j-planner/backend/internal/service"
	"j-planner/backend/pkg/cache"
	"j-planner/backend/pkg/database"
	"j-planner/backend/pkg/jwt"
	applogger "j-planner/backend/pkg/logger"
	"j-planner/backend/pkg/redis"
	"j-planner/backend/pkg/storage"
	"j-planner/backend/pkg/webhook"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（缺省时查找 ./config.yaml）")
	rollback := flag.Int("rollback", 0, "回退指定步数的数据库迁移后退出")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("timezone", cfg.Planner.Timezone),
	)

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if *rollback > 0 {
		if err := database.RollbackMigrations(sqlDB, *rollback, logger); err != nil {
			logger.Fatal("回退迁移失败", zap.Error(err))
		}
		_ = sqlDB.Close()
		return
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级为进程内锁，登出黑名单与限流不可用）
	deps := service.Deps{
		Config: cfg,
		Logger: logger,
		Cache:  cache.New(cfg.Planner.CacheTTL),
	}
	routerOpts := router.Options{}

	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，降级运行", zap.Error(err))
		rdb = nil
	} else {
		deps.Locker = service.NewRedisLocker(rdb, cfg.Planner.LockTTL, cfg.Planner.LockWait, logger)
		deps.Blacklist = rdb
		routerOpts.Blacklist = rdb
		routerOpts.Limiter = rdb
	}

	// 5. 备份存储（可选）
	if cfg.Storage.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := storage.NewBackupStore(ctx, &cfg.Storage, logger)
		cancel()
		if err != nil {
			logger.Warn("备份存储初始化失败，备份接口不可用", zap.Error(err))
		} else {
			deps.Store = store
		}
	}

	// 6. Webhook
	deps.Notifier = webhook.New(&cfg.Webhook, logger)

	// 7. 依赖注入: Repository → Service → Handler
	jwtMgr := jwt.NewManager(&cfg.Auth)
	deps.JWT = jwtMgr
	deps.Repo = repository.NewRepository(db)

	svc, err := service.NewService(deps)
	if err != nil {
		logger.Fatal("初始化服务失败", zap.Error(err))
	}
	if err := handler.RegisterValidators(); err != nil {
		logger.Fatal("注册校验规则失败", zap.Error(err))
	}
	h := handler.NewHandler(svc)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, routerOpts, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	if err := sqlDB.Close(); err != nil {
		logger.Warn("关闭数据库连接失败", zap.Error(err))
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
