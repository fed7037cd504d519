package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"j-planner/backend/config"
	"j-planner/backend/internal/api/handler"
	"j-planner/backend/internal/api/middleware"
	"j-planner/backend/pkg/jwt"
)

// Options 路由可选依赖；nil 时对应能力降级
type Options struct {
	Blacklist middleware.TokenChecker // nil → 不检查登出黑名单
	Limiter   middleware.RateLimiter  // nil → 不限流
}

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, opts Options, logger *zap.Logger) *gin.Engine {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	if cfg.Server.BodyLimitMB > 0 {
		r.Use(middleware.BodyLimit(int64(cfg.Server.BodyLimitMB) << 20))
	}

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	limit := middleware.RateLimit(opts.Limiter, cfg.RateLimit.Limit, cfg.RateLimit.Window)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth", limit)
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, opts.Blacklist))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 课程与课时
			courses := authorized.Group("/courses")
			{
				courses.GET("", h.Course.ListCourses)
				courses.POST("", h.Course.CreateCourse)
				courses.DELETE("", h.Course.DeleteAllCourses)
				courses.GET("/:id", h.Course.GetCourse)
				courses.PUT("/:id", h.Course.UpdateCourse)
				courses.DELETE("/:id", h.Course.DeleteCourse)
				courses.DELETE("/:id/sessions/:sid", h.Course.DeleteSession)
				courses.PUT("/:id/sessions/:sid/complete", h.Course.CompleteSession)
				courses.PUT("/:id/sessions/:sid/move", h.Course.MoveSession)
			}

			// 占用时间
			constraints := authorized.Group("/constraints")
			{
				constraints.GET("", h.Constraint.ListConstraints)
				constraints.POST("", h.Constraint.CreateConstraint)
				constraints.DELETE("/:id", h.Constraint.DeleteConstraint)
				constraints.POST("/import", limit, h.Constraint.ImportICS)
			}

			// 计划
			planning := authorized.Group("/planning")
			{
				planning.POST("/rebalance", limit, h.Planning.Rebalance)
				planning.GET("/week", h.Planning.WeeklyPlan)
				planning.GET("/today", h.Planning.Today)
				planning.GET("/stats", h.Planning.Stats)
				planning.GET("/change-logs", h.Planning.ListChangeLogs)
			}

			// 偏好
			settings := authorized.Group("/settings")
			{
				settings.GET("", h.Settings.GetSettings)
				settings.PUT("", h.Settings.UpdateSettings)
				settings.GET("/catalogs", h.Settings.ListCatalogs)
			}

			// 导出 / 导入
			export := authorized.Group("/export")
			{
				export.GET("/week", h.Export.ExportWeeklyPlan)
				export.GET("/ics", h.Export.ExportSessions)
				export.GET("/json", h.Backup.ExportJSON)
			}
			authorized.POST("/import/json", limit, h.Backup.ImportJSON)

			// 对象存储备份
			backups := authorized.Group("/backups")
			{
				backups.GET("", h.Backup.ListBackups)
				backups.POST("", limit, h.Backup.CreateBackup)
				backups.POST("/restore", limit, h.Backup.RestoreBackup)
			}

			// 聊天指令
			authorized.POST("/chat", h.Command.Execute)
		}
	}

	return r
}
