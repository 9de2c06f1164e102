package app

import (
	"learner_insight/internal/config"
	"learner_insight/internal/middleware"
	"learner_insight/internal/model"
	"learner_insight/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		a.registerLearnerRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerLearnerRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/personalization", c.personalization.GetMine)
	group.GET("/analytics/snapshot", c.analytics.GetSnapshot)
	group.POST("/activities", c.activity.Record)
	group.GET("/catalog/content", c.catalog.ListContent)

	experiences := group.Group("/experiences")
	{
		experiences.POST("/:experienceId/sessions", c.experience.StartSession)
		experiences.PUT("/sessions/:sessionId/end", c.experience.EndSession)
	}
}

func (a *App) registerTeacherRoutes(group *gin.RouterGroup, c *controllers) {
	teacher := group.Group("")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.GET("/personalization/learners/:learnerId", c.personalization.GetForLearner)
		teacher.PUT("/teacher/classes/:classId", c.catalog.SaveClass)
		teacher.POST("/teacher/classes/:classId/enrollments", c.catalog.Enroll)
	}
}

func (a *App) registerAdminRoutes(group *gin.RouterGroup, c *controllers) {
	admin := group.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.PUT("/catalog/content", c.catalog.UpsertContent)
		admin.PUT("/experiences/:experienceId", c.catalog.SaveExperience)
	}
}
