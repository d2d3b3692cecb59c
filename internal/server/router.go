package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/teamonboard/flowline-backend/internal/handlers"
	"github.com/teamonboard/flowline-backend/internal/middleware"
)

type RouterConfig struct {
	AuthMiddleware      *middleware.AuthMiddleware
	AuthHandler         *handlers.AuthHandler
	UserHandler         *handlers.UserHandler
	FlowHandler         *handlers.FlowHandler
	AssignmentHandler   *handlers.AssignmentHandler
	ProgressHandler     *handlers.ProgressHandler
	NotificationHandler *handlers.NotificationHandler
	AchievementHandler  *handlers.AchievementHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	{
		api.POST("/register", cfg.AuthHandler.Register)
		api.POST("/login", cfg.AuthHandler.Login)
		api.POST("/refresh", cfg.AuthHandler.Refresh)
	}

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// Users
	protected.GET("/me", cfg.UserHandler.GetMe)
	protected.GET("/users", cfg.UserHandler.List)
	protected.GET("/users/:id", cfg.UserHandler.Get)
	protected.PATCH("/users/:id", cfg.UserHandler.Update)
	protected.PUT("/users/:id/role", cfg.UserHandler.SetRole)
	protected.POST("/users/:id/deactivate", cfg.UserHandler.Deactivate)
	// Flows
	protected.POST("/flows", cfg.FlowHandler.Create)
	protected.GET("/flows", cfg.FlowHandler.List)
	protected.GET("/flows/:id", cfg.FlowHandler.Get)
	protected.PATCH("/flows/:id", cfg.FlowHandler.Update)
	protected.POST("/flows/:id/archive", cfg.FlowHandler.Archive)
	protected.POST("/flows/:id/publish", cfg.FlowHandler.Publish)
	protected.POST("/flows/:id/versions/:versionId/activate", cfg.FlowHandler.ActivateVersion)
	protected.DELETE("/flows/:id/versions/:versionId", cfg.FlowHandler.DeleteVersion)
	// Flow steps
	protected.POST("/flows/:id/steps", cfg.FlowHandler.AddStep)
	protected.PATCH("/flows/:id/steps/:stepId", cfg.FlowHandler.UpdateStep)
	protected.POST("/flows/:id/steps/:stepId/move", cfg.FlowHandler.MoveStep)
	protected.DELETE("/flows/:id/steps/:stepId", cfg.FlowHandler.DeleteStep)
	// Step components
	protected.POST("/flows/:id/steps/:stepId/components", cfg.FlowHandler.AddComponent)
	protected.PATCH("/flows/:id/components/:componentId", cfg.FlowHandler.UpdateComponent)
	protected.DELETE("/flows/:id/components/:componentId", cfg.FlowHandler.DeleteComponent)
	// Assignments
	protected.POST("/assignments", cfg.AssignmentHandler.Assign)
	protected.GET("/assignments/:id", cfg.AssignmentHandler.Get)
	protected.GET("/users/:id/assignments", cfg.AssignmentHandler.ListForUser)
	protected.GET("/flows/:id/assignments", cfg.AssignmentHandler.ListForFlow)
	protected.POST("/assignments/:id/start", cfg.AssignmentHandler.Start)
	protected.POST("/assignments/:id/pause", cfg.AssignmentHandler.Pause)
	protected.POST("/assignments/:id/resume", cfg.AssignmentHandler.Resume)
	protected.POST("/assignments/:id/complete", cfg.AssignmentHandler.Complete)
	protected.POST("/assignments/:id/cancel", cfg.AssignmentHandler.Cancel)
	// Progress
	protected.GET("/assignments/:id/progress", cfg.ProgressHandler.Get)
	protected.POST("/assignments/:id/components/:componentId/submit", cfg.ProgressHandler.SubmitComponent)
	// Notifications
	protected.GET("/notifications", cfg.NotificationHandler.List)
	protected.POST("/notifications/read", cfg.NotificationHandler.MarkRead)
	// Achievements
	protected.GET("/achievements", cfg.AchievementHandler.List)
	protected.POST("/achievements", cfg.AchievementHandler.Create)
	protected.PATCH("/achievements/:id", cfg.AchievementHandler.Update)
	protected.DELETE("/achievements/:id", cfg.AchievementHandler.Delete)
	protected.GET("/users/:id/achievements", cfg.AchievementHandler.ListForUser)
	protected.POST("/achievements/grant", cfg.AchievementHandler.Grant)

	return router
}
