package handlers

import (
	"taskledger/backend/internal/middleware"
	"taskledger/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type Dependencies struct {
	Gate            services.AccessGate
	AuthService     services.AuthService
	RegisterService services.RegisterService
	TaskService     services.TaskService
	// LoginLimiter, when set, guards the credential-accepting auth routes.
	LoginLimiter gin.HandlerFunc
}

// RegisterRoutes mounts the versioned API on r.
func RegisterRoutes(r gin.IRouter, deps Dependencies) {
	v1 := r.Group("/api/v1")

	authHandler := NewAuthHandler(deps.AuthService)
	registrationHandler := NewRegisterHandler(deps.RegisterService)
	taskHandler := NewTaskHandler(deps.TaskService)

	authRoutes := v1.Group("/auth")
	{
		public := authRoutes.Group("")
		if deps.LoginLimiter != nil {
			public.Use(deps.LoginLimiter)
		}
		public.POST("/register", registrationHandler.Registration)
		public.POST("/login", authHandler.Token)
		public.POST("/refresh", authHandler.Refresh)

		authRoutes.POST("/logout", middleware.AuthzMiddleware(deps.Gate), authHandler.Logout)
	}

	protected := v1.Group("")
	protected.Use(middleware.AuthzMiddleware(deps.Gate))
	{
		taskRoutes := protected.Group("/tasks")
		{
			taskRoutes.POST("", taskHandler.CreateTask)
			taskRoutes.GET("", taskHandler.GetTasks)
			taskRoutes.GET("/:id", taskHandler.GetTaskByID)
			taskRoutes.PUT("/:id", taskHandler.UpdateTask)
			taskRoutes.DELETE("/:id", taskHandler.DeleteTask)
		}

		logRoutes := protected.Group("/tasklog")
		{
			logRoutes.GET("", taskHandler.GetTaskLog)
			logRoutes.DELETE("", taskHandler.ClearTaskLog)
		}
	}
}
