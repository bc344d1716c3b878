package router

import (
	"net/http"

	"backoffice-service/internal/handler"
	"backoffice-service/internal/middleware"
	"backoffice-service/pkg/config"
	"backoffice-service/pkg/logger"
	"backoffice-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
)

// New assembles the echo instance with all middlewares and routes
func New(cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     []string{cfg.Server.AllowOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// public
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)
	e.POST("/tenants", handler.RegisterTenant)
	e.POST("/sessions", handler.Login)

	// authenticated
	auth := e.Group("", middleware.AuthMiddleware)

	auth.GET("/sessions/current", handler.CurrentUser)
	auth.DELETE("/sessions/current", handler.Logout)

	auth.GET("/tenants", handler.ListTenants)
	auth.GET("/tenants/:id", handler.GetTenant)
	auth.PUT("/tenants/:id", handler.UpdateTenant)
	auth.POST("/tenants/:id/users", handler.AddTenantUser)
	auth.GET("/tenants/:id/users", handler.ListTenantUsers)

	auth.GET("/users", handler.ListUsers)
	auth.PUT("/users/:id", handler.UpdateUser)
	auth.DELETE("/users/:id", handler.DeleteUser)

	auth.POST("/projects", handler.CreateProject)
	auth.GET("/projects", handler.ListProjects)
	auth.GET("/projects/:id", handler.GetProject)
	auth.PUT("/projects/:id", handler.UpdateProject)
	auth.DELETE("/projects/:id", handler.DeleteProject)

	auth.POST("/projects/:id/tasks", handler.CreateTask)
	auth.GET("/projects/:id/tasks", handler.ListTasks)
	auth.PATCH("/tasks/:id/status", handler.UpdateTaskStatus)
	auth.PUT("/tasks/:id", handler.UpdateTask)
	auth.DELETE("/tasks/:id", handler.DeleteTask)

	return e
}
