package handler

import (
	"net/http"

	"backoffice-service/internal/model"
	"backoffice-service/pkg/database"
	"backoffice-service/prometheus"

	"github.com/labstack/echo/v4"
)

// HealthCheck reports store connectivity and seed presence. The store
// being reachable but unseeded is reported as a distinct "initializing"
// state so orchestrators can hold traffic until bootstrap completes.
func HealthCheck(c echo.Context) error {
	db := database.GetDB()

	var one int
	if db == nil || db.Raw("SELECT 1").Scan(&one).Error != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"status":   "error",
			"database": "disconnected",
		})
	}

	var count int64
	if err := db.Model(&model.User{}).Where("role = ?", model.RoleSuperAdmin).Count(&count).Error; err != nil || count == 0 {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"status":   "initializing",
			"database": "connected",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":   "ok",
		"database": "connected",
	})
}

// MetricsHandler serves the Prometheus metrics endpoint
func MetricsHandler(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
