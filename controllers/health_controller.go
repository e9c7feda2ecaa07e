package controllers

import (
	"context"
	"net/http"
	"time"

	"lifeline/database"
	"lifeline/models"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

type HealthController struct {
	redis     *redis.Client
	startTime time.Time
	version   string
}

func NewHealthController(redisClient *redis.Client, version string) *HealthController {
	return &HealthController{
		redis:     redisClient,
		startTime: time.Now(),
		version:   version,
	}
}

// Health reports service liveness plus dependency status
func (hc *HealthController) Health(c *gin.Context) {
	services := map[string]string{
		"database": "healthy",
		"redis":    "healthy",
	}
	status := "healthy"

	if !database.IsConnected() {
		services["database"] = "unhealthy"
		status = "degraded"
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := hc.redis.Ping(ctx).Err(); err != nil {
		services["redis"] = "unhealthy"
		status = "degraded"
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, models.HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
		Version:   hc.version,
		Uptime:    time.Since(hc.startTime).String(),
	})
}
