package public

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pasaph/internal/cache"
	"github.com/pasaph/internal/models"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

var errDatabaseNotInitialized = errors.New("database not initialized")

// Healthz 检查数据库与 Redis 连通性
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := gin.H{"database": "ok"}
	healthy := true
	if err := pingDatabase(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if cache.Enabled() {
		checks["redis"] = "ok"
		if err := cache.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}

	status := http.StatusOK
	checks["status"] = "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		checks["status"] = "degraded"
	}
	c.JSON(status, checks)
}

func pingDatabase(ctx context.Context) error {
	if models.DB == nil {
		return errDatabaseNotInitialized
	}
	sqlDB, err := models.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
