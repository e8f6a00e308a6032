package health

import (
	"net/http"
	"time"

	"github.com/casaflora/tienda-core/internal/pkg/cron"
	redisc "github.com/casaflora/tienda-core/internal/pkg/redis"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterRoutes mounts liveness and readiness endpoints.
func RegisterRoutes(rg *gin.RouterGroup, db *gorm.DB, rc *redisc.Client, sched *cron.Scheduler) {
	rg.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	rg.GET("/health", func(c *gin.Context) {
		checks := gin.H{}
		healthy := true

		if db != nil {
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.Ping()
			}
			if err != nil {
				checks["database"] = err.Error()
				healthy = false
			} else {
				checks["database"] = "ok"
			}
		}

		if rc != nil {
			if err := rc.Raw().Ping(c.Request.Context()).Err(); err != nil {
				checks["redis"] = err.Error()
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		payload := gin.H{
			"healthy": healthy,
			"checks":  checks,
			"time":    time.Now().Format(time.RFC3339),
		}
		if sched != nil {
			payload["cron"] = sched.List()
		}
		c.JSON(status, payload)
	})
}
