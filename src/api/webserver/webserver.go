package webserver

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stake-plus/factcheck/src/api/config"
	"github.com/stake-plus/factcheck/src/orchestrator"
	"github.com/stake-plus/factcheck/src/trial"
)

func New(cfg config.Config, orch *orchestrator.Orchestrator, quota *trial.Meter) *gin.Engine {
	g := gin.New()
	g.Use(gin.Logger(), gin.Recovery(), requestID())
	attachRoutes(g, cfg, orch, quota)
	return g
}

// requestID propagates the caller's X-Request-Id or mints one so log lines
// and responses can be correlated.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}
