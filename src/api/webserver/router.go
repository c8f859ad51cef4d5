package webserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stake-plus/factcheck/src/api/config"
	"github.com/stake-plus/factcheck/src/orchestrator"
	"github.com/stake-plus/factcheck/src/trial"
)

func attachRoutes(r *gin.Engine, cfg config.Config, orch *orchestrator.Orchestrator, quota *trial.Meter) {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Llm-Api-Key", "X-Trial-Id", "X-Request-Id"},
		ExposeHeaders: []string{"Content-Length", "X-Request-Id"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	} else {
		// Default audience is the browser extension plus local development.
		corsCfg.AllowOriginFunc = func(origin string) bool {
			lower := strings.ToLower(origin)
			return strings.HasPrefix(lower, "chrome-extension://") ||
				strings.HasPrefix(lower, "moz-extension://") ||
				strings.HasPrefix(lower, "http://localhost") ||
				strings.HasPrefix(lower, "https://localhost")
		}
	}
	r.Use(cors.New(corsCfg))

	h := NewHandler(orch, quota)

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/trial/status", h.TrialStatus)
		api.POST("/fact-check/selection", h.CheckSelection)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"err": "not found"})
	})
}
