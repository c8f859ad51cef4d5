package webserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health handles GET /api/health.
func (h Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"utcTime": time.Now().UTC().Format(time.RFC3339),
	})
}

// TrialStatus handles GET /api/trial/status so the extension popup can show
// remaining quota without spending tokens.
func (h Handler) TrialStatus(c *gin.Context) {
	if !h.quota.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{
			"title":  "Trial mode is not enabled",
			"status": http.StatusNotFound,
		})
		return
	}

	trialID := c.GetHeader("X-Trial-Id")
	if trialID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"title":  "Invalid trial status request",
			"status": http.StatusBadRequest,
			"errors": gin.H{"x-trial-id": []string{"X-Trial-Id header is required"}},
		})
		return
	}

	snap := h.quota.Snapshot(trialID)
	c.JSON(http.StatusOK, gin.H{
		"limitTokens":     snap.LimitTokens,
		"usedTokens":      snap.UsedTokens,
		"remainingTokens": snap.RemainingTokens,
		"exhausted":       snap.Exhausted,
	})
}
