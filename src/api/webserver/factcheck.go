package webserver

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/factcheck/src/i18n"
	"github.com/stake-plus/factcheck/src/llm"
	"github.com/stake-plus/factcheck/src/orchestrator"
	"github.com/stake-plus/factcheck/src/trial"
	"github.com/stake-plus/factcheck/src/types"
)

type Handler struct {
	orch  *orchestrator.Orchestrator
	quota *trial.Meter
}

func NewHandler(orch *orchestrator.Orchestrator, quota *trial.Meter) Handler {
	return Handler{orch: orch, quota: quota}
}

// CheckSelection handles POST /api/fact-check/selection.
func (h Handler) CheckSelection(c *gin.Context) {
	var req types.FactCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"title":  "Invalid fact-check request",
			"status": http.StatusBadRequest,
			"errors": gin.H{"body": []string{err.Error()}},
		})
		return
	}

	apiKey := strings.TrimSpace(c.GetHeader("X-Llm-Api-Key"))
	trialID := strings.TrimSpace(c.GetHeader("X-Trial-Id"))

	if fieldErrors := h.validateRequest(&req, apiKey, trialID); len(fieldErrors) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"title":  "Invalid fact-check request",
			"status": http.StatusBadRequest,
			"errors": fieldErrors,
		})
		return
	}

	result, err := h.orch.FactCheck(c.Request.Context(), &req, apiKey, trialID)
	if err != nil {
		h.writeError(c, &req, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// validateRequest mirrors the extension contract: it returns per-field
// messages so the options page can point at the offending setting.
func (h Handler) validateRequest(req *types.FactCheckRequest, apiKey, trialID string) map[string][]string {
	fieldErrors := make(map[string][]string)
	prefs := req.UserPreferences

	if strings.TrimSpace(req.SelectedText) == "" {
		fieldErrors["selectedText"] = []string{"selectedText is required"}
	}

	if prefs.MaxSources < 3 || prefs.MaxSources > 8 {
		fieldErrors["userPreferences.maxSources"] = []string{"maxSources must be between 3 and 8"}
	}

	switch strings.ToLower(strings.TrimSpace(prefs.Strictness)) {
	case "low", "medium", "high":
	default:
		fieldErrors["userPreferences.strictness"] = []string{"strictness must be one of: low, medium, high"}
	}

	if strings.TrimSpace(prefs.AnswerLanguage) == "" {
		fieldErrors["userPreferences.answerLanguage"] = []string{"answerLanguage is required"}
	}

	provider, err := llm.NormalizeProvider(prefs.Provider)
	if err != nil {
		fieldErrors["userPreferences.provider"] = []string{err.Error()}
		return fieldErrors
	}

	if llm.RequiresAPIKey(provider) && apiKey == "" {
		if h.quota.EnabledFor(provider) {
			if trialID == "" {
				fieldErrors["x-trial-id"] = []string{"X-Trial-Id header is required when no API key is supplied"}
			}
		} else {
			fieldErrors["x-llm-api-key"] = []string{provider + " requires X-Llm-Api-Key header"}
		}
	}

	if prefs.APIKeyPresent && apiKey == "" {
		fieldErrors["x-llm-api-key"] = []string{"apiKeyPresent=true but X-Llm-Api-Key header was empty"}
	}

	return fieldErrors
}

func (h Handler) writeError(c *gin.Context, req *types.FactCheckRequest, err error) {
	var validationErr *orchestrator.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"title":  "Invalid configuration",
			"detail": validationErr.Message,
			"status": http.StatusBadRequest,
			"errors": gin.H{validationErr.Field: []string{validationErr.Message}},
		})
		return
	}

	var quotaErr *trial.QuotaError
	if errors.As(err, &quotaErr) {
		msg := i18n.QuotaExceeded(req.Locale, quotaErr.LimitTokens)
		c.JSON(http.StatusPaymentRequired, gin.H{
			"title":       msg.Title,
			"detail":      msg.Detail,
			"status":      http.StatusPaymentRequired,
			"limitTokens": quotaErr.LimitTokens,
		})
		return
	}

	var upstreamErr *llm.UpstreamError
	if errors.As(err, &upstreamErr) {
		log.Printf("webserver: LLM provider returned status %d", upstreamErr.StatusCode)
		c.JSON(http.StatusBadGateway, gin.H{
			"title":  "LLM provider error",
			"detail": upstreamErr.Body,
			"status": http.StatusBadGateway,
		})
		return
	}

	var formatErr *llm.FormatError
	if errors.As(err, &formatErr) {
		log.Printf("webserver: LLM response format was invalid: %v", formatErr)
		c.JSON(http.StatusBadGateway, gin.H{
			"title":  "Invalid response from LLM provider",
			"detail": formatErr.Message,
			"status": http.StatusBadGateway,
		})
		return
	}

	log.Printf("webserver: fact-check failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"title":  "Internal error",
		"status": http.StatusInternalServerError,
	})
}
