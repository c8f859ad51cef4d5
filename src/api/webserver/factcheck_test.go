package webserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/factcheck/src/api/config"
	"github.com/stake-plus/factcheck/src/llm"
	"github.com/stake-plus/factcheck/src/orchestrator"
	"github.com/stake-plus/factcheck/src/retrieval"
	"github.com/stake-plus/factcheck/src/trial"
	"github.com/stake-plus/factcheck/src/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, trialCfg trial.Config) *gin.Engine {
	t.Helper()
	quota := trial.NewMeter(trialCfg)
	retriever := retrieval.NewService(retrieval.Config{
		Timeout:   2 * time.Second,
		ProxyBase: "http://127.0.0.1:0/",
	})
	orch := orchestrator.New(llm.NewClient(5*time.Second), retriever, quota)
	return New(config.Config{}, orch, quota)
}

func newUpstream(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func validBody(endpoint string) map[string]any {
	return map[string]any{
		"selectedText": "Water boils at 100C at sea level.",
		"pageUrl":      "https://science.example/boiling",
		"pageTitle":    "Boiling points",
		"locale":       "en-US",
		"userPreferences": map[string]any{
			"provider":       "custom",
			"endpoint":       endpoint,
			"model":          "test-model",
			"strictness":     "medium",
			"answerLanguage": "auto",
			"maxSources":     5,
		},
	}
}

func doPost(r *gin.Engine, body map[string]any, headers map[string]string) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/fact-check/selection", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t, trial.Config{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestCheckSelectionValidation(t *testing.T) {
	r := newTestRouter(t, trial.Config{})

	cases := []struct {
		name     string
		mutate   func(map[string]any)
		errField string
	}{
		{
			name: "missing selectedText",
			mutate: func(b map[string]any) {
				b["selectedText"] = "   "
			},
			errField: "selectedText",
		},
		{
			name: "maxSources out of range",
			mutate: func(b map[string]any) {
				b["userPreferences"].(map[string]any)["maxSources"] = 9
			},
			errField: "userPreferences.maxSources",
		},
		{
			name: "bad strictness",
			mutate: func(b map[string]any) {
				b["userPreferences"].(map[string]any)["strictness"] = "extreme"
			},
			errField: "userPreferences.strictness",
		},
		{
			name: "unknown provider",
			mutate: func(b map[string]any) {
				b["userPreferences"].(map[string]any)["provider"] = "mystery"
			},
			errField: "userPreferences.provider",
		},
		{
			name: "missing answerLanguage",
			mutate: func(b map[string]any) {
				b["userPreferences"].(map[string]any)["answerLanguage"] = ""
			},
			errField: "userPreferences.answerLanguage",
		},
		{
			name: "openai without key",
			mutate: func(b map[string]any) {
				prefs := b["userPreferences"].(map[string]any)
				prefs["provider"] = "openai"
				prefs["endpoint"] = ""
			},
			errField: "x-llm-api-key",
		},
		{
			name: "apiKeyPresent without header",
			mutate: func(b map[string]any) {
				b["userPreferences"].(map[string]any)["apiKeyPresent"] = true
			},
			errField: "x-llm-api-key",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := validBody("http://127.0.0.1:0")
			tc.mutate(body)

			rr := doPost(r, body, nil)
			require.Equal(t, http.StatusBadRequest, rr.Code)

			var parsed struct {
				Errors map[string][]string `json:"errors"`
			}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &parsed))
			assert.Contains(t, parsed.Errors, tc.errField)
		})
	}
}

func TestCheckSelectionMalformedJSON(t *testing.T) {
	r := newTestRouter(t, trial.Config{})
	req := httptest.NewRequest(http.MethodPost, "/api/fact-check/selection", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCheckSelectionTrialMissingTrialID(t *testing.T) {
	trialCfg := trial.Config{Enabled: true, Provider: "openai", APIKey: "sk-trial", TokenLimit: 1000}
	r := newTestRouter(t, trialCfg)

	body := validBody("")
	body["userPreferences"].(map[string]any)["provider"] = "openai"

	rr := doPost(r, body, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "x-trial-id")
}

func TestCheckSelectionSuccess(t *testing.T) {
	model := `{"claims":[{"claim":"c","verdict":"SUPPORTED","confidence":0.9}],"overallAssessment":{"summary":"s"}}`
	envelope, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": model}}},
		"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5},
	})
	upstream := newUpstream(t, http.StatusOK, string(envelope))

	r := newTestRouter(t, trial.Config{})
	rr := doPost(r, validBody(upstream.URL), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp types.FactCheckResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "https://science.example/boiling", resp.Meta.PageURL)
	require.NotNil(t, resp.Meta.TotalTokens)
	assert.Equal(t, 15, *resp.Meta.TotalTokens)
	require.Len(t, resp.Claims, 1)
	require.NotNil(t, resp.Claims[0].TruthProbability)
	assert.InDelta(t, 0.9, *resp.Claims[0].TruthProbability, 1e-9)
}

func TestCheckSelectionUpstreamErrorMapsTo502(t *testing.T) {
	upstream := newUpstream(t, http.StatusTooManyRequests, `{"error":"overloaded"}`)

	r := newTestRouter(t, trial.Config{})
	rr := doPost(r, validBody(upstream.URL), nil)

	require.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "overloaded")
}

func TestCheckSelectionFormatErrorMapsTo502(t *testing.T) {
	upstream := newUpstream(t, http.StatusOK, "garbage that is not an envelope")

	r := newTestRouter(t, trial.Config{})
	rr := doPost(r, validBody(upstream.URL), nil)

	require.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid response from LLM provider")
}

func TestCheckSelectionQuotaExceededMapsTo402(t *testing.T) {
	trialCfg := trial.Config{Enabled: true, Provider: "custom", APIKey: "sk-trial", TokenLimit: 100}
	quota := trial.NewMeter(trialCfg)
	_, err := quota.Charge("client-1", 100)
	require.NoError(t, err)

	retriever := retrieval.NewService(retrieval.Config{Timeout: 2 * time.Second, ProxyBase: "http://127.0.0.1:0/"})
	orch := orchestrator.New(llm.NewClient(5*time.Second), retriever, quota)
	r := New(config.Config{}, orch, quota)

	body := validBody("http://127.0.0.1:0")
	rr := doPost(r, body, map[string]string{"X-Trial-Id": "client-1"})

	require.Equal(t, http.StatusPaymentRequired, rr.Code)
	assert.Contains(t, rr.Body.String(), "Trial quota exhausted")
	assert.Contains(t, rr.Body.String(), `"limitTokens":100`)
}

func TestTrialStatusEndpoint(t *testing.T) {
	trialCfg := trial.Config{Enabled: true, Provider: "openai", APIKey: "sk-trial", TokenLimit: 500}
	r := newTestRouter(t, trialCfg)

	req := httptest.NewRequest(http.MethodGet, "/api/trial/status", nil)
	req.Header.Set("X-Trial-Id", "client-7")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"remainingTokens":500`)

	// Without the header the request is rejected.
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/trial/status", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTrialStatusDisabled(t *testing.T) {
	r := newTestRouter(t, trial.Config{})
	req := httptest.NewRequest(http.MethodGet, "/api/trial/status", nil)
	req.Header.Set("X-Trial-Id", "client-7")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
