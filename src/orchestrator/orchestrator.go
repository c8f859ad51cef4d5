// Package orchestrator composes the fact-check pipeline: provider
// resolution, evidence retrieval, the upstream LLM call, response
// normalization and trial quota accounting.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/stake-plus/factcheck/src/llm"
	"github.com/stake-plus/factcheck/src/retrieval"
	"github.com/stake-plus/factcheck/src/trial"
	"github.com/stake-plus/factcheck/src/types"
)

// ValidationError marks a request that cannot be processed as configured.
// The boundary maps it to a field-level 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Orchestrator struct {
	llm       *llm.Client
	retriever *retrieval.Service
	quota     *trial.Meter
}

func New(llmClient *llm.Client, retriever *retrieval.Service, quota *trial.Meter) *Orchestrator {
	return &Orchestrator{llm: llmClient, retriever: retriever, quota: quota}
}

// FactCheck runs the full pipeline for one request. apiKey may be empty, in
// which case the server's trial key is borrowed when trial mode covers the
// requested provider. Errors are *ValidationError, *trial.QuotaError,
// *llm.UpstreamError or *llm.FormatError.
func (o *Orchestrator) FactCheck(ctx context.Context, req *types.FactCheckRequest, apiKey, trialID string) (*types.FactCheckResponse, error) {
	prefs := req.UserPreferences

	// Retrieval is independent of provider resolution and the trial check,
	// so it runs while those complete.
	sourcesCh := make(chan []retrieval.Source, 1)
	go func() {
		sourcesCh <- o.retriever.Retrieve(ctx, req.SelectedText, req.SelectedLinks, prefs.MaxSources, prefs.BlockedDomains)
	}()

	provider, err := llm.NormalizeProvider(prefs.Provider)
	if err != nil {
		return nil, &ValidationError{Field: "userPreferences.provider", Message: err.Error()}
	}

	endpoint, err := llm.ResolveEndpoint(provider, prefs.Endpoint)
	if err != nil {
		return nil, &ValidationError{Field: "userPreferences.endpoint", Message: err.Error()}
	}

	trialMode := false
	if strings.TrimSpace(apiKey) == "" && o.quota.EnabledFor(provider) {
		if strings.TrimSpace(trialID) == "" {
			return nil, &ValidationError{Field: "x-trial-id", Message: "X-Trial-Id header is required for trial requests"}
		}
		if err := o.quota.EnsureCanUse(trialID); err != nil {
			return nil, err
		}
		apiKey = o.quota.APIKey()
		trialMode = true
	}

	sources := <-sourcesCh

	payload := buildPayload(req, sources)
	completion, err := o.llm.Complete(ctx, endpoint, provider, apiKey, payload)
	if err != nil {
		return nil, err
	}

	cleaned := stripCodeFences(completion.Content)

	var parsed types.FactCheckResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		log.Printf("orchestrator: LLM output was not valid JSON for the expected schema: %v content=%s", err, truncateForLog(cleaned))
		return nil, &llm.FormatError{Message: "LLM returned invalid JSON", Err: err}
	}

	fillMeta(&parsed, req, sources, completion.Usage)
	normalizeProbabilities(&parsed)

	if trialMode {
		snapshot, chargeErr := o.quota.Charge(trialID, consumedTokens(completion.Usage, req.SelectedText))
		if chargeErr != nil {
			return nil, chargeErr
		}
		parsed.Meta.Trial = &types.TrialInfo{
			LimitTokens:     snapshot.LimitTokens,
			UsedTokens:      snapshot.UsedTokens,
			RemainingTokens: snapshot.RemainingTokens,
			Exhausted:       snapshot.Exhausted,
		}
	}

	return &parsed, nil
}

func buildPayload(req *types.FactCheckRequest, sources []retrieval.Source) map[string]any {
	return map[string]any{
		"model": req.UserPreferences.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "developer", "content": developerPrompt},
			{"role": "user", "content": buildUserPrompt(req, sources)},
		},
		"temperature": strictnessTemperature(req.UserPreferences.Strictness),
		"response_format": map[string]string{
			"type": "json_object",
		},
	}
}

// fillMeta overwrites the server-authoritative fields. The model's own meta
// claims are discarded: page context comes from the request and the checked
// source list from the actual retrieval result.
func fillMeta(resp *types.FactCheckResponse, req *types.FactCheckRequest, sources []retrieval.Source, usage llm.Usage) {
	resp.Meta.PageURL = req.PageURL
	resp.Meta.PageTitle = req.PageTitle
	resp.Meta.Locale = req.Locale

	checked := make([]types.CheckedSource, 0, len(sources))
	for _, source := range sources {
		checked = append(checked, types.CheckedSource{
			URL:             source.URL,
			Title:           source.Title,
			RetrievalStatus: source.Status,
		})
	}
	resp.Meta.CheckedSources = checked

	resp.Meta.PromptTokens = usage.PromptTokens
	resp.Meta.CompletionTokens = usage.CompletionTokens
	resp.Meta.TotalTokens = usage.TotalTokens
}

// consumedTokens prefers the provider's total, then the summed sides, then a
// crude length/4 estimate so trial usage always moves forward.
func consumedTokens(usage llm.Usage, selectedText string) int {
	if usage.TotalTokens != nil {
		return *usage.TotalTokens
	}
	if usage.PromptTokens != nil || usage.CompletionTokens != nil {
		sum := 0
		if usage.PromptTokens != nil {
			sum += *usage.PromptTokens
		}
		if usage.CompletionTokens != nil {
			sum += *usage.CompletionTokens
		}
		return sum
	}
	estimate := len(selectedText) / 4
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

// stripCodeFences removes a single wrapping markdown fence (```/```json)
// when the model ignored the pure-JSON instruction.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 3 {
		return trimmed
	}
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
}

func truncateForLog(s string) string {
	if len(s) <= 2048 {
		return s
	}
	return s[:2048] + "... (truncated)"
}
