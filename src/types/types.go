package types

// Providers accepted by the fact-check API. Everything speaks the
// OpenAI-compatible chat completions wire format.
const (
	ProviderOpenAI      = "openai"
	ProviderAzureOpenAI = "azure_openai"
	ProviderCustom      = "custom"
)

// Retrieval status values attached to each checked source.
const (
	StatusFetchedDirect   = "fetched-direct"
	StatusFetchedViaProxy = "fetched-via-proxy"
	StatusBlocked         = "blocked"
	StatusFailed          = "failed"
)

// Verdicts the model may assign to a claim.
const (
	VerdictSupported  = "SUPPORTED"
	VerdictDisputed   = "DISPUTED"
	VerdictMisleading = "MISLEADING"
	VerdictUnclear    = "UNCLEAR"
)

// FactCheckRequest is the body of POST /api/fact-check/selection.
// It is treated as immutable once bound.
type FactCheckRequest struct {
	SelectedText    string      `json:"selectedText"`
	SelectedLinks   []string    `json:"selectedLinks"`
	PageURL         string      `json:"pageUrl"`
	PageTitle       string      `json:"pageTitle"`
	Locale          string      `json:"locale"`
	UserPreferences Preferences `json:"userPreferences"`
}

// Preferences carries the extension-side settings relevant to a single check.
type Preferences struct {
	Provider       string   `json:"provider"`
	Endpoint       string   `json:"endpoint"`
	Model          string   `json:"model"`
	APIKeyPresent  bool     `json:"apiKeyPresent"`
	Strictness     string   `json:"strictness"`
	AnswerLanguage string   `json:"answerLanguage"`
	MaxSources     int      `json:"maxSources"`
	TrustedDomains []string `json:"trustedDomains"`
	BlockedDomains []string `json:"blockedDomains"`
}

// FactCheckResponse is the normalized result returned to the extension.
// The model produces the claims and overall assessment; meta fields are
// overwritten server-side and must never be trusted from model output.
type FactCheckResponse struct {
	Meta              Meta              `json:"meta"`
	Claims            []Claim           `json:"claims"`
	OverallAssessment OverallAssessment `json:"overallAssessment"`
}

type Meta struct {
	PageURL          string          `json:"pageUrl"`
	PageTitle        string          `json:"pageTitle"`
	Locale           string          `json:"locale"`
	CheckedSources   []CheckedSource `json:"checkedSources"`
	PromptTokens     *int            `json:"promptTokens,omitempty"`
	CompletionTokens *int            `json:"completionTokens,omitempty"`
	TotalTokens      *int            `json:"totalTokens,omitempty"`
	Trial            *TrialInfo      `json:"trial,omitempty"`
}

type CheckedSource struct {
	URL             string `json:"url"`
	Title           string `json:"title"`
	RetrievalStatus string `json:"retrievalStatus"`
}

// TrialInfo reports post-request quota state when the server's trial key
// was used for the call.
type TrialInfo struct {
	LimitTokens     int  `json:"limitTokens"`
	UsedTokens      int  `json:"usedTokens"`
	RemainingTokens int  `json:"remainingTokens"`
	Exhausted       bool `json:"exhausted"`
}

// Claim is one atomic, checkable statement extracted from the selection.
// TruthProbability is optional in model output and always populated after
// normalization.
type Claim struct {
	Claim            string   `json:"claim"`
	Verdict          string   `json:"verdict"`
	Confidence       float64  `json:"confidence"`
	TruthProbability *float64 `json:"truthProbability"`
	ShortExplanation string   `json:"shortExplanation"`
	SearchQueries    []string `json:"searchQueries"`
	EvidenceNeeded   []string `json:"evidenceNeeded"`
	Notes            []string `json:"notes"`
}

type OverallAssessment struct {
	Summary          string   `json:"summary"`
	TruthProbability *float64 `json:"truthProbability"`
	KeyRisks         []string `json:"keyRisks"`
	WhatToCheckNext  []string `json:"whatToCheckNext"`
}
