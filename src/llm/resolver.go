package llm

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/stake-plus/factcheck/src/types"
)

const defaultOpenAIEndpoint = "https://api.openai.com"

// NormalizeProvider maps the caller's provider name to its canonical form.
func NormalizeProvider(provider string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case types.ProviderOpenAI:
		return types.ProviderOpenAI, nil
	case types.ProviderAzureOpenAI:
		return types.ProviderAzureOpenAI, nil
	case types.ProviderCustom:
		return types.ProviderCustom, nil
	case "":
		return "", fmt.Errorf("provider is required")
	default:
		return "", fmt.Errorf("provider must be one of: openai, azure_openai, custom")
	}
}

// RequiresAPIKey reports whether the provider cannot be called anonymously.
func RequiresAPIKey(provider string) bool {
	return provider == types.ProviderOpenAI || provider == types.ProviderAzureOpenAI
}

// ResolveEndpoint turns the user-configured endpoint into a concrete chat
// completions URL. Azure endpoints must already be complete, including the
// api-version query parameter; the other providers get the standard
// /v1/chat/completions path appended as needed.
func ResolveEndpoint(provider, endpoint string) (string, error) {
	switch provider {
	case types.ProviderOpenAI:
		if strings.TrimSpace(endpoint) == "" {
			endpoint = defaultOpenAIEndpoint
		}
		return resolveOpenAICompatible(endpoint)
	case types.ProviderCustom:
		return resolveOpenAICompatible(endpoint)
	case types.ProviderAzureOpenAI:
		return resolveAzure(endpoint)
	default:
		return "", fmt.Errorf("unsupported provider %q", provider)
	}
}

func resolveOpenAICompatible(endpoint string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmed == "" {
		return "", fmt.Errorf("endpoint is required for custom provider")
	}

	var resolved string
	switch {
	case strings.Contains(strings.ToLower(trimmed), "/chat/completions"):
		resolved = trimmed
	case strings.HasSuffix(strings.ToLower(trimmed), "/v1"):
		resolved = trimmed + "/chat/completions"
	default:
		resolved = trimmed + "/v1/chat/completions"
	}

	if _, err := url.ParseRequestURI(resolved); err != nil {
		return "", fmt.Errorf("endpoint is not a valid URL: %w", err)
	}
	return resolved, nil
}

func resolveAzure(endpoint string) (string, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return "", fmt.Errorf("endpoint is required for azure_openai and should include /chat/completions and api-version query parameter")
	}
	if !strings.Contains(strings.ToLower(trimmed), "/chat/completions") {
		return "", fmt.Errorf("azure_openai endpoint must be a full chat completions URL ending with /chat/completions?api-version=...")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return "", fmt.Errorf("endpoint is not a valid URL: %w", err)
	}
	return trimmed, nil
}

// ApplyAuthHeaders attaches provider-appropriate authentication. A missing
// key is a no-op so unauthenticated custom endpoints keep working.
func ApplyAuthHeaders(req *http.Request, provider, apiKey string) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return
	}
	if provider == types.ProviderAzureOpenAI {
		req.Header.Set("api-key", key)
		return
	}
	req.Header.Set("Authorization", "Bearer "+key)
}
