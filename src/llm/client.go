package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/stake-plus/factcheck/src/webclient"
)

// Usage is the token accounting reported by the provider. Fields are nil
// when the provider omitted them.
type Usage struct {
	PromptTokens     *int
	CompletionTokens *int
	TotalTokens      *int
}

// Completion is the assistant output of a single chat completions call.
type Completion struct {
	Content string
	Usage   Usage
}

// Client calls an OpenAI-compatible chat completions endpoint. The endpoint
// is resolved per request; the client itself is provider-agnostic.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 240 * time.Second
	}
	return &Client{httpClient: webclient.NewDefault(timeout)}
}

// Complete posts the payload and decodes the response envelope. A non-2xx
// status becomes an *UpstreamError and is never retried; an undecodable
// envelope becomes a *FormatError.
func (c *Client) Complete(ctx context.Context, endpoint, provider, apiKey string, payload any) (*Completion, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal llm payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	ApplyAuthHeaders(req, provider, apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read llm response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return decodeEnvelope(respBody)
}

type envelope struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *usageBlock `json:"usage"`
}

type usageBlock struct {
	PromptTokens     *int `json:"prompt_tokens"`
	CompletionTokens *int `json:"completion_tokens"`
	TotalTokens      *int `json:"total_tokens"`
	InputTokens      *int `json:"input_tokens"`
	OutputTokens     *int `json:"output_tokens"`
}

func decodeEnvelope(body []byte) (*Completion, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Printf("llm: failed to decode envelope body=%s", truncatePayload(body, 1024))
		return nil, &FormatError{Message: "LLM response was not valid JSON", Err: err}
	}

	if len(env.Choices) == 0 {
		return nil, &FormatError{Message: "LLM response did not include choices"}
	}

	content, err := extractContent(env.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &Completion{Content: content, Usage: extractUsage(env.Usage)}, nil
}

// extractContent accepts either a plain string or an array of {text} parts,
// which some providers emit for multi-part messages.
func extractContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", &FormatError{Message: "LLM response did not include message content"}
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var parts []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parts); err == nil {
		var buf bytes.Buffer
		for _, p := range parts {
			buf.WriteString(p.Text)
		}
		return buf.String(), nil
	}

	return "", &FormatError{Message: "LLM message content was not a supported format"}
}

// extractUsage merges the OpenAI field names with the input/output_tokens
// aliases some providers use. Total falls back to the sum when only one
// side is reported.
func extractUsage(u *usageBlock) Usage {
	if u == nil {
		return Usage{}
	}

	prompt := u.PromptTokens
	if prompt == nil {
		prompt = u.InputTokens
	}
	completion := u.CompletionTokens
	if completion == nil {
		completion = u.OutputTokens
	}
	total := u.TotalTokens
	if total == nil && (prompt != nil || completion != nil) {
		sum := 0
		if prompt != nil {
			sum += *prompt
		}
		if completion != nil {
			sum += *completion
		}
		total = &sum
	}

	return Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}

func truncatePayload(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "... (truncated)"
}
