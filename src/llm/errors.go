package llm

import "fmt"

// UpstreamError is a non-success status from the LLM provider. The raw body
// is carried so the boundary can surface the provider's own error message.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("llm provider returned status %d", e.StatusCode)
}

// FormatError means the provider answered 2xx but the envelope or the
// embedded fact-check JSON could not be parsed into the expected shape.
type FormatError struct {
	Message string
	Err     error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FormatError) Unwrap() error { return e.Err }
