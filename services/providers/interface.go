package providers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the unified request sent to an upstream provider. Model
// carries the fully-qualified upstream identifier, already resolved from the
// caller-facing model key.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// ChatResponse is the unified response from an upstream provider.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider is implemented by upstream LLM API adapters. ChatCompletion
// performs exactly one upstream call, bounded by the adapter's per-attempt
// timeout, and every failure it returns is a *ProviderError.
type Provider interface {
	Name() string
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Config holds the settings shared by provider adapters.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Error codes attached to ProviderError.
const (
	ErrCodeHTTP      = "HTTP_ERROR"
	ErrCodeTimeout   = "TIMEOUT"
	ErrCodeStatus    = "UPSTREAM_STATUS"
	ErrCodeMarshal   = "MARSHAL_ERROR"
	ErrCodeUnmarshal = "UNMARSHAL_ERROR"
	ErrCodeRequest   = "REQUEST_ERROR"
)

// ProviderError is the normalized failure of a single upstream attempt.
// Message prefers the structured error from the upstream payload when one is
// present, falling back to a transport-level description.
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a normalized provider error.
func NewProviderError(provider, code, message string, statusCode int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// ErrorDetail extracts the normalized detail string from an attempt error.
func ErrorDetail(err error) string {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// ErrorStatus extracts the upstream status code from an attempt error, or 0
// when the failure happened before a status was received.
func ErrorStatus(err error) int {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.StatusCode
	}
	return 0
}
