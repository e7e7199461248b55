package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/upb/llm-chat-relay/services/providers"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 25 * time.Second
)

// Adapter implements the Provider interface for OpenAI-compatible chat
// completion APIs. Each ChatCompletion call is bounded by the configured
// per-attempt timeout.
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
}

// New creates a new adapter. BaseURL and Timeout fall back to defaults when
// unset; the timeout is always finite.
func New(config providers.Config) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return "openai"
}

// ChatCompletion performs exactly one upstream call and normalizes its
// outcome. All failure modes come back as a *providers.ProviderError; no raw
// transport error crosses this boundary.
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.ErrCodeMarshal, "failed to marshal request", 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.ErrCodeRequest, "failed to create request", 0, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return nil, providers.NewProviderError(a.Name(), providers.ErrCodeTimeout,
				fmt.Sprintf("upstream call exceeded %s", a.config.Timeout), 0, err)
		}
		return nil, providers.NewProviderError(a.Name(), providers.ErrCodeHTTP, "upstream request failed", 0, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.ErrCodeHTTP, "failed to read response", httpResp.StatusCode, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var chatResp providers.ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.ErrCodeUnmarshal, "failed to unmarshal response", httpResp.StatusCode, err)
	}

	return &chatResp, nil
}

// handleErrorResponse normalizes a non-2xx upstream response, preferring the
// structured error message from the payload when one is present.
func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return providers.NewProviderError(a.Name(), providers.ErrCodeStatus, errResp.Error.Message, statusCode,
			errors.New(errResp.Error.Message))
	}

	return providers.NewProviderError(a.Name(), providers.ErrCodeStatus,
		fmt.Sprintf("upstream returned status %d", statusCode), statusCode, nil)
}

func isClientTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// errorResponse is the error payload shape of OpenAI-compatible APIs.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}
