package dispatch

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-chat-relay/internal/observability"
	"github.com/upb/llm-chat-relay/models"
	"github.com/upb/llm-chat-relay/services"
	"github.com/upb/llm-chat-relay/services/providers"
	"go.uber.org/zap"
)

// fakeProvider records every upstream call and returns the configured
// outcome per upstream model identifier.
type fakeProvider struct {
	mu       sync.Mutex
	calls    []string
	messages []string
	outcomes map[string]fakeOutcome
}

type fakeOutcome struct {
	reply     string
	noChoices bool
	err       error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, req.Model)
	if len(req.Messages) > 0 {
		f.messages = append(f.messages, req.Messages[0].Content)
	}

	outcome, ok := f.outcomes[req.Model]
	if !ok {
		return nil, providers.NewProviderError("fake", providers.ErrCodeStatus, "no outcome configured", http.StatusInternalServerError, nil)
	}
	if outcome.err != nil {
		return nil, outcome.err
	}
	if outcome.noChoices {
		return &providers.ChatResponse{Model: req.Model}, nil
	}
	return &providers.ChatResponse{
		Model: req.Model,
		Choices: []providers.Choice{
			{Message: providers.Message{Role: "assistant", Content: outcome.reply}, FinishReason: "stop"},
		},
	}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func attemptFailure(status int) error {
	return providers.NewProviderError("fake", providers.ErrCodeStatus, "model unavailable", status, nil)
}

func testCatalog(t *testing.T) *models.ModelCatalog {
	t.Helper()
	catalog, err := models.NewModelCatalog(
		map[string]string{"a": "a-id", "b": "b-id", "c": "c-id"},
		[]string{"a", "b", "c"},
	)
	require.NoError(t, err)
	return catalog
}

func newTestService(t *testing.T, provider providers.Provider) *Service {
	t.Helper()
	return NewService(testCatalog(t), provider, zap.NewNop(), nil)
}

func TestChatValidationRejectsWithoutUpstreamAttempt(t *testing.T) {
	tests := []struct {
		name    string
		req     *ChatRequest
		wantMsg string
	}{
		{"empty message", &ChatRequest{Message: "", Model: "a"}, "message is required"},
		{"whitespace-only message", &ChatRequest{Message: " \t\n ", Model: "a"}, "message is required"},
		{"message too long", &ChatRequest{Message: strings.Repeat("x", MaxMessageRunes+1), Model: "a"}, "character limit"},
		{"unknown model", &ChatRequest{Message: "hello", Model: "nope"}, `unknown model "nope"`},
		{"missing model", &ChatRequest{Message: "hello", Model: ""}, "unknown model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{outcomes: map[string]fakeOutcome{}}
			svc := newTestService(t, provider)

			result, err := svc.Chat(context.Background(), tt.req)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, services.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Zero(t, provider.callCount(), "no upstream attempt on rejection")
		})
	}
}

func TestChatLengthLimitCountsRunesNotBytes(t *testing.T) {
	// 10000 multi-byte characters are within the limit even though the byte
	// length far exceeds it.
	provider := &fakeProvider{outcomes: map[string]fakeOutcome{
		"a-id": {reply: "ok"},
	}}
	svc := newTestService(t, provider)

	result, err := svc.Chat(context.Background(), &ChatRequest{
		Message: strings.Repeat("é", MaxMessageRunes),
		Model:   "a",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Reply)
	assert.Equal(t, 1, provider.callCount())
}

func TestChatRequestedModelSucceeds(t *testing.T) {
	provider := &fakeProvider{outcomes: map[string]fakeOutcome{
		"b-id": {reply: "from b"},
	}}
	svc := newTestService(t, provider)

	result, err := svc.Chat(context.Background(), &ChatRequest{Message: "hello", Model: "b"})
	require.NoError(t, err)
	assert.Equal(t, "from b", result.Reply)
	assert.Equal(t, "b", result.Used)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, []string{"b-id"}, provider.calls)
}

func TestChatFallbackToFirstAlternate(t *testing.T) {
	// Requested b fails; fallback order [a b c] skips b, a succeeds.
	provider := &fakeProvider{outcomes: map[string]fakeOutcome{
		"b-id": {err: attemptFailure(http.StatusServiceUnavailable)},
		"a-id": {reply: "from a"},
	}}
	svc := newTestService(t, provider)

	result, err := svc.Chat(context.Background(), &ChatRequest{Message: "hello", Model: "b"})
	require.NoError(t, err)
	assert.Equal(t, "from a", result.Reply)
	assert.Equal(t, "a", result.Used)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, []string{"b-id", "a-id"}, provider.calls, "requested model is never retried as a fallback")
}

func TestChatFallbackWalksOrderUntilSuccess(t *testing.T) {
	// Requested a fails, fallback skips a, b fails, c succeeds.
	provider := &fakeProvider{outcomes: map[string]fakeOutcome{
		"a-id": {err: attemptFailure(http.StatusInternalServerError)},
		"b-id": {err: attemptFailure(http.StatusTooManyRequests)},
		"c-id": {reply: "from c"},
	}}
	svc := newTestService(t, provider)

	result, err := svc.Chat(context.Background(), &ChatRequest{Message: "hello", Model: "a"})
	require.NoError(t, err)
	assert.Equal(t, "c", result.Used)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []string{"a-id", "b-id", "c-id"}, provider.calls)
}

func TestChatAllModelsExhausted(t *testing.T) {
	provider := &fakeProvider{outcomes: map[string]fakeOutcome{
		"a-id": {err: attemptFailure(http.StatusInternalServerError)},
		"b-id": {err: attemptFailure(http.StatusBadGateway)},
		"c-id": {err: attemptFailure(http.StatusTooManyRequests)},
	}}
	svc := newTestService(t, provider)

	result, err := svc.Chat(context.Background(), &ChatRequest{Message: "hello", Model: "b"})
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, services.IsExhaustedError(err))

	// 1 requested + |fallback order minus requested| = 3 total attempts.
	assert.Equal(t, 3, provider.callCount())
	assert.Equal(t, []string{"b-id", "a-id", "c-id"}, provider.calls)

	// The last attempt's detail is carried for diagnostics.
	details := services.GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "model unavailable", details["last_error"])
	assert.Equal(t, http.StatusTooManyRequests, details["last_status"])
}

func TestChatDuplicateFallbackEntriesAttemptedOnce(t *testing.T) {
	catalog, err := models.NewModelCatalog(
		map[string]string{"a": "a-id", "b": "b-id", "c": "c-id"},
		[]string{"a", "b", "b", "a", "c"},
	)
	require.NoError(t, err)

	provider := &fakeProvider{outcomes: map[string]fakeOutcome{
		"a-id": {err: attemptFailure(http.StatusInternalServerError)},
		"b-id": {err: attemptFailure(http.StatusInternalServerError)},
		"c-id": {err: attemptFailure(http.StatusInternalServerError)},
	}}
	svc := NewService(catalog, provider, zap.NewNop(), nil)

	_, err = svc.Chat(context.Background(), &ChatRequest{Message: "hello", Model: "a"})
	require.Error(t, err)
	assert.Equal(t, []string{"a-id", "b-id", "c-id"}, provider.calls, "no model attempted twice in one request")
}

func TestChatTimeoutFailureFeedsFallbackLikeAnyOther(t *testing.T) {
	timeoutErr := providers.NewProviderError("fake", providers.ErrCodeTimeout, "upstream call exceeded 25s", 0, context.DeadlineExceeded)
	provider := &fakeProvider{outcomes: map[string]fakeOutcome{
		"a-id": {err: timeoutErr},
		"b-id": {reply: "from b"},
	}}
	svc := newTestService(t, provider)

	result, err := svc.Chat(context.Background(), &ChatRequest{Message: "hello", Model: "a"})
	require.NoError(t, err)
	assert.Equal(t, "b", result.Used)
	assert.Equal(t, []string{"a-id", "b-id"}, provider.calls)
}

func TestChatEmptyChoicesIsEmptyReplySuccess(t *testing.T) {
	provider := &fakeProvider{outcomes: map[string]fakeOutcome{
		"a-id": {noChoices: true},
	}}
	svc := newTestService(t, provider)

	result, err := svc.Chat(context.Background(), &ChatRequest{Message: "hello", Model: "a"})
	require.NoError(t, err)
	assert.Empty(t, result.Reply)
	assert.Equal(t, "a", result.Used)
	assert.Equal(t, 1, provider.callCount(), "no fallback on a reachable malformed success")
}

func TestChatMessagePassedThroughUnmodified(t *testing.T) {
	provider := &fakeProvider{outcomes: map[string]fakeOutcome{
		"a-id": {reply: "ok"},
	}}
	svc := newTestService(t, provider)

	_, err := svc.Chat(context.Background(), &ChatRequest{Message: "  padded message  ", Model: "a"})
	require.NoError(t, err)
	require.Len(t, provider.messages, 1)
	assert.Equal(t, "  padded message  ", provider.messages[0], "trim is only used for emptiness detection")
}

func TestChatCancelledContextStopsTheLoop(t *testing.T) {
	provider := &fakeProvider{outcomes: map[string]fakeOutcome{}}
	svc := newTestService(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Chat(ctx, &ChatRequest{Message: "hello", Model: "a"})
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, provider.callCount())
}

func TestChatRecordsMetrics(t *testing.T) {
	metrics := observability.NewMetrics(nil)
	provider := &fakeProvider{outcomes: map[string]fakeOutcome{
		"b-id": {err: attemptFailure(http.StatusInternalServerError)},
		"a-id": {reply: "from a"},
	}}
	svc := NewService(testCatalog(t), provider, zap.NewNop(), metrics)

	_, err := svc.Chat(context.Background(), &ChatRequest{Message: "hello", Model: "b"})
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AttemptsTotal.WithLabelValues("b", "failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.AttemptsTotal.WithLabelValues("a", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.DispatchesTotal.WithLabelValues("success", "a")))
}
