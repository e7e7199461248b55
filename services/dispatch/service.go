package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/upb/llm-chat-relay/internal/observability"
	"github.com/upb/llm-chat-relay/models"
	"github.com/upb/llm-chat-relay/services"
	"github.com/upb/llm-chat-relay/services/providers"
	"go.uber.org/zap"
)

// MaxMessageRunes is the inbound message length limit, counted in characters.
const MaxMessageRunes = 10000

// ChatRequest is a validated dispatch request.
type ChatRequest struct {
	Message string
	Model   string
}

// ChatResult is the outcome of a successful dispatch. Used names the model
// key that actually produced the reply, which differs from the requested key
// when a fallback served the request.
type ChatResult struct {
	Reply    string
	Used     string
	Attempts int
}

// Service dispatches chat requests against the requested model and, on
// failure, walks the catalog's fallback order until one model succeeds or
// every candidate has been tried. Attempts are strictly sequential and each
// model is attempted at most once per request.
type Service struct {
	catalog  *models.ModelCatalog
	provider providers.Provider
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewService creates a dispatch service. metrics may be nil.
func NewService(catalog *models.ModelCatalog, provider providers.Provider, logger *zap.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		catalog:  catalog,
		provider: provider,
		logger:   logger,
		metrics:  metrics,
	}
}

// Chat validates the request and runs the fallback loop. Validation failures
// reject immediately without any upstream attempt; per-attempt failures are
// absorbed until the candidate list is exhausted.
func (s *Service) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	var lastErr error
	attempts := 0

	for _, key := range s.candidates(req.Model) {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			break
		}

		attempts++
		start := time.Now()

		reply, err := s.attempt(ctx, key, req.Message)
		if err != nil {
			lastErr = err
			s.recordAttempt(key, "failure", time.Since(start))
			s.logger.Warn("model attempt failed",
				zap.String("model", key),
				zap.Int("attempt", attempts),
				zap.Int("upstream_status", providers.ErrorStatus(err)),
				zap.Error(err))
			continue
		}

		s.recordAttempt(key, "success", time.Since(start))
		s.recordDispatch("success", key)
		s.logger.Info("chat dispatched",
			zap.String("requested", req.Model),
			zap.String("used", key),
			zap.Int("attempts", attempts))

		return &ChatResult{Reply: reply, Used: key, Attempts: attempts}, nil
	}

	s.recordDispatch("exhausted", "")
	s.logger.Error("all models failed",
		zap.String("requested", req.Model),
		zap.Int("attempts", attempts),
		zap.Error(lastErr))

	exhausted := services.NewExhaustedError("all models failed", lastErr)
	if detail := providers.ErrorDetail(lastErr); detail != "" {
		exhausted.WithDetail("last_error", detail)
	}
	if status := providers.ErrorStatus(lastErr); status > 0 {
		exhausted.WithDetail("last_status", status)
	}
	return nil, exhausted
}

// validate applies the inbound request rules. Pure function of the request
// and the catalog; the message content itself is never modified.
func (s *Service) validate(req *ChatRequest) error {
	if strings.TrimSpace(req.Message) == "" {
		return services.NewValidationError("message is required")
	}
	if utf8.RuneCountInString(req.Message) > MaxMessageRunes {
		return services.NewValidationError(fmt.Sprintf("message exceeds the %d character limit", MaxMessageRunes))
	}
	if !s.catalog.Has(req.Model) {
		return services.NewValidationError(fmt.Sprintf("unknown model %q", req.Model))
	}
	return nil
}

// candidates returns the requested key followed by the fallback order with
// the requested key and any duplicates removed. No model appears twice.
func (s *Service) candidates(requested string) []string {
	seen := map[string]bool{requested: true}
	keys := []string{requested}

	for _, key := range s.catalog.FallbackOrder() {
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}

	return keys
}

// attempt performs one upstream call for one model key. A 2xx response with
// no choices is an empty reply, not a failure.
func (s *Service) attempt(ctx context.Context, key, message string) (string, error) {
	upstreamID, ok := s.catalog.Resolve(key)
	if !ok {
		return "", services.NewInternalError(fmt.Sprintf("model %q missing from catalog", key), nil)
	}

	resp, err := s.provider.ChatCompletion(ctx, &providers.ChatRequest{
		Model: upstreamID,
		Messages: []providers.Message{
			{Role: "user", Content: message},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *Service) recordAttempt(model, outcome string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordAttempt(model, outcome, elapsed)
	}
}

func (s *Service) recordDispatch(outcome, used string) {
	if s.metrics != nil {
		s.metrics.RecordDispatch(outcome, used)
	}
}
