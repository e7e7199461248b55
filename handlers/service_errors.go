package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/upb/llm-chat-relay/services"
	"github.com/upb/llm-chat-relay/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Caller-input
// rejections become 400; fallback exhaustion and everything else become 500.
// The upstream credential never appears in any response.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var domainErr *services.DomainError
	message := err.Error()
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}

	switch {
	case services.IsValidationError(err):
		if writeErr := utils.WriteBadRequest(w, message); writeErr != nil {
			logger.Error("failed to write bad request response", zap.Error(writeErr))
		}

	case services.IsExhaustedError(err):
		if writeErr := utils.WriteInternalServerError(w, message, exhaustionDetails(err)); writeErr != nil {
			logger.Error("failed to write exhaustion response", zap.Error(writeErr))
		}

	default:
		logger.Error("unhandled service error",
			zap.String("error_type", string(services.GetErrorType(err))),
			zap.Error(err))
		if writeErr := utils.WriteInternalServerError(w, "an unexpected error occurred", ""); writeErr != nil {
			logger.Error("failed to write internal error response", zap.Error(writeErr))
		}
	}
}

// exhaustionDetails flattens the last-attempt diagnostics into the details
// string of the error response.
func exhaustionDetails(err error) string {
	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		return ""
	}

	parts := make([]string, 0, len(details))
	if lastErr, ok := details["last_error"].(string); ok && lastErr != "" {
		parts = append(parts, lastErr)
	}
	if status, ok := details["last_status"].(int); ok && status > 0 {
		parts = append(parts, fmt.Sprintf("last upstream status %d", status))
	}
	return strings.Join(parts, "; ")
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	message := err.Error()

	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		msgs := make([]string, 0, len(fields))
		for _, m := range fields {
			msgs = append(msgs, m)
		}
		sort.Strings(msgs)
		if len(msgs) > 0 {
			message = strings.Join(msgs, "; ")
		}
	}

	if writeErr := utils.WriteBadRequest(w, message); writeErr != nil {
		logger.Error("failed to write validation error response", zap.Error(writeErr))
	}
}
