package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/upb/llm-chat-relay/middleware"
	"github.com/upb/llm-chat-relay/services/dispatch"
	"github.com/upb/llm-chat-relay/utils"
	"go.uber.org/zap"
)

// ChatRequest is the inbound wire shape for POST /chat
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=10000"`
	Model   string `json:"model" validate:"required"`
}

// ChatResponse is the success wire shape. Used names the model key that
// produced the reply, which is the fallback model when the requested one
// failed.
type ChatResponse struct {
	Reply string `json:"reply"`
	Used  string `json:"used"`
}

// ChatService defines the interface for chat dispatch operations
type ChatService interface {
	Chat(ctx context.Context, req *dispatch.ChatRequest) (*dispatch.ChatResult, error)
}

// ChatHandler handles chat-related HTTP requests
type ChatHandler struct {
	service ChatService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChat handles POST /chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var chatReq ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "invalid request body")
		return
	}

	if err := utils.ValidateStruct(&chatReq); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	// The message content is forwarded exactly as received.
	result, err := h.service.Chat(ctx, &dispatch.ChatRequest{
		Message: chatReq.Message,
		Model:   chatReq.Model,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, ChatResponse{Reply: result.Reply, Used: result.Used}); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
