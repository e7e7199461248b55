package handlers

import (
	"net/http"

	"github.com/upb/llm-chat-relay/app"
	"github.com/upb/llm-chat-relay/utils"
	"go.uber.org/zap"
)

// ModelsResponse lists the model keys callers may request and the order
// tried when the requested model fails.
type ModelsResponse struct {
	Models        []string `json:"models"`
	FallbackOrder []string `json:"fallback_order"`
}

// ModelsHandler handles GET /api/v1/models
func ModelsHandler(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := ModelsResponse{
			Models:        deps.Catalog.Keys(),
			FallbackOrder: deps.Catalog.FallbackOrder(),
		}

		if err := utils.WriteOK(w, response); err != nil {
			deps.Logger.Error("failed to write models response", zap.Error(err))
		}
	}
}
