package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AndreiKevin/omniquest-api/internal/api/response"
	"github.com/AndreiKevin/omniquest-api/internal/oqerrors"
	"github.com/AndreiKevin/omniquest-api/internal/service"
)

// RecommendationQueryService defines the recommendation operation the handler needs.
type RecommendationQueryService interface {
	Recommend(ctx context.Context, query string, topK int) (service.Recommendation, error)
}

// ChatHandler handles HTTP requests for chat-style product recommendations.
type ChatHandler struct {
	service RecommendationQueryService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(service RecommendationQueryService) *ChatHandler {
	return &ChatHandler{service: service}
}

// ChatRequest is the body for POST /chat.
type ChatRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// ChatResponse is the response for POST /chat.
type ChatResponse struct {
	Message  string            `json:"message"`
	Products []ProductResponse `json:"products"`
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	rec, err := h.service.Recommend(r.Context(), req.Query, req.TopK)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyQuery):
			response.RespondBadRequest(w, "query is required and must be non-empty")
		case errors.Is(err, oqerrors.ErrUnavailable):
			response.RespondServiceUnavailable(w, "Recommendations are not available on this deployment")
		default:
			response.RespondBadGateway(w, "Recommendation failed")
		}

		return
	}

	response.RespondJSON(w, http.StatusOK, ChatResponse{
		Message:  rec.Message,
		Products: toProductResponses(rec.Products),
	})
}
