package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/foiacoach/backend/internal/application/services"
	apperrors "github.com/foiacoach/backend/pkg/errors"
)

// AskHandler answers FOIA questions via the configured RAG provider
type AskHandler struct {
	queryService *services.QueryService
}

// NewAskHandler creates a new ask handler
func NewAskHandler(queryService *services.QueryService) *AskHandler {
	return &AskHandler{
		queryService: queryService,
	}
}

type askRequest struct {
	Question string `json:"question"`
	Provider string `json:"provider,omitempty"`
}

// Ask handles POST /api/v1/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := h.queryService.Ask(r.Context(), req.Provider, req.Question)
	if err != nil {
		switch {
		case apperrors.IsType(err, apperrors.ErrorTypeValidation):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case apperrors.IsType(err, apperrors.ErrorTypeProviderConfig):
			respondWithError(w, http.StatusServiceUnavailable, "provider is not configured")
		default:
			respondWithError(w, http.StatusBadGateway, "failed to answer question")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, answer)
}
