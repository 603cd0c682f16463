package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/domain/repositories"
	apperrors "github.com/foiacoach/backend/pkg/errors"
)

// ResourceHandler serves jurisdiction resources and their upload status
type ResourceHandler struct {
	resourceRepo repositories.ResourceRepository
	uploadRepo   repositories.UploadRepository
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler(resourceRepo repositories.ResourceRepository, uploadRepo repositories.UploadRepository) *ResourceHandler {
	return &ResourceHandler{
		resourceRepo: resourceRepo,
		uploadRepo:   uploadRepo,
	}
}

// ListResources handles GET /api/v1/resources
func (h *ResourceHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := repositories.ResourceFilter{
		State:        query.Get("state"),
		ResourceType: entities.ResourceType(query.Get("type")),
		ActiveOnly:   query.Get("include_inactive") != "true",
		Limit:        100,
	}
	if limit := query.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	resources, err := h.resourceRepo.List(r.Context(), filter)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list resources")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"resources": resources,
		"count":     len(resources),
	})
}

// GetResource handles GET /api/v1/resources/{id}
func (h *ResourceHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	resourceID := r.PathValue("id")
	if resourceID == "" {
		respondWithError(w, http.StatusBadRequest, "resource ID is required")
		return
	}

	resource, err := h.resourceRepo.GetByID(r.Context(), resourceID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			respondWithError(w, http.StatusNotFound, "resource not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, resource)
}

// GetResourceUploads handles GET /api/v1/resources/{id}/uploads
func (h *ResourceHandler) GetResourceUploads(w http.ResponseWriter, r *http.Request) {
	resourceID := r.PathValue("id")
	if resourceID == "" {
		respondWithError(w, http.StatusBadRequest, "resource ID is required")
		return
	}

	if _, err := h.resourceRepo.GetByID(r.Context(), resourceID); err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			respondWithError(w, http.StatusNotFound, "resource not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	uploads, err := h.uploadRepo.ListByResource(r.Context(), resourceID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list uploads")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"resource_id": resourceID,
		"uploads":     uploads,
		"count":       len(uploads),
	})
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
