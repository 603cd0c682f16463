package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foiacoach/backend/internal/adapters/providers/rag"
	"github.com/foiacoach/backend/internal/api/handlers"
	"github.com/foiacoach/backend/internal/application/services"
	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/pkg/config"
)

func askHandler() *handlers.AskHandler {
	cfg := &config.Config{
		Provider: config.ProviderConfig{
			Default:   config.ProviderMock,
			StoreName: "test-store",
		},
	}
	registry := rag.NewRegistry(cfg)
	return handlers.NewAskHandler(services.NewQueryService(registry, nil, nil))
}

func TestAskHandler_Ask_Success(t *testing.T) {
	handler := askHandler()

	body := `{"question":"How do I appeal a CORA denial?"}`
	req := httptest.NewRequest("POST", "/api/v1/ask", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var answer entities.QueryAnswer
	require.NoError(t, json.NewDecoder(w.Body).Decode(&answer))
	assert.Contains(t, answer.Answer, "How do I appeal a CORA denial?")
	assert.Equal(t, config.ProviderMock, answer.Provider)
}

func TestAskHandler_Ask_EmptyQuestion(t *testing.T) {
	handler := askHandler()

	req := httptest.NewRequest("POST", "/api/v1/ask", strings.NewReader(`{"question":""}`))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskHandler_Ask_InvalidBody(t *testing.T) {
	handler := askHandler()

	req := httptest.NewRequest("POST", "/api/v1/ask", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAskHandler_Ask_UnconfiguredProvider(t *testing.T) {
	handler := askHandler()

	// openai has no API key in this configuration
	body := `{"question":"anything","provider":"openai"}`
	req := httptest.NewRequest("POST", "/api/v1/ask", strings.NewReader(body))
	w := httptest.NewRecorder()

	handler.Ask(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
