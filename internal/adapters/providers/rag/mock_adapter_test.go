package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/pkg/config"
)

func testResource() *entities.JurisdictionResource {
	return &entities.JurisdictionResource{
		ID:           "res-1",
		State:        "CO",
		Name:         "CORA Guide",
		ResourceType: entities.ResourceTypeLawGuide,
		FilePath:     "co/cora_guide.md",
		ContentType:  "text/markdown",
		IsActive:     true,
	}
}

func TestMockAdapterStoreIsStable(t *testing.T) {
	// Arrange
	adapter := NewMockAdapter()
	ctx := context.Background()

	// Act
	first, err := adapter.GetOrCreateStore(ctx, "foia-coach-resources")
	require.NoError(t, err)
	second, err := adapter.GetOrCreateStore(ctx, "some-other-name")
	require.NoError(t, err)

	// Assert
	assert.Equal(t, "mock-store-foia-coach-resources", first)
	assert.Equal(t, first, second)
}

func TestMockAdapterUploadResource(t *testing.T) {
	adapter := NewMockAdapter()
	resource := testResource()

	result, err := adapter.UploadResource(context.Background(), resource, strings.NewReader("body"))

	require.NoError(t, err)
	assert.Equal(t, "mock-file-res-1", result.FileID)
	assert.NotEmpty(t, result.StoreID)
	assert.Equal(t, resource.DisplayName(), result.Metadata["display_name"])
}

func TestMockAdapterUploadError(t *testing.T) {
	wantErr := errors.New("simulated upload failure")
	adapter := NewMockAdapter().WithUploadError(wantErr)

	_, err := adapter.UploadResource(context.Background(), testResource(), strings.NewReader("body"))

	assert.ErrorIs(t, err, wantErr)
}

func TestMockAdapterQuery(t *testing.T) {
	adapter := NewMockAdapter()

	answer, err := adapter.Query(context.Background(), "How long does CORA allow?")

	require.NoError(t, err)
	assert.Contains(t, answer.Answer, "How long does CORA allow?")
	assert.Equal(t, config.ProviderMock, answer.Provider)
	assert.NotEmpty(t, answer.Citations)
}

func TestMockAdapterQueryError(t *testing.T) {
	wantErr := errors.New("simulated query failure")
	adapter := NewMockAdapter().WithQueryError(wantErr)

	_, err := adapter.Query(context.Background(), "anything")

	assert.ErrorIs(t, err, wantErr)
}

func TestMockAdapterInfo(t *testing.T) {
	adapter := NewMockAdapter()
	_, err := adapter.GetOrCreateStore(context.Background(), "diag")
	require.NoError(t, err)

	info := adapter.Info()

	assert.Equal(t, config.ProviderMock, info.Provider)
	assert.False(t, info.RealAPIEnabled)
	assert.Equal(t, "mock-store-diag", info.StoreID)
}

func TestOpenAIAdapterQueryGatedOff(t *testing.T) {
	cfg := registryConfig()
	cfg.Provider.RealAPIEnabled = false
	registry := NewRegistry(cfg)

	provider, err := registry.Get(config.ProviderOpenAI, false)
	require.NoError(t, err)

	// With the gate off no network call is made, so a client with a fake
	// key answers immediately.
	answer, err := provider.Query(context.Background(), "What is CORA?")
	require.NoError(t, err)
	assert.Contains(t, answer.Answer, "What is CORA?")
	assert.Equal(t, config.ProviderOpenAI, answer.Provider)
}

func TestAdapterInfoMasksAPIKey(t *testing.T) {
	cfg := registryConfig()
	registry := NewRegistry(cfg)

	provider, err := registry.Get(config.ProviderOpenAI, false)
	require.NoError(t, err)

	info := provider.Info()
	assert.NotEqual(t, cfg.OpenAI.APIKey, info.APIKey)
	assert.Contains(t, info.APIKey, "...")
}
