package rag

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/domain/providers"
	"github.com/foiacoach/backend/internal/infrastructure/clients/gemini"
	"github.com/foiacoach/backend/pkg/config"
)

// GeminiAdapter implements RAGProvider over Gemini file search stores.
type GeminiAdapter struct {
	client         *gemini.Client
	apiKeyMasked   string
	storeName      string
	realAPIEnabled bool

	mu      sync.Mutex
	storeID string
}

// NewGeminiAdapter creates an adapter bound to the configured file search store.
func NewGeminiAdapter(client *gemini.Client, cfg *config.Config) *GeminiAdapter {
	return &GeminiAdapter{
		client:         client,
		apiKeyMasked:   providers.MaskAPIKey(cfg.Gemini.APIKey),
		storeName:      cfg.Provider.StoreName,
		realAPIEnabled: cfg.Provider.RealAPIEnabled,
	}
}

// Name returns the provider's registry name
func (a *GeminiAdapter) Name() string {
	return config.ProviderGemini
}

// GetOrCreateStore resolves the tenant store once and memoizes its name.
func (a *GeminiAdapter) GetOrCreateStore(ctx context.Context, displayName string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.storeID != "" {
		return a.storeID, nil
	}

	name := displayName
	if name == "" {
		name = a.storeName
	}

	id, err := a.client.GetOrCreateStore(ctx, name)
	if err != nil {
		return "", err
	}
	a.storeID = id
	return id, nil
}

// UploadResource imports the file content into the store.
func (a *GeminiAdapter) UploadResource(ctx context.Context, resource *entities.JurisdictionResource, content io.Reader) (*providers.UploadResult, error) {
	storeID, err := a.GetOrCreateStore(ctx, "")
	if err != nil {
		return nil, err
	}

	docName, err := a.client.UploadToStore(ctx, storeID, resource.DisplayName(), content)
	if err != nil {
		return nil, err
	}

	return &providers.UploadResult{
		FileID:  docName,
		StoreID: storeID,
		Metadata: map[string]string{
			"model":       a.client.Model(),
			"imported_at": time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// RemoveResource deletes the store document; an already-gone document is fine.
func (a *GeminiAdapter) RemoveResource(ctx context.Context, resource *entities.JurisdictionResource, fileID string) error {
	if err := a.client.DeleteDocument(ctx, fileID); err != nil && !errors.Is(err, providers.ErrFileNotFound) {
		return err
	}
	return nil
}

// Query answers against the store; without the real-API gate it short-circuits
// to a canned response so dev environments never spend vendor quota.
func (a *GeminiAdapter) Query(ctx context.Context, question string) (*entities.QueryAnswer, error) {
	if !a.realAPIEnabled {
		return cannedAnswer(config.ProviderGemini, question), nil
	}

	storeID, err := a.GetOrCreateStore(ctx, "")
	if err != nil {
		return nil, err
	}
	return a.client.Query(ctx, storeID, question)
}

// Info returns a diagnostic snapshot with the API key masked.
func (a *GeminiAdapter) Info() providers.ProviderInfo {
	a.mu.Lock()
	storeID := a.storeID
	a.mu.Unlock()

	return providers.ProviderInfo{
		Provider:       config.ProviderGemini,
		Model:          a.client.Model(),
		RealAPIEnabled: a.realAPIEnabled,
		APIKey:         a.apiKeyMasked,
		StoreID:        storeID,
	}
}
