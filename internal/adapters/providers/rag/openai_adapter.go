package rag

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/domain/providers"
	"github.com/foiacoach/backend/internal/infrastructure/clients/openai"
	"github.com/foiacoach/backend/pkg/config"
)

// OpenAIAdapter implements RAGProvider over OpenAI vector stores.
type OpenAIAdapter struct {
	client         *openai.Client
	apiKeyMasked   string
	storeName      string
	realAPIEnabled bool

	mu      sync.Mutex
	storeID string
}

// NewOpenAIAdapter creates an adapter bound to the configured vector store.
func NewOpenAIAdapter(client *openai.Client, cfg *config.Config) *OpenAIAdapter {
	return &OpenAIAdapter{
		client:         client,
		apiKeyMasked:   providers.MaskAPIKey(cfg.OpenAI.APIKey),
		storeName:      cfg.Provider.StoreName,
		realAPIEnabled: cfg.Provider.RealAPIEnabled,
	}
}

// Name returns the provider's registry name
func (a *OpenAIAdapter) Name() string {
	return config.ProviderOpenAI
}

// GetOrCreateStore resolves the tenant vector store once and memoizes its id.
func (a *OpenAIAdapter) GetOrCreateStore(ctx context.Context, displayName string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.storeID != "" {
		return a.storeID, nil
	}

	name := displayName
	if name == "" {
		name = a.storeName
	}

	id, err := a.client.GetOrCreateVectorStore(ctx, name)
	if err != nil {
		return "", err
	}
	a.storeID = id
	return id, nil
}

// UploadResource uploads the file content and attaches it to the store.
func (a *OpenAIAdapter) UploadResource(ctx context.Context, resource *entities.JurisdictionResource, content io.Reader) (*providers.UploadResult, error) {
	storeID, err := a.GetOrCreateStore(ctx, "")
	if err != nil {
		return nil, err
	}

	fileID, err := a.client.UploadFile(ctx, resource.DisplayName(), content)
	if err != nil {
		return nil, err
	}

	if err := a.client.AttachFile(ctx, storeID, fileID); err != nil {
		return nil, err
	}

	return &providers.UploadResult{
		FileID:  fileID,
		StoreID: storeID,
		Metadata: map[string]string{
			"model":       a.client.Model(),
			"attached_at": time.Now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// RemoveResource detaches and deletes the file; an already-gone file is fine.
func (a *OpenAIAdapter) RemoveResource(ctx context.Context, resource *entities.JurisdictionResource, fileID string) error {
	storeID, err := a.GetOrCreateStore(ctx, "")
	if err != nil {
		return err
	}

	if err := a.client.DeleteVectorStoreFile(ctx, storeID, fileID); err != nil && !errors.Is(err, providers.ErrFileNotFound) {
		return err
	}
	if err := a.client.DeleteFile(ctx, fileID); err != nil && !errors.Is(err, providers.ErrFileNotFound) {
		return err
	}
	return nil
}

// Query answers against the store; without the real-API gate it short-circuits
// to a canned response so dev environments never spend vendor quota.
func (a *OpenAIAdapter) Query(ctx context.Context, question string) (*entities.QueryAnswer, error) {
	if !a.realAPIEnabled {
		return cannedAnswer(config.ProviderOpenAI, question), nil
	}

	storeID, err := a.GetOrCreateStore(ctx, "")
	if err != nil {
		return nil, err
	}
	return a.client.Query(ctx, storeID, question)
}

// Info returns a diagnostic snapshot with the API key masked.
func (a *OpenAIAdapter) Info() providers.ProviderInfo {
	a.mu.Lock()
	storeID := a.storeID
	a.mu.Unlock()

	return providers.ProviderInfo{
		Provider:       config.ProviderOpenAI,
		Model:          a.client.Model(),
		RealAPIEnabled: a.realAPIEnabled,
		APIKey:         a.apiKeyMasked,
		StoreID:        storeID,
	}
}
