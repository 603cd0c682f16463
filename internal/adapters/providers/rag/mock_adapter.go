package rag

import (
	"context"
	"fmt"
	"io"

	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/domain/providers"
	"github.com/foiacoach/backend/pkg/config"
)

// MockAdapter provides deterministic provider behavior for local development
// and tests. No network calls are made.
type MockAdapter struct {
	storeID   string
	uploadErr error
	queryErr  error
}

// NewMockAdapter creates a mock RAG provider.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{}
}

// WithUploadError makes every UploadResource call fail with err.
func (m *MockAdapter) WithUploadError(err error) *MockAdapter {
	m.uploadErr = err
	return m
}

// WithQueryError makes every Query call fail with err.
func (m *MockAdapter) WithQueryError(err error) *MockAdapter {
	m.queryErr = err
	return m
}

// Name returns the provider's registry name
func (m *MockAdapter) Name() string {
	return config.ProviderMock
}

// GetOrCreateStore returns a stable store id; repeated calls return the same id.
func (m *MockAdapter) GetOrCreateStore(ctx context.Context, displayName string) (string, error) {
	if m.storeID == "" {
		if displayName == "" {
			displayName = "default"
		}
		m.storeID = "mock-store-" + displayName
	}
	return m.storeID, nil
}

// UploadResource returns deterministic identifiers derived from the resource.
func (m *MockAdapter) UploadResource(ctx context.Context, resource *entities.JurisdictionResource, content io.Reader) (*providers.UploadResult, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}

	storeID, err := m.GetOrCreateStore(ctx, "")
	if err != nil {
		return nil, err
	}

	// Drain content so callers can treat the mock like a real upload.
	if content != nil {
		if _, err := io.Copy(io.Discard, content); err != nil {
			return nil, err
		}
	}

	return &providers.UploadResult{
		FileID:  "mock-file-" + resource.ID,
		StoreID: storeID,
		Metadata: map[string]string{
			"display_name": resource.DisplayName(),
			"state":        resource.State,
		},
	}, nil
}

// RemoveResource is a no-op for the mock provider.
func (m *MockAdapter) RemoveResource(ctx context.Context, resource *entities.JurisdictionResource, fileID string) error {
	return nil
}

// Query returns a canned answer citing the mock store.
func (m *MockAdapter) Query(ctx context.Context, question string) (*entities.QueryAnswer, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	storeID, _ := m.GetOrCreateStore(ctx, "")
	return &entities.QueryAnswer{
		Answer:   fmt.Sprintf("Mock answer for: %s", question),
		Provider: config.ProviderMock,
		Citations: []entities.Citation{
			{FileID: storeID + "/mock-file", FileName: "mock-resource"},
		},
	}, nil
}

// Info returns a diagnostic snapshot.
func (m *MockAdapter) Info() providers.ProviderInfo {
	return providers.ProviderInfo{
		Provider:       config.ProviderMock,
		RealAPIEnabled: false,
		StoreID:        m.storeID,
	}
}
