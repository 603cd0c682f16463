package providers

import (
	"context"
	"errors"
	"io"

	"github.com/foiacoach/backend/internal/domain/entities"
)

// ErrQueryDisabled indicates the real-API gate is off for a provider that
// needs network access to answer.
var ErrQueryDisabled = errors.New("real provider API is disabled")

// ErrFileNotFound indicates the vendor no longer holds the file; removal
// treats it as a non-fatal outcome.
var ErrFileNotFound = errors.New("provider file not found")

// UploadResult carries the vendor-assigned identifiers for an uploaded resource.
type UploadResult struct {
	FileID   string
	StoreID  string
	Metadata map[string]string
}

// ProviderInfo is a diagnostic snapshot of a provider's configuration.
// APIKey is always masked to a short prefix.
type ProviderInfo struct {
	Provider       string `json:"provider"`
	Model          string `json:"model,omitempty"`
	RealAPIEnabled bool   `json:"real_api_enabled"`
	APIKey         string `json:"api_key,omitempty"`
	StoreID        string `json:"store_id,omitempty"`
}

// RAGProvider defines the capability set every vendor integration exposes
// (mock, OpenAI, Gemini). Instances are constructed only by the registry.
type RAGProvider interface {
	// Name returns the provider's registry name
	Name() string

	// GetOrCreateStore returns the id of the vendor store for this tenant,
	// creating it once; repeated calls must return the same id
	GetOrCreateStore(ctx context.Context, displayName string) (string, error)

	// UploadResource uploads the resource's file content to the vendor store
	// and returns the vendor-assigned identifiers
	UploadResource(ctx context.Context, resource *entities.JurisdictionResource, content io.Reader) (*UploadResult, error)

	// RemoveResource deletes the corresponding file from the vendor store;
	// an already-gone file is not an error
	RemoveResource(ctx context.Context, resource *entities.JurisdictionResource, fileID string) error

	// Query answers a question against the configured store
	Query(ctx context.Context, question string) (*entities.QueryAnswer, error)

	// Info returns a diagnostic snapshot without unmasked secrets
	Info() ProviderInfo
}

// MaskAPIKey reduces a secret to a recognizable prefix for diagnostics.
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 6 {
		return "******"
	}
	return key[:6] + "..."
}
