package repositories

import (
	"context"

	"github.com/foiacoach/backend/internal/domain/entities"
)

// UploadFilter narrows upload record listings.
type UploadFilter struct {
	Provider    string
	IndexStatus entities.IndexStatus
	Limit       int
	Offset      int
}

// UploadRepository defines the interface for upload record access. All
// lifecycle transitions go through the narrow Mark*/Reset methods, which
// issue targeted column updates rather than whole-row saves.
type UploadRepository interface {
	// Create creates a new upload record in pending state
	Create(ctx context.Context, upload *entities.ResourceProviderUpload) error

	// GetByID retrieves an upload record by ID
	GetByID(ctx context.Context, id string) (*entities.ResourceProviderUpload, error)

	// GetByResourceAndProvider retrieves the record for one (resource, provider) pair
	GetByResourceAndProvider(ctx context.Context, resourceID, provider string) (*entities.ResourceProviderUpload, error)

	// ListByResource retrieves all upload records for a resource
	ListByResource(ctx context.Context, resourceID string) ([]*entities.ResourceProviderUpload, error)

	// List retrieves upload records matching the filter
	List(ctx context.Context, filter UploadFilter) ([]*entities.ResourceProviderUpload, error)

	// MarkUploading claims a pending record for dispatch. The update only
	// applies while the row is still pending; the false return means another
	// dispatcher claimed it or an operator moved it first.
	MarkUploading(ctx context.Context, id string) (bool, error)

	// MarkReady records a successful upload with its vendor identifiers and
	// clears any prior error message
	MarkReady(ctx context.Context, id, fileID, storeID string, metadata map[string]string) error

	// MarkError records a failed upload, leaving vendor identifiers untouched
	MarkError(ctx context.Context, id, message string) error

	// ResetToPending moves a record back to pending and clears its error
	// message; this is the operator retry path
	ResetToPending(ctx context.Context, id string) error

	// Delete removes the local record. Remote cleanup is the caller's concern.
	Delete(ctx context.Context, id string) error
}
