package repositories

import (
	"context"

	"github.com/foiacoach/backend/internal/domain/entities"
)

// ResourceFilter narrows resource listings.
type ResourceFilter struct {
	State        string
	ResourceType entities.ResourceType
	ActiveOnly   bool
	Limit        int
	Offset       int
}

// ResourceRepository defines the interface for jurisdiction resource access
type ResourceRepository interface {
	// Create creates a new resource
	Create(ctx context.Context, resource *entities.JurisdictionResource) error

	// GetByID retrieves a resource by ID
	GetByID(ctx context.Context, id string) (*entities.JurisdictionResource, error)

	// List retrieves resources matching the filter, ordered by state and sort order
	List(ctx context.Context, filter ResourceFilter) ([]*entities.JurisdictionResource, error)

	// Update updates a resource's metadata
	Update(ctx context.Context, resource *entities.JurisdictionResource) error

	// Deactivate soft-deletes a resource
	Deactivate(ctx context.Context, id string) error
}
