package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/domain/repositories"
	"github.com/foiacoach/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/foiacoach/backend/pkg/errors"
)

var resourceColumns = []interface{}{
	"id", "state", "name", "resource_type", "description",
	"file_path", "content_type", "is_active", "sort_order",
	"created_at", "updated_at",
}

// ResourceAdapter implements ResourceRepository over Postgres
type ResourceAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewResourceAdapter creates a new resource adapter
func NewResourceAdapter(client *postgres.Client) repositories.ResourceRepository {
	return &ResourceAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new resource
func (a *ResourceAdapter) Create(ctx context.Context, resource *entities.JurisdictionResource) error {
	now := time.Now().UTC()
	if resource.CreatedAt.IsZero() {
		resource.CreatedAt = now
	}
	resource.UpdatedAt = now

	record := goqu.Record{
		"id":            resource.ID,
		"state":         resource.State,
		"name":          resource.Name,
		"resource_type": resource.ResourceType,
		"description":   sql.NullString{String: resource.Description, Valid: resource.Description != ""},
		"file_path":     resource.FilePath,
		"content_type":  resource.ContentType,
		"is_active":     resource.IsActive,
		"sort_order":    resource.SortOrder,
		"created_at":    resource.CreatedAt,
		"updated_at":    resource.UpdatedAt,
	}

	query, args, err := a.db.Insert("jurisdiction_resources").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create resource", err)
	}

	return nil
}

// GetByID retrieves a resource by ID
func (a *ResourceAdapter) GetByID(ctx context.Context, id string) (*entities.JurisdictionResource, error) {
	query, args, err := a.db.Select(resourceColumns...).
		From("jurisdiction_resources").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	resource, err := scanResource(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("resource with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get resource", err)
	}

	return resource, nil
}

// List retrieves resources matching the filter, ordered by state and sort order
func (a *ResourceAdapter) List(ctx context.Context, filter repositories.ResourceFilter) ([]*entities.JurisdictionResource, error) {
	ds := a.db.Select(resourceColumns...).From("jurisdiction_resources")

	if filter.State != "" {
		ds = ds.Where(goqu.Ex{"state": filter.State})
	}
	if filter.ResourceType != "" {
		ds = ds.Where(goqu.Ex{"resource_type": filter.ResourceType})
	}
	if filter.ActiveOnly {
		ds = ds.Where(goqu.Ex{"is_active": true})
	}

	ds = ds.Order(goqu.I("state").Asc(), goqu.I("sort_order").Asc(), goqu.I("name").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list resources", err)
	}
	defer rows.Close()

	var resources []*entities.JurisdictionResource
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan resource", err)
		}
		resources = append(resources, resource)
	}

	return resources, rows.Err()
}

// Update updates a resource's metadata
func (a *ResourceAdapter) Update(ctx context.Context, resource *entities.JurisdictionResource) error {
	resource.UpdatedAt = time.Now().UTC()

	query, args, err := a.db.Update("jurisdiction_resources").
		Set(goqu.Record{
			"state":         resource.State,
			"name":          resource.Name,
			"resource_type": resource.ResourceType,
			"description":   sql.NullString{String: resource.Description, Valid: resource.Description != ""},
			"file_path":     resource.FilePath,
			"content_type":  resource.ContentType,
			"is_active":     resource.IsActive,
			"sort_order":    resource.SortOrder,
			"updated_at":    resource.UpdatedAt,
		}).
		Where(goqu.Ex{"id": resource.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update resource", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to check update result", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("resource with id %s not found", resource.ID))
	}

	return nil
}

// Deactivate soft-deletes a resource
func (a *ResourceAdapter) Deactivate(ctx context.Context, id string) error {
	query, args, err := a.db.Update("jurisdiction_resources").
		Set(goqu.Record{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to deactivate resource", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to check update result", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("resource with id %s not found", id))
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResource(row rowScanner) (*entities.JurisdictionResource, error) {
	resource := &entities.JurisdictionResource{}
	var description sql.NullString

	err := row.Scan(
		&resource.ID,
		&resource.State,
		&resource.Name,
		&resource.ResourceType,
		&description,
		&resource.FilePath,
		&resource.ContentType,
		&resource.IsActive,
		&resource.SortOrder,
		&resource.CreatedAt,
		&resource.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	resource.Description = description.String
	return resource, nil
}
