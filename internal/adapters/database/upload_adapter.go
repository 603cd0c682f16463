package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/domain/repositories"
	"github.com/foiacoach/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/foiacoach/backend/pkg/errors"
)

var uploadColumns = []interface{}{
	"id", "resource_id", "provider", "index_status",
	"provider_file_id", "provider_store_id", "provider_metadata",
	"error_message", "indexed_at", "created_at", "updated_at",
}

// UploadAdapter implements UploadRepository over Postgres. Lifecycle
// transitions are targeted column updates; MarkUploading additionally
// conditions on the current status so concurrent dispatchers cannot both
// claim the same record.
type UploadAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewUploadAdapter creates a new upload adapter
func NewUploadAdapter(client *postgres.Client) repositories.UploadRepository {
	return &UploadAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new upload record in pending state
func (a *UploadAdapter) Create(ctx context.Context, upload *entities.ResourceProviderUpload) error {
	now := time.Now().UTC()
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = now
	}
	upload.UpdatedAt = now
	if upload.IndexStatus == "" {
		upload.IndexStatus = entities.IndexStatusPending
	}

	metadata, err := marshalMetadata(upload.ProviderMetadata)
	if err != nil {
		return apperrors.NewInternalError("failed to encode provider metadata", err)
	}

	record := goqu.Record{
		"id":                upload.ID,
		"resource_id":       upload.ResourceID,
		"provider":          upload.Provider,
		"index_status":      upload.IndexStatus,
		"provider_file_id":  sql.NullString{String: upload.ProviderFileID, Valid: upload.ProviderFileID != ""},
		"provider_store_id": sql.NullString{String: upload.ProviderStoreID, Valid: upload.ProviderStoreID != ""},
		"provider_metadata": metadata,
		"error_message":     sql.NullString{String: upload.ErrorMessage, Valid: upload.ErrorMessage != ""},
		"indexed_at":        upload.IndexedAt,
		"created_at":        upload.CreatedAt,
		"updated_at":        upload.UpdatedAt,
	}

	query, args, err := a.db.Insert("resource_provider_uploads").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	_, err = a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to create upload record", err)
	}

	return nil
}

// GetByID retrieves an upload record by ID
func (a *UploadAdapter) GetByID(ctx context.Context, id string) (*entities.ResourceProviderUpload, error) {
	return a.getOne(ctx, goqu.Ex{"id": id}, fmt.Sprintf("upload record with id %s not found", id))
}

// GetByResourceAndProvider retrieves the record for one (resource, provider) pair
func (a *UploadAdapter) GetByResourceAndProvider(ctx context.Context, resourceID, provider string) (*entities.ResourceProviderUpload, error) {
	return a.getOne(ctx,
		goqu.Ex{"resource_id": resourceID, "provider": provider},
		fmt.Sprintf("no upload record for resource %s on provider %s", resourceID, provider))
}

// ListByResource retrieves all upload records for a resource
func (a *UploadAdapter) ListByResource(ctx context.Context, resourceID string) ([]*entities.ResourceProviderUpload, error) {
	ds := a.db.Select(uploadColumns...).
		From("resource_provider_uploads").
		Where(goqu.Ex{"resource_id": resourceID}).
		Order(goqu.I("provider").Asc())

	return a.list(ctx, ds)
}

// List retrieves upload records matching the filter
func (a *UploadAdapter) List(ctx context.Context, filter repositories.UploadFilter) ([]*entities.ResourceProviderUpload, error) {
	ds := a.db.Select(uploadColumns...).From("resource_provider_uploads")

	if filter.Provider != "" {
		ds = ds.Where(goqu.Ex{"provider": filter.Provider})
	}
	if filter.IndexStatus != "" {
		ds = ds.Where(goqu.Ex{"index_status": filter.IndexStatus})
	}

	ds = ds.Order(goqu.I("created_at").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	return a.list(ctx, ds)
}

// MarkUploading claims a pending record for dispatch. The status condition in
// the WHERE clause is the concurrency guard: of two dispatchers racing on the
// same record, exactly one sees a row affected.
func (a *UploadAdapter) MarkUploading(ctx context.Context, id string) (bool, error) {
	query, args, err := a.db.Update("resource_provider_uploads").
		Set(goqu.Record{
			"index_status": entities.IndexStatusUploading,
			"updated_at":   time.Now().UTC(),
		}).
		Where(goqu.Ex{
			"id":           id,
			"index_status": entities.IndexStatusPending,
		}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternalError("failed to claim upload record", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to check update result", err)
	}

	return affected > 0, nil
}

// MarkReady records a successful upload with its vendor identifiers and
// clears any prior error message
func (a *UploadAdapter) MarkReady(ctx context.Context, id, fileID, storeID string, metadata map[string]string) error {
	encoded, err := marshalMetadata(metadata)
	if err != nil {
		return apperrors.NewInternalError("failed to encode provider metadata", err)
	}

	return a.updateOne(ctx, id, goqu.Record{
		"index_status":      entities.IndexStatusReady,
		"provider_file_id":  fileID,
		"provider_store_id": storeID,
		"provider_metadata": encoded,
		"error_message":     nil,
		"indexed_at":        time.Now().UTC(),
		"updated_at":        time.Now().UTC(),
	})
}

// MarkError records a failed upload, leaving vendor identifiers untouched
func (a *UploadAdapter) MarkError(ctx context.Context, id, message string) error {
	return a.updateOne(ctx, id, goqu.Record{
		"index_status":  entities.IndexStatusError,
		"error_message": entities.TruncateErrorMessage(message),
		"updated_at":    time.Now().UTC(),
	})
}

// ResetToPending moves a record back to pending and clears its error message
func (a *UploadAdapter) ResetToPending(ctx context.Context, id string) error {
	return a.updateOne(ctx, id, goqu.Record{
		"index_status":  entities.IndexStatusPending,
		"error_message": nil,
		"updated_at":    time.Now().UTC(),
	})
}

// Delete removes the local record
func (a *UploadAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete("resource_provider_uploads").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete upload record", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to check delete result", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("upload record with id %s not found", id))
	}

	return nil
}

func (a *UploadAdapter) updateOne(ctx context.Context, id string, record goqu.Record) error {
	query, args, err := a.db.Update("resource_provider_uploads").
		Set(record).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update upload record", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to check update result", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("upload record with id %s not found", id))
	}

	return nil
}

func (a *UploadAdapter) getOne(ctx context.Context, where goqu.Ex, notFoundMsg string) (*entities.ResourceProviderUpload, error) {
	query, args, err := a.db.Select(uploadColumns...).
		From("resource_provider_uploads").
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	upload, err := scanUpload(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(notFoundMsg)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get upload record", err)
	}

	return upload, nil
}

func (a *UploadAdapter) list(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.ResourceProviderUpload, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list upload records", err)
	}
	defer rows.Close()

	var uploads []*entities.ResourceProviderUpload
	for rows.Next() {
		upload, err := scanUpload(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan upload record", err)
		}
		uploads = append(uploads, upload)
	}

	return uploads, rows.Err()
}

func scanUpload(row rowScanner) (*entities.ResourceProviderUpload, error) {
	upload := &entities.ResourceProviderUpload{}
	var fileID, storeID, errorMessage sql.NullString
	var metadata []byte
	var indexedAt sql.NullTime

	err := row.Scan(
		&upload.ID,
		&upload.ResourceID,
		&upload.Provider,
		&upload.IndexStatus,
		&fileID,
		&storeID,
		&metadata,
		&errorMessage,
		&indexedAt,
		&upload.CreatedAt,
		&upload.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	upload.ProviderFileID = fileID.String
	upload.ProviderStoreID = storeID.String
	upload.ErrorMessage = errorMessage.String
	if indexedAt.Valid {
		upload.IndexedAt = &indexedAt.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &upload.ProviderMetadata); err != nil {
			return nil, err
		}
	}

	return upload, nil
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return json.Marshal(metadata)
}
