package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/doug-martin/goqu/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/foiacoach/backend/pkg/errors"
)

func setupUploadAdapter(t *testing.T) (*UploadAdapter, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	client := postgres.NewClientWithDB(mockDB)
	return &UploadAdapter{client: client, db: goqu.New("postgres", client.DB())}, mock
}

func TestUploadAdapter_MarkUploading(t *testing.T) {
	t.Run("claims a pending record", func(t *testing.T) {
		// Arrange
		adapter, mock := setupUploadAdapter(t)
		mock.ExpectExec(`UPDATE "resource_provider_uploads"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		// Act
		claimed, err := adapter.MarkUploading(context.Background(), "up-1")

		// Assert
		require.NoError(t, err)
		assert.True(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns false when record is not pending", func(t *testing.T) {
		adapter, mock := setupUploadAdapter(t)
		mock.ExpectExec(`UPDATE "resource_provider_uploads"`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		claimed, err := adapter.MarkUploading(context.Background(), "up-1")

		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("update is conditioned on pending status", func(t *testing.T) {
		adapter, mock := setupUploadAdapter(t)

		// The expectation regex only matches when the generated SQL still
		// carries the status guard alongside the id.
		mock.ExpectExec(`UPDATE "resource_provider_uploads" SET .+ WHERE .*"index_status" = 'pending'`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		claimed, err := adapter.MarkUploading(context.Background(), "up-1")

		require.NoError(t, err)
		assert.True(t, claimed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUploadAdapter_MarkReady(t *testing.T) {
	adapter, mock := setupUploadAdapter(t)
	mock.ExpectExec(`UPDATE "resource_provider_uploads"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.MarkReady(context.Background(), "up-1", "file-1", "vs-1",
		map[string]string{"model": "gpt-4o-mini"})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadAdapter_MarkError(t *testing.T) {
	t.Run("records the error message", func(t *testing.T) {
		adapter, mock := setupUploadAdapter(t)
		mock.ExpectExec(`UPDATE "resource_provider_uploads"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := adapter.MarkError(context.Background(), "up-1", "vendor rejected upload")

		require.NoError(t, err)
	})

	t.Run("not found when record is missing", func(t *testing.T) {
		adapter, mock := setupUploadAdapter(t)
		mock.ExpectExec(`UPDATE "resource_provider_uploads"`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := adapter.MarkError(context.Background(), "missing", "boom")

		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})
}

func TestUploadAdapter_ResetToPending(t *testing.T) {
	adapter, mock := setupUploadAdapter(t)
	mock.ExpectExec(`UPDATE "resource_provider_uploads"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.ResetToPending(context.Background(), "up-1")

	require.NoError(t, err)
}

func TestUploadAdapter_GetByID(t *testing.T) {
	t.Run("scans metadata and nullable columns", func(t *testing.T) {
		adapter, mock := setupUploadAdapter(t)
		now := time.Now().UTC()
		indexed := now.Add(-time.Hour)

		rows := sqlmock.NewRows([]string{
			"id", "resource_id", "provider", "index_status",
			"provider_file_id", "provider_store_id", "provider_metadata",
			"error_message", "indexed_at", "created_at", "updated_at",
		}).AddRow(
			"up-1", "res-1", "openai", "ready",
			"file-1", "vs-1", []byte(`{"model":"gpt-4o-mini"}`),
			nil, indexed, now, now,
		)
		mock.ExpectQuery(`SELECT .+ FROM "resource_provider_uploads"`).WillReturnRows(rows)

		upload, err := adapter.GetByID(context.Background(), "up-1")

		require.NoError(t, err)
		assert.Equal(t, entities.IndexStatusReady, upload.IndexStatus)
		assert.Equal(t, "file-1", upload.ProviderFileID)
		assert.Equal(t, "gpt-4o-mini", upload.ProviderMetadata["model"])
		require.NotNil(t, upload.IndexedAt)
		assert.Empty(t, upload.ErrorMessage)
	})

	t.Run("not found", func(t *testing.T) {
		adapter, mock := setupUploadAdapter(t)
		mock.ExpectQuery(`SELECT .+ FROM "resource_provider_uploads"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := adapter.GetByID(context.Background(), "missing")

		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	})
}

func TestUploadAdapter_Delete(t *testing.T) {
	adapter, mock := setupUploadAdapter(t)
	mock.ExpectExec(`DELETE FROM "resource_provider_uploads"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.Delete(context.Background(), "up-1")

	require.NoError(t, err)
}
