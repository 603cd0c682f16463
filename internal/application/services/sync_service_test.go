package services_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foiacoach/backend/internal/adapters/providers/rag"
	"github.com/foiacoach/backend/internal/application/services"
	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/domain/providers"
	"github.com/foiacoach/backend/internal/domain/repositories"
	"github.com/foiacoach/backend/pkg/config"
	apperrors "github.com/foiacoach/backend/pkg/errors"
)

// In-memory fakes

type fakeResourceRepo struct {
	mu        sync.Mutex
	resources map[string]*entities.JurisdictionResource
}

func newFakeResourceRepo() *fakeResourceRepo {
	return &fakeResourceRepo{resources: make(map[string]*entities.JurisdictionResource)}
}

func (r *fakeResourceRepo) Create(ctx context.Context, resource *entities.JurisdictionResource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[resource.ID] = resource
	return nil
}

func (r *fakeResourceRepo) GetByID(ctx context.Context, id string) (*entities.JurisdictionResource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resource, ok := r.resources[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("resource not found")
	}
	return resource, nil
}

func (r *fakeResourceRepo) List(ctx context.Context, filter repositories.ResourceFilter) ([]*entities.JurisdictionResource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.JurisdictionResource
	for _, resource := range r.resources {
		if filter.State != "" && resource.State != filter.State {
			continue
		}
		if filter.ActiveOnly && !resource.IsActive {
			continue
		}
		out = append(out, resource)
	}
	return out, nil
}

func (r *fakeResourceRepo) Update(ctx context.Context, resource *entities.JurisdictionResource) error {
	return r.Create(ctx, resource)
}

func (r *fakeResourceRepo) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if resource, ok := r.resources[id]; ok {
		resource.IsActive = false
		return nil
	}
	return apperrors.NewNotFoundError("resource not found")
}

type fakeUploadRepo struct {
	mu      sync.Mutex
	uploads map[string]*entities.ResourceProviderUpload
	getErr  error
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{uploads: make(map[string]*entities.ResourceProviderUpload)}
}

func (r *fakeUploadRepo) Create(ctx context.Context, upload *entities.ResourceProviderUpload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if upload.IndexStatus == "" {
		upload.IndexStatus = entities.IndexStatusPending
	}
	clone := *upload
	r.uploads[upload.ID] = &clone
	return nil
}

func (r *fakeUploadRepo) GetByID(ctx context.Context, id string) (*entities.ResourceProviderUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	upload, ok := r.uploads[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("upload record not found")
	}
	clone := *upload
	return &clone, nil
}

func (r *fakeUploadRepo) GetByResourceAndProvider(ctx context.Context, resourceID, provider string) (*entities.ResourceProviderUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, upload := range r.uploads {
		if upload.ResourceID == resourceID && upload.Provider == provider {
			clone := *upload
			return &clone, nil
		}
	}
	return nil, apperrors.NewNotFoundError("upload record not found")
}

func (r *fakeUploadRepo) ListByResource(ctx context.Context, resourceID string) ([]*entities.ResourceProviderUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ResourceProviderUpload
	for _, upload := range r.uploads {
		if upload.ResourceID == resourceID {
			clone := *upload
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeUploadRepo) List(ctx context.Context, filter repositories.UploadFilter) ([]*entities.ResourceProviderUpload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ResourceProviderUpload
	for _, upload := range r.uploads {
		if filter.Provider != "" && upload.Provider != filter.Provider {
			continue
		}
		if filter.IndexStatus != "" && upload.IndexStatus != filter.IndexStatus {
			continue
		}
		clone := *upload
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeUploadRepo) MarkUploading(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	upload, ok := r.uploads[id]
	if !ok || upload.IndexStatus != entities.IndexStatusPending {
		return false, nil
	}
	upload.IndexStatus = entities.IndexStatusUploading
	return true, nil
}

func (r *fakeUploadRepo) MarkReady(ctx context.Context, id, fileID, storeID string, metadata map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	upload, ok := r.uploads[id]
	if !ok {
		return apperrors.NewNotFoundError("upload record not found")
	}
	now := time.Now().UTC()
	upload.IndexStatus = entities.IndexStatusReady
	upload.ProviderFileID = fileID
	upload.ProviderStoreID = storeID
	upload.ProviderMetadata = metadata
	upload.ErrorMessage = ""
	upload.IndexedAt = &now
	return nil
}

func (r *fakeUploadRepo) MarkError(ctx context.Context, id, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	upload, ok := r.uploads[id]
	if !ok {
		return apperrors.NewNotFoundError("upload record not found")
	}
	upload.IndexStatus = entities.IndexStatusError
	upload.ErrorMessage = entities.TruncateErrorMessage(message)
	return nil
}

func (r *fakeUploadRepo) ResetToPending(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	upload, ok := r.uploads[id]
	if !ok {
		return apperrors.NewNotFoundError("upload record not found")
	}
	upload.IndexStatus = entities.IndexStatusPending
	upload.ErrorMessage = ""
	return nil
}

func (r *fakeUploadRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.uploads[id]; !ok {
		return apperrors.NewNotFoundError("upload record not found")
	}
	delete(r.uploads, id)
	return nil
}

type fakeRegistry struct {
	provider providers.RAGProvider
	err      error
}

func (f *fakeRegistry) Get(name string, useCache bool) (providers.RAGProvider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.provider, nil
}

// Helpers

type syncFixture struct {
	service   *services.SyncService
	resources *fakeResourceRepo
	uploads   *fakeUploadRepo
	provider  *rag.MockAdapter
	docRoot   string
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()

	docRoot := t.TempDir()
	resources := newFakeResourceRepo()
	uploads := newFakeUploadRepo()
	provider := rag.NewMockAdapter()

	service := services.NewSyncService(
		resources, uploads,
		&fakeRegistry{provider: provider},
		nil, nil,
		&config.ResourceConfig{DocumentRoot: docRoot},
	)

	return &syncFixture{
		service:   service,
		resources: resources,
		uploads:   uploads,
		provider:  provider,
		docRoot:   docRoot,
	}
}

func (f *syncFixture) addResource(t *testing.T, id, state string, resourceType entities.ResourceType) *entities.JurisdictionResource {
	t.Helper()

	relPath := filepath.Join(strings.ToLower(state), id+".md")
	fullPath := filepath.Join(f.docRoot, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
	require.NoError(t, os.WriteFile(fullPath, []byte("# "+id+"\nsample legal guidance\n"), 0o644))

	resource := &entities.JurisdictionResource{
		ID:           id,
		State:        state,
		Name:         id,
		ResourceType: resourceType,
		FilePath:     relPath,
		ContentType:  "text/markdown",
		IsActive:     true,
	}
	require.NoError(t, f.resources.Create(context.Background(), resource))
	return resource
}

// Tests

func TestSyncProvider_CreatesOnePendingRecordPerResource(t *testing.T) {
	f := newSyncFixture(t)
	f.addResource(t, "res-1", "CO", entities.ResourceTypeLawGuide)
	f.addResource(t, "res-2", "NY", entities.ResourceTypeExemptions)

	summary, err := f.service.SyncProvider(context.Background(), "mock", "", false, true)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 0, summary.Skipped)

	// Dry run leaves everything pending.
	pending, err := f.uploads.List(context.Background(), repositories.UploadFilter{
		IndexStatus: entities.IndexStatusPending,
	})
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// A second reconciliation must not create duplicates.
	summary, err = f.service.SyncProvider(context.Background(), "mock", "", false, true)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
}

func TestSyncProvider_EndToEndWithMockProvider(t *testing.T) {
	f := newSyncFixture(t)
	resource := f.addResource(t, "res-co", "CO", entities.ResourceTypeLawGuide)

	summary, err := f.service.SyncProvider(context.Background(), "mock", "CO", false, false)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, 0, summary.Failed)

	upload, err := f.uploads.GetByResourceAndProvider(context.Background(), resource.ID, "mock")
	require.NoError(t, err)
	assert.Equal(t, entities.IndexStatusReady, upload.IndexStatus)
	assert.NotEmpty(t, upload.ProviderFileID)
	assert.NotEmpty(t, upload.ProviderStoreID)
	assert.Empty(t, upload.ErrorMessage)
	assert.NotNil(t, upload.IndexedAt)
}

func TestSyncProvider_SkipsReadyWithoutForce(t *testing.T) {
	f := newSyncFixture(t)
	resource := f.addResource(t, "res-1", "CO", entities.ResourceTypeLawGuide)

	_, err := f.service.SyncProvider(context.Background(), "mock", "", false, false)
	require.NoError(t, err)

	summary, err := f.service.SyncProvider(context.Background(), "mock", "", false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 0, summary.Uploaded)

	upload, err := f.uploads.GetByResourceAndProvider(context.Background(), resource.ID, "mock")
	require.NoError(t, err)
	assert.Equal(t, entities.IndexStatusReady, upload.IndexStatus)
}

func TestSyncProvider_ForceRequeuesReadyRecords(t *testing.T) {
	f := newSyncFixture(t)
	f.addResource(t, "res-1", "CO", entities.ResourceTypeLawGuide)

	_, err := f.service.SyncProvider(context.Background(), "mock", "", false, false)
	require.NoError(t, err)

	summary, err := f.service.SyncProvider(context.Background(), "mock", "", true, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Uploaded)
}

func TestSyncProvider_ForceResetsStrandedUploadingRecords(t *testing.T) {
	f := newSyncFixture(t)
	resource := f.addResource(t, "res-1", "CO", entities.ResourceTypeLawGuide)

	// A record left in uploading, as after a crash mid-dispatch.
	require.NoError(t, f.uploads.Create(context.Background(), &entities.ResourceProviderUpload{
		ID:          "up-stuck",
		ResourceID:  resource.ID,
		Provider:    "mock",
		IndexStatus: entities.IndexStatusUploading,
	}))

	// Without force the record is left alone.
	summary, err := f.service.SyncProvider(context.Background(), "mock", "", false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Updated)

	// Force re-queues and dispatches it.
	summary, err = f.service.SyncProvider(context.Background(), "mock", "", true, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Uploaded)

	upload, err := f.uploads.GetByID(context.Background(), "up-stuck")
	require.NoError(t, err)
	assert.Equal(t, entities.IndexStatusReady, upload.IndexStatus)
}

func TestSyncProvider_LookupFailurePropagates(t *testing.T) {
	f := newSyncFixture(t)
	f.addResource(t, "res-1", "CO", entities.ResourceTypeLawGuide)
	f.uploads.getErr = errors.New("connection refused")

	_, err := f.service.SyncProvider(context.Background(), "mock", "", false, false)

	require.Error(t, err)
	assert.ErrorContains(t, err, "connection refused")

	// The failed lookup must not be answered with a create.
	f.uploads.getErr = nil
	all, err := f.uploads.List(context.Background(), repositories.UploadFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSyncProvider_ResetsErrorRecordsAndClearsMessage(t *testing.T) {
	f := newSyncFixture(t)
	resource := f.addResource(t, "res-1", "CO", entities.ResourceTypeLawGuide)

	require.NoError(t, f.uploads.Create(context.Background(), &entities.ResourceProviderUpload{
		ID:           "up-1",
		ResourceID:   resource.ID,
		Provider:     "mock",
		IndexStatus:  entities.IndexStatusError,
		ErrorMessage: "previous vendor failure",
	}))

	summary, err := f.service.SyncProvider(context.Background(), "mock", "", false, false)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Uploaded)

	upload, err := f.uploads.GetByID(context.Background(), "up-1")
	require.NoError(t, err)
	assert.Equal(t, entities.IndexStatusReady, upload.IndexStatus)
	assert.Empty(t, upload.ErrorMessage)
}

func TestSyncProvider_DispatchTerminatesInReadyOrError(t *testing.T) {
	f := newSyncFixture(t)
	f.addResource(t, "res-ok", "CO", entities.ResourceTypeLawGuide)

	// A resource whose document is missing fails at dispatch, not before.
	missing := &entities.JurisdictionResource{
		ID:           "res-missing",
		State:        "CO",
		Name:         "missing",
		ResourceType: entities.ResourceTypeGeneral,
		FilePath:     "co/nonexistent.md",
		ContentType:  "text/markdown",
		IsActive:     true,
	}
	require.NoError(t, f.resources.Create(context.Background(), missing))

	summary, err := f.service.SyncProvider(context.Background(), "mock", "", false, false)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, 1, summary.Failed)

	// Nothing stays pending once dispatch has run.
	pending, err := f.uploads.List(context.Background(), repositories.UploadFilter{
		IndexStatus: entities.IndexStatusPending,
	})
	require.NoError(t, err)
	assert.Empty(t, pending)

	failed, err := f.uploads.GetByResourceAndProvider(context.Background(), "res-missing", "mock")
	require.NoError(t, err)
	assert.Equal(t, entities.IndexStatusError, failed.IndexStatus)
	assert.NotEmpty(t, failed.ErrorMessage)
}

func TestSyncProvider_VendorErrorIsTruncated(t *testing.T) {
	f := newSyncFixture(t)
	f.addResource(t, "res-1", "CO", entities.ResourceTypeLawGuide)
	f.provider.WithUploadError(errors.New(strings.Repeat("x", 5000)))

	summary, err := f.service.SyncProvider(context.Background(), "mock", "", false, false)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	upload, err := f.uploads.GetByResourceAndProvider(context.Background(), "res-1", "mock")
	require.NoError(t, err)
	assert.Equal(t, entities.IndexStatusError, upload.IndexStatus)
	assert.LessOrEqual(t, len(upload.ErrorMessage), entities.MaxErrorMessageLen)
	assert.NotEmpty(t, upload.ErrorMessage)
}

func TestSyncProvider_IgnoresInactiveResources(t *testing.T) {
	f := newSyncFixture(t)
	resource := f.addResource(t, "res-1", "CO", entities.ResourceTypeLawGuide)
	require.NoError(t, f.resources.Deactivate(context.Background(), resource.ID))

	summary, err := f.service.SyncProvider(context.Background(), "mock", "", false, false)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
}

func TestUploadSingle_ReadyWithoutForceIsNoOp(t *testing.T) {
	f := newSyncFixture(t)
	resource := f.addResource(t, "res-1", "CO", entities.ResourceTypeLawGuide)

	require.NoError(t, f.service.UploadSingle(context.Background(), resource.ID, "mock", false))

	before, err := f.uploads.GetByResourceAndProvider(context.Background(), resource.ID, "mock")
	require.NoError(t, err)

	// Second invocation without force leaves the record untouched.
	require.NoError(t, f.service.UploadSingle(context.Background(), resource.ID, "mock", false))

	after, err := f.uploads.GetByResourceAndProvider(context.Background(), resource.ID, "mock")
	require.NoError(t, err)
	assert.Equal(t, before.ProviderFileID, after.ProviderFileID)
	assert.Equal(t, before.IndexedAt, after.IndexedAt)
}

func TestUploadSingle_FailureReturnsError(t *testing.T) {
	f := newSyncFixture(t)
	resource := f.addResource(t, "res-1", "CO", entities.ResourceTypeLawGuide)
	f.provider.WithUploadError(errors.New("vendor rejected upload"))

	err := f.service.UploadSingle(context.Background(), resource.ID, "mock", false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "vendor rejected upload")
}

func TestDeleteUpload_LocalDeleteIsFinal(t *testing.T) {
	f := newSyncFixture(t)
	resource := f.addResource(t, "res-1", "CO", entities.ResourceTypeLawGuide)

	require.NoError(t, f.service.UploadSingle(context.Background(), resource.ID, "mock", false))
	upload, err := f.uploads.GetByResourceAndProvider(context.Background(), resource.ID, "mock")
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteUpload(context.Background(), upload.ID))

	_, err = f.uploads.GetByID(context.Background(), upload.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestDeleteUpload_RemoteFailureDoesNotResurrectRecord(t *testing.T) {
	f := newSyncFixture(t)
	resource := f.addResource(t, "res-1", "CO", entities.ResourceTypeLawGuide)

	require.NoError(t, f.service.UploadSingle(context.Background(), resource.ID, "mock", false))
	upload, err := f.uploads.GetByResourceAndProvider(context.Background(), resource.ID, "mock")
	require.NoError(t, err)

	// Swap the registry for one that cannot resolve the provider, so the
	// remote removal path fails after the local delete.
	failing := services.NewSyncService(
		f.resources, f.uploads,
		&fakeRegistry{err: errors.New("provider unavailable")},
		nil, nil,
		&config.ResourceConfig{DocumentRoot: f.docRoot},
	)

	require.NoError(t, failing.DeleteUpload(context.Background(), upload.ID))

	_, err = f.uploads.GetByID(context.Background(), upload.ID)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
