package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/foiacoach/backend/internal/domain/entities"
	"github.com/foiacoach/backend/internal/domain/providers"
	"github.com/foiacoach/backend/internal/domain/repositories"
	"github.com/foiacoach/backend/internal/infrastructure/observability"
	"github.com/foiacoach/backend/pkg/config"
	apperrors "github.com/foiacoach/backend/pkg/errors"
)

// SyncSummary aggregates the outcome of a bulk sync run.
type SyncSummary struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Uploaded int `json:"uploaded"`
	Failed   int `json:"failed"`
}

// ProviderGetter resolves provider names to adapter instances; satisfied by
// the rag.Registry.
type ProviderGetter interface {
	Get(name string, useCache bool) (providers.RAGProvider, error)
}

// SyncService orchestrates the upload lifecycle for resources across
// providers. All state transitions funnel through dispatch, which claims the
// record before touching the vendor so the same record is never uploaded
// twice concurrently.
type SyncService struct {
	resources repositories.ResourceRepository
	uploads   repositories.UploadRepository
	registry  ProviderGetter
	eventBus  providers.EventBus
	metrics   *observability.Metrics
	docRoot   string
}

// NewSyncService creates a new sync service. eventBus and metrics may be nil;
// lifecycle events and metrics are then skipped.
func NewSyncService(
	resources repositories.ResourceRepository,
	uploads repositories.UploadRepository,
	registry ProviderGetter,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
	cfg *config.ResourceConfig,
) *SyncService {
	return &SyncService{
		resources: resources,
		uploads:   uploads,
		registry:  registry,
		eventBus:  eventBus,
		metrics:   metrics,
		docRoot:   cfg.DocumentRoot,
	}
}

// SyncProvider reconciles upload records for every active resource against one
// provider, then dispatches everything left pending. With force, every record
// not already pending is re-queued, which is also how an operator recovers a
// record stranded in uploading after a crash. With dryRun, records are
// reconciled but nothing is dispatched.
func (s *SyncService) SyncProvider(ctx context.Context, providerName, state string, force, dryRun bool) (*SyncSummary, error) {
	provider, err := s.registry.Get(providerName, true)
	if err != nil {
		return nil, err
	}

	resources, err := s.resources.List(ctx, repositories.ResourceFilter{
		State:      state,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}

	logger := observability.ProviderLogger(ctx, provider.Name())
	summary := &SyncSummary{}
	var pendingIDs []string

	for _, resource := range resources {
		upload, err := s.uploads.GetByResourceAndProvider(ctx, resource.ID, provider.Name())
		if err != nil {
			if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				return nil, err
			}
			// No record yet for this pair: queue a fresh pending one.
			upload = &entities.ResourceProviderUpload{
				ID:          uuid.New().String(),
				ResourceID:  resource.ID,
				Provider:    provider.Name(),
				IndexStatus: entities.IndexStatusPending,
			}
			if err := s.uploads.Create(ctx, upload); err != nil {
				return nil, err
			}
			summary.Created++
			pendingIDs = append(pendingIDs, upload.ID)
			s.publish(ctx, upload, entities.UploadEventTypePending)
			continue
		}

		switch {
		case upload.IndexStatus == entities.IndexStatusPending:
			pendingIDs = append(pendingIDs, upload.ID)
		case upload.NeedsUpload() || (force && upload.IndexStatus != entities.IndexStatusPending):
			if err := s.uploads.ResetToPending(ctx, upload.ID); err != nil {
				return nil, err
			}
			summary.Updated++
			pendingIDs = append(pendingIDs, upload.ID)
			s.publish(ctx, upload, entities.UploadEventTypePending)
		default:
			summary.Skipped++
		}
	}

	if dryRun {
		logger.Info().
			Int("pending", len(pendingIDs)).
			Msg("dry run, skipping dispatch")
		return summary, nil
	}

	for _, id := range pendingIDs {
		if s.dispatch(ctx, provider, id) {
			summary.Uploaded++
		} else {
			summary.Failed++
		}
	}

	return summary, nil
}

// UploadSingle dispatches one resource to one provider. A record already ready
// is a warning no-op unless force is set.
func (s *SyncService) UploadSingle(ctx context.Context, resourceID, providerName string, force bool) error {
	provider, err := s.registry.Get(providerName, true)
	if err != nil {
		return err
	}

	resource, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return err
	}

	logger := observability.ProviderLogger(ctx, provider.Name())

	upload, err := s.uploads.GetByResourceAndProvider(ctx, resource.ID, provider.Name())
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return err
		}
		upload = &entities.ResourceProviderUpload{
			ID:          uuid.New().String(),
			ResourceID:  resource.ID,
			Provider:    provider.Name(),
			IndexStatus: entities.IndexStatusPending,
		}
		if err := s.uploads.Create(ctx, upload); err != nil {
			return err
		}
		s.publish(ctx, upload, entities.UploadEventTypePending)
	} else {
		if upload.IndexStatus == entities.IndexStatusReady && !force {
			logger.Warn().
				Str("resource_id", resource.ID).
				Msg("already uploaded, use force to re-upload")
			return nil
		}
		if upload.IndexStatus != entities.IndexStatusPending {
			if err := s.uploads.ResetToPending(ctx, upload.ID); err != nil {
				return err
			}
			s.publish(ctx, upload, entities.UploadEventTypePending)
		}
	}

	if !s.dispatch(ctx, provider, upload.ID) {
		refreshed, getErr := s.uploads.GetByID(ctx, upload.ID)
		if getErr == nil && refreshed.ErrorMessage != "" {
			return fmt.Errorf("upload failed: %s", refreshed.ErrorMessage)
		}
		return fmt.Errorf("upload failed for resource %s on provider %s", resource.ID, provider.Name())
	}

	return nil
}

// DeleteUpload removes the local record, then makes a best-effort attempt to
// remove the document from the vendor store. The local delete is final either
// way; a failed remote removal is only logged.
func (s *SyncService) DeleteUpload(ctx context.Context, uploadID string) error {
	upload, err := s.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return err
	}

	if err := s.uploads.Delete(ctx, uploadID); err != nil {
		return err
	}
	s.publish(ctx, upload, entities.UploadEventTypeDeleted)

	if upload.ProviderFileID == "" {
		return nil
	}

	logger := observability.ProviderLogger(ctx, upload.Provider)

	provider, err := s.registry.Get(upload.Provider, true)
	if err != nil {
		logger.Warn().Err(err).
			Str("upload_id", uploadID).
			Msg("skipping remote removal, provider unavailable")
		return nil
	}

	resource, err := s.resources.GetByID(ctx, upload.ResourceID)
	if err != nil {
		resource = &entities.JurisdictionResource{ID: upload.ResourceID}
	}

	if err := provider.RemoveResource(ctx, resource, upload.ProviderFileID); err != nil {
		logger.Warn().Err(err).
			Str("upload_id", uploadID).
			Str("provider_file_id", upload.ProviderFileID).
			Msg("remote removal failed")
	}

	return nil
}

// dispatch pushes one pending record through the vendor upload. It reports
// whether the record ended ready. Vendor failures are absorbed into the
// record's error state and never propagate.
func (s *SyncService) dispatch(ctx context.Context, provider providers.RAGProvider, uploadID string) bool {
	logger := observability.ProviderLogger(ctx, provider.Name())

	claimed, err := s.uploads.MarkUploading(ctx, uploadID)
	if err != nil {
		logger.Error().Err(err).Str("upload_id", uploadID).Msg("failed to claim upload record")
		return false
	}
	if !claimed {
		// Someone else claimed the record or moved it out of pending.
		logger.Info().Str("upload_id", uploadID).Msg("record no longer pending, skipping")
		return false
	}

	upload, err := s.uploads.GetByID(ctx, uploadID)
	if err != nil {
		logger.Error().Err(err).Str("upload_id", uploadID).Msg("failed to load claimed record")
		return false
	}
	s.publish(ctx, upload, entities.UploadEventTypeUploading)

	result, uploadErr := s.performUpload(ctx, provider, upload)

	if uploadErr != nil {
		if err := s.uploads.MarkError(ctx, uploadID, uploadErr.Error()); err != nil {
			logger.Error().Err(err).Str("upload_id", uploadID).Msg("failed to record upload error")
		}
		observability.RecordUploadMetric(ctx, s.metrics, provider.Name(), true)
		logger.Error().Err(uploadErr).
			Str("upload_id", uploadID).
			Msg("upload failed")

		upload.IndexStatus = entities.IndexStatusError
		upload.ErrorMessage = entities.TruncateErrorMessage(uploadErr.Error())
		s.publish(ctx, upload, entities.UploadEventTypeError)
		return false
	}

	if err := s.uploads.MarkReady(ctx, uploadID, result.FileID, result.StoreID, result.Metadata); err != nil {
		logger.Error().Err(err).Str("upload_id", uploadID).Msg("failed to record upload success")
		return false
	}
	observability.RecordUploadMetric(ctx, s.metrics, provider.Name(), false)

	upload.IndexStatus = entities.IndexStatusReady
	upload.ProviderFileID = result.FileID
	upload.ProviderStoreID = result.StoreID
	s.publish(ctx, upload, entities.UploadEventTypeReady)
	return true
}

// performUpload opens the resource document and hands it to the provider.
func (s *SyncService) performUpload(ctx context.Context, provider providers.RAGProvider, upload *entities.ResourceProviderUpload) (*providers.UploadResult, error) {
	resource, err := s.resources.GetByID(ctx, upload.ResourceID)
	if err != nil {
		return nil, err
	}

	content, err := s.openDocument(resource)
	if err != nil {
		return nil, err
	}
	defer content.Close()

	return provider.UploadResource(ctx, resource, content)
}

func (s *SyncService) openDocument(resource *entities.JurisdictionResource) (io.ReadCloser, error) {
	path := filepath.Join(s.docRoot, filepath.Clean(resource.FilePath))
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open resource document %s: %w", resource.FilePath, err)
	}
	return f, nil
}

func (s *SyncService) publish(ctx context.Context, upload *entities.ResourceProviderUpload, eventType entities.UploadEventType) {
	if s.eventBus == nil {
		return
	}

	event := entities.NewUploadEvent(upload, eventType)
	for _, channel := range []string{
		providers.EventChannelUploads,
		providers.GetProviderChannel(upload.Provider),
	} {
		if err := s.eventBus.Publish(ctx, channel, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("channel", channel).
				Msg("failed to publish upload event")
		}
	}
}
