package entities

import "time"

// IndexStatus tracks the sync lifecycle of one (resource, provider) pair.
type IndexStatus string

const (
	IndexStatusNotUploaded IndexStatus = "not_uploaded"
	IndexStatusPending     IndexStatus = "pending"
	IndexStatusUploading   IndexStatus = "uploading"
	IndexStatusReady       IndexStatus = "ready"
	IndexStatusError       IndexStatus = "error"
)

// MaxErrorMessageLen bounds error_message; vendor stack traces get cut here.
const MaxErrorMessageLen = 1000

// ResourceProviderUpload is the local row tracking the sync state of one
// resource on one provider. At most one row exists per (resource, provider).
type ResourceProviderUpload struct {
	ID               string            `json:"id" db:"id"`
	ResourceID       string            `json:"resource_id" db:"resource_id"`
	Provider         string            `json:"provider" db:"provider"`
	IndexStatus      IndexStatus       `json:"index_status" db:"index_status"`
	ProviderFileID   string            `json:"provider_file_id" db:"provider_file_id"`
	ProviderStoreID  string            `json:"provider_store_id" db:"provider_store_id"`
	ProviderMetadata map[string]string `json:"provider_metadata" db:"provider_metadata"`
	ErrorMessage     string            `json:"error_message" db:"error_message"`
	IndexedAt        *time.Time        `json:"indexed_at" db:"indexed_at"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// NeedsUpload reports whether a bulk sync should reset this record to pending
// without the operator forcing it. Ready, pending and uploading records are
// left alone.
func (u *ResourceProviderUpload) NeedsUpload() bool {
	return u.IndexStatus == IndexStatusError || u.IndexStatus == IndexStatusNotUploaded
}

// TruncateErrorMessage bounds a vendor error message to MaxErrorMessageLen.
func TruncateErrorMessage(msg string) string {
	if len(msg) > MaxErrorMessageLen {
		return msg[:MaxErrorMessageLen]
	}
	return msg
}
