package entities

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// UploadEventType represents the type of upload lifecycle event
type UploadEventType string

const (
	UploadEventTypePending   UploadEventType = "upload_pending"
	UploadEventTypeUploading UploadEventType = "upload_started"
	UploadEventTypeReady     UploadEventType = "upload_ready"
	UploadEventTypeError     UploadEventType = "upload_error"
	UploadEventTypeDeleted   UploadEventType = "upload_deleted"
)

// UploadEvent is broadcast whenever an upload record changes state, so
// operators can watch sync progress without polling the table.
type UploadEvent struct {
	ID           string          `json:"id"`
	UploadID     string          `json:"upload_id"`
	ResourceID   string          `json:"resource_id"`
	Provider     string          `json:"provider"`
	EventType    UploadEventType `json:"event_type"`
	IndexStatus  IndexStatus     `json:"index_status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// NewUploadEvent creates a new upload lifecycle event
func NewUploadEvent(upload *ResourceProviderUpload, eventType UploadEventType) *UploadEvent {
	return &UploadEvent{
		ID:           generateEventID(),
		UploadID:     upload.ID,
		ResourceID:   upload.ResourceID,
		Provider:     upload.Provider,
		EventType:    eventType,
		IndexStatus:  upload.IndexStatus,
		ErrorMessage: upload.ErrorMessage,
		Timestamp:    time.Now(),
	}
}

// generateEventID generates a unique event ID
func generateEventID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

// randomString generates a random string of specified length
func randomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based if crypto/rand fails
		return time.Now().Format("150405.000")
	}
	return hex.EncodeToString(bytes)[:length]
}
