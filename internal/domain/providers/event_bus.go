package providers

import (
	"context"

	"github.com/foiacoach/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to upload
// lifecycle events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.UploadEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.UploadEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event types
const (
	// EventChannelUploads is the channel for all upload lifecycle events
	EventChannelUploads = "uploads:all"

	// EventChannelProviderPrefix is the prefix for provider-specific channels
	EventChannelProviderPrefix = "uploads:provider:"
)

// GetProviderChannel returns the channel name for a specific provider
func GetProviderChannel(provider string) string {
	return EventChannelProviderPrefix + provider
}
