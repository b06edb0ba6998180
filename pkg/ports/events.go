package ports

import (
	"context"

	"github.com/aescanero/emud/pkg/domain"
)

// EventHandler processes one lifecycle event.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus distributes lifecycle events.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	// Subscribe registers handler until ctx is cancelled.
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// StateStorage persists device snapshots.
type StateStorage interface {
	SaveSnapshot(ctx context.Context, snapshot *domain.DeviceSnapshot) error
	GetSnapshot(ctx context.Context, deviceID string) (*domain.DeviceSnapshot, error)
	DeleteSnapshot(ctx context.Context, deviceID string) error
	ListSnapshots(ctx context.Context) ([]*domain.DeviceSnapshot, error)
}
