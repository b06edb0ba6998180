package orchestrator

import (
	"context"
	"time"

	"github.com/aescanero/emud/pkg/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// recordTransition publishes a lifecycle event and persists the snapshot.
// Side-channel failures are logged and never fail the transition.
func (o *Orchestrator) recordTransition(ctx context.Context, eventType domain.EventType, data map[string]interface{}) {
	st := o.State()

	if o.events != nil {
		event := domain.Event{
			ID:        uuid.New().String(),
			Type:      eventType,
			DeviceID:  o.deviceID,
			State:     st,
			Timestamp: time.Now(),
			Data:      data,
		}
		if err := o.events.Publish(ctx, domain.EventTopic, event); err != nil {
			o.logger.Error("failed to publish lifecycle event",
				zap.String("event_type", string(eventType)),
				zap.Error(err))
		}
	}

	if o.storage != nil {
		if err := o.storage.SaveSnapshot(ctx, o.Snapshot()); err != nil {
			o.logger.Error("failed to save device snapshot",
				zap.String("state", st.String()),
				zap.Error(err))
		}
	}
}

// recordFailure remembers err as the last lifecycle error and records it.
func (o *Orchestrator) recordFailure(ctx context.Context, eventType domain.EventType, err error) {
	o.mu.Lock()
	o.lastError = err.Error()
	o.updatedAt = time.Now()
	o.mu.Unlock()

	o.recordTransition(ctx, eventType, map[string]interface{}{
		"error": err.Error(),
	})
}
