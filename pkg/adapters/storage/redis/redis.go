package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/emud/pkg/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "emud:device:"

// StateStorage implements StateStorage using Redis
type StateStorage struct {
	client redis.UniversalClient
	logger *zap.Logger
	ttl    time.Duration
}

// NewStateStorage creates a new Redis state storage. A zero ttl keeps
// snapshots until they are deleted.
func NewStateStorage(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *StateStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SaveSnapshot stores the snapshot as JSON under the device key
func (s *StateStorage) SaveSnapshot(ctx context.Context, snapshot *domain.DeviceSnapshot) error {
	if snapshot == nil {
		return errors.New("snapshot is nil")
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, SnapshotKey(snapshot.DeviceID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.logger.Debug("snapshot saved",
		zap.String("device_id", snapshot.DeviceID),
		zap.Stringer("state", snapshot.State))

	return nil
}

// GetSnapshot retrieves a device snapshot
func (s *StateStorage) GetSnapshot(ctx context.Context, deviceID string) (*domain.DeviceSnapshot, error) {
	data, err := s.client.Get(ctx, SnapshotKey(deviceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("snapshot not found: %s", deviceID)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snapshot domain.DeviceSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// DeleteSnapshot removes a device snapshot
func (s *StateStorage) DeleteSnapshot(ctx context.Context, deviceID string) error {
	if err := s.client.Del(ctx, SnapshotKey(deviceID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns every stored snapshot. Entries that expire or fail
// to decode during the scan are skipped.
func (s *StateStorage) ListSnapshots(ctx context.Context) ([]*domain.DeviceSnapshot, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	snapshots := make([]*domain.DeviceSnapshot, 0, len(keys))
	for _, key := range keys {
		snapshot, err := s.GetSnapshot(ctx, strings.TrimPrefix(key, keyPrefix))
		if err != nil {
			s.logger.Debug("skipping snapshot", zap.String("key", key), zap.Error(err))
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}

// SnapshotKey returns the Redis key for a device snapshot
func SnapshotKey(deviceID string) string {
	return keyPrefix + deviceID
}
