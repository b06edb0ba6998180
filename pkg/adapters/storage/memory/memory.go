package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/emud/pkg/domain"
)

// InMemoryStateStorage implements StateStorage using an in-memory map
type InMemoryStateStorage struct {
	snapshots map[string]domain.DeviceSnapshot
	mu        sync.RWMutex
}

// NewInMemoryStateStorage creates a new in-memory state storage
func NewInMemoryStateStorage() *InMemoryStateStorage {
	return &InMemoryStateStorage{
		snapshots: make(map[string]domain.DeviceSnapshot),
	}
}

// SaveSnapshot stores a copy of the snapshot
func (s *InMemoryStateStorage) SaveSnapshot(ctx context.Context, snapshot *domain.DeviceSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("snapshot is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snapshot.DeviceID] = *snapshot
	return nil
}

// GetSnapshot retrieves a device snapshot
func (s *InMemoryStateStorage) GetSnapshot(ctx context.Context, deviceID string) (*domain.DeviceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[deviceID]
	if !ok {
		return nil, fmt.Errorf("snapshot not found: %s", deviceID)
	}
	return &snapshot, nil
}

// DeleteSnapshot removes a device snapshot
func (s *InMemoryStateStorage) DeleteSnapshot(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.snapshots, deviceID)
	return nil
}

// ListSnapshots returns all stored snapshots ordered by device ID
func (s *InMemoryStateStorage) ListSnapshots(ctx context.Context) ([]*domain.DeviceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshots := make([]*domain.DeviceSnapshot, 0, len(s.snapshots))
	for _, snapshot := range s.snapshots {
		snapshot := snapshot
		snapshots = append(snapshots, &snapshot)
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].DeviceID < snapshots[j].DeviceID
	})
	return snapshots, nil
}
