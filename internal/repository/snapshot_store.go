package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"RecoBoard/internal/domain/models"
	domrepo "RecoBoard/internal/domain/repository"

	"github.com/google/uuid"
)

// MemorySnapshotStore holds the latest accepted snapshot. A delivery with
// the same content as the held one keeps the existing id.
type MemorySnapshotStore struct {
	mu      sync.RWMutex
	current *models.Snapshot
	now     func() time.Time
	newID   func() string
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{now: time.Now, newID: uuid.NewString}
}

func (s *MemorySnapshotStore) Latest(_ context.Context) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, domrepo.ErrNoSnapshot
	}
	snap := *s.current
	return &snap, nil
}

// Replace stores records as the current snapshot. changed is false when
// the content hash matches the held snapshot.
func (s *MemorySnapshotStore) Replace(_ context.Context, records []models.RawRecord, source string) (*models.Snapshot, bool, error) {
	hash, err := ContentHash(records)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.Hash == hash {
		snap := *s.current
		return &snap, false, nil
	}
	s.current = &models.Snapshot{
		ID:         s.newID(),
		Hash:       hash,
		ReceivedAt: s.now(),
		Source:     source,
		Records:    slices.Clone(records),
	}
	snap := *s.current
	return &snap, true, nil
}

// ContentHash is the hex sha256 of the records' JSON encoding.
func ContentHash(records []models.RawRecord) (string, error) {
	if records == nil {
		records = []models.RawRecord{}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
