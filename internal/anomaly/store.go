package anomaly

import (
	"context"
	"sync"
	"time"
)

// FingerprintStore is the duplicate-detection capability. CheckAndRecord
// is atomic: for a given fingerprint exactly one caller ever observes
// seen=false, concurrent callers included (first-writer-wins).
type FingerprintStore interface {
	CheckAndRecord(ctx context.Context, fingerprint string, snap Snapshot) (prev Snapshot, seen bool, err error)
}

// MemoryStore keeps fingerprints for the process lifetime. Suitable for a
// single instance; horizontally scaled deployments want the TTL-bounded
// external store instead.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]Snapshot)}
}

func (s *MemoryStore) CheckAndRecord(_ context.Context, fingerprint string, snap Snapshot) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.seen[fingerprint]; ok {
		// First occurrence is never overwritten.
		return prev, true, nil
	}
	if snap.SeenAt.IsZero() {
		snap.SeenAt = time.Now().UTC()
	}
	s.seen[fingerprint] = snap
	return Snapshot{}, false, nil
}
