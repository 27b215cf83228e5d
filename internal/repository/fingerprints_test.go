package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-pipeline/internal/anomaly"
)

func newTestFingerprintStore(t *testing.T, ttl time.Duration) *BoltFingerprintStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fingerprints.db")
	store, err := NewBoltFingerprintStore(path, ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBoltFirstThenSeen(t *testing.T) {
	store := newTestFingerprintStore(t, 30*24*time.Hour)
	ctx := context.Background()
	total := 6.10
	snap := anomaly.Snapshot{Merchant: "Walmart", PurchaseDate: "2024-01-02", Total: &total, ItemCount: 2}

	_, seen, err := store.CheckAndRecord(ctx, "fp-1", snap)
	require.NoError(t, err)
	assert.False(t, seen)

	prev, seen, err := store.CheckAndRecord(ctx, "fp-1", snap)
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, "Walmart", prev.Merchant)
	require.NotNil(t, prev.Total)
	assert.InDelta(t, 6.10, *prev.Total, 0.001)
	assert.False(t, prev.SeenAt.IsZero())
}

func TestBoltDistinctFingerprints(t *testing.T) {
	store := newTestFingerprintStore(t, 30*24*time.Hour)
	ctx := context.Background()

	_, seen, err := store.CheckAndRecord(ctx, "fp-1", anomaly.Snapshot{Merchant: "A"})
	require.NoError(t, err)
	assert.False(t, seen)

	_, seen, err = store.CheckAndRecord(ctx, "fp-2", anomaly.Snapshot{Merchant: "B"})
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestBoltExpiredEntryCountsAsFirst(t *testing.T) {
	store := newTestFingerprintStore(t, time.Hour)
	ctx := context.Background()

	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	_, seen, err := store.CheckAndRecord(ctx, "fp-1", anomaly.Snapshot{Merchant: "Shop"})
	require.NoError(t, err)
	assert.False(t, seen)

	// Past the TTL the entry is replaced instead of reported.
	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, seen, err = store.CheckAndRecord(ctx, "fp-1", anomaly.Snapshot{Merchant: "Shop"})
	require.NoError(t, err)
	assert.False(t, seen)

	// And the fresh entry is live again.
	prev, seen, err := store.CheckAndRecord(ctx, "fp-1", anomaly.Snapshot{Merchant: "Shop"})
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, base.Add(2*time.Hour), prev.SeenAt)
}

func TestBoltSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fingerprints.db")
	ctx := context.Background()

	store, err := NewBoltFingerprintStore(path, 0)
	require.NoError(t, err)
	_, seen, err := store.CheckAndRecord(ctx, "fp-1", anomaly.Snapshot{Merchant: "Shop"})
	require.NoError(t, err)
	assert.False(t, seen)
	require.NoError(t, store.Close())

	reopened, err := NewBoltFingerprintStore(path, 0)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	prev, seen, err := reopened.CheckAndRecord(ctx, "fp-1", anomaly.Snapshot{Merchant: "Shop"})
	require.NoError(t, err)
	assert.True(t, seen)
	assert.Equal(t, "Shop", prev.Merchant)
}
