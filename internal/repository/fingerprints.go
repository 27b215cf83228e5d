package repository

import (
	"context"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/joseph-ayodele/receipt-pipeline/internal/anomaly"
	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
)

var fingerprintBucket = []byte("fingerprints")

// BoltFingerprintStore keeps receipt fingerprints in a local bbolt file so
// duplicate detection survives restarts. Entries expire after the TTL;
// an expired entry is replaced and the submission counts as first-seen.
type BoltFingerprintStore struct {
	db  *bbolt.DB
	ttl time.Duration
	now func() time.Time
}

func NewBoltFingerprintStore(path string, ttl time.Duration) (*BoltFingerprintStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, common.PersistenceError("open fingerprint db", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(fingerprintBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, common.PersistenceError("create fingerprint bucket", err)
	}
	return &BoltFingerprintStore{
		db:  db,
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// CheckAndRecord runs inside a single update transaction, so concurrent
// callers serialize and exactly one observes the first occurrence.
func (s *BoltFingerprintStore) CheckAndRecord(_ context.Context, fingerprint string, snap anomaly.Snapshot) (anomaly.Snapshot, bool, error) {
	var (
		prev anomaly.Snapshot
		seen bool
	)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(fingerprintBucket)
		key := []byte(fingerprint)

		if raw := b.Get(key); raw != nil {
			var existing anomaly.Snapshot
			if err := json.Unmarshal(raw, &existing); err == nil && !s.expired(existing) {
				prev = existing
				seen = true
				return nil
			}
			// Expired or unreadable entries are replaced.
		}

		if snap.SeenAt.IsZero() {
			snap.SeenAt = s.now()
		}
		raw, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		return b.Put(key, raw)
	})
	if err != nil {
		return anomaly.Snapshot{}, false, common.PersistenceError("check fingerprint", err)
	}
	return prev, seen, nil
}

func (s *BoltFingerprintStore) expired(snap anomaly.Snapshot) bool {
	if s.ttl <= 0 {
		return false
	}
	return s.now().Sub(snap.SeenAt) > s.ttl
}

func (s *BoltFingerprintStore) Close() error {
	return s.db.Close()
}
