// Package store provides the durable consumed-signature set backing the
// marketplace replay guard. Off-chain indexers rely on this state surviving
// restarts to detect stale offers before submission.
package store

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketConsumedSignatures = []byte("consumed_signatures")

// SignatureStore persists consumed signatures in a BoltDB file. It implements
// market.SignatureStore; the redemption engine is its only writer.
type SignatureStore struct {
	db *bolt.DB
}

// Open initialises (and migrates) the BoltDB-backed signature store.
func Open(path string, options *bolt.Options) (*SignatureStore, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketConsumedSignatures)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SignatureStore{db: db}, nil
}

// Close releases the underlying Bolt database handle.
func (s *SignatureStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// IsConsumed reports whether the raw signature bytes were already redeemed.
func (s *SignatureStore) IsConsumed(signature []byte) bool {
	var consumed bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		consumed = tx.Bucket(bucketConsumedSignatures).Get(signature) != nil
		return nil
	})
	return consumed
}

// Consume marks the raw signature bytes as used. Marking twice is a no-op.
func (s *SignatureStore) Consume(signature []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConsumedSignatures).Put(signature, []byte{1})
	})
}

// Release removes a consumption mark. The engine only calls this while
// compensating a redemption whose outbound transfer failed.
func (s *SignatureStore) Release(signature []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketConsumedSignatures).Delete(signature)
	})
}
