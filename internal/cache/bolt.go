package cache

import (
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("editor_cache")

// ErrMissingCachePath indicates BoltStore was opened without a file path.
var ErrMissingCachePath = errors.New("cache: path required")

// BoltStore is a bbolt-backed Store. It is the durable tier-one cache that
// protects unsaved edits across crashes and restarts.
type BoltStore struct {
	db *bolt.DB
}

// OpenBolt opens (creating if necessary) the cache database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if path == "" {
		return nil, ErrMissingCachePath
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: ensure bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Get returns the cached value for key when present.
func (s *BoltStore) Get(key string) (string, bool) {
	var value string
	var found bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if raw != nil {
			value = string(raw)
			found = true
		}
		return nil
	})
	return value, found
}

// Set stores value under key.
func (s *BoltStore) Set(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	})
}

// Remove deletes the value stored under key.
func (s *BoltStore) Remove(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
