package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const kvBucket = "reader"

// boltStore implements Store backed by BoltDB with quota accounting over
// the summed value sizes in the bucket.
type boltStore struct {
	db         *bolt.DB
	quotaBytes int64
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(kvBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{db: db, quotaBytes: opts.QuotaBytes}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Get returns the stored value for key, or ErrKeyNotFound.
func (b *boltStore) Get(key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(kvBucket))
		if bucket == nil {
			return fmt.Errorf("kv bucket missing")
		}
		value := bucket.Get([]byte(key))
		if value == nil {
			return ErrKeyNotFound
		}
		out = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put writes value under key, rejecting the write with ErrQuotaExceeded
// when the bucket's total payload would cross the quota.
func (b *boltStore) Put(key string, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(kvBucket))
		if bucket == nil {
			return fmt.Errorf("kv bucket missing")
		}

		total := int64(0)
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			if string(k) == key {
				continue
			}
			total += int64(len(v))
		}
		if total+int64(len(value)) > b.quotaBytes {
			return ErrQuotaExceeded
		}

		return bucket.Put([]byte(key), value)
	})
}

// Delete removes key. Deleting an absent key is not an error.
func (b *boltStore) Delete(key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(kvBucket))
		if bucket == nil {
			return fmt.Errorf("kv bucket missing")
		}
		return bucket.Delete([]byte(key))
	})
}

// Size reports the stored byte size for key; zero when absent.
func (b *boltStore) Size(key string) (int64, error) {
	var size int64
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(kvBucket))
		if bucket == nil {
			return fmt.Errorf("kv bucket missing")
		}
		size = int64(len(bucket.Get([]byte(key))))
		return nil
	})
	return size, err
}
