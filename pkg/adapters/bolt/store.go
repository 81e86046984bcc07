package bolt

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

const bucketBlobs = "blobs"

// Store implements ports.BlobStore on an embedded bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketBlobs))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize blob bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Save persists the blob.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketBlobs)).Put([]byte(key), data)
	})
}

// Load retrieves the blob. The returned slice is owned by the caller.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketBlobs)).Get([]byte(key))
		if v == nil {
			return domain.ErrBlobNotFound
		}
		data = bytes.Clone(v)
		return nil
	})
	return data, err
}

// Delete removes the blob.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketBlobs)).Delete([]byte(key))
	})
}

// List returns all blob keys in byte order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	keys := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketBlobs)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
