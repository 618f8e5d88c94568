package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// BoltStore is an embedded key-value backend, adapted from
// TheSnook-polyester's storage.BBoltStorage. Where the teacher
// proto-marshals a single Resource type per bucket, this adaptation stores
// arbitrary JSON-encoded values keyed by string. Its only user is
// cache.BoltPageCache; DomainIndex persists through SaveJSON only.
type BoltStore struct {
	db     *bbolt.DB
	bucket []byte
}

// OpenBoltStore opens (creating if necessary) a bbolt database at path and
// ensures bucket exists.
func OpenBoltStore(path, bucket string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db %q: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	return &BoltStore{db: db, bucket: []byte(bucket)}, nil
}

// Put JSON-encodes v and writes it under key.
func (s *BoltStore) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), data)
	})
}

// Get decodes the value stored at key into v. Returns found=false if absent.
func (s *BoltStore) Get(key string, v any) (found bool, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(s.bucket).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, v)
	})
	return found, err
}

// Delete removes key, if present.
func (s *BoltStore) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// ForEach iterates every key/value pair in the bucket, decoding into a
// caller-provided factory result via fn.
func (s *BoltStore) ForEach(fn func(key string, raw []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
}

// Close releases the underlying database handle.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
