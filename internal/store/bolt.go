package store

import (
	"bytes"
	"strings"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var threadsBucket = []byte("threads")

// BoltStore is the durable key/value storage thread ids are kept in. It
// satisfies identity.Storage.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening bolt db")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(threadsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating threads bucket")
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(threadsBucket).Get([]byte(key)); v != nil {
			value = string(v)
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "reading %q", key)
	}
	return value, nil
}

func (s *BoltStore) Set(key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(threadsBucket).Put([]byte(key), []byte(value))
	})
	return errors.Wrapf(err, "writing %q", key)
}

func (s *BoltStore) Delete(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(threadsBucket).Delete([]byte(key))
	})
	return errors.Wrapf(err, "deleting %q", key)
}

// Keys lists the stored keys starting with prefix, in byte order.
func (s *BoltStore) Keys(prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(threadsBucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, errors.Wrap(err, "listing keys")
}

// Scoped returns a view of the store whose keys are prefixed with scope, so
// several visitors can share one file without seeing each other's values.
func (s *BoltStore) Scoped(scope string) *ScopedStore {
	return &ScopedStore{parent: s, prefix: scope + "/"}
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type ScopedStore struct {
	parent *BoltStore
	prefix string
}

func (s *ScopedStore) Get(key string) (string, error) {
	return s.parent.Get(s.prefix + key)
}

func (s *ScopedStore) Set(key, value string) error {
	return s.parent.Set(s.prefix+key, value)
}

// Clear removes every value in the scope.
func (s *ScopedStore) Clear() error {
	keys, err := s.parent.Keys(s.prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.parent.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists the scope's keys without the scope prefix.
func (s *ScopedStore) Keys() ([]string, error) {
	keys, err := s.parent.Keys(s.prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, s.prefix)
	}
	return keys, nil
}
