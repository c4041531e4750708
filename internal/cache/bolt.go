package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	errs "mediafetch/pkg/errors"
)

// BoltStore keeps one bucket per collection key, URL -> commit time
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) cache.bolt under dir
func NewBoltStore(dir string) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.Storage("create cache directory", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, "cache.bolt"), 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errs.Storage("open cache database", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load(ctx context.Context, key string) (URLSet, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if err := checkCtx(ctx); err != nil {
		return nil, err
	}

	set := URLSet{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(key))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, _ []byte) error {
			set.Add(string(k))
			return nil
		})
	})
	if err != nil {
		return nil, errs.Storage("read cache bucket", err)
	}
	return set, nil
}

func (s *BoltStore) Commit(ctx context.Context, key string, urls []string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := checkCtx(ctx); err != nil {
		return err
	}

	stamp := []byte(time.Now().UTC().Format(time.RFC3339))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(key))
		if err != nil {
			return err
		}
		for _, u := range urls {
			u = strings.TrimSpace(u)
			if u == "" || bucket.Get([]byte(u)) != nil {
				continue
			}
			if err := bucket.Put([]byte(u), stamp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Storage("write cache bucket", err)
	}
	return nil
}

func (s *BoltStore) Clear(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(key)); err != nil && err != berrors.ErrBucketNotFound {
			return err
		}
		return nil
	})
	if err != nil {
		return errs.Storage("clear cache bucket", err)
	}
	return nil
}

func (s *BoltStore) ClearAll(ctx context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var names [][]byte
		if err := tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Storage("clear cache", err)
	}
	return nil
}

func (s *BoltStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			keys = append(keys, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, errs.Storage("list cache keys", err)
	}
	return keys, nil
}

// Close closes the database file
func (s *BoltStore) Close() error {
	return s.db.Close()
}
