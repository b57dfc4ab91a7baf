package bolt

import (
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Store keeps a flat key/value namespace in a single bbolt bucket.
// Commits skip fsync (NoSync); durability comes from explicit Flush calls.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open creates or opens a bbolt database at the given path and makes sure
// bucket exists.
func Open(path, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("bolt: empty bucket name")
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second, NoSync: true})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}
	s := &Store{db: db, bucket: []byte(bucket)}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}
	return s, nil
}

func (s *Store) Get(key []byte) ([]byte, bool, error) {
	var (
		val   []byte
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get(key)
		if v != nil {
			val = make([]byte, len(v))
			copy(val, v)
			found = true
		}
		return nil
	})
	return val, found, err
}

func (s *Store) Set(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put(key, value)
	})
}

// Flush fdatasyncs the database file.
func (s *Store) Flush() error {
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("syncing bolt db: %w", err)
	}
	return nil
}

// Close syncs outstanding commits and closes the database.
func (s *Store) Close() error {
	syncErr := s.Flush()
	return errors.Join(syncErr, s.db.Close())
}
