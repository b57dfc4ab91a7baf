package badger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v2"

	"angrydb/internal/logging"
)

var logger = logging.For("badger")

// Store implements a flat key/value namespace on Badger v2 (LSM tree with a
// value log). Writes are not synced individually; Flush syncs the log.
type Store struct {
	db *badger.DB
}

// Open creates or opens a Badger database in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithSyncWrites(false).
		WithLogger(slogAdapter{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key []byte) ([]byte, bool, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if val == nil {
		val = []byte{}
	}
	return val, true, nil
}

func (s *Store) Set(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Flush syncs the value log and memtable write-ahead state to disk.
func (s *Store) Flush() error {
	if err := s.db.Sync(); err != nil {
		return fmt.Errorf("syncing badger db: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// slogAdapter routes Badger's printf-style logging into slog. Badger is
// chatty at info level, so its info messages are demoted to debug.
type slogAdapter struct{}

func (slogAdapter) Errorf(format string, args ...interface{}) {
	logger.Error(trim(format, args))
}

func (slogAdapter) Warningf(format string, args ...interface{}) {
	logger.Warn(trim(format, args))
}

func (slogAdapter) Infof(format string, args ...interface{}) {
	logger.Debug(trim(format, args))
}

func (slogAdapter) Debugf(format string, args ...interface{}) {
	logger.Debug(trim(format, args))
}

func trim(format string, args []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
