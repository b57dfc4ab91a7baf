// Package store defines the storage engine contract consumed by the access
// layer and opens the concrete backends.
package store

import (
	"fmt"

	badgerstore "angrydb/internal/store/badger"
	boltstore "angrydb/internal/store/bolt"
)

// Engine is a flat, byte-oriented key/value store. Implementations must be
// safe for concurrent use and must return values the caller owns: nothing
// handed out may alias engine memory.
type Engine interface {
	// Get returns the stored value and true, or nil and false when the key
	// is absent. It never creates an entry.
	Get(key []byte) ([]byte, bool, error)
	// Set creates or overwrites key.
	Set(key, value []byte) error
	// Flush makes every completed Set durable.
	Flush() error
	Close() error
}

var (
	_ Engine = (*boltstore.Store)(nil)
	_ Engine = (*badgerstore.Store)(nil)
)

// Open opens the named engine at path. bucket is only used by bolt.
func Open(engine, path, bucket string) (Engine, error) {
	switch engine {
	case "", "bolt":
		return boltstore.Open(path, bucket)
	case "badger":
		return badgerstore.Open(path)
	default:
		return nil, fmt.Errorf("unknown storage engine %q", engine)
	}
}
