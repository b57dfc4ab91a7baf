// Package kv exposes typed, asynchronous accessors over a raw byte store.
//
// Every operation runs on the bridge worker pool and returns a future; the
// calling goroutine never performs the blocking engine call itself. Keys and
// values are copied before they are handed to a worker.
package kv

import (
	"bytes"

	"angrydb/internal/bridge"
	"angrydb/internal/kverr"
	"angrydb/internal/store"
)

// Notifier receives a hint after every successful write.
// *durability.Throttler satisfies it.
type Notifier interface {
	NotifyWrite()
}

// Lookup is the result of a raw read.
type Lookup struct {
	Value []byte
	Found bool
}

// Accessor is safe for concurrent use. Copies share the same engine, pool
// and notifier.
type Accessor struct {
	engine   store.Engine
	pool     *bridge.Pool
	notifier Notifier
}

// New returns an accessor running engine calls on pool. notifier may be nil.
func New(engine store.Engine, pool *bridge.Pool, notifier Notifier) *Accessor {
	return &Accessor{engine: engine, pool: pool, notifier: notifier}
}

// Get reads the exact stored bytes of key. It never creates an entry.
func (a *Accessor) Get(key []byte) *bridge.Future[Lookup] {
	return a.get("get", key)
}

func (a *Accessor) get(op string, key []byte) *bridge.Future[Lookup] {
	k := bytes.Clone(key)
	return bridge.Run(a.pool, op, func() (Lookup, error) {
		v, ok, err := a.engine.Get(k)
		if err != nil {
			return Lookup{}, kverr.Storage(op, err)
		}
		return Lookup{Value: v, Found: ok}, nil
	})
}

// Set creates or overwrites key. After a successful write the notifier is
// told without waiting; nothing it does can fail the write.
func (a *Accessor) Set(key, value []byte) *bridge.Future[struct{}] {
	return a.set("set", key, value)
}

func (a *Accessor) set(op string, key, value []byte) *bridge.Future[struct{}] {
	k, v := bytes.Clone(key), bytes.Clone(value)
	if v == nil {
		v = []byte{}
	}
	return bridge.Run(a.pool, op, func() (struct{}, error) {
		if err := a.engine.Set(k, v); err != nil {
			return struct{}{}, kverr.Storage(op, err)
		}
		if a.notifier != nil {
			a.notifier.NotifyWrite()
		}
		return struct{}{}, nil
	})
}

// GetU64 reads key as a little-endian u64. An absent key reads as 0; a
// stored value that is not exactly 8 bytes fails with kverr.KindDecode.
func (a *Accessor) GetU64(key []byte) *bridge.Future[uint64] {
	const op = "get_u64"
	return bridge.Map(a.get(op, key), func(l Lookup) (uint64, error) {
		if !l.Found {
			return 0, nil
		}
		n, err := DecodeU64(l.Value)
		if err != nil {
			return 0, kverr.Decode(op, err)
		}
		return n, nil
	})
}

// SetU64 stores v as 8 little-endian bytes.
func (a *Accessor) SetU64(key []byte, v uint64) *bridge.Future[struct{}] {
	return a.set("set_u64", key, EncodeU64(v))
}

// GetUTF8 reads key as a string. An absent key reads as "".
func (a *Accessor) GetUTF8(key []byte) *bridge.Future[string] {
	const op = "get_utf8"
	return bridge.Map(a.get(op, key), func(l Lookup) (string, error) {
		s, err := DecodeUTF8(l.Value)
		if err != nil {
			return "", kverr.Decode(op, err)
		}
		return s, nil
	})
}

// SetUTF8 stores s as its UTF-8 bytes. Go strings may hold arbitrary bytes,
// so s is validated first.
func (a *Accessor) SetUTF8(key []byte, s string) *bridge.Future[struct{}] {
	const op = "set_utf8"
	if _, err := DecodeUTF8([]byte(s)); err != nil {
		return bridge.Failed[struct{}](op, kverr.Decode(op, err))
	}
	return a.set(op, key, []byte(s))
}
