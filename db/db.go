// Package db defines the key/value database abstraction used by the node
// storage, together with the identifiers of the available backends.
package db

import (
	"errors"
	"io"
)

const (
	// TypePebble is the pebble backend, the default one.
	TypePebble = "pebble"
	// TypeLevelDB is the goleveldb backend.
	TypeLevelDB = "leveldb"
	// TypeMongo is the mongodb backend. Options.Path is the database name
	// and the server is taken from the MONGODB_URL environment variable.
	TypeMongo = "mongodb"
	// TypeInMem is an ephemeral in-memory backend.
	TypeInMem = "inmem"
)

var (
	// ErrKeyNotFound is returned by Get when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned by Commit when the transaction read keys that
	// were modified by another transaction committed in between. Backends
	// that cannot detect conflicts never return it.
	ErrConflict = errors.New("transaction conflict")
)

// Options configures a database backend.
type Options struct {
	Path string
}

// Reader is the read side of a database or a transaction.
type Reader interface {
	// Get returns the value of key, or ErrKeyNotFound. The returned slice
	// is owned by the caller.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback for every key starting with prefix, in
	// ascending key order, until callback returns false. Keys are passed
	// with prefix removed. Slices are only valid during the callback.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx is a write transaction. Writes are only visible to the
// transaction itself until Commit.
type WriteTx interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
	// Apply adds the pending writes of other to this transaction.
	Apply(other WriteTx) error
	Commit() error
	// Discard releases the transaction. It is safe to call after Commit.
	Discard()
}

// Database is a key/value store.
type Database interface {
	io.Closer
	Reader
	WriteTx() WriteTx
	Compact() error
}

// WriteTxUnwrapper is implemented by transactions that wrap another one,
// such as prefixed transactions.
type WriteTxUnwrapper interface {
	Unwrap() WriteTx
}

// UnwrapWriteTx returns the innermost transaction of tx.
func UnwrapWriteTx(tx WriteTx) WriteTx {
	for {
		u, ok := tx.(WriteTxUnwrapper)
		if !ok {
			return tx
		}
		tx = u.Unwrap()
	}
}
