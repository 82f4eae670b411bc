// Package prefixeddb scopes a database, reader or transaction to a key
// prefix, so that several stores can share one backend.
package prefixeddb

import (
	"github.com/vocdoni/starkvote/db"
)

func prefixKey(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

// PrefixedReader is a db.Reader whose keys are prefixed.
type PrefixedReader struct {
	reader db.Reader
	prefix []byte
}

var _ db.Reader = (*PrefixedReader)(nil)

// NewPrefixedReader returns a reader that prepends prefix to every key.
func NewPrefixedReader(reader db.Reader, prefix []byte) *PrefixedReader {
	return &PrefixedReader{reader: reader, prefix: prefix}
}

// Get implements db.Reader.
func (r *PrefixedReader) Get(key []byte) ([]byte, error) {
	return r.reader.Get(prefixKey(r.prefix, key))
}

// Iterate implements db.Reader.
func (r *PrefixedReader) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return r.reader.Iterate(prefixKey(r.prefix, prefix), callback)
}

// PrefixedWriteTx is a db.WriteTx whose keys are prefixed.
type PrefixedWriteTx struct {
	tx     db.WriteTx
	prefix []byte
}

var (
	_ db.WriteTx          = (*PrefixedWriteTx)(nil)
	_ db.WriteTxUnwrapper = (*PrefixedWriteTx)(nil)
)

// NewPrefixedWriteTx returns a transaction that prepends prefix to every key.
func NewPrefixedWriteTx(tx db.WriteTx, prefix []byte) *PrefixedWriteTx {
	return &PrefixedWriteTx{tx: tx, prefix: prefix}
}

// Unwrap implements db.WriteTxUnwrapper.
func (t *PrefixedWriteTx) Unwrap() db.WriteTx {
	return t.tx
}

// Get implements db.Reader.
func (t *PrefixedWriteTx) Get(key []byte) ([]byte, error) {
	return t.tx.Get(prefixKey(t.prefix, key))
}

// Iterate implements db.Reader.
func (t *PrefixedWriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return t.tx.Iterate(prefixKey(t.prefix, prefix), callback)
}

// Set implements db.WriteTx.
func (t *PrefixedWriteTx) Set(key, value []byte) error {
	return t.tx.Set(prefixKey(t.prefix, key), value)
}

// Delete implements db.WriteTx.
func (t *PrefixedWriteTx) Delete(key []byte) error {
	return t.tx.Delete(prefixKey(t.prefix, key))
}

// Apply implements db.WriteTx. The writes of other keep their own prefix.
func (t *PrefixedWriteTx) Apply(other db.WriteTx) error {
	return t.tx.Apply(db.UnwrapWriteTx(other))
}

// Commit implements db.WriteTx.
func (t *PrefixedWriteTx) Commit() error {
	return t.tx.Commit()
}

// Discard implements db.WriteTx.
func (t *PrefixedWriteTx) Discard() {
	t.tx.Discard()
}

// PrefixedDatabase is a db.Database whose keys are prefixed.
type PrefixedDatabase struct {
	db     db.Database
	prefix []byte
}

var _ db.Database = (*PrefixedDatabase)(nil)

// NewPrefixedDatabase returns a database that prepends prefix to every key.
func NewPrefixedDatabase(database db.Database, prefix []byte) *PrefixedDatabase {
	return &PrefixedDatabase{db: database, prefix: prefix}
}

// Get implements db.Reader.
func (d *PrefixedDatabase) Get(key []byte) ([]byte, error) {
	return d.db.Get(prefixKey(d.prefix, key))
}

// Iterate implements db.Reader.
func (d *PrefixedDatabase) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return d.db.Iterate(prefixKey(d.prefix, prefix), callback)
}

// WriteTx implements db.Database.
func (d *PrefixedDatabase) WriteTx() db.WriteTx {
	return NewPrefixedWriteTx(d.db.WriteTx(), d.prefix)
}

// Close closes the underlying database.
func (d *PrefixedDatabase) Close() error {
	return d.db.Close()
}

// Compact implements db.Database.
func (d *PrefixedDatabase) Compact() error {
	return d.db.Compact()
}
