// Package dbtest holds the behaviour tests shared by every db backend.
package dbtest

import (
	"bytes"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/starkvote/db"
)

// TestWriteTx checks that a transaction sees its own writes and that only
// committed writes reach the database.
func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	defer wTx.Discard()

	_, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Set([]byte("a"), []byte("b")), qt.IsNil)
	v, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Commit(), qt.IsNil)
	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	dTx := database.WriteTx()
	c.Assert(dTx.Delete([]byte("a")), qt.IsNil)
	_, err = dTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	c.Assert(dTx.Commit(), qt.IsNil)
	dTx.Discard()
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

// TestIterate checks prefix iteration order, prefix stripping and early
// termination, both on the database and on a transaction.
func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	prefix0 := []byte("a")
	prefix1 := []byte("b")
	n := 20
	wTx := database.WriteTx()
	for i := range n {
		c.Assert(wTx.Set(fmt.Appendf(nil, "%s%02d", prefix0, i), []byte{byte(i)}), qt.IsNil)
		c.Assert(wTx.Set(fmt.Appendf(nil, "%s%02d", prefix1, i), []byte{byte(i + n)}), qt.IsNil)
	}
	c.Assert(wTx.Commit(), qt.IsNil)
	wTx.Discard()

	var keys [][]byte
	var values []byte
	c.Assert(database.Iterate(prefix0, func(k, v []byte) bool {
		keys = append(keys, bytes.Clone(k))
		values = append(values, v...)
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.HasLen, n)
	for i := range n {
		c.Assert(keys[i], qt.DeepEquals, fmt.Appendf(nil, "%02d", i))
		c.Assert(values[i], qt.Equals, byte(i))
	}

	count := 0
	c.Assert(database.Iterate(prefix1, func(_, _ []byte) bool {
		count++
		return count < 5
	}), qt.IsNil)
	c.Assert(count, qt.Equals, 5)

	count = 0
	c.Assert(database.Iterate(nil, func(_, _ []byte) bool {
		count++
		return true
	}), qt.IsNil)
	c.Assert(count, qt.Equals, 2*n)

	// a transaction iterates over committed and pending keys
	rTx := database.WriteTx()
	defer rTx.Discard()
	c.Assert(rTx.Set([]byte("a99"), []byte{99}), qt.IsNil)
	c.Assert(rTx.Delete([]byte("a00")), qt.IsNil)
	keys = nil
	c.Assert(rTx.Iterate(prefix0, func(k, _ []byte) bool {
		keys = append(keys, bytes.Clone(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.HasLen, n)
	c.Assert(keys[0], qt.DeepEquals, []byte("01"))
	c.Assert(keys[n-1], qt.DeepEquals, []byte("99"))
}

// TestWriteTxApply checks that applying a transaction adds its pending
// writes to the receiver.
func TestWriteTxApply(t *testing.T, database db.Database) {
	c := qt.New(t)

	keyA, valueA := []byte("A"), []byte("a")
	keyB, valueB := []byte("B"), []byte("b")

	wTx := database.WriteTx()
	defer wTx.Discard()
	c.Assert(wTx.Set(keyA, valueA), qt.IsNil)

	otherTx := database.WriteTx()
	defer otherTx.Discard()
	c.Assert(otherTx.Set(keyB, valueB), qt.IsNil)

	c.Assert(wTx.Apply(otherTx), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	v, err := database.Get(keyA)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, valueA)
	v, err = database.Get(keyB)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, valueB)
}

// TestWriteTxApplyPrefixed checks that writes applied from a prefixed
// transaction keep their prefix.
func TestWriteTxApplyPrefixed(t *testing.T, database, prefixedDatabase db.Database) {
	c := qt.New(t)

	keyA, valueA := []byte("A"), []byte("a")
	keyB, valueB := []byte("B"), []byte("b")

	wTx := database.WriteTx()
	defer wTx.Discard()
	c.Assert(wTx.Set(keyA, valueA), qt.IsNil)

	prefixedTx := prefixedDatabase.WriteTx()
	defer prefixedTx.Discard()
	c.Assert(prefixedTx.Set(keyB, valueB), qt.IsNil)

	c.Assert(wTx.Apply(prefixedTx), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	v, err := database.Get(keyA)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, valueA)

	v, err = prefixedDatabase.Get(keyB)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, valueB)

	_, err = database.Get(keyB)
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

// TestConcurrentWriteTx checks conflict detection. Only backends that
// detect conflicts should run it.
func TestConcurrentWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	key := []byte("counter")
	tx1 := database.WriteTx()
	defer tx1.Discard()
	tx2 := database.WriteTx()
	defer tx2.Discard()

	_, err := tx1.Get(key)
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	_, err = tx2.Get(key)
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(tx1.Set(key, []byte{1}), qt.IsNil)
	c.Assert(tx2.Set(key, []byte{2}), qt.IsNil)

	c.Assert(tx1.Commit(), qt.IsNil)
	c.Assert(tx2.Commit(), qt.ErrorIs, db.ErrConflict)

	v, err := database.Get(key)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte{1})
}
