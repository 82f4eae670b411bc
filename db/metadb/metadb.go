// Package metadb opens a db.Database by backend type.
package metadb

import (
	"cmp"
	"fmt"
	"os"
	"testing"

	"github.com/vocdoni/starkvote/db"
	"github.com/vocdoni/starkvote/db/goleveldb"
	"github.com/vocdoni/starkvote/db/inmemory"
	"github.com/vocdoni/starkvote/db/mongodb"
	"github.com/vocdoni/starkvote/db/pebbledb"
)

// New opens a database of type typ. For file backed types dir is the data
// directory; for mongodb it is the database name.
func New(typ, dir string) (db.Database, error) {
	var database db.Database
	var err error
	opts := db.Options{Path: dir}
	switch typ {
	case db.TypePebble:
		database, err = pebbledb.New(opts)
	case db.TypeLevelDB:
		database, err = goleveldb.New(opts)
	case db.TypeMongo:
		database, err = mongodb.New(opts)
	case db.TypeInMem:
		database, err = inmemory.New(opts)
	default:
		return nil, fmt.Errorf("invalid dbType: %q. Available types: %q, %q, %q, %q",
			typ, db.TypePebble, db.TypeLevelDB, db.TypeMongo, db.TypeInMem)
	}
	if err != nil {
		return nil, err
	}
	return database, nil
}

// ForTest returns the backend type for tests, read from DB_TYPE.
func ForTest() (typ string) {
	return cmp.Or(os.Getenv("DB_TYPE"), db.TypePebble) // default to Pebble
}

// NewTest opens a database of type ForTest() in a temporary directory that
// is closed when the test ends.
func NewTest(tb testing.TB) db.Database {
	database, err := New(ForTest(), tb.TempDir())
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { database.Close() })
	return database
}
