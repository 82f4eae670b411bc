/*
Package storage implements the local tally ledger on top of the node
key/value database.

# Storage Organization

  - c/  : candidate index (4 bytes, big endian) → candidate name (CBOR)
  - vr/ : proof digest (32 bytes) → VoteRecord (CBOR)
  - vc/ : candidate index (4 bytes, big endian) → vote count (8 bytes, big endian)

A vote inserts its record under vr/ and increments the counter under vc/ in
a single write transaction, serialized by the storage lock, so both writes
become visible together or not at all.
*/
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vocdoni/starkvote/db"
	"github.com/vocdoni/starkvote/db/prefixeddb"
	"github.com/vocdoni/starkvote/log"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidCandidate  = errors.New("invalid candidate index")
	ErrNoCandidates      = errors.New("no candidates configured")
	ErrVotesAlreadyExist = errors.New("candidates cannot change once votes exist")

	// Prefixes
	candidatePrefix  = []byte("c/")
	voteRecordPrefix = []byte("vr/")
	voteCountPrefix  = []byte("vc/")
)

const (
	cacheSize          = 1000
	candidatesCacheKey = "candidates"
)

// candidateRecord is the stored form of a candidate. Counts live apart so
// that a vote never rewrites the candidate entry.
type candidateRecord struct {
	Name string `cbor:"name"`
}

// Storage is the local tally ledger. It implements vote.Ledger.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
	cache      *lru.Cache[string, any]
}

// New creates a new Storage instance on top of database.
func New(database db.Database) *Storage {
	cache, err := lru.New[string, any](cacheSize)
	if err != nil {
		log.Fatalf("failed to create LRU cache: %v", err)
	}
	return &Storage{
		db:    database,
		cache: cache,
	}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage", "error", err.Error())
	}
}

func candidateKey(idx int) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(idx))
	return key
}

func encodeCount(n uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, n)
	return out
}

func decodeCount(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid vote count length %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// getArtifact decodes the artifact stored under prefix+key into out.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := DecodeArtifact(data, out); err != nil {
		return fmt.Errorf("could not decode artifact: %w", err)
	}
	return nil
}
