// Package mongodb implements db.Database on a MongoDB collection. Every key
// is stored as a document whose _id is the lowercase hex encoding of the
// key, which keeps the lexicographic order of the raw keys.
package mongodb

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/vocdoni/starkvote/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionName = "kv"
	opTimeout      = 30 * time.Second
)

type document struct {
	Key   string `bson:"_id"`
	Value []byte `bson:"value"`
}

// MongoDB implements db.Database.
type MongoDB struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ db.Database = (*MongoDB)(nil)

// New connects to the server at MONGODB_URL and uses opts.Path as the
// database name.
func New(opts db.Options) (*MongoDB, error) {
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		return nil, fmt.Errorf("MONGODB_URL environment variable not set")
	}
	if opts.Path == "" {
		return nil, fmt.Errorf("missing mongodb database name")
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &MongoDB{
		client: client,
		coll:   client.Database(opts.Path).Collection(collectionName),
	}, nil
}

func encodeKey(key []byte) string {
	return hex.EncodeToString(key)
}

// Get implements db.Reader.
func (d *MongoDB) Get(key []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var doc document
	err := d.coll.FindOne(ctx, bson.M{"_id": encodeKey(key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.Value, nil
}

// Iterate implements db.Reader.
func (d *MongoDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	filter := bson.M{}
	if len(prefix) > 0 {
		filter = bson.M{"_id": bson.M{"$regex": "^" + encodeKey(prefix)}}
	}
	cur, err := d.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return err
		}
		key, err := hex.DecodeString(doc.Key)
		if err != nil {
			return fmt.Errorf("invalid key %q: %w", doc.Key, err)
		}
		if !callback(key[len(prefix):], doc.Value) {
			break
		}
	}
	return cur.Err()
}

// WriteTx implements db.Database. Conflicts are not detected.
func (d *MongoDB) WriteTx() db.WriteTx {
	return &WriteTx{db: d, writes: make(map[string]*[]byte)}
}

// Close implements io.Closer.
func (d *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return d.client.Disconnect(ctx)
}

// Compact implements db.Database. MongoDB manages its own storage.
func (*MongoDB) Compact() error {
	return nil
}

// WriteTx buffers writes in memory and commits them in a single MongoDB
// transaction, which requires the server to be a replica set member.
type WriteTx struct {
	db     *MongoDB
	writes map[string]*[]byte
}

var _ db.WriteTx = (*WriteTx)(nil)

// Get implements db.Reader.
func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if pending, ok := tx.writes[string(key)]; ok {
		if pending == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(*pending), nil
	}
	return tx.db.Get(key)
}

// Iterate implements db.Reader.
func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	entries := make(map[string][]byte)
	if err := tx.db.Iterate(prefix, func(k, v []byte) bool {
		entries[string(prefix)+string(k)] = v
		return true
	}); err != nil {
		return err
	}
	for k, v := range tx.writes {
		if !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		if v == nil {
			delete(entries, k)
			continue
		}
		entries[k] = *v
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !callback([]byte(k[len(prefix):]), entries[k]) {
			break
		}
	}
	return nil
}

// Set implements db.WriteTx.
func (tx *WriteTx) Set(key, value []byte) error {
	v := bytes.Clone(value)
	tx.writes[string(key)] = &v
	return nil
}

// Delete implements db.WriteTx.
func (tx *WriteTx) Delete(key []byte) error {
	tx.writes[string(key)] = nil
	return nil
}

// Apply implements db.WriteTx.
func (tx *WriteTx) Apply(other db.WriteTx) error {
	otherTx, ok := db.UnwrapWriteTx(other).(*WriteTx)
	if !ok {
		return fmt.Errorf("cannot apply %T to a mongodb tx", other)
	}
	for k, v := range otherTx.writes {
		if v == nil {
			tx.writes[k] = nil
			continue
		}
		c := bytes.Clone(*v)
		tx.writes[k] = &c
	}
	return nil
}

// Commit implements db.WriteTx.
func (tx *WriteTx) Commit() error {
	if len(tx.writes) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(tx.writes))
	for k, v := range tx.writes {
		id := encodeKey([]byte(k))
		if v == nil {
			models = append(models, mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": id}))
			continue
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": id}).
			SetReplacement(document{Key: id, Value: *v}).
			SetUpsert(true))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	session, err := tx.db.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongodb session: %w", err)
	}
	defer session.EndSession(ctx)
	if _, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return tx.db.coll.BulkWrite(sc, models, options.BulkWrite().SetOrdered(true))
	}); err != nil {
		return fmt.Errorf("commit mongodb tx: %w", err)
	}
	tx.writes = make(map[string]*[]byte)
	return nil
}

// Discard implements db.WriteTx.
func (tx *WriteTx) Discard() {
	tx.writes = make(map[string]*[]byte)
}
