// Package boltdb is a docstore.Store persisted in a single bbolt file.
// Each collection is a bucket holding a "docs" and a "keys" sub-bucket;
// the bucket sequence is the collection revision.
package boltdb

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
)

var (
	docsBucket = []byte("docs")
	keysBucket = []byte("keys")
)

type record struct {
	Key    string          `json:"key,omitempty"`
	Fields docstore.Fields `json:"fields"`
}

type DB struct {
	db  *bbolt.DB
	hub docstore.Hub
}

var _ docstore.Store = (*DB)(nil)

// Open opens (or creates) the database file at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "creating database directory")
		}
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	return &DB{db: db}, nil
}

func collectionBuckets(tx *bbolt.Tx, collection string) (coll, docs, keys *bbolt.Bucket, err error) {
	if coll, err = tx.CreateBucketIfNotExists([]byte(collection)); err != nil {
		return nil, nil, nil, err
	}
	if docs, err = coll.CreateBucketIfNotExists(docsBucket); err != nil {
		return nil, nil, nil, err
	}
	if keys, err = coll.CreateBucketIfNotExists(keysBucket); err != nil {
		return nil, nil, nil, err
	}
	return coll, docs, keys, nil
}

func getRecord(docs *bbolt.Bucket, id string) (record, bool, error) {
	var rec record
	data := docs.Get([]byte(id))
	if data == nil {
		return rec, false, nil
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, false, errors.Wrapf(err, "decoding %s", id)
	}
	return rec, true, nil
}

func putRecord(docs *bbolt.Bucket, id string, rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return docs.Put([]byte(id), data)
}

type writeFunc func(docs, keys *bbolt.Bucket) error

// write runs fn in a read-write transaction, bumps the collection revision and publishes it.
func (db *DB) write(ctx context.Context, collection string, fn writeFunc) error {
	err := db.db.Update(func(tx *bbolt.Tx) error {
		coll, docs, keys, err := collectionBuckets(tx, collection)
		if err != nil {
			return err
		}
		if err = fn(docs, keys); err != nil {
			return err
		}
		_, err = coll.NextSequence()
		return err
	})
	if err == bbolt.ErrDatabaseNotOpen {
		return docstore.ErrClosed
	}
	if err != nil {
		return err
	}

	db.hub.Publish(ctx, collection, db.List)
	return nil
}

func (db *DB) List(_ context.Context, q docstore.Query) (docstore.Snapshot, error) {
	snap := docstore.Snapshot{Docs: make([]docstore.Document, 0)}
	err := db.db.View(func(tx *bbolt.Tx) error {
		coll := tx.Bucket([]byte(q.Collection))
		if coll == nil {
			return nil
		}
		snap.Revision = coll.Sequence()
		docs := coll.Bucket(docsBucket)
		if docs == nil {
			return nil
		}
		return docs.ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return errors.Wrapf(err, "decoding %s", k)
			}
			if rec.Fields == nil {
				rec.Fields = make(docstore.Fields)
			}
			if docstore.Match(rec.Fields, q.Where) {
				snap.Docs = append(snap.Docs, docstore.Document{ID: string(k), Fields: rec.Fields})
			}
			return nil
		})
	})
	if err == bbolt.ErrDatabaseNotOpen {
		return docstore.Snapshot{}, docstore.ErrClosed
	}
	if err != nil {
		return docstore.Snapshot{}, errors.Wrapf(err, "listing %s", q.Collection)
	}
	docstore.SortDocuments(snap.Docs, q.OrderBy)
	return snap, nil
}

func (db *DB) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	var doc docstore.Document
	err := db.db.View(func(tx *bbolt.Tx) error {
		coll := tx.Bucket([]byte(collection))
		if coll == nil {
			return docstore.ErrNotFound
		}
		docs := coll.Bucket(docsBucket)
		if docs == nil {
			return docstore.ErrNotFound
		}
		rec, ok, err := getRecord(docs, id)
		if err != nil {
			return err
		}
		if !ok {
			return docstore.ErrNotFound
		}
		if rec.Fields == nil {
			rec.Fields = make(docstore.Fields)
		}
		doc = docstore.Document{ID: id, Fields: rec.Fields}
		return nil
	})
	if err == bbolt.ErrDatabaseNotOpen {
		return doc, docstore.ErrClosed
	}
	return doc, err
}

func (db *DB) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	return db.CreateUnique(ctx, collection, "", fields)
}

func (db *DB) CreateUnique(ctx context.Context, collection, key string, fields docstore.Fields) (string, error) {
	normalized, err := docstore.Normalize(fields, core.NowFunc())
	if err != nil {
		return "", err
	}

	var id string
	err = db.write(ctx, collection, func(docs, keys *bbolt.Bucket) error {
		if key != "" {
			if owner := keys.Get([]byte(key)); owner != nil {
				id = string(owner)
				return docstore.ErrDuplicate
			}
		}
		id = uuid.NewString()
		if key != "" {
			if err := keys.Put([]byte(key), []byte(id)); err != nil {
				return err
			}
		}
		return putRecord(docs, id, record{Key: key, Fields: normalized})
	})
	if err == docstore.ErrDuplicate {
		return id, err
	}
	if err != nil {
		return "", errors.Wrapf(err, "creating %s document", collection)
	}
	return id, nil
}

func (db *DB) Upsert(ctx context.Context, collection, key string, fields docstore.Fields) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("upsert requires a unique key")
	}
	normalized, err := docstore.Normalize(fields, core.NowFunc())
	if err != nil {
		return "", false, err
	}

	var id string
	var created bool
	err = db.write(ctx, collection, func(docs, keys *bbolt.Bucket) error {
		if owner := keys.Get([]byte(key)); owner != nil {
			id = string(owner)
			rec, _, err := getRecord(docs, id)
			if err != nil {
				return err
			}
			rec.Key = key
			rec.Fields = docstore.Merge(rec.Fields, normalized)
			return putRecord(docs, id, rec)
		}
		id = uuid.NewString()
		created = true
		if err := keys.Put([]byte(key), []byte(id)); err != nil {
			return err
		}
		return putRecord(docs, id, record{Key: key, Fields: normalized})
	})
	if err != nil {
		return "", false, errors.Wrapf(err, "upserting %s document", collection)
	}
	return id, created, nil
}

func (db *DB) Set(ctx context.Context, collection, id string, fields docstore.Fields) error {
	normalized, err := docstore.Normalize(fields, core.NowFunc())
	if err != nil {
		return err
	}
	return db.write(ctx, collection, func(docs, _ *bbolt.Bucket) error {
		rec, _, err := getRecord(docs, id)
		if err != nil {
			return err
		}
		rec.Fields = normalized
		return putRecord(docs, id, rec)
	})
}

func (db *DB) Patch(ctx context.Context, collection, id string, fields docstore.Fields) error {
	normalized, err := docstore.Normalize(fields, core.NowFunc())
	if err != nil {
		return err
	}
	return db.write(ctx, collection, func(docs, _ *bbolt.Bucket) error {
		rec, ok, err := getRecord(docs, id)
		if err != nil {
			return err
		}
		if !ok {
			return docstore.ErrNotFound
		}
		rec.Fields = docstore.Merge(rec.Fields, normalized)
		return putRecord(docs, id, rec)
	})
}

func (db *DB) Delete(ctx context.Context, collection, id string) error {
	return db.write(ctx, collection, func(docs, keys *bbolt.Bucket) error {
		rec, ok, err := getRecord(docs, id)
		if err != nil || !ok {
			return err
		}
		if rec.Key != "" {
			if err := keys.Delete([]byte(rec.Key)); err != nil {
				return err
			}
		}
		return docs.Delete([]byte(id))
	})
}

func (db *DB) Subscribe(
	ctx context.Context,
	q docstore.Query,
	onChange func(docstore.Snapshot),
	onError func(error),
) (docstore.Unsubscribe, error) {
	return db.hub.Subscribe(ctx, q, onChange, onError, db.List)
}

func (db *DB) Close() error {
	db.hub.Close()
	return db.db.Close()
}
