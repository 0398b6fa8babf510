// Package memdb is an in-memory docstore.Store.
package memdb

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
)

type memCollection struct {
	docs     map[string]docstore.Fields
	keys     map[string]string // unique key -> doc ID
	docKeys  map[string]string // doc ID -> unique key
	revision uint64
}

func newCollection() *memCollection {
	return &memCollection{
		docs:    make(map[string]docstore.Fields),
		keys:    make(map[string]string),
		docKeys: make(map[string]string),
	}
}

type DB struct {
	mu     sync.RWMutex
	colls  map[string]*memCollection
	closed bool
	hub    docstore.Hub
}

var _ docstore.Store = (*DB)(nil)

func New() *DB {
	return &DB{colls: make(map[string]*memCollection)}
}

// coll must be called with db.mu held for writing.
func (db *DB) coll(name string) *memCollection {
	c, ok := db.colls[name]
	if !ok {
		c = newCollection()
		db.colls[name] = c
	}
	return c
}

// write runs fn under the write lock, bumps the revision of collection and publishes it.
func (db *DB) write(ctx context.Context, collection string, fn func(c *memCollection) error) error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return docstore.ErrClosed
	}
	c := db.coll(collection)
	if err := fn(c); err != nil {
		db.mu.Unlock()
		return err
	}
	c.revision++
	db.mu.Unlock()

	db.hub.Publish(ctx, collection, db.List)
	return nil
}

func (db *DB) List(_ context.Context, q docstore.Query) (docstore.Snapshot, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return docstore.Snapshot{}, docstore.ErrClosed
	}

	c, ok := db.colls[q.Collection]
	if !ok {
		return docstore.Snapshot{Docs: []docstore.Document{}}, nil
	}
	docs := make([]docstore.Document, 0, len(c.docs))
	for id, fields := range c.docs {
		if docstore.Match(fields, q.Where) {
			docs = append(docs, docstore.Document{ID: id, Fields: docstore.CloneFields(fields)})
		}
	}
	docstore.SortDocuments(docs, q.OrderBy)
	return docstore.Snapshot{Revision: c.revision, Docs: docs}, nil
}

func (db *DB) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return docstore.Document{}, docstore.ErrClosed
	}

	if c, ok := db.colls[collection]; ok {
		if fields, ok := c.docs[id]; ok {
			return docstore.Document{ID: id, Fields: docstore.CloneFields(fields)}, nil
		}
	}
	return docstore.Document{}, docstore.ErrNotFound
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
	err = db.write(ctx, collection, func(c *memCollection) error {
		if key != "" {
			if ownerID, ok := c.keys[key]; ok {
				id = ownerID
				return docstore.ErrDuplicate
			}
		}
		id = uuid.NewString()
		c.docs[id] = normalized
		if key != "" {
			c.keys[key] = id
			c.docKeys[id] = key
		}
		return nil
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
	err = db.write(ctx, collection, func(c *memCollection) error {
		if ownerID, ok := c.keys[key]; ok {
			id = ownerID
			c.docs[id] = docstore.Merge(c.docs[id], normalized)
			return nil
		}
		id = uuid.NewString()
		created = true
		c.docs[id] = normalized
		c.keys[key] = id
		c.docKeys[id] = key
		return nil
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
	return db.write(ctx, collection, func(c *memCollection) error {
		c.docs[id] = normalized
		return nil
	})
}

func (db *DB) Patch(ctx context.Context, collection, id string, fields docstore.Fields) error {
	normalized, err := docstore.Normalize(fields, core.NowFunc())
	if err != nil {
		return err
	}
	return db.write(ctx, collection, func(c *memCollection) error {
		current, ok := c.docs[id]
		if !ok {
			return docstore.ErrNotFound
		}
		c.docs[id] = docstore.Merge(current, normalized)
		return nil
	})
}

func (db *DB) Delete(ctx context.Context, collection, id string) error {
	return db.write(ctx, collection, func(c *memCollection) error {
		if key, ok := c.docKeys[id]; ok {
			delete(c.keys, key)
			delete(c.docKeys, id)
		}
		delete(c.docs, id)
		return nil
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

// InjectError reports err to the subscribers of collection, as a dropped backend connection would.
func (db *DB) InjectError(collection string, err error) {
	db.hub.Fail(collection, err)
}

// Subscriptions returns the number of live subscriptions.
func (db *DB) Subscriptions() int {
	return db.hub.Len()
}

func (db *DB) Close() error {
	db.mu.Lock()
	db.closed = true
	db.mu.Unlock()
	db.hub.Close()
	return nil
}
