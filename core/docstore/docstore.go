// Package docstore defines the document store contract used by the repositories:
// collections of schemaless documents with ordered, filtered queries and
// push-based change notifications.
package docstore

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("unique key already taken")
	ErrClosed    = errors.New("store closed")
)

type (
	// Fields is the schemaless payload of a Document.
	Fields map[string]interface{}

	Document struct {
		ID     string
		Fields Fields
	}

	// Snapshot is the full result set of a Query at a given collection revision.
	Snapshot struct {
		Revision uint64
		Docs     []Document
	}

	// Unsubscribe tears down a subscription. Safe to call more than once.
	Unsubscribe func()

	// Store is a remote document store.
	//
	// Writes bump the revision of their collection and deliver the post-write
	// snapshot to the subscribers of that collection before returning.
	// Subscribe delivers the initial snapshot before returning.
	// onChange and onError must not write to the store synchronously.
	Store interface {
		List(ctx context.Context, q Query) (Snapshot, error)
		Get(ctx context.Context, collection, id string) (Document, error)
		Create(ctx context.Context, collection string, fields Fields) (string, error)
		// CreateUnique creates a document owning key. If key is already taken,
		// it returns the id of the owner with ErrDuplicate.
		CreateUnique(ctx context.Context, collection, key string, fields Fields) (string, error)
		// Upsert creates a document owning key, or shallow-merges fields into its current owner.
		Upsert(ctx context.Context, collection, key string, fields Fields) (id string, created bool, err error)
		// Set creates or replaces the document stored at id.
		Set(ctx context.Context, collection, id string, fields Fields) error
		// Patch shallow-merges fields into an existing document.
		Patch(ctx context.Context, collection, id string, fields Fields) error
		// Delete removes a document and frees its unique key. Deleting a missing document is a no-op.
		Delete(ctx context.Context, collection, id string) error
		Subscribe(ctx context.Context, q Query, onChange func(Snapshot), onError func(error)) (Unsubscribe, error)
		Close() error
	}
)

// Decode unmarshals the document fields into v, exposing the document ID as "id".
func (d Document) Decode(v interface{}) error {
	fields := make(Fields, len(d.Fields)+1)
	for k, val := range d.Fields {
		fields[k] = val
	}
	fields["id"] = d.ID

	data, err := json.Marshal(fields)
	if err != nil {
		return errors.Wrap(err, "marshalling document")
	}
	return errors.Wrapf(json.Unmarshal(data, v), "decoding document %q", d.ID)
}
