// Package classroom holds the classroom entities and their live repositories.
package classroom

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/docstore"
)

// Collections
const (
	ClassesCollection     = "classes"
	LessonsCollection     = "lessons"
	AttendancesCollection = "attendances"
	EnrollmentsCollection = "enrollments"
	RatingsCollection     = "materialRatings"
)

const maxConcurrentDeletes = 8

// repository holds what every classroom repository shares.
type repository struct {
	store      docstore.Store
	validate   *validator.Validate
	logger     core.Logger
	collection string
}

func newRepository(store docstore.Store, validate *validator.Validate, logger core.Logger, collection string) repository {
	return repository{store: store, validate: validate, logger: logger, collection: collection}
}

func descBy(collection, field string) docstore.Query {
	return docstore.Query{
		Collection: collection,
		OrderBy:    []docstore.Ordering{{Field: field, Ascending: false}},
	}
}

// checkIDs fails with a validation error if any of the named ids is empty.
// Arguments are name/value pairs.
func checkIDs(pairs ...string) error {
	val := vala.BeginValidation()
	for i := 0; i+1 < len(pairs); i += 2 {
		val = val.Validate(vala.StringNotEmpty(pairs[i+1], pairs[i]))
	}
	if err := val.Check(); err != nil {
		return core.NewValidationError(err)
	}
	return nil
}

// DeleteWhere deletes every document of the collection matching where, concurrently.
// It returns the number of matching documents and the joined deletion errors.
func (r repository) DeleteWhere(ctx context.Context, where ...docstore.Where) (int, error) {
	snap, err := r.store.List(ctx, docstore.Query{Collection: r.collection, Where: where})
	if err != nil {
		return 0, errors.Wrapf(err, "listing %s", r.collection)
	}
	ids := make([]string, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		ids = append(ids, doc.ID)
	}
	return len(ids), deleteAll(ctx, r.store, r.collection, ids)
}

func deleteAll(ctx context.Context, store docstore.Store, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(maxConcurrentDeletes)
	for _, id := range ids {
		id := id
		p.Go(func(ctx context.Context) error {
			return errors.Wrapf(store.Delete(ctx, collection, id), "deleting %s/%s", collection, id)
		})
	}
	return p.Wait()
}

func (r repository) get(ctx context.Context, id string) (docstore.Document, error) {
	if err := checkIDs("id", id); err != nil {
		return docstore.Document{}, err
	}
	doc, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return docstore.Document{}, errors.Wrapf(err, "getting %s/%s", r.collection, id)
	}
	return doc, nil
}

func (r repository) patch(ctx context.Context, id string, fields docstore.Fields) error {
	fields["updatedAt"] = docstore.ServerTimestamp
	return errors.Wrapf(r.store.Patch(ctx, r.collection, id, fields), "updating %s/%s", r.collection, id)
}

func (r repository) delete(ctx context.Context, id string) error {
	if err := checkIDs("id", id); err != nil {
		return err
	}
	return errors.Wrapf(r.store.Delete(ctx, r.collection, id), "deleting %s/%s", r.collection, id)
}

func (r repository) list(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	snap, err := r.store.List(ctx, q)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", r.collection)
	}
	return snap.Docs, nil
}

// decodeAll decodes docs, skipping and logging the malformed ones.
func decodeAll[T any](docs []docstore.Document, decode docstore.DecodeFunc[T], logger core.Logger) []T {
	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := decode(doc)
		if err != nil {
			logger.Warn(fmt.Sprintf("skipping malformed document %q: %v", doc.ID, err), err)
			continue
		}
		items = append(items, item)
	}
	return items
}
