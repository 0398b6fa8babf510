// Package storetest holds the contract tests every docstore.Store driver must pass.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core/docstore"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) docstore.Store

type recorder struct {
	mu    sync.Mutex
	snaps []docstore.Snapshot
}

func (r *recorder) onChange(s docstore.Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) last() docstore.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return docstore.Snapshot{}
	}
	return r.snaps[len(r.snaps)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func ids(docs []docstore.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

// Run runs the contract suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	open := func(t *testing.T) docstore.Store {
		store := newStore(t)
		t.Cleanup(func() { _ = store.Close() })
		return store
	}

	t.Run("create, get & list ordered", func(t *testing.T) {
		store := open(t)
		t0 := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

		first, err := store.Create(ctx, "lessons", docstore.Fields{"title": "Intro", "date": docstore.TimestampOf(t0)})
		require.NoError(t, err)
		second, err := store.Create(ctx, "lessons", docstore.Fields{"title": "Bones", "date": docstore.TimestampOf(t0.Add(24 * time.Hour))})
		require.NoError(t, err)
		require.NotEqual(t, first, second)

		doc, err := store.Get(ctx, "lessons", first)
		require.NoError(t, err)
		assert.Equal(t, "Intro", doc.Fields["title"])

		snap, err := store.List(ctx, docstore.Query{Collection: "lessons", OrderBy: []docstore.Ordering{{Field: "date"}}})
		require.NoError(t, err)
		assert.Equal(t, []string{second, first}, ids(snap.Docs))

		snap, err = store.List(ctx, docstore.Query{Collection: "lessons", OrderBy: []docstore.Ordering{{Field: "date", Ascending: true}}})
		require.NoError(t, err)
		assert.Equal(t, []string{first, second}, ids(snap.Docs))

		_, err = store.Get(ctx, "lessons", "missing")
		assert.Equal(t, docstore.ErrNotFound, err)

		snap, err = store.List(ctx, docstore.Query{Collection: "empty"})
		require.NoError(t, err)
		assert.Empty(t, snap.Docs)
	})

	t.Run("server timestamps", func(t *testing.T) {
		store := open(t)
		before := time.Now().Add(-time.Minute)

		id, err := store.Create(ctx, "classes", docstore.Fields{"name": "Anatomy", "createdAt": docstore.ServerTimestamp})
		require.NoError(t, err)
		doc, err := store.Get(ctx, "classes", id)
		require.NoError(t, err)
		createdAt, ok := docstore.ToTime(doc.Fields["createdAt"])
		require.True(t, ok)
		assert.True(t, createdAt.After(before))
	})

	t.Run("equality filters", func(t *testing.T) {
		store := open(t)
		a, err := store.Create(ctx, "attendances", docstore.Fields{"studentId": "s1", "lessonId": "l1"})
		require.NoError(t, err)
		_, err = store.Create(ctx, "attendances", docstore.Fields{"studentId": "s2", "lessonId": "l1"})
		require.NoError(t, err)
		_, err = store.Create(ctx, "attendances", docstore.Fields{"studentId": "s1", "lessonId": "l2"})
		require.NoError(t, err)

		snap, err := store.List(ctx, docstore.Query{
			Collection: "attendances",
			Where:      []docstore.Where{{Field: "studentId", Value: "s1"}, {Field: "lessonId", Value: "l1"}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{a}, ids(snap.Docs))

		snap, err = store.List(ctx, docstore.Query{Collection: "attendances", Where: []docstore.Where{{Field: "lessonId", Value: "l1"}}})
		require.NoError(t, err)
		assert.Len(t, snap.Docs, 2)
	})

	t.Run("patch merges & set replaces", func(t *testing.T) {
		store := open(t)
		id, err := store.Create(ctx, "classes", docstore.Fields{"name": "Anatomy", "description": "Bones"})
		require.NoError(t, err)

		require.NoError(t, store.Patch(ctx, "classes", id, docstore.Fields{"name": "Anatomy II"}))
		doc, err := store.Get(ctx, "classes", id)
		require.NoError(t, err)
		assert.Equal(t, docstore.Fields{"name": "Anatomy II", "description": "Bones"}, doc.Fields)

		assert.Equal(t, docstore.ErrNotFound, store.Patch(ctx, "classes", "missing", docstore.Fields{"name": "x"}))

		require.NoError(t, store.Set(ctx, "profiles", "uid-1", docstore.Fields{"name": "Jane"}))
		require.NoError(t, store.Set(ctx, "profiles", "uid-1", docstore.Fields{"email": "jane@test.cd"}))
		doc, err = store.Get(ctx, "profiles", "uid-1")
		require.NoError(t, err)
		assert.Equal(t, docstore.Fields{"email": "jane@test.cd"}, doc.Fields)
	})

	t.Run("unique keys", func(t *testing.T) {
		store := open(t)
		id, err := store.CreateUnique(ctx, "enrollments", "s1|c1", docstore.Fields{"studentId": "s1", "classId": "c1"})
		require.NoError(t, err)

		dupID, err := store.CreateUnique(ctx, "enrollments", "s1|c1", docstore.Fields{"studentId": "s1", "classId": "c1"})
		assert.Equal(t, docstore.ErrDuplicate, err)
		assert.Equal(t, id, dupID)

		// same key in another collection
		_, err = store.CreateUnique(ctx, "attendances", "s1|c1", docstore.Fields{})
		require.NoError(t, err)

		// deleting frees the key
		require.NoError(t, store.Delete(ctx, "enrollments", id))
		newID, err := store.CreateUnique(ctx, "enrollments", "s1|c1", docstore.Fields{"studentId": "s1", "classId": "c1"})
		require.NoError(t, err)
		assert.NotEqual(t, id, newID)

		snap, err := store.List(ctx, docstore.Query{Collection: "enrollments"})
		require.NoError(t, err)
		assert.Len(t, snap.Docs, 1)
	})

	t.Run("concurrent unique creates keep one document", func(t *testing.T) {
		store := open(t)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = store.CreateUnique(ctx, "attendances", "s1|l1", docstore.Fields{"studentId": "s1", "lessonId": "l1"})
			}()
		}
		wg.Wait()

		snap, err := store.List(ctx, docstore.Query{Collection: "attendances"})
		require.NoError(t, err)
		assert.Len(t, snap.Docs, 1)
	})

	t.Run("upsert", func(t *testing.T) {
		store := open(t)
		id, created, err := store.Upsert(ctx, "materialRatings", "s1|m1", docstore.Fields{"rating": 3, "lessonId": "l1"})
		require.NoError(t, err)
		assert.True(t, created)

		sameID, created, err := store.Upsert(ctx, "materialRatings", "s1|m1", docstore.Fields{"rating": 5})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, id, sameID)

		doc, err := store.Get(ctx, "materialRatings", id)
		require.NoError(t, err)
		assert.Equal(t, float64(5), doc.Fields["rating"])
		assert.Equal(t, "l1", doc.Fields["lessonId"])
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store := open(t)
		id, err := store.Create(ctx, "classes", docstore.Fields{"name": "Anatomy"})
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, "classes", id))
		require.NoError(t, store.Delete(ctx, "classes", id))
		_, err = store.Get(ctx, "classes", id)
		assert.Equal(t, docstore.ErrNotFound, err)
	})

	t.Run("subscriptions", func(t *testing.T) {
		store := open(t)
		_, err := store.Create(ctx, "classes", docstore.Fields{"name": "Anatomy"})
		require.NoError(t, err)

		rec := new(recorder)
		unsub, err := store.Subscribe(ctx, docstore.Query{Collection: "classes"}, rec.onChange, nil)
		require.NoError(t, err)
		require.Equal(t, 1, rec.count(), "initial snapshot")
		assert.Len(t, rec.last().Docs, 1)

		id, err := store.Create(ctx, "classes", docstore.Fields{"name": "Physics"})
		require.NoError(t, err)
		assert.Len(t, rec.last().Docs, 2, "delivered before the write returns")
		assert.Greater(t, rec.last().Revision, rec.snaps[0].Revision)

		// other collections are not delivered
		count := rec.count()
		_, err = store.Create(ctx, "lessons", docstore.Fields{"title": "Intro"})
		require.NoError(t, err)
		assert.Equal(t, count, rec.count())

		require.NoError(t, store.Delete(ctx, "classes", id))
		assert.Len(t, rec.last().Docs, 1)

		unsub()
		count = rec.count()
		_, err = store.Create(ctx, "classes", docstore.Fields{"name": "Chemistry"})
		require.NoError(t, err)
		assert.Equal(t, count, rec.count(), "no delivery after unsubscribe")
	})

	t.Run("filtered subscriptions", func(t *testing.T) {
		store := open(t)
		rec := new(recorder)
		unsub, err := store.Subscribe(ctx, docstore.Query{
			Collection: "enrollments",
			Where:      []docstore.Where{{Field: "studentId", Value: "s1"}},
		}, rec.onChange, nil)
		require.NoError(t, err)
		defer unsub()

		_, err = store.Create(ctx, "enrollments", docstore.Fields{"studentId": "s2", "classId": "c1"})
		require.NoError(t, err)
		assert.Empty(t, rec.last().Docs)

		_, err = store.Create(ctx, "enrollments", docstore.Fields{"studentId": "s1", "classId": "c1"})
		require.NoError(t, err)
		assert.Len(t, rec.last().Docs, 1)
	})

	t.Run("closed store", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Close())
		_, err := store.Create(ctx, "classes", docstore.Fields{"name": "Anatomy"})
		assert.Error(t, err)
		_, err = store.Subscribe(ctx, docstore.Query{Collection: "classes"}, func(docstore.Snapshot) {}, nil)
		assert.Error(t, err)
	})
}
