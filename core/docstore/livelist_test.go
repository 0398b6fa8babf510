package docstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core/docstore"
	"github.com/trezcool/classroom/storage/docstore/memdb"
	"github.com/trezcool/classroom/tests"
)

type note struct {
	ID        string             `json:"id"`
	Text      string             `json:"text"`
	CreatedAt docstore.Timestamp `json:"createdAt"`
}

func decodeNote(doc docstore.Document) (note, error) {
	var n note
	err := doc.Decode(&n)
	return n, err
}

func noteTexts(notes []note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Text)
	}
	return out
}

func TestLiveList(t *testing.T) {
	ctx := context.Background()
	query := docstore.Query{Collection: "notes", OrderBy: []docstore.Ordering{{Field: "createdAt"}}}
	t0 := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("follows the store", func(t *testing.T) {
		store := memdb.New()
		defer store.Close()
		logger := testutil.NewLogger(t)

		_, err := store.Create(ctx, "notes", docstore.Fields{"text": "first", "createdAt": docstore.TimestampOf(t0)})
		require.NoError(t, err)

		list := docstore.NewLiveList(store, query, decodeNote, logger)
		select {
		case <-list.Ready():
			t.Fatal("ready before subscribing")
		default:
		}
		require.NoError(t, list.Subscribe(ctx))
		require.NoError(t, list.Subscribe(ctx)) // no-op
		assert.Equal(t, 1, store.Subscriptions())

		<-list.Ready()
		assert.True(t, list.Loaded())
		assert.Equal(t, []string{"first"}, noteTexts(list.Items()))

		id, err := store.Create(ctx, "notes", docstore.Fields{"text": "second", "createdAt": docstore.TimestampOf(t0.Add(time.Hour))})
		require.NoError(t, err)
		assert.Equal(t, []string{"second", "first"}, noteTexts(list.Items()))

		found, ok := list.Find(func(n note) bool { return n.ID == id })
		assert.True(t, ok)
		assert.Equal(t, "second", found.Text)

		list.Close()
		assert.Equal(t, 0, store.Subscriptions())
		_, err = store.Create(ctx, "notes", docstore.Fields{"text": "third"})
		require.NoError(t, err)
		assert.Len(t, list.Items(), 2, "closed lists keep their last state")
		assert.Equal(t, docstore.ErrClosed, list.Subscribe(ctx))
	})

	t.Run("errors keep the previous state", func(t *testing.T) {
		store := memdb.New()
		defer store.Close()
		logger := testutil.NewLogger(t)

		_, err := store.Create(ctx, "notes", docstore.Fields{"text": "first"})
		require.NoError(t, err)
		list := docstore.NewLiveList(store, query, decodeNote, logger)
		require.NoError(t, list.Subscribe(ctx))
		defer list.Close()

		store.InjectError("notes", errors.New("unavailable"))
		assert.Equal(t, []string{"first"}, noteTexts(list.Items()))
		assert.True(t, logger.Logged("error", "notes subscription: unavailable"))
	})

	t.Run("malformed documents are skipped", func(t *testing.T) {
		store := memdb.New()
		defer store.Close()
		logger := testutil.NewLogger(t)

		_, err := store.Create(ctx, "notes", docstore.Fields{"text": 42})
		require.NoError(t, err)
		_, err = store.Create(ctx, "notes", docstore.Fields{"text": "ok"})
		require.NoError(t, err)

		list := docstore.NewLiveList(store, query, decodeNote, logger)
		require.NoError(t, list.Subscribe(ctx))
		defer list.Close()
		assert.Equal(t, []string{"ok"}, noteTexts(list.Items()))
		assert.True(t, logger.Logged("warn", "skipping malformed notes document"))
	})

	t.Run("items are copies", func(t *testing.T) {
		store := memdb.New()
		defer store.Close()

		_, err := store.Create(ctx, "notes", docstore.Fields{"text": "first"})
		require.NoError(t, err)
		list := docstore.NewLiveList(store, query, decodeNote, testutil.NewLogger(t))
		require.NoError(t, list.Subscribe(ctx))
		defer list.Close()

		items := list.Items()
		items[0].Text = "changed"
		assert.Equal(t, []string{"first"}, noteTexts(list.Items()))
	})

	t.Run("subscribe errors are returned", func(t *testing.T) {
		store := memdb.New()
		require.NoError(t, store.Close())
		logger := testutil.NewLogger(t)

		list := docstore.NewLiveList(store, query, decodeNote, logger)
		assert.Error(t, list.Subscribe(ctx))
		assert.False(t, list.Loaded())
		assert.True(t, logger.Logged("error", "subscribing to notes"))
	})
}

func TestLiveList_concurrentSubscribe(t *testing.T) {
	ctx := context.Background()
	store := memdb.New()
	defer store.Close()

	list := docstore.NewLiveList(store, docstore.Query{Collection: "notes"}, decodeNote, testutil.NewLogger(t))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, list.Subscribe(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, store.Subscriptions())

	list.Close()
	assert.Equal(t, 0, store.Subscriptions())
}
