package memdb

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classroom/core/docstore"
	"github.com/trezcool/classroom/storage/docstore/storetest"
)

func TestDB(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store { return New() })
}

func TestDB_InjectError(t *testing.T) {
	ctx := context.Background()
	db := New()
	defer db.Close()

	var errs []error
	unsub, err := db.Subscribe(ctx, docstore.Query{Collection: "classes"}, func(docstore.Snapshot) {}, func(err error) { errs = append(errs, err) })
	require.NoError(t, err)
	assert.Equal(t, 1, db.Subscriptions())

	db.InjectError("lessons", errors.New("other collection"))
	db.InjectError("classes", errors.New("unavailable"))
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "unavailable")

	unsub()
	assert.Equal(t, 0, db.Subscriptions())
}

func TestDB_returnsCopies(t *testing.T) {
	ctx := context.Background()
	db := New()
	defer db.Close()

	id, err := db.Create(ctx, "lessons", docstore.Fields{"materials": []map[string]interface{}{{"name": "Slides"}}})
	require.NoError(t, err)

	doc, err := db.Get(ctx, "lessons", id)
	require.NoError(t, err)
	doc.Fields["materials"].([]interface{})[0].(map[string]interface{})["name"] = "changed"

	doc, err = db.Get(ctx, "lessons", id)
	require.NoError(t, err)
	assert.Equal(t, "Slides", doc.Fields["materials"].([]interface{})[0].(map[string]interface{})["name"])
}
