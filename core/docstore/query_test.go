package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	now := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
	type material struct {
		ID   string `json:"id"`
		Size int64  `json:"size"`
	}

	fields, err := Normalize(Fields{
		"name":      "Anatomy",
		"duration":  60,
		"createdAt": ServerTimestamp,
		"date":      TimestampOf(now.Add(time.Hour)),
		"materials": []material{{ID: "m1", Size: 0}},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "Anatomy", fields["name"])
	assert.Equal(t, float64(60), fields["duration"])
	assert.Equal(t, map[string]interface{}{"seconds": float64(now.Unix()), "nanos": float64(0)}, fields["createdAt"])
	createdAt, ok := ToTime(fields["createdAt"])
	require.True(t, ok)
	assert.True(t, now.Equal(createdAt))
	assert.Equal(t, []interface{}{map[string]interface{}{"id": "m1", "size": float64(0)}}, fields["materials"])
}

func TestMatch(t *testing.T) {
	fields, err := Normalize(Fields{"studentId": "s1", "lessonId": "l1", "rating": 4}, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name  string
		where []Where
		want  bool
	}{
		{name: "no predicates", want: true},
		{name: "one match", where: []Where{{Field: "studentId", Value: "s1"}}, want: true},
		{name: "all match", where: []Where{{Field: "studentId", Value: "s1"}, {Field: "lessonId", Value: "l1"}}, want: true},
		{name: "number match", where: []Where{{Field: "rating", Value: 4}}, want: true},
		{name: "one mismatch", where: []Where{{Field: "studentId", Value: "s1"}, {Field: "lessonId", Value: "l2"}}},
		{name: "missing field", where: []Where{{Field: "classId", Value: "c1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(fields, tt.where))
		})
	}
}

func TestSortDocuments(t *testing.T) {
	t0 := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	doc := func(id string, at time.Time, name string) Document {
		fields := Fields{"name": name}
		if !at.IsZero() {
			fields["createdAt"] = map[string]interface{}{"seconds": float64(at.Unix()), "nanos": float64(0)}
		}
		return Document{ID: id, Fields: fields}
	}
	ids := func(docs []Document) []string {
		out := make([]string, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.ID)
		}
		return out
	}

	newDocs := func() []Document {
		return []Document{
			doc("a", t0.Add(time.Hour), "Zoology"),
			doc("b", t0.Add(3*time.Hour), "Anatomy"),
			doc("c", time.Time{}, "Physics"),
			doc("d", t0.Add(2*time.Hour), "Anatomy"),
		}
	}

	t.Run("descending time, missing last", func(t *testing.T) {
		docs := newDocs()
		SortDocuments(docs, []Ordering{{Field: "createdAt"}})
		assert.Equal(t, []string{"b", "d", "a", "c"}, ids(docs))
	})

	t.Run("ascending time, missing first", func(t *testing.T) {
		docs := newDocs()
		SortDocuments(docs, []Ordering{{Field: "createdAt", Ascending: true}})
		assert.Equal(t, []string{"c", "a", "d", "b"}, ids(docs))
	})

	t.Run("multiple orderings", func(t *testing.T) {
		docs := newDocs()
		SortDocuments(docs, []Ordering{{Field: "name", Ascending: true}, {Field: "createdAt"}})
		assert.Equal(t, []string{"b", "d", "c", "a"}, ids(docs))
	})

	t.Run("ties broken by id", func(t *testing.T) {
		docs := []Document{{ID: "b", Fields: Fields{}}, {ID: "a", Fields: Fields{}}}
		SortDocuments(docs, []Ordering{{Field: "createdAt"}})
		assert.Equal(t, []string{"a", "b"}, ids(docs))
	})
}

func TestOrdering_String(t *testing.T) {
	assert.Equal(t, "createdAt DESC", Ordering{Field: "createdAt"}.String())
	assert.Equal(t, "name ASC", Ordering{Field: "name", Ascending: true}.String())
}

func TestDocument_Decode(t *testing.T) {
	type class struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CreatedAt Timestamp `json:"createdAt"`
	}
	now := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
	fields, err := Normalize(Fields{"name": "Anatomy", "createdAt": ServerTimestamp}, now)
	require.NoError(t, err)

	var c class
	require.NoError(t, Document{ID: "c1", Fields: fields}.Decode(&c))
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "Anatomy", c.Name)
	assert.True(t, now.Equal(c.CreatedAt.Time()))

	var bad struct {
		Name int `json:"name"`
	}
	assert.Error(t, Document{ID: "c1", Fields: fields}.Decode(&bad))
}
