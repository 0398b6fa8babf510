package docstore

import (
	"encoding/json"
	"reflect"
	"sort"
	"time"

	"github.com/pkg/errors"
)

type (
	// Where is an equality predicate on a top-level field.
	Where struct {
		Field string
		Value interface{}
	}

	Ordering struct {
		Field     string
		Ascending bool
	}

	Query struct {
		Collection string
		Where      []Where
		OrderBy    []Ordering
	}
)

func (ord Ordering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Normalize resolves ServerTimestamp values with now and converts fields to
// their JSON representation (numbers become float64, structs become maps).
func Normalize(fields Fields, now time.Time) (Fields, error) {
	resolved := make(Fields, len(fields))
	for k, v := range fields {
		if v == ServerTimestamp {
			v = TimestampOf(now)
		}
		resolved[k] = v
	}

	data, err := json.Marshal(resolved)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling fields")
	}
	var out Fields
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "unmarshalling fields")
	}
	if out == nil {
		out = make(Fields)
	}
	return out, nil
}

// Merge shallow-merges patch into a copy of base.
func Merge(base, patch Fields) Fields {
	merged := make(Fields, len(base)+len(patch))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// CloneFields returns a deep copy of normalized fields.
func CloneFields(fields Fields) Fields {
	if fields == nil {
		return nil
	}
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Fields:
		return CloneFields(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}

// Match reports whether fields satisfy every predicate.
func Match(fields Fields, where []Where) bool {
	for _, w := range where {
		got, ok := fields[w.Field]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(got, normalizeValue(w.Value)) {
			return false
		}
	}
	return true
}

func normalizeValue(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// SortDocuments sorts docs in place by orderBy. Documents missing a field sort first
// in ascending order. Ties are broken by ID.
func SortDocuments(docs []Document, orderBy []Ordering) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, ord := range orderBy {
			c := compareValues(docs[i].Fields[ord.Field], docs[j].Fields[ord.Field])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return docs[i].ID < docs[j].ID
	})
}

func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if ta, ok := ToTime(a); ok {
		if tb, ok := ToTime(b); ok {
			switch {
			case ta.Before(tb):
				return -1
			case ta.After(tb):
				return 1
			}
			return 0
		}
	}

	switch va := a.(type) {
	case string:
		if vb, ok := b.(string); ok {
			switch {
			case va < vb:
				return -1
			case va > vb:
				return 1
			}
			return 0
		}
	case bool:
		if vb, ok := b.(bool); ok {
			switch {
			case va == vb:
				return 0
			case !va:
				return -1
			}
			return 1
		}
	}
	return 0
}
