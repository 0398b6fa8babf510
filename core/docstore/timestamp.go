package docstore

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

type serverTimestamp struct{}

// ServerTimestamp is replaced by the store clock when written.
var ServerTimestamp = serverTimestamp{}

// Timestamp is the stored form of a point in time.
type Timestamp struct {
	Seconds int64 `json:"seconds"`
	Nanos   int32 `json:"nanos"`
}

func TimestampOf(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}

func (ts Timestamp) Time() time.Time {
	if ts.Seconds == 0 && ts.Nanos == 0 {
		return time.Time{}
	}
	return time.Unix(ts.Seconds, int64(ts.Nanos)).UTC()
}

// UnmarshalJSON accepts {"seconds","nanos"} objects, RFC 3339 or YYYY-MM-DD strings,
// unix milliseconds and null.
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*ts = Timestamp{}
		return nil
	}

	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	t, ok := ToTime(v)
	if !ok {
		return errors.Errorf("invalid timestamp: %s", b)
	}
	*ts = TimestampOf(t)
	return nil
}

// ToTime converts any stored representation of a point in time.
// Supported: Timestamp, *Timestamp, time.Time, {"seconds","nanos"} maps,
// RFC 3339 / YYYY-MM-DD strings and unix milliseconds.
func ToTime(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case Timestamp:
		return val.Time(), true
	case *Timestamp:
		if val == nil {
			return time.Time{}, false
		}
		return val.Time(), true
	case time.Time:
		return val.UTC(), true
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return val.UTC(), true
	case map[string]interface{}:
		secs, ok := toInt64(val["seconds"])
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := toInt64(val["nanos"])
		return Timestamp{Seconds: secs, Nanos: int32(nanos)}.Time(), true
	case Fields:
		return ToTime(map[string]interface{}(val))
	case string:
		if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return t.UTC(), true
		}
		if t, err := time.Parse("2006-01-02", val); err == nil {
			return t.UTC(), true
		}
		return time.Time{}, false
	}

	if ms, ok := toInt64(v); ok {
		return time.Unix(0, ms*int64(time.Millisecond)).UTC(), true
	}
	return time.Time{}, false
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	case float32:
		return int64(n), true
	case json.Number:
		i, err := strconv.ParseInt(n.String(), 10, 64)
		return i, err == nil
	}
	return 0, false
}
