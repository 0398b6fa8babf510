package docstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToTime(t *testing.T) {
	ref := time.Date(2024, 3, 10, 14, 30, 0, 500, time.UTC)

	tests := []struct {
		name   string
		v      interface{}
		want   time.Time
		wantOk bool
	}{
		{name: "Timestamp", v: TimestampOf(ref), want: ref, wantOk: true},
		{name: "*Timestamp", v: func() *Timestamp { ts := TimestampOf(ref); return &ts }(), want: ref, wantOk: true},
		{name: "nil *Timestamp", v: (*Timestamp)(nil)},
		{name: "time.Time", v: ref.In(time.FixedZone("WAT", 3600)), want: ref, wantOk: true},
		{
			name:   "seconds map",
			v:      map[string]interface{}{"seconds": float64(ref.Unix()), "nanos": float64(500)},
			want:   ref,
			wantOk: true,
		},
		{name: "seconds only map", v: map[string]interface{}{"seconds": float64(ref.Unix())}, want: ref.Truncate(time.Second), wantOk: true},
		{name: "map without seconds", v: map[string]interface{}{"lol": 1}},
		{name: "RFC3339", v: "2024-03-10T14:30:00Z", want: ref.Truncate(time.Second), wantOk: true},
		{name: "date only", v: "2024-03-10", want: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), wantOk: true},
		{name: "unix millis", v: float64(ref.Truncate(time.Millisecond).UnixNano() / int64(time.Millisecond)), want: ref.Truncate(time.Millisecond), wantOk: true},
		{name: "garbage string", v: "yesterday"},
		{name: "nil", v: nil},
		{name: "bool", v: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToTime(tt.v)
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	ref := time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		data    string
		want    time.Time
		wantErr bool
	}{
		{name: "object", data: `{"seconds": 1710081000, "nanos": 0}`, want: ref},
		{name: "string", data: `"2024-03-10T14:30:00Z"`, want: ref},
		{name: "millis", data: `1710081000000`, want: ref},
		{name: "null", data: `null`},
		{name: "invalid", data: `"lol"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tt.data), &ts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ts.Time()), "got %v, want %v", ts.Time(), tt.want)
		})
	}
}
