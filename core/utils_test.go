package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanString(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		lower []bool
		want  string
	}{
		{name: "empty", s: "", want: ""},
		{name: "spaces only", s: "  \t\n ", want: ""},
		{name: "trim", s: "  Jane Doe ", want: "Jane Doe"},
		{name: "trim & lower", s: " Jane@Test.CD ", lower: []bool{true}, want: "jane@test.cd"},
		{name: "lower=false", s: " Jane ", lower: []bool{false}, want: "Jane"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanString(tt.s, tt.lower...))
		})
	}
}
