package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/user"
)

func TestRollbarLogger(t *testing.T) {
	buf := new(bytes.Buffer)
	l := NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "TEST", Debug: true})

	usr := user.User{ID: "u1", Name: "Ana", Email: "ana@nort.com"}
	extras := map[string]interface{}{"lesson": "l1"}
	args := l.prepare("marking attendance", []interface{}{errors.New("boom"), usr, extras, &usr})
	assert.Len(t, args, 3, "the users are consumed")
	assert.Equal(t, "marking attendance", args[0])
	assert.Equal(t, extras, args[2])

	l.Error("marking attendance: boom", errors.New("boom"), usr)
	assert.Contains(t, buf.String(), "[ERROR] marking attendance: boom")
	assert.Contains(t, buf.String(), "boom\n")
	assert.NotContains(t, buf.String(), "ana@nort.com")
}
