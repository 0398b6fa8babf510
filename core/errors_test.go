package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	t.Run("wrapped error message", func(t *testing.T) {
		err := NewValidationError(errors.New("invalid credentials"))
		assert.EqualError(t, err, "invalid credentials")
		assert.True(t, IsValidationError(errors.Wrap(err, "signing in")))
	})

	t.Run("field error message", func(t *testing.T) {
		err := NewValidationError(nil, FieldError{Field: "name", Error: "this field is required"})
		assert.EqualError(t, err, "name: this field is required")
	})

	t.Run("other errors", func(t *testing.T) {
		assert.False(t, IsValidationError(errors.New("boom")))
	})
}

func TestIsShutdown(t *testing.T) {
	assert.True(t, IsShutdown(errors.Wrap(NewShutdownError("integrity issue"), "handling request")))
	assert.False(t, IsShutdown(errors.New("integrity issue")))
}
