package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validatedInput struct {
	Name  string `json:"name" validate:"notblank"`
	Email string `json:"email" validate:"required,email"`
	Skip  string `json:"-" validate:"omitempty,email"`
}

func TestInitValidators(t *testing.T) {
	validate := validator.New()
	translator := NewTranslator()
	InitValidators(validate, translator)

	tests := []struct {
		name    string
		input   validatedInput
		wantErr map[string]string
	}{
		{name: "valid", input: validatedInput{Name: "Jane", Email: "jane@test.cd"}},
		{
			name:    "blank name",
			input:   validatedInput{Name: "   ", Email: "jane@test.cd"},
			wantErr: map[string]string{"name": "this field cannot be blank"},
		},
		{
			name:    "missing email",
			input:   validatedInput{Name: "Jane"},
			wantErr: map[string]string{"email": "this field is required"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TranslateValidationErrors(validate.Struct(tt.input), translator)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			vErr, ok := err.(*ValidationError)
			require.True(t, ok)
			got := make(map[string]string, len(vErr.Fields))
			for _, f := range vErr.Fields {
				got[f.Field] = f.Error
			}
			assert.Equal(t, tt.wantErr, got)
		})
	}
}
