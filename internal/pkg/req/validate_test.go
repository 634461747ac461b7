package req

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sdtchat/internal/pkg/errs"
)

type sample struct {
	Name  string `validate:"required,max=8"`
	Color string `validate:"omitempty,hexcolor"`
	Role  string `validate:"omitempty,oneof=user moderator"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		input sample
		ok    bool
	}{
		{name: "valid", input: sample{Name: "ann", Color: "#a1b2c3", Role: "user"}, ok: true},
		{name: "optional fields empty", input: sample{Name: "ann"}, ok: true},
		{name: "missing name", input: sample{}, ok: false},
		{name: "name too long", input: sample{Name: "abcdefghi"}, ok: false},
		{name: "bad color", input: sample{Name: "ann", Color: "red"}, ok: false},
		{name: "bad role", input: sample{Name: "ann", Role: "owner"}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			if tt.ok {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, errs.ErrInvalidParams, err.Code)
		})
	}
}
