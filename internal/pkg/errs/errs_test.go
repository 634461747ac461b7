package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	t.Run("known code defaults status to 200", func(t *testing.T) {
		err := NewError(ErrMuted)
		assert.Equal(t, ErrMuted, err.Code)
		assert.Equal(t, http.StatusOK, err.Status)
		assert.Equal(t, "You are muted in this channel.", err.Message)
	})

	t.Run("explicit status is kept", func(t *testing.T) {
		err := NewError(ErrBanned)
		assert.Equal(t, http.StatusForbidden, err.Status)
	})

	t.Run("template details are formatted", func(t *testing.T) {
		err := NewError(ErrUnknownMessageType, "dance")
		assert.Equal(t, "Unsupported message type: dance.", err.Message)
	})

	t.Run("unknown code falls back to ErrUnknown", func(t *testing.T) {
		err := NewError(424242)
		assert.Equal(t, ErrUnknown, err.Code)
		assert.Equal(t, http.StatusInternalServerError, err.Status)
	})
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("join: %w", NewError(ErrBanned))
	assert.Equal(t, ErrBanned, CodeOf(wrapped))
	assert.Equal(t, ErrUnknown, CodeOf(errors.New("plain")))
}
