package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ann", (&Profile{ID: "1001", Nickname: "Ann"}).DisplayName())
	assert.Equal(t, "1001", Anonymous("1001").DisplayName())
}
