package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityFromRecord(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{name: "flat discord id", raw: `{"discordId":"1001","username":"ann"}`, want: "1001"},
		{name: "nested discord user", raw: `{"discordUser":{"id":"2002"}}`, want: "2002"},
		{name: "flat id wins", raw: `{"discordId":"1001","discordUser":{"id":"2002"}}`, want: "1001"},
		{name: "no id", raw: `{"username":"ann"}`, wantErr: ErrMalformedSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := identityFromRecord([]byte(tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentityFromRecordRejectsGarbage(t *testing.T) {
	_, err := identityFromRecord([]byte("not json"))
	assert.Error(t, err)
}
