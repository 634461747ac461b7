/*
Package randx provides identifier generation and validation helpers.
*/
package randx

import (
	"regexp"

	"github.com/google/uuid"
)

// channelIDPattern accepts numeric ids as well as named channels such as "general".
var channelIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// SessionID returns a fresh per-connection key. Two tabs of the same user get
// two different keys.
func SessionID() string {
	return uuid.New().String()
}

// MessageID returns a UUID v4 for a live chat message.
func MessageID() string {
	return uuid.New().String()
}

// IsValidChannelID reports whether id is usable as a channel identifier.
func IsValidChannelID(id string) bool {
	return channelIDPattern.MatchString(id)
}
