/*
Package user contains the presentation identity of a chat participant.

A Profile is resolved server-side from the user's Discord id when a session joins a
channel; clients never supply these fields themselves.
*/
package user

// DefaultGuildColor is used when a guild tag has no color of its own.
const DefaultGuildColor = "#667eea"

// Profile is the display identity of a user.
type Profile struct {
	// ID is the Discord user id.
	ID string `json:"id"`

	// Nickname is the user's custom display name.
	Nickname string `json:"nickname"`

	// Avatar is the avatar URL, if any.
	Avatar string `json:"avatar,omitempty"`

	// Guild is the short tag of the user's guild (affiliation), if any.
	Guild string `json:"guild,omitempty"`

	// GuildColor is the display color of the guild tag.
	GuildColor string `json:"guildColor,omitempty"`
}

// Anonymous returns the profile used when nothing is stored for id:
// the id doubles as the nickname.
func Anonymous(id string) Profile {
	return Profile{ID: id, Nickname: id}
}

// DisplayName returns the nickname, falling back to the id.
func (p Profile) DisplayName() string {
	if p.Nickname != "" {
		return p.Nickname
	}
	return p.ID
}
