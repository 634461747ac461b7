package chat

import (
	"context"
	"errors"
	"time"

	"sdtchat/internal/app/user"
)

// ErrChannelGone is wrapped into write errors when the channel no longer exists
// in the store.
var ErrChannelGone = errors.New("channel no longer exists")

// Gateway is the persistence contract consumed by a Room. Implementations must
// tolerate concurrent calls from independent rooms.
//
// Lookups return a nil record and a nil error when nothing is stored.
type Gateway interface {
	FindBan(ctx context.Context, channelID, userID string) (*Ban, error)
	FindMembership(ctx context.Context, channelID, userID string) (*Membership, error)
	UpsertMembership(ctx context.Context, channelID, userID string, m Membership) error
	FindChannelOwner(ctx context.Context, channelID string) (string, error)
	FindProfile(ctx context.Context, userID string) (*user.Profile, error)
	InsertMessage(ctx context.Context, channelID, userID, content string) error
	RecentMessages(ctx context.Context, channelID string, limit int) ([]StoredMessage, error)
	InsertBan(ctx context.Context, channelID, userID, bannedBy, reason string) error
	InsertWarning(ctx context.Context, channelID, userID, warnedBy, reason string) error
}

// Membership is the durable per-(channel, user) moderation state.
type Membership struct {
	Role     Role
	Color    string
	Warnings int
	Muted    bool
}

// DefaultMembership is the state of a user with no membership record.
func DefaultMembership() Membership {
	return Membership{Role: RoleUser, Color: DefaultNicknameColor}
}

// Ban is a persisted channel ban.
type Ban struct {
	ChannelID string
	UserID    string
	BannedBy  string
	Reason    string
	CreatedAt time.Time
}

// StoredMessage is a persisted chat message joined with its author's presentation.
type StoredMessage struct {
	ID         int64
	ChannelID  string
	UserID     string
	Nickname   string
	Avatar     string
	Color      string
	Guild      string
	GuildColor string
	Content    string
	Type       string
	CreatedAt  time.Time
}
