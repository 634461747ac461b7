package chat

import (
	"time"

	"sdtchat/internal/app/user"
	"sdtchat/internal/pkg/randx"
)

// WebSocket close codes sent when the server ends a session.
const (
	CloseNormal       = 1000
	CloseGoingAway    = 1001
	CloseTryAgain     = 1013
	CloseKicked       = 4001
	CloseBanned       = 4003
	CloseSendOverflow = 4008
)

// Conn is the outbound half of a transport. Send must not block: it either
// queues the frame or reports failure. Close is idempotent.
type Conn interface {
	Send(data []byte) error
	Close(code int, reason string)
}

// SessionState is the lifecycle position of a Session.
type SessionState int

const (
	StateConnected SessionState = iota
	StateJoined
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	default:
		return "closed"
	}
}

// Session is one transport connection attached to a Room. Everything except ID
// and the transport is owned by the room's goroutine.
type Session struct {
	// ID is unique per connection; two tabs of one user are two sessions.
	ID string

	room *Room
	conn Conn

	// verifiedIdentity is the identity proven by a login token, if any.
	verifiedIdentity string

	state      SessionState
	identity   string
	profile    user.Profile
	membership Membership
	owner      bool
	elevated   bool
	joinedAt   time.Time
}

func newSession(room *Room, conn Conn, verifiedIdentity string) *Session {
	return &Session{
		ID:               randx.SessionID(),
		room:             room,
		conn:             conn,
		verifiedIdentity: verifiedIdentity,
		state:            StateConnected,
	}
}

// Deliver hands an inbound frame to the session's room. Frames after the room
// closed are dropped.
func (s *Session) Deliver(frame []byte) bool {
	return s.room.submit(roomEvent{kind: eventFrame, session: s, frame: frame})
}

// Disconnect tells the room the transport is gone.
func (s *Session) Disconnect() {
	s.room.submit(roomEvent{kind: eventDetach, session: s})
}

// ChannelID returns the channel of the room the session is attached to.
func (s *Session) ChannelID() string {
	return s.room.ChannelID
}

// role is the effective role: ownership overrides the stored membership role.
func (s *Session) role() Role {
	if s.owner {
		return RoleOwner
	}
	if s.membership.Role == "" {
		return RoleUser
	}
	return s.membership.Role
}

func (s *Session) member() Member {
	return Member{
		SessionID:     s.ID,
		Identity:      s.identity,
		Nickname:      s.profile.DisplayName(),
		Avatar:        s.profile.Avatar,
		Color:         s.membership.Color,
		Guild:         s.profile.Guild,
		GuildColor:    s.profile.GuildColor,
		Role:          s.role(),
		Muted:         s.membership.Muted,
		Warnings:      s.membership.Warnings,
		ElevatedAdmin: s.elevated,
		JoinedAt:      s.joinedAt.UnixMilli(),
	}
}

func (s *Session) author() Author {
	return Author{
		Identity:   s.identity,
		Nickname:   s.profile.DisplayName(),
		Avatar:     s.profile.Avatar,
		Color:      s.membership.Color,
		Guild:      s.profile.Guild,
		GuildColor: s.profile.GuildColor,
		Role:       s.role(),
	}
}
