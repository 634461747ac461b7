/*
Package chat contains the real-time core of the server: per-channel rooms, the
sessions attached to them, moderation, and the WebSocket transport.

This file defines the wire protocol. Every frame is a JSON object with a "type"
discriminator. Outbound frames share the Event envelope; inbound frames are
decoded into the flat Inbound struct and then validated per type.
*/
package chat

import (
	"strconv"
	"time"

	"sdtchat/internal/app/user"
)

// EventType is the discriminator of an outbound frame.
type EventType string

const (
	EventJoined         EventType = "joined"
	EventUserJoined     EventType = "user_joined"
	EventUserLeft       EventType = "user_left"
	EventMessage        EventType = "message"
	EventMembersList    EventType = "members_list"
	EventMemberCount    EventType = "member_count"
	EventColorChanged   EventType = "color_changed"
	EventWarning        EventType = "warning"
	EventKicked         EventType = "kicked"
	EventBanned         EventType = "banned"
	EventRoleChanged    EventType = "role_changed"
	EventUnmuted        EventType = "unmuted"
	EventError          EventType = "error"
	EventMessageHistory EventType = "message_history"
	EventPong           EventType = "pong"
)

// InboundType is the discriminator of a client frame.
type InboundType string

const (
	InboundJoin        InboundType = "join"
	InboundMessage     InboundType = "message"
	InboundLeave       InboundType = "leave"
	InboundAdminAction InboundType = "admin_action"
	InboundPing        InboundType = "ping"
)

// Role is a participant's standing within one channel.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleOwner     Role = "owner"
)

// DefaultNicknameColor is the nickname color of members who never had one assigned.
const DefaultNicknameColor = "#ffffff"

// Event is the envelope of every outbound frame.
type Event struct {
	Type      EventType `json:"type"`
	ChannelID string    `json:"channelId"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// NewEvent stamps an outbound event with the current time in unix milliseconds.
func NewEvent(eventType EventType, channelID string, payload any) Event {
	return Event{
		Type:      eventType,
		ChannelID: channelID,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Member is one roster entry as seen by clients.
type Member struct {
	SessionID     string `json:"sessionId"`
	Identity      string `json:"identity"`
	Nickname      string `json:"nickname"`
	Avatar        string `json:"avatar,omitempty"`
	Color         string `json:"color"`
	Guild         string `json:"guild,omitempty"`
	GuildColor    string `json:"guildColor,omitempty"`
	Role          Role   `json:"role"`
	Muted         bool   `json:"muted"`
	Warnings      int    `json:"warnings"`
	ElevatedAdmin bool   `json:"elevatedAdmin"`
	JoinedAt      int64  `json:"joinedAt"`
}

// Author is the sender presentation attached to a chat message.
type Author struct {
	Identity   string `json:"identity"`
	Nickname   string `json:"nickname"`
	Avatar     string `json:"avatar,omitempty"`
	Color      string `json:"color"`
	Guild      string `json:"guild,omitempty"`
	GuildColor string `json:"guildColor,omitempty"`
	Role       Role   `json:"role,omitempty"`
}

// MemberPayload carries a single roster entry (joined, user_joined, user_left).
type MemberPayload struct {
	User Member `json:"user"`
}

// MessagePayload is a chat message, live or from history.
type MessagePayload struct {
	ID      string    `json:"id"`
	Author  Author    `json:"author"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sentAt"`
}

// MembersPayload carries the full roster.
type MembersPayload struct {
	Members []Member `json:"members"`
}

// CountPayload carries the joined-member count.
type CountPayload struct {
	Count int `json:"count"`
}

// HistoryPayload carries recent messages, oldest first.
type HistoryPayload struct {
	Messages []MessagePayload `json:"messages"`
}

// ModerationPayload is the notice broadcast after an admin action.
type ModerationPayload struct {
	TargetIdentity string `json:"targetIdentity"`
	By             string `json:"by,omitempty"`
	Message        string `json:"message"`
	Reason         string `json:"reason,omitempty"`
	Color          string `json:"color,omitempty"`
	Role           Role   `json:"role,omitempty"`
	Warnings       int    `json:"warnings"`
	Muted          bool   `json:"muted"`
	AutoMuted      bool   `json:"autoMuted,omitempty"`
}

// ErrorPayload is the body of an error event.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Inbound is the union of every client frame. Only the fields relevant to Type
// are read.
type Inbound struct {
	Type           InboundType `json:"type"`
	ChannelID      string      `json:"channelId"`
	Identity       string      `json:"identity"`
	Content        string      `json:"content"`
	Action         Action      `json:"action"`
	TargetIdentity string      `json:"targetIdentity"`
	Color          string      `json:"color"`
	Reason         string      `json:"reason"`
	Role           Role        `json:"role"`
}

// HistoryMessage maps a history row to its wire form, filling presentation
// defaults for users without a profile or membership.
func HistoryMessage(m StoredMessage) MessagePayload {
	nickname := m.Nickname
	if nickname == "" {
		nickname = m.UserID
	}
	color := m.Color
	if color == "" {
		color = DefaultNicknameColor
	}
	guildColor := m.GuildColor
	if m.Guild != "" && guildColor == "" {
		guildColor = user.DefaultGuildColor
	}

	return MessagePayload{
		ID: strconv.FormatInt(m.ID, 10),
		Author: Author{
			Identity:   m.UserID,
			Nickname:   nickname,
			Avatar:     m.Avatar,
			Color:      color,
			Guild:      m.Guild,
			GuildColor: guildColor,
		},
		Content: m.Content,
		SentAt:  m.CreatedAt,
	}
}
