/*
Package chat contains the real-time core of the server.

This file defines the Room, the single coordinator of one channel. All state of a
room (its sessions, the roster and every moderation flag) is owned by the
goroutine running Room.Run. Transports, the directory and HTTP handlers talk to
it only through events submitted on its queue, so per-channel operations are
applied strictly in arrival order.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sdtchat/internal/app/metrics"
	"sdtchat/internal/app/user"
	"sdtchat/internal/pkg/errs"
	"sdtchat/internal/pkg/logx"
	"sdtchat/internal/pkg/randx"
	"sdtchat/internal/pkg/req"
)

const (
	// eventQueueSize bounds the room queue; submitters block when it is full.
	eventQueueSize = 256

	// MaxContentBytes is the maximum size of a chat message body.
	MaxContentBytes = 5000

	// WarningThreshold is the warning count at which a member is muted automatically.
	WarningThreshold = 3

	// DefaultHistoryLimit is the number of messages replayed on join when unset.
	DefaultHistoryLimit = 50
)

// Options tunes a Room. Zero values fall back to defaults.
type Options struct {
	// HistoryLimit is the number of recent messages sent on join. Negative disables history.
	HistoryLimit int

	// ElevatedAdminID is the identity allowed every admin action in every channel.
	ElevatedAdminID string

	// AllowSelfModeration lets moderators target their own identity.
	AllowSelfModeration bool

	// IdleTimeout is how long a room with no attached sessions lives on.
	IdleTimeout time.Duration

	// PersistTimeout bounds each persistence call made while handling one event.
	PersistTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.HistoryLimit == 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 5 * time.Minute
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 5 * time.Second
	}
	return o
}

type eventKind int

const (
	eventAttach eventKind = iota
	eventFrame
	eventDetach
	eventQuery
)

// QueryKind selects what a Query reads from a room.
type QueryKind int

const (
	QueryMemberCount QueryKind = iota
	QueryRoster
)

// QueryResult is the answer to a Query. Only the field matching the kind is set.
type QueryResult struct {
	MemberCount int
	Members     []Member
}

type roomEvent struct {
	kind    eventKind
	session *Session
	frame   []byte
	query   QueryKind
	reply   chan QueryResult
}

// Room coordinates every session of one channel.
type Room struct {
	// ChannelID is the channel this room serves.
	ChannelID string

	gateway Gateway
	opts    Options
	roster  *roster

	// events is the single inbound queue of the room.
	events chan roomEvent

	// pendingDrops holds sessions whose transport refused a frame. They are
	// disconnected after the current event completes.
	pendingDrops []pendingDrop

	// cleanupChan notifies the Directory that the room retired itself.
	cleanupChan chan<- *Room

	// mu guards closed. Submitters hold the read lock while enqueueing so the idle
	// check can take the write lock only when no submission is in flight.
	mu     sync.RWMutex
	closed bool

	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	idleTimer *time.Timer
	idleArmed bool

	logger zerolog.Logger
}

// NewRoom creates a room for channelID. The caller starts Run.
func NewRoom(channelID string, gateway Gateway, opts Options, cleanupChan chan<- *Room) *Room {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &Room{
		ChannelID:   channelID,
		gateway:     gateway,
		opts:        opts,
		roster:      newRoster(),
		events:      make(chan roomEvent, eventQueueSize),
		cleanupChan: cleanupChan,
		ctx:         ctx,
		cancel:      cancel,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
		idleTimer:   time.NewTimer(opts.IdleTimeout),
		idleArmed:   true,
		logger:      logx.Component("Room").With().Str("channel_id", channelID).Logger(),
	}
}

// Stop terminates the Run loop. Attached transports are closed as the loop exits.
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		r.logger.Info().Msg("Received stop signal. Stopping room immediately.")
		r.cancel()
		close(r.stopChan)
	})
}

// Done is closed once Run has returned.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// submit enqueues ev. It reports false when the room no longer accepts events.
func (r *Room) submit(ev roomEvent) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false
	}

	select {
	case r.events <- ev:
		return true
	case <-r.stopChan:
		return false
	}
}

// attach registers a fresh session for conn.
func (r *Room) attach(conn Conn, verifiedIdentity string) (*Session, bool) {
	s := newSession(r, conn, verifiedIdentity)
	if !r.submit(roomEvent{kind: eventAttach, session: s}) {
		return nil, false
	}
	return s, true
}

// Query reads a snapshot of room state from the room goroutine.
func (r *Room) Query(kind QueryKind) (QueryResult, bool) {
	reply := make(chan QueryResult, 1)
	if !r.submit(roomEvent{kind: eventQuery, query: kind, reply: reply}) {
		return QueryResult{}, false
	}

	select {
	case res := <-reply:
		return res, true
	case <-r.done:
		return QueryResult{}, false
	}
}

// Run is the event loop of the room. It returns after Stop or after the room sat
// idle with no attached session for Options.IdleTimeout.
func (r *Room) Run() {
	metrics.RoomsActive.Inc()
	r.logger.Info().Msg("Room started.")

	defer r.shutdown()

	for {
		select {
		case ev := <-r.events:
			r.process(ev)
			r.updateIdleTimer()

		case <-r.idleTimer.C:
			if r.retireIfIdle() {
				return
			}

		case <-r.stopChan:
			r.logger.Info().Msg("Room forced stop initiated.")
			return
		}
	}
}

func (r *Room) shutdown() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.idleTimer.Stop()
	r.cancel()

	for _, s := range r.roster.all() {
		if s.state == StateJoined {
			metrics.SessionsJoined.Dec()
		}
		s.state = StateClosed
		r.roster.remove(s)
		s.conn.Close(CloseGoingAway, "server shutting down")
	}

	metrics.RoomsActive.Dec()
	close(r.done)
	r.logger.Info().Msg("Room Run loop finished.")
}

// updateIdleTimer arms the idle timer when the last session leaves and disarms it
// when one attaches.
func (r *Room) updateIdleTimer() {
	empty := r.roster.attachedCount() == 0
	if empty == r.idleArmed {
		return
	}

	if empty {
		r.idleTimer.Reset(r.opts.IdleTimeout)
	} else if !r.idleTimer.Stop() {
		select {
		case <-r.idleTimer.C:
		default:
		}
	}
	r.idleArmed = empty
}

// retireIfIdle closes the room when nothing is attached or queued and no submitter
// is mid-flight. Otherwise it re-arms the timer.
func (r *Room) retireIfIdle() bool {
	if !r.mu.TryLock() {
		r.idleTimer.Reset(r.opts.IdleTimeout)
		return false
	}

	if len(r.events) > 0 || r.roster.attachedCount() > 0 {
		r.mu.Unlock()
		r.idleTimer.Reset(r.opts.IdleTimeout)
		return false
	}

	r.closed = true
	r.mu.Unlock()

	r.logger.Info().Dur("idle_timeout", r.opts.IdleTimeout).Msg("Room inactivity timeout reached. Retiring room.")

	if r.cleanupChan != nil {
		select {
		case r.cleanupChan <- r:
		default:
			r.logger.Warn().Msg("Directory cleanup channel full. Skipping cleanup notification.")
		}
	}
	return true
}

// process applies one event and then disconnects every session whose transport
// failed during it.
func (r *Room) process(ev roomEvent) {
	switch ev.kind {
	case eventAttach:
		r.roster.attach(ev.session)
		r.logger.Debug().
			Str("session_id", ev.session.ID).
			Int("attached", r.roster.attachedCount()).
			Msg("Session attached.")

	case eventFrame:
		r.dispatch(ev.session, ev.frame)

	case eventDetach:
		r.disconnect(ev.session, CloseNormal, "")

	case eventQuery:
		ev.reply <- r.answer(ev.query)
	}

	r.flushDrops()
}

func (r *Room) answer(kind QueryKind) QueryResult {
	switch kind {
	case QueryRoster:
		return QueryResult{MemberCount: r.roster.memberCount(), Members: r.roster.members()}
	default:
		return QueryResult{MemberCount: r.roster.memberCount()}
	}
}

// dispatch decodes a client frame and routes it by type.
func (r *Room) dispatch(s *Session, frame []byte) {
	if s.state == StateClosed {
		return
	}

	var in Inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		r.logger.Warn().Err(err).Str("session_id", s.ID).Msg("Client sent invalid JSON")
		r.sendError(s, errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch in.Type {
	case InboundJoin:
		r.handleJoin(s, in)
	case InboundMessage:
		r.handleChat(s, in)
	case InboundLeave:
		r.handleLeave(s)
	case InboundAdminAction:
		r.handleAdminAction(s, in)
	case InboundPing:
		r.send(s, NewEvent(EventPong, r.ChannelID, nil))
	default:
		r.logger.Warn().Str("msg_type", string(in.Type)).Msg("Client sent unsupported message type")
		r.sendError(s, errs.NewError(errs.ErrUnknownMessageType, in.Type))
	}
}

// persistCtx bounds one handler's persistence calls.
func (r *Room) persistCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.ctx, r.opts.PersistTimeout)
}

// persistFailed records a failed gateway call. The room keeps going with its
// in-memory state.
func (r *Room) persistFailed(op string, err error, identity string) {
	metrics.PersistenceFailuresTotal.WithLabelValues(op).Inc()

	if errors.Is(err, ErrChannelGone) {
		r.logger.Warn().
			Err(err).
			Str("op", op).
			Str("identity", identity).
			Msg("Channel was deleted from the store while its room is live. Write dropped.")
		return
	}

	r.logger.Error().
		Err(err).
		Str("op", op).
		Str("identity", identity).
		Msg("Persistence call failed. Continuing with in-memory state.")
}

func (r *Room) handleJoin(s *Session, in Inbound) {
	if s.state == StateJoined {
		r.sendError(s, errs.NewError(errs.ErrAlreadyJoined))
		return
	}

	join := joinRequest{ChannelID: in.ChannelID, Identity: strings.TrimSpace(in.Identity)}
	if err := req.Validate(join); err != nil {
		metrics.JoinsRejectedTotal.WithLabelValues("invalid").Inc()
		r.sendError(s, err)
		return
	}

	if join.ChannelID != "" && join.ChannelID != r.ChannelID {
		metrics.JoinsRejectedTotal.WithLabelValues("channel_mismatch").Inc()
		r.sendError(s, errs.NewError(errs.ErrChannelMismatch))
		return
	}

	if s.verifiedIdentity != "" && s.verifiedIdentity != join.Identity {
		metrics.JoinsRejectedTotal.WithLabelValues("identity_mismatch").Inc()
		r.logger.Warn().
			Str("session_id", s.ID).
			Str("claimed", join.Identity).
			Msg("Join identity differs from login identity.")
		r.sendError(s, errs.NewError(errs.ErrIdentityMismatch))
		return
	}

	ctx, cancel := r.persistCtx()
	defer cancel()

	ban := r.roster.banOf(join.Identity)
	if ban == nil {
		var err error
		if ban, err = r.gateway.FindBan(ctx, r.ChannelID, join.Identity); err != nil {
			r.persistFailed("find_ban", err, join.Identity)
		}
	}
	if ban != nil {
		r.rejectBanned(s, join.Identity, ban)
		return
	}

	s.identity = join.Identity
	s.profile = r.loadProfile(ctx, join.Identity)
	s.membership = r.loadMembership(ctx, join.Identity)
	s.owner = r.isOwner(ctx, join.Identity)
	s.elevated = r.opts.ElevatedAdminID != "" && join.Identity == r.opts.ElevatedAdminID
	s.state = StateJoined
	s.joinedAt = time.Now()
	r.roster.markJoined(s)
	metrics.SessionsJoined.Inc()

	r.logger.Info().
		Str("session_id", s.ID).
		Str("identity", s.identity).
		Str("role", string(s.role())).
		Int("members", r.roster.memberCount()).
		Msg("Session joined channel.")

	r.send(s, NewEvent(EventJoined, r.ChannelID, MemberPayload{User: s.member()}))
	r.sendHistory(ctx, s)
	r.send(s, NewEvent(EventMembersList, r.ChannelID, MembersPayload{Members: r.roster.members()}))

	r.broadcast(NewEvent(EventUserJoined, r.ChannelID, MemberPayload{User: s.member()}), s)
	r.broadcastMemberCount()
}

func (r *Room) rejectBanned(s *Session, identity string, ban *Ban) {
	metrics.JoinsRejectedTotal.WithLabelValues("banned").Inc()
	r.logger.Info().Str("session_id", s.ID).Str("identity", identity).Msg("Banned identity tried to join.")

	notice := ModerationPayload{
		TargetIdentity: identity,
		Message:        errs.NewError(errs.ErrBanned).Message,
		Reason:         ban.Reason,
	}
	r.send(s, NewEvent(EventBanned, r.ChannelID, notice))

	s.state = StateClosed
	r.roster.remove(s)
	s.conn.Close(CloseBanned, "banned")
}

func (r *Room) loadProfile(ctx context.Context, identity string) user.Profile {
	profile, err := r.gateway.FindProfile(ctx, identity)
	if err != nil {
		r.persistFailed("find_profile", err, identity)
	}
	if profile == nil {
		return user.Anonymous(identity)
	}

	p := *profile
	p.ID = identity
	if p.Guild != "" && p.GuildColor == "" {
		p.GuildColor = user.DefaultGuildColor
	}
	return p
}

// loadMembership returns the moderation state of identity. A live session of the
// same identity is authoritative, then whatever this room last applied; otherwise
// the stored record is used, and a missing record is seeded with defaults.
func (r *Room) loadMembership(ctx context.Context, identity string) Membership {
	if live := r.roster.byIdentity(identity); len(live) > 0 {
		return live[0].membership
	}
	if m, ok := r.roster.remembered(identity); ok {
		return m
	}

	m, err := r.gateway.FindMembership(ctx, r.ChannelID, identity)
	if err != nil {
		r.persistFailed("find_membership", err, identity)
		return DefaultMembership()
	}
	if m != nil {
		return normalizeMembership(*m)
	}

	seed := DefaultMembership()
	if err := r.gateway.UpsertMembership(ctx, r.ChannelID, identity, seed); err != nil {
		r.persistFailed("upsert_membership", err, identity)
	}
	return seed
}

func normalizeMembership(m Membership) Membership {
	if m.Role != RoleModerator {
		m.Role = RoleUser
	}
	if m.Color == "" {
		m.Color = DefaultNicknameColor
	}
	if m.Warnings < 0 {
		m.Warnings = 0
	}
	return m
}

func (r *Room) isOwner(ctx context.Context, identity string) bool {
	owner, err := r.gateway.FindChannelOwner(ctx, r.ChannelID)
	if err != nil {
		r.persistFailed("find_channel_owner", err, identity)
		return false
	}
	return owner != "" && owner == identity
}

func (r *Room) sendHistory(ctx context.Context, s *Session) {
	if r.opts.HistoryLimit < 0 {
		return
	}

	stored, err := r.gateway.RecentMessages(ctx, r.ChannelID, r.opts.HistoryLimit)
	if err != nil {
		r.persistFailed("recent_messages", err, s.identity)
		return
	}

	history := make([]MessagePayload, 0, len(stored))
	for _, m := range stored {
		history = append(history, HistoryMessage(m))
	}
	r.send(s, NewEvent(EventMessageHistory, r.ChannelID, HistoryPayload{Messages: history}))
}

func (r *Room) handleChat(s *Session, in Inbound) {
	if s.state != StateJoined {
		r.sendError(s, errs.NewError(errs.ErrNotJoined))
		return
	}

	if strings.TrimSpace(in.Content) == "" {
		r.sendError(s, errs.NewError(errs.ErrMessageContentEmpty))
		return
	}
	if len(in.Content) > MaxContentBytes {
		r.sendError(s, errs.NewError(errs.ErrMessageContentTooLong))
		return
	}
	if s.membership.Muted {
		r.sendError(s, errs.NewError(errs.ErrMuted))
		return
	}

	ctx, cancel := r.persistCtx()
	defer cancel()

	if err := r.gateway.InsertMessage(ctx, r.ChannelID, s.identity, in.Content); err != nil {
		r.persistFailed("insert_message", err, s.identity)
	}

	msg := MessagePayload{
		ID:      randx.MessageID(),
		Author:  s.author(),
		Content: in.Content,
		SentAt:  time.Now().UTC(),
	}
	metrics.MessagesTotal.Inc()
	r.broadcast(NewEvent(EventMessage, r.ChannelID, msg), nil)
}

// handleLeave is an explicit leave: the session departs and its transport is
// closed with a normal close frame.
func (r *Room) handleLeave(s *Session) {
	r.disconnect(s, CloseNormal, "left channel")
}

// disconnect removes s from the room. A joined session is announced with
// user_left and a fresh member_count.
func (r *Room) disconnect(s *Session, code int, reason string) {
	if s.state == StateClosed {
		return
	}

	wasJoined := r.roster.remove(s)
	s.state = StateClosed
	s.conn.Close(code, reason)

	if !wasJoined {
		return
	}

	metrics.SessionsJoined.Dec()
	r.logger.Info().
		Str("session_id", s.ID).
		Str("identity", s.identity).
		Int("members", r.roster.memberCount()).
		Msg("Session left channel.")

	r.broadcast(NewEvent(EventUserLeft, r.ChannelID, MemberPayload{User: s.member()}), nil)
	r.broadcastMemberCount()
}

// evict removes s after a kick or ban. Unlike disconnect it does not announce
// user_left; the moderation notice already did.
func (r *Room) evict(s *Session, code int, reason string) {
	if s.state == StateClosed {
		return
	}
	if r.roster.remove(s) {
		metrics.SessionsJoined.Dec()
	}
	s.state = StateClosed
	s.conn.Close(code, reason)
}

func (r *Room) sendError(s *Session, err error) {
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) {
		customErr = errs.NewError(errs.ErrUnknown, err)
	}
	r.send(s, NewEvent(EventError, r.ChannelID, ErrorPayload{Code: customErr.Code, Message: customErr.Message}))
}
