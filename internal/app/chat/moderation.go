package chat

import (
	"context"
	"fmt"
	"time"

	"sdtchat/internal/app/metrics"
	"sdtchat/internal/pkg/errs"
	"sdtchat/internal/pkg/req"
)

// Action is an admin_action verb.
type Action string

const (
	ActionChangeColor Action = "change_color"
	ActionWarn        Action = "warn"
	ActionKick        Action = "kick"
	ActionBan         Action = "ban"
	ActionSetRole     Action = "set_role"
	ActionUnmute      Action = "unmute"
)

func (a Action) known() bool {
	switch a {
	case ActionChangeColor, ActionWarn, ActionKick, ActionBan, ActionSetRole, ActionUnmute:
		return true
	}
	return false
}

// canModerate is the authorization matrix. The elevated admin may do anything;
// set_role is reserved to the owner; every other action needs moderator or owner.
func canModerate(s *Session, action Action) bool {
	if s.elevated {
		return true
	}

	switch action {
	case ActionSetRole:
		return s.role() == RoleOwner
	default:
		role := s.role()
		return role == RoleOwner || role == RoleModerator
	}
}

// target is the subject of one admin action: its live sessions, if any, and its
// moderation state.
type target struct {
	identity   string
	sessions   []*Session
	membership Membership
	name       string
}

// apply copies the updated state into every live session of the target.
func (t *target) apply() {
	for _, s := range t.sessions {
		s.membership = t.membership
	}
}

func (r *Room) handleAdminAction(s *Session, in Inbound) {
	if s.state != StateJoined {
		r.sendError(s, errs.NewError(errs.ErrNotJoined))
		return
	}

	if !in.Action.known() {
		r.sendError(s, errs.NewError(errs.ErrUnknownAction))
		return
	}

	request := adminRequest{
		Action:         in.Action,
		TargetIdentity: in.TargetIdentity,
		Color:          in.Color,
		Reason:         in.Reason,
		Role:           in.Role,
	}
	if err := req.Validate(request); err != nil {
		r.sendError(s, err)
		return
	}
	if (request.Action == ActionChangeColor && request.Color == "") || (request.Action == ActionSetRole && request.Role == "") {
		r.sendError(s, errs.NewError(errs.ErrInvalidParams))
		return
	}

	if in.ChannelID != "" && in.ChannelID != r.ChannelID {
		r.sendError(s, errs.NewError(errs.ErrChannelMismatch))
		return
	}

	if !canModerate(s, request.Action) {
		r.logger.Warn().
			Str("identity", s.identity).
			Str("role", string(s.role())).
			Str("action", string(request.Action)).
			Msg("Unauthorized admin action rejected.")
		r.sendError(s, errs.NewError(errs.ErrForbidden))
		return
	}

	if request.TargetIdentity == s.identity && request.Action != ActionChangeColor && !r.opts.AllowSelfModeration {
		r.sendError(s, errs.NewError(errs.ErrSelfModeration))
		return
	}

	ctx, cancel := r.persistCtx()
	defer cancel()

	if request.TargetIdentity != s.identity && !s.elevated && r.isProtected(ctx, request.TargetIdentity) {
		r.logger.Warn().
			Str("identity", s.identity).
			Str("target", request.TargetIdentity).
			Str("action", string(request.Action)).
			Msg("Admin action against channel owner or elevated admin rejected.")
		r.sendError(s, errs.NewError(errs.ErrForbidden))
		return
	}

	t := r.resolveTarget(ctx, request.TargetIdentity)

	var err *errs.CustomError
	switch request.Action {
	case ActionChangeColor:
		r.changeColor(ctx, s, t, request.Color)
	case ActionWarn:
		r.warn(ctx, s, t, request.Reason)
	case ActionKick:
		err = r.kick(s, t, request.Reason)
	case ActionBan:
		r.ban(ctx, s, t, request.Reason)
	case ActionSetRole:
		err = r.setRole(ctx, s, t, request.Role)
	case ActionUnmute:
		r.unmute(ctx, s, t)
	}

	if err != nil {
		r.sendError(s, err)
		return
	}

	metrics.ModerationActionsTotal.WithLabelValues(string(request.Action)).Inc()
	r.logger.Info().
		Str("action", string(request.Action)).
		Str("by", s.identity).
		Str("target", t.identity).
		Int("live_sessions", len(t.sessions)).
		Msg("Admin action applied.")
}

// isProtected reports whether identity is the channel owner or the elevated
// admin. Only the elevated admin may act on them.
func (r *Room) isProtected(ctx context.Context, identity string) bool {
	if r.opts.ElevatedAdminID != "" && identity == r.opts.ElevatedAdminID {
		return true
	}
	if live := r.roster.byIdentity(identity); len(live) > 0 {
		return live[0].owner
	}
	return r.isOwner(ctx, identity)
}

// resolveTarget loads the target's state. Live sessions are authoritative; an
// absent identity falls back to what this room applied, then to the store.
func (r *Room) resolveTarget(ctx context.Context, identity string) *target {
	t := &target{identity: identity, sessions: r.roster.byIdentity(identity), name: identity}

	if len(t.sessions) > 0 {
		t.membership = t.sessions[0].membership
		t.name = t.sessions[0].profile.DisplayName()
		return t
	}

	if m, ok := r.roster.remembered(identity); ok {
		t.membership = m
	} else {
		m, err := r.gateway.FindMembership(ctx, r.ChannelID, identity)
		switch {
		case err != nil:
			r.persistFailed("find_membership", err, identity)
			t.membership = DefaultMembership()
		case m == nil:
			t.membership = DefaultMembership()
		default:
			t.membership = normalizeMembership(*m)
		}
	}

	t.name = r.loadProfile(ctx, identity).DisplayName()
	return t
}

// saveMembership keeps the room's copy first so a failed write cannot undo it
// on rejoin.
func (r *Room) saveMembership(ctx context.Context, t *target) {
	r.roster.remember(t.identity, t.membership)
	if err := r.gateway.UpsertMembership(ctx, r.ChannelID, t.identity, t.membership); err != nil {
		r.persistFailed("upsert_membership", err, t.identity)
	}
}

func (r *Room) changeColor(ctx context.Context, by *Session, t *target, color string) {
	t.membership.Color = color
	t.apply()
	r.saveMembership(ctx, t)

	r.broadcast(NewEvent(EventColorChanged, r.ChannelID, ModerationPayload{
		TargetIdentity: t.identity,
		By:             by.identity,
		Message:        fmt.Sprintf("%s's nickname color was changed.", t.name),
		Color:          color,
		Warnings:       t.membership.Warnings,
		Muted:          t.membership.Muted,
	}), nil)
	r.broadcastRoster()
}

// warn increments the warning count. Reaching WarningThreshold mutes the target,
// and only the transition into muted produces the auto-mute notice.
func (r *Room) warn(ctx context.Context, by *Session, t *target, reason string) {
	wasMuted := t.membership.Muted
	t.membership.Warnings++

	autoMuted := !wasMuted && t.membership.Warnings >= WarningThreshold
	if autoMuted {
		t.membership.Muted = true
	}
	t.apply()

	if err := r.gateway.InsertWarning(ctx, r.ChannelID, t.identity, by.identity, reason); err != nil {
		r.persistFailed("insert_warning", err, t.identity)
	}
	r.saveMembership(ctx, t)

	notice := ModerationPayload{
		TargetIdentity: t.identity,
		By:             by.identity,
		Reason:         reason,
		Warnings:       t.membership.Warnings,
		Muted:          t.membership.Muted,
		AutoMuted:      autoMuted,
	}
	if autoMuted {
		notice.Message = fmt.Sprintf("%s reached %d warnings and has been muted.", t.name, t.membership.Warnings)
	} else {
		notice.Message = fmt.Sprintf("%s has been warned (%d/%d).", t.name, t.membership.Warnings, WarningThreshold)
	}

	r.broadcast(NewEvent(EventWarning, r.ChannelID, notice), nil)
	r.broadcastRoster()
}

// kick removes every live session of the target. It leaves no persistent trace,
// so an absent target is an error.
func (r *Room) kick(by *Session, t *target, reason string) *errs.CustomError {
	if len(t.sessions) == 0 {
		return errs.NewError(errs.ErrTargetNotPresent)
	}

	r.broadcast(NewEvent(EventKicked, r.ChannelID, ModerationPayload{
		TargetIdentity: t.identity,
		By:             by.identity,
		Reason:         reason,
		Message:        fmt.Sprintf("%s was kicked from the channel.", t.name),
		Warnings:       t.membership.Warnings,
		Muted:          t.membership.Muted,
	}), nil)

	for _, s := range t.sessions {
		r.evict(s, CloseKicked, "kicked")
	}

	r.broadcastRoster()
	r.broadcastMemberCount()
	return nil
}

// ban records the ban and removes every live session of the target. The room
// keeps its own record, so a failed write still blocks rejoins while it lives.
func (r *Room) ban(ctx context.Context, by *Session, t *target, reason string) {
	r.roster.ban(Ban{
		ChannelID: r.ChannelID,
		UserID:    t.identity,
		BannedBy:  by.identity,
		Reason:    reason,
		CreatedAt: time.Now(),
	})

	if err := r.gateway.InsertBan(ctx, r.ChannelID, t.identity, by.identity, reason); err != nil {
		r.persistFailed("insert_ban", err, t.identity)
	}

	r.broadcast(NewEvent(EventBanned, r.ChannelID, ModerationPayload{
		TargetIdentity: t.identity,
		By:             by.identity,
		Reason:         reason,
		Message:        fmt.Sprintf("%s was banned from the channel.", t.name),
		Warnings:       t.membership.Warnings,
		Muted:          t.membership.Muted,
	}), nil)

	if len(t.sessions) == 0 {
		return
	}

	for _, s := range t.sessions {
		r.evict(s, CloseBanned, "banned")
	}

	r.broadcastRoster()
	r.broadcastMemberCount()
}

func (r *Room) setRole(ctx context.Context, by *Session, t *target, role Role) *errs.CustomError {
	if len(t.sessions) > 0 && t.sessions[0].owner {
		return errs.NewError(errs.ErrOwnerRoleImmutable)
	}
	if len(t.sessions) == 0 && r.isOwner(ctx, t.identity) {
		return errs.NewError(errs.ErrOwnerRoleImmutable)
	}

	t.membership.Role = role
	t.apply()
	r.saveMembership(ctx, t)

	r.broadcast(NewEvent(EventRoleChanged, r.ChannelID, ModerationPayload{
		TargetIdentity: t.identity,
		By:             by.identity,
		Role:           role,
		Message:        fmt.Sprintf("%s is now a %s.", t.name, role),
		Warnings:       t.membership.Warnings,
		Muted:          t.membership.Muted,
	}), nil)
	r.broadcastRoster()
	return nil
}

// unmute clears the mute and the warning count together.
func (r *Room) unmute(ctx context.Context, by *Session, t *target) {
	t.membership.Muted = false
	t.membership.Warnings = 0
	t.apply()
	r.saveMembership(ctx, t)

	r.broadcast(NewEvent(EventUnmuted, r.ChannelID, ModerationPayload{
		TargetIdentity: t.identity,
		By:             by.identity,
		Message:        fmt.Sprintf("%s has been unmuted.", t.name),
	}), nil)
	r.broadcastRoster()
}
