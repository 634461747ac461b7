package chat

import (
	"encoding/json"
	"errors"

	"sdtchat/internal/app/metrics"
)

// send delivers ev to one session.
func (r *Room) send(s *Session, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Error marshaling event.")
		return
	}
	r.deliver(s, data)
}

// broadcast delivers ev to every joined session except exclude. Sessions that
// are attached but not joined never receive channel traffic.
func (r *Room) broadcast(ev Event, exclude *Session) {
	data, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Error marshaling event for broadcast.")
		return
	}

	for _, s := range r.roster.sessions() {
		if s == exclude {
			continue
		}
		r.deliver(s, data)
	}
}

func (r *Room) broadcastMemberCount() {
	r.broadcast(NewEvent(EventMemberCount, r.ChannelID, CountPayload{Count: r.roster.memberCount()}), nil)
}

func (r *Room) broadcastRoster() {
	r.broadcast(NewEvent(EventMembersList, r.ChannelID, MembersPayload{Members: r.roster.members()}), nil)
}

// deliver hands data to the session transport. A refused frame never aborts the
// fan-out; the session is queued for disconnection instead.
func (r *Room) deliver(s *Session, data []byte) {
	if s.state == StateClosed {
		return
	}

	if err := s.conn.Send(data); err != nil {
		metrics.DeliveryFailuresTotal.Inc()
		r.logger.Warn().
			Err(err).
			Str("session_id", s.ID).
			Msg("Session transport refused frame. Scheduling disconnect.")

		for _, pending := range r.pendingDrops {
			if pending.session == s {
				return
			}
		}
		r.pendingDrops = append(r.pendingDrops, pendingDrop{session: s, err: err})
	}
}

// pendingDrop is a session whose transport refused a frame, with the reason.
type pendingDrop struct {
	session *Session
	err     error
}

// closeFor picks the close frame for a transport that refused a frame.
func closeFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrSendQueueFull):
		return CloseSendOverflow, "send queue overflow"
	case errors.Is(err, ErrClientClosed):
		return CloseGoingAway, "connection closed"
	default:
		return CloseGoingAway, "transport error"
	}
}

// flushDrops disconnects sessions whose transport failed. Announcing a departure
// can fail further sends, so it loops until the queue is empty.
func (r *Room) flushDrops() {
	for len(r.pendingDrops) > 0 {
		drop := r.pendingDrops[0]
		r.pendingDrops = r.pendingDrops[1:]

		code, reason := closeFor(drop.err)
		r.disconnect(drop.session, code, reason)
	}
	r.pendingDrops = nil
}
