package chat

// roster tracks the sessions attached to one room, plus the moderation state the
// room has applied during its life. Only the room goroutine touches it.
type roster struct {
	// attached holds every session of the room, joined or not, by session id.
	attached map[string]*Session

	// joined lists the JOINED sessions in join order.
	joined []*Session

	// moderation holds the last membership the room applied per identity. It
	// outranks the store, whose write may have failed.
	moderation map[string]Membership

	// bans holds the bans issued by this room, by identity.
	bans map[string]Ban
}

func newRoster() *roster {
	return &roster{
		attached:   make(map[string]*Session),
		moderation: make(map[string]Membership),
		bans:       make(map[string]Ban),
	}
}

func (r *roster) remember(identity string, m Membership) {
	r.moderation[identity] = m
}

func (r *roster) remembered(identity string) (Membership, bool) {
	m, ok := r.moderation[identity]
	return m, ok
}

func (r *roster) ban(b Ban) {
	r.bans[b.UserID] = b
}

// banOf returns the ban this room issued against identity, if any.
func (r *roster) banOf(identity string) *Ban {
	if b, ok := r.bans[identity]; ok {
		return &b
	}
	return nil
}

func (r *roster) attach(s *Session) {
	r.attached[s.ID] = s
}

func (r *roster) markJoined(s *Session) {
	r.joined = append(r.joined, s)
}

// remove forgets s entirely. It reports whether s was joined.
func (r *roster) remove(s *Session) bool {
	delete(r.attached, s.ID)

	for i, j := range r.joined {
		if j == s {
			r.joined = append(r.joined[:i], r.joined[i+1:]...)
			return true
		}
	}
	return false
}

func (r *roster) memberCount() int {
	return len(r.joined)
}

func (r *roster) attachedCount() int {
	return len(r.attached)
}

// sessions returns a snapshot of the joined sessions.
func (r *roster) sessions() []*Session {
	out := make([]*Session, len(r.joined))
	copy(out, r.joined)
	return out
}

// byIdentity returns every joined session of identity.
func (r *roster) byIdentity(identity string) []*Session {
	var out []*Session
	for _, s := range r.joined {
		if s.identity == identity {
			out = append(out, s)
		}
	}
	return out
}

func (r *roster) members() []Member {
	out := make([]Member, 0, len(r.joined))
	for _, s := range r.joined {
		out = append(out, s.member())
	}
	return out
}

// all returns every attached session.
func (r *roster) all() []*Session {
	out := make([]*Session, 0, len(r.attached))
	for _, s := range r.attached {
		out = append(out, s)
	}
	return out
}
