package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sdtchat/internal/app/user"
)

const testChannel = "general"

var errStore = errors.New("store unavailable")

// stubGateway is an in-memory Gateway with per-operation failure injection.
type stubGateway struct {
	mu          sync.Mutex
	bans        map[string]Ban
	memberships map[string]Membership
	owners      map[string]string
	profiles    map[string]user.Profile
	messages    []StoredMessage
	warnings    []string
	fail        map[string]error
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		bans:        make(map[string]Ban),
		memberships: make(map[string]Membership),
		owners:      make(map[string]string),
		profiles:    make(map[string]user.Profile),
		fail:        make(map[string]error),
	}
}

func key(channelID, userID string) string { return channelID + "/" + userID }

func (g *stubGateway) failing(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[op] = err
}

func (g *stubGateway) FindBan(_ context.Context, channelID, userID string) (*Ban, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["find_ban"]; err != nil {
		return nil, err
	}
	if b, ok := g.bans[key(channelID, userID)]; ok {
		return &b, nil
	}
	return nil, nil
}

func (g *stubGateway) FindMembership(_ context.Context, channelID, userID string) (*Membership, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["find_membership"]; err != nil {
		return nil, err
	}
	if m, ok := g.memberships[key(channelID, userID)]; ok {
		return &m, nil
	}
	return nil, nil
}

func (g *stubGateway) UpsertMembership(_ context.Context, channelID, userID string, m Membership) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["upsert_membership"]; err != nil {
		return err
	}
	g.memberships[key(channelID, userID)] = m
	return nil
}

func (g *stubGateway) FindChannelOwner(_ context.Context, channelID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["find_channel_owner"]; err != nil {
		return "", err
	}
	return g.owners[channelID], nil
}

func (g *stubGateway) FindProfile(_ context.Context, userID string) (*user.Profile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["find_profile"]; err != nil {
		return nil, err
	}
	if p, ok := g.profiles[userID]; ok {
		return &p, nil
	}
	return nil, nil
}

func (g *stubGateway) InsertMessage(_ context.Context, channelID, userID, content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["insert_message"]; err != nil {
		return err
	}
	g.messages = append(g.messages, StoredMessage{
		ID:        int64(len(g.messages) + 1),
		ChannelID: channelID,
		UserID:    userID,
		Content:   content,
		Type:      "text",
		CreatedAt: time.Now(),
	})
	return nil
}

func (g *stubGateway) RecentMessages(_ context.Context, channelID string, limit int) ([]StoredMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["recent_messages"]; err != nil {
		return nil, err
	}
	var out []StoredMessage
	for _, m := range g.messages {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (g *stubGateway) InsertBan(_ context.Context, channelID, userID, bannedBy, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["insert_ban"]; err != nil {
		return err
	}
	g.bans[key(channelID, userID)] = Ban{ChannelID: channelID, UserID: userID, BannedBy: bannedBy, Reason: reason, CreatedAt: time.Now()}
	return nil
}

func (g *stubGateway) InsertWarning(_ context.Context, channelID, userID, warnedBy, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail["insert_warning"]; err != nil {
		return err
	}
	g.warnings = append(g.warnings, key(channelID, userID)+":"+warnedBy+":"+reason)
	return nil
}

func (g *stubGateway) membership(userID string) (Membership, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.memberships[key(testChannel, userID)]
	return m, ok
}

// fakeConn records frames and close calls.
type fakeConn struct {
	mu         sync.Mutex
	frames     [][]byte
	closed     bool
	closeCode  int
	failSend   bool
	sendErr    error
	closeCalls int
}

type received struct {
	Type      EventType       `json:"type"`
	ChannelID string          `json:"channelId"`
	Payload   json.RawMessage `json:"payload"`
}

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return ErrSendQueueFull
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.closed {
		return ErrClientClosed
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeConn) Close(code int, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if f.closed {
		return
	}
	f.closed = true
	f.closeCode = code
}

func (f *fakeConn) isClosed() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.closeCode
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

func (f *fakeConn) events(t *testing.T) []received {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]received, 0, len(f.frames))
	for _, raw := range f.frames {
		var ev received
		require.NoError(t, json.Unmarshal(raw, &ev))
		out = append(out, ev)
	}
	return out
}

func (f *fakeConn) types(t *testing.T) []EventType {
	t.Helper()
	var out []EventType
	for _, ev := range f.events(t) {
		out = append(out, ev.Type)
	}
	return out
}

func (f *fakeConn) all(t *testing.T, eventType EventType) []received {
	t.Helper()
	var out []received
	for _, ev := range f.events(t) {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeConn) last(t *testing.T, eventType EventType) received {
	t.Helper()
	all := f.all(t, eventType)
	require.NotEmpty(t, all, "no %s event received", eventType)
	return all[len(all)-1]
}

func decode[T any](t *testing.T, ev received) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(ev.Payload, &out))
	return out
}

// harness drives a Room synchronously, without its Run loop.
type harness struct {
	t    *testing.T
	room *Room
	gw   *stubGateway
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	gw := newStubGateway()
	gw.owners[testChannel] = "owner"
	gw.memberships[key(testChannel, "mod")] = Membership{Role: RoleModerator, Color: DefaultNicknameColor}

	room := NewRoom(testChannel, gw, opts, nil)
	t.Cleanup(func() {
		room.idleTimer.Stop()
		room.cancel()
	})

	return &harness{t: t, room: room, gw: gw}
}

func (h *harness) connect(verifiedIdentity string) (*Session, *fakeConn) {
	conn := &fakeConn{}
	s := newSession(h.room, conn, verifiedIdentity)
	h.room.process(roomEvent{kind: eventAttach, session: s})
	return s, conn
}

func (h *harness) send(s *Session, frame map[string]any) {
	h.t.Helper()
	raw, err := json.Marshal(frame)
	require.NoError(h.t, err)
	h.room.process(roomEvent{kind: eventFrame, session: s, frame: raw})
}

func (h *harness) join(identity string) (*Session, *fakeConn) {
	h.t.Helper()
	s, conn := h.connect("")
	h.send(s, map[string]any{"type": "join", "channelId": testChannel, "identity": identity})
	require.Equal(h.t, StateJoined, s.state, "join of %s failed", identity)
	return s, conn
}

func (h *harness) admin(s *Session, action Action, targetIdentity string, extra map[string]any) {
	h.t.Helper()
	frame := map[string]any{"type": "admin_action", "action": action, "targetIdentity": targetIdentity}
	for k, v := range extra {
		frame[k] = v
	}
	h.send(s, frame)
}

func (h *harness) detach(s *Session) {
	h.room.process(roomEvent{kind: eventDetach, session: s})
}

func errorCode(t *testing.T, conn *fakeConn) int {
	t.Helper()
	return decode[ErrorPayload](t, conn.last(t, EventError)).Code
}

func resetAll(conns ...*fakeConn) {
	for _, c := range conns {
		c.reset()
	}
}
