package chat

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T, opts Options) (*Directory, *stubGateway) {
	t.Helper()
	gw := newStubGateway()
	d := NewDirectory(gw, opts)
	t.Cleanup(d.Shutdown)
	return d, gw
}

func joinFrame(t *testing.T, identity string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"type": "join", "identity": identity})
	require.NoError(t, err)
	return raw
}

func TestResolveIsIdempotentUnderConcurrency(t *testing.T) {
	d, _ := newTestDirectory(t, Options{})

	const workers = 32
	rooms := make([]*Room, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rooms[i] = d.Resolve(testChannel)
		}()
	}
	wg.Wait()

	for _, r := range rooms {
		assert.Same(t, rooms[0], r)
	}
	assert.Equal(t, 1, d.ActiveRooms())
}

func TestConnectJoinAndCount(t *testing.T) {
	d, _ := newTestDirectory(t, Options{})

	conn := &fakeConn{}
	s, err := d.Connect(testChannel, conn, "")
	require.NoError(t, err)
	assert.Equal(t, testChannel, s.ChannelID())

	assert.Equal(t, 0, d.MemberCount(testChannel))

	require.True(t, s.Deliver(joinFrame(t, "alice")))
	assert.Eventually(t, func() bool { return d.MemberCount(testChannel) == 1 }, time.Second, 5*time.Millisecond)

	members := d.Members(testChannel)
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].Identity)

	s.Disconnect()
	assert.Eventually(t, func() bool { return d.MemberCount(testChannel) == 0 }, time.Second, 5*time.Millisecond)
}

func TestRoomsAreIsolatedByChannel(t *testing.T) {
	d, _ := newTestDirectory(t, Options{})

	connA, connB := &fakeConn{}, &fakeConn{}
	a, err := d.Connect("one", connA, "")
	require.NoError(t, err)
	b, err := d.Connect("two", connB, "")
	require.NoError(t, err)

	a.Deliver(joinFrame(t, "alice"))
	b.Deliver(joinFrame(t, "bob"))
	assert.Eventually(t, func() bool {
		return d.MemberCount("one") == 1 && d.MemberCount("two") == 1
	}, time.Second, 5*time.Millisecond)

	msg, _ := json.Marshal(map[string]any{"type": "message", "content": "only for one"})
	a.Deliver(msg)
	assert.Eventually(t, func() bool { return len(connA.all(t, EventMessage)) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, connB.all(t, EventMessage))
}

func TestQueryDoesNotCreateRooms(t *testing.T) {
	d, _ := newTestDirectory(t, Options{})

	assert.Equal(t, 0, d.MemberCount("nowhere"))
	assert.Equal(t, []Member{}, d.Members("nowhere"))
	assert.Equal(t, 0, d.ActiveRooms())
}

func TestIdleRoomRetires(t *testing.T) {
	d, _ := newTestDirectory(t, Options{IdleTimeout: 20 * time.Millisecond})

	first := d.Resolve(testChannel)
	require.NotNil(t, first)

	assert.Eventually(t, func() bool { return d.ActiveRooms() == 0 }, time.Second, 5*time.Millisecond)
	<-first.Done()

	second := d.Resolve(testChannel)
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
}

func TestRoomWithSessionDoesNotRetire(t *testing.T) {
	d, _ := newTestDirectory(t, Options{IdleTimeout: 20 * time.Millisecond})

	_, err := d.Connect(testChannel, &fakeConn{}, "")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, d.ActiveRooms())
}

func TestShutdownClosesTransports(t *testing.T) {
	gw := newStubGateway()
	d := NewDirectory(gw, Options{})

	conn := &fakeConn{}
	s, err := d.Connect(testChannel, conn, "")
	require.NoError(t, err)
	s.Deliver(joinFrame(t, "alice"))
	assert.Eventually(t, func() bool { return d.MemberCount(testChannel) == 1 }, time.Second, 5*time.Millisecond)

	d.Shutdown()

	closed, code := conn.isClosed()
	assert.True(t, closed)
	assert.Equal(t, CloseGoingAway, code)
	assert.False(t, s.Deliver(joinFrame(t, "alice")))

	_, err = d.Connect(testChannel, &fakeConn{}, "")
	assert.ErrorIs(t, err, ErrDirectoryClosed)
	assert.Nil(t, d.Resolve(testChannel))

	d.Shutdown()
}
