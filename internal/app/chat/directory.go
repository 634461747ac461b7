/*
Package chat contains the real-time core of the server.

This file defines the Directory, which maps channel ids to live Rooms. Rooms are
created lazily on first use and remove themselves after sitting idle; the
Directory learns about retired rooms through its cleanup channel.
*/
package chat

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"sdtchat/internal/pkg/logx"
)

// connectAttempts bounds how often Connect retries a room that retired between
// resolve and attach.
const connectAttempts = 3

// ErrDirectoryClosed is returned by Connect after Shutdown.
var ErrDirectoryClosed = errors.New("chat: directory is shut down")

// Directory is the registry of live rooms, keyed by channel id.
type Directory struct {
	// rooms stores every live Room, keyed by channel id.
	rooms map[string]*Room

	gateway Gateway
	opts    Options

	// mu protects rooms and closed.
	mu     sync.RWMutex
	closed bool

	// cleanup receives rooms that retired after their idle timeout.
	cleanup chan *Room

	// roomsWG tracks running Room.Run goroutines; loopWG the cleanup loop.
	roomsWG sync.WaitGroup
	loopWG  sync.WaitGroup

	logger zerolog.Logger
}

// NewDirectory constructs a Directory and starts its cleanup loop.
func NewDirectory(gateway Gateway, opts Options) *Directory {
	d := &Directory{
		rooms:   make(map[string]*Room),
		gateway: gateway,
		opts:    opts.withDefaults(),
		cleanup: make(chan *Room, 64),
		logger:  logx.Component("Directory"),
	}

	d.loopWG.Add(1)
	go d.runCleanupLoop()

	return d
}

// runCleanupLoop removes retired rooms from the map.
func (d *Directory) runCleanupLoop() {
	defer d.loopWG.Done()

	d.logger.Info().Msg("Cleanup loop started.")

	for room := range d.cleanup {
		d.forget(room)
	}

	d.logger.Info().Msg("Cleanup loop stopped.")
}

// forget removes room from the map unless it has already been replaced.
func (d *Directory) forget(room *Room) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if current, ok := d.rooms[room.ChannelID]; ok && current == room {
		delete(d.rooms, room.ChannelID)
		d.logger.Info().Str("channel_id", room.ChannelID).Msg("Room successfully removed.")
	}
}

// Resolve returns the live room of channelID, creating and starting it when
// absent. Concurrent callers for the same channel get the same room. After
// Shutdown it returns nil.
func (d *Directory) Resolve(channelID string) *Room {
	d.mu.RLock()
	room, ok := d.rooms[channelID]
	closed := d.closed
	d.mu.RUnlock()

	if closed {
		return nil
	}
	if ok && !room.isClosed() {
		return room
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	if room, ok := d.rooms[channelID]; ok && !room.isClosed() {
		return room
	}

	room = NewRoom(channelID, d.gateway, d.opts, d.cleanup)
	d.rooms[channelID] = room

	d.roomsWG.Add(1)
	go func() {
		defer d.roomsWG.Done()
		room.Run()
	}()

	d.logger.Info().Str("channel_id", channelID).Msg("New Room created and started.")
	return room
}

// Connect attaches a new session for conn to the room of channelID.
// verifiedIdentity, when non-empty, is the only identity the session may join as.
func (d *Directory) Connect(channelID string, conn Conn, verifiedIdentity string) (*Session, error) {
	for range connectAttempts {
		room := d.Resolve(channelID)
		if room == nil {
			return nil, ErrDirectoryClosed
		}

		if s, ok := room.attach(conn, verifiedIdentity); ok {
			return s, nil
		}

		// The room retired between resolve and attach. Drop it eagerly so the
		// next resolve creates a fresh one.
		d.forget(room)
	}

	return nil, ErrDirectoryClosed
}

// Query reads room state without creating a room. Unknown or retired rooms
// answer with a zero result.
func (d *Directory) Query(channelID string, kind QueryKind) QueryResult {
	d.mu.RLock()
	room, ok := d.rooms[channelID]
	d.mu.RUnlock()

	if !ok {
		return QueryResult{}
	}

	res, _ := room.Query(kind)
	return res
}

// MemberCount returns the number of joined sessions in channelID.
func (d *Directory) MemberCount(channelID string) int {
	return d.Query(channelID, QueryMemberCount).MemberCount
}

// Members returns the roster of channelID in join order, empty for an inactive
// channel.
func (d *Directory) Members(channelID string) []Member {
	members := d.Query(channelID, QueryRoster).Members
	if members == nil {
		return []Member{}
	}
	return members
}

// ActiveRooms returns the number of rooms currently registered.
func (d *Directory) ActiveRooms() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// Shutdown stops every room, waits for their loops to exit and stops the cleanup loop.
func (d *Directory) Shutdown() {
	d.logger.Info().Msg("Shutting down Directory...")

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, room := range d.rooms {
		room.Stop()
	}
	d.rooms = make(map[string]*Room)
	d.mu.Unlock()

	d.roomsWG.Wait()

	close(d.cleanup)
	d.loopWG.Wait()

	d.logger.Info().Msg("Directory shutdown complete.")
}
