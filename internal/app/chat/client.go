/*
Package chat contains the real-time core of the server.

This file defines the Client, the gorilla/websocket transport of one Session.
ReadPump forwards frames to the session's room; WritePump drains the buffered
send queue and keeps the connection alive with pings. A peer that stops
answering pings misses its read deadline and is disconnected like any other
closed transport.
*/
package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"sdtchat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// capacity of the outbound queue of one client.
	sendBufferSize = 256

	// DefaultPongWait is used when NewClient gets a non-positive pong wait.
	DefaultPongWait = 60 * time.Second
)

var (
	// ErrSendQueueFull is returned by Send when the peer is not draining frames.
	ErrSendQueueFull = errors.New("chat: client send queue full")

	// ErrClientClosed is returned by Send after Close.
	ErrClientClosed = errors.New("chat: client closed")
)

// Client is an active WebSocket connection. It implements Conn.
type Client struct {
	// underlying WebSocket connection object.
	conn *websocket.Conn

	// buffered queue of frames waiting to be written.
	send chan []byte

	// pongWait is the read deadline extended by every pong.
	pongWait time.Duration

	// mu guards closed and closeFrame.
	mu         sync.Mutex
	closed     bool
	closeFrame []byte

	// quit is closed by Close to stop WritePump.
	quit chan struct{}

	// structured logger with channel context.
	logger zerolog.Logger
}

// NewClient wraps an upgraded connection.
func NewClient(wsConn *websocket.Conn, channelID string, pongWait time.Duration) *Client {
	if pongWait <= 0 {
		pongWait = DefaultPongWait
	}

	return &Client{
		conn:     wsConn,
		send:     make(chan []byte, sendBufferSize),
		pongWait: pongWait,
		quit:     make(chan struct{}),
		logger: logx.Logger().With().
			Str("component", "Client").
			Str("channel_id", channelID).
			Str("remote_addr", logx.AnonymizeIP(wsConn.RemoteAddr().String())).
			Logger(),
	}
}

// Send queues data for writing without blocking.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close asks WritePump to flush queued frames, write a close frame with code and
// reason, and close the connection. Only the first call has an effect.
func (c *Client) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.closeFrame = websocket.FormatCloseMessage(code, reason)
	close(c.quit)
}

// ReadPump reads frames until the connection fails and hands each one to
// session. It runs on the handler goroutine and tells the room about the
// disconnect when it returns.
func (c *Client) ReadPump(session *Session) {
	logger := c.logger.With().Str("session_id", session.ID).Logger()

	defer func() {
		session.Disconnect()
		c.Close(CloseNormal, "")
	}()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		if !session.Deliver(frame) {
			logger.Debug().Msg("Room closed. Stopping read loop.")
			return
		}
	}
}

// WritePump writes queued frames and periodic pings until Close or a write error.
func (c *Client) WritePump() {
	ticker := time.NewTicker((c.pongWait * 9) / 10)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message := <-c.send:
			if !c.writeFrame(websocket.TextMessage, message) {
				return
			}

		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}

		case <-c.quit:
			c.flushAndClose()
			return
		}
	}
}

// flushAndClose writes what is still queued, so a kicked or banned peer sees the
// notice, and then the close frame.
func (c *Client) flushAndClose() {
	for {
		select {
		case message := <-c.send:
			if !c.writeFrame(websocket.TextMessage, message) {
				return
			}
		default:
			c.mu.Lock()
			frame := c.closeFrame
			c.mu.Unlock()

			c.writeFrame(websocket.CloseMessage, frame)
			return
		}
	}
}

// writeFrame writes one frame. It returns false when the connection is unusable.
func (c *Client) writeFrame(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Warn().Err(err).Int("message_type", messageType).Msg("Error writing frame")
		}
		return false
	}

	return true
}
