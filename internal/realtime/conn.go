// internal/realtime/conn.go
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ihor-shndr/mychat/internal/log"
)

const (
	// Send buffer size for outbound frames
	sendBufferSize = 256

	// Time allowed to write a frame
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message
	pongWait = 30 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = 25 * time.Second

	// Maximum inbound frame size
	maxMessageSize = 64 * 1024 // 64KB
)

// Conn is one websocket connection of one authenticated user. A user
// may hold several at once, one per device or tab.
type Conn struct {
	id        string
	userID    int64
	ws        *websocket.Conn
	hub       *Hub
	send      chan []byte   // outbound frame queue
	done      chan struct{} // closed when the connection ends
	closeOnce sync.Once
}

// NewConn wraps an upgraded websocket for an authenticated user and
// registers it with the hub.
func (h *Hub) NewConn(ws *websocket.Conn, userID int64) *Conn {
	conn := &Conn{
		id:     uuid.New().String(),
		userID: userID,
		ws:     ws,
		hub:    h,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
	h.bind(conn)
	return conn
}

// ID returns the connection id.
func (c *Conn) ID() string {
	return c.id
}

// UserID returns the owning user.
func (c *Conn) UserID() int64 {
	return c.userID
}

// Enqueue queues an encoded frame for sending without blocking. A full
// buffer drops the frame and reports the failure to the caller.
func (c *Conn) Enqueue(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// sendFrame encodes and enqueues a frame, for replies to this client.
func (c *Conn) sendFrame(f *Frame) {
	data, err := f.Encode()
	if err != nil {
		log.Error("realtime: failed to encode frame", "conn_id", c.id, "error", err.Error())
		return
	}
	if err := c.Enqueue(data); err != nil {
		log.Warn("realtime: dropping reply", "conn_id", c.id, "error", err.Error())
	}
}

// Close tears the connection down exactly once: the socket is closed
// and the hub removes registration and all group subscriptions.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			c.ws.Close()
		}
		if c.hub != nil {
			c.hub.remove(c.id)
		}
	})
}

// ReadPump reads frames from the websocket until the connection dies.
func (c *Conn) ReadPump() {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug("realtime: read error", "conn_id", c.id, "error", err.Error())
			}
			return
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			log.Debug("realtime: invalid frame", "conn_id", c.id, "error", err.Error(), "len", len(data))
			continue
		}

		c.handleFrame(frame)
	}
}

// WritePump serializes all outbound writes for this connection.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleFrame routes incoming client frames.
func (c *Conn) handleFrame(frame *Frame) {
	switch frame.Event {
	case EventHeartbeat:
		c.sendFrame(NewReply(frame.Ref, "ok"))
	case EventJoinGroup:
		c.handleJoinGroup(frame)
	case EventLeaveGroup:
		c.handleLeaveGroup(frame)
	default:
		log.Debug("realtime: unknown event", "conn_id", c.id, "event", frame.Event)
		c.sendFrame(NewErrorFrame(frame.Ref, "unknown_event", frame.Event))
	}
}

// handleJoinGroup subscribes the connection to a group's traffic. The
// hub verifies membership; an unauthorized join gets an error reply and
// the connection stays up.
func (c *Conn) handleJoinGroup(frame *Frame) {
	var req groupRequest
	if err := json.Unmarshal(frame.Payload, &req); err != nil || req.GroupID == 0 {
		c.sendFrame(NewErrorFrame(frame.Ref, "invalid_payload", "group_id is required"))
		return
	}

	if err := c.hub.Subscribe(c, req.GroupID); err != nil {
		if err == ErrNotAuthorized {
			c.sendFrame(NewErrorFrame(frame.Ref, "not_a_member", err.Error()))
		} else {
			log.Error("realtime: join failed", "conn_id", c.id, "group_id", req.GroupID, "error", err.Error())
			c.sendFrame(NewErrorFrame(frame.Ref, "internal_error", "could not join group"))
		}
		return
	}

	c.sendFrame(NewReply(frame.Ref, "ok"))
}

func (c *Conn) handleLeaveGroup(frame *Frame) {
	var req groupRequest
	if err := json.Unmarshal(frame.Payload, &req); err != nil || req.GroupID == 0 {
		c.sendFrame(NewErrorFrame(frame.Ref, "invalid_payload", "group_id is required"))
		return
	}

	c.hub.Unsubscribe(c, req.GroupID)
	c.sendFrame(NewReply(frame.Ref, "ok"))
}
