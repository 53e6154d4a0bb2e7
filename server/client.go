package server

import (
	"time"

	"github.com/Cod-e-Codes/chatrooms/shared"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Client is one authenticated websocket connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan shared.Envelope
	user   User
	events *EventHandler
	rooms  map[shared.ChannelID]bool // owned by the hub goroutine
	logger *Logger
}

func newClient(hub *Hub, conn *websocket.Conn, user User, events *EventHandler) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan shared.Envelope, sendBufferSize),
		user:   user,
		events: events,
		rooms:  make(map[shared.ChannelID]bool),
		logger: ClientLogger.WithUser(user.Username),
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env shared.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("readPump error", err)
			}
			return
		}
		c.events.Handle(c, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				c.logger.Error("writePump error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
