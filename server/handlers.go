package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Cod-e-Codes/chatrooms/shared"
	"github.com/gorilla/websocket"
)

const handshakeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventHandler applies client events to the hub and the database
type EventHandler struct {
	hub          *Hub
	db           Database
	historyLimit int
}

// NewEventHandler creates the handler for join_channel, leave_channel and
// send_message. historyLimit caps the backlog replayed on join, 0 means all.
func NewEventHandler(hub *Hub, db Database, historyLimit int) *EventHandler {
	return &EventHandler{hub: hub, db: db, historyLimit: historyLimit}
}

// Handle dispatches one envelope received from c
func (h *EventHandler) Handle(c *Client, env shared.Envelope) {
	var err error
	switch env.Type {
	case shared.EventJoinChannel:
		var ref shared.ChannelRef
		if err = env.Decode(&ref); err == nil {
			err = h.JoinChannel(c, ref.ChannelID)
		}
	case shared.EventLeaveChannel:
		var ref shared.ChannelRef
		if err = env.Decode(&ref); err == nil {
			err = h.LeaveChannel(c, ref.ChannelID)
		}
	case shared.EventSendMessage:
		var msg shared.SendMessage
		if err = env.Decode(&msg); err == nil {
			err = h.SendMessage(c, msg)
		}
	default:
		c.logger.Warn("Ignoring unknown event", map[string]interface{}{"type": string(env.Type)})
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound), errors.Is(err, errEmptyMessage):
		c.logger.Debug("Ignoring event", map[string]interface{}{"type": string(env.Type), "reason": err.Error()})
	default:
		c.logger.Error("Event failed", err, map[string]interface{}{"type": string(env.Type)})
	}
}

var errEmptyMessage = errors.New("empty message")

// JoinChannel adds c to the channel room, announces it to the room and
// sends the channel backlog to c alone.
func (h *EventHandler) JoinChannel(c *Client, id shared.ChannelID) error {
	channel, err := h.db.GetChannel(id)
	if err != nil {
		return fmt.Errorf("join channel %d: %w", id, err)
	}

	h.hub.Join(c, channel.ID)
	c.logger.Info("Joined channel", map[string]interface{}{"room": RoomName(channel.ID)})

	status, err := shared.NewEnvelope(shared.EventStatus, shared.Status{
		Msg: fmt.Sprintf("%s has entered #%s.", c.user.Username, channel.Name),
	})
	if err != nil {
		return err
	}
	h.hub.BroadcastToRoom(channel.ID, status)

	stored, err := h.db.GetChannelMessages(channel.ID, h.historyLimit)
	if err != nil {
		return fmt.Errorf("load history for channel %d: %w", channel.ID, err)
	}
	history := shared.MessageHistory{Messages: make([]shared.ChatMessage, 0, len(stored))}
	for _, m := range stored {
		history.Messages = append(history.Messages, m.ChatMessage())
	}
	env, err := shared.NewEnvelope(shared.EventMessageHistory, history)
	if err != nil {
		return err
	}
	h.hub.SendTo(c, env)
	return nil
}

// LeaveChannel removes c from the channel room and tells the remaining
// members.
func (h *EventHandler) LeaveChannel(c *Client, id shared.ChannelID) error {
	channel, err := h.db.GetChannel(id)
	if err != nil {
		return fmt.Errorf("leave channel %d: %w", id, err)
	}

	h.hub.Leave(c, channel.ID)
	c.logger.Info("Left channel", map[string]interface{}{"room": RoomName(channel.ID)})

	status, err := shared.NewEnvelope(shared.EventStatus, shared.Status{
		Msg: fmt.Sprintf("%s has left #%s.", c.user.Username, channel.Name),
	})
	if err != nil {
		return err
	}
	h.hub.BroadcastToRoom(channel.ID, status)
	return nil
}

// SendMessage persists a message and broadcasts it to the channel room
func (h *EventHandler) SendMessage(c *Client, msg shared.SendMessage) error {
	content := SanitizeMessage(msg.Content)
	if msg.ChannelID == 0 || content == "" {
		return errEmptyMessage
	}
	if _, err := h.db.GetChannel(msg.ChannelID); err != nil {
		return fmt.Errorf("send to channel %d: %w", msg.ChannelID, err)
	}

	stored, err := h.db.InsertMessage(StoredMessage{
		ChannelID: msg.ChannelID,
		UserID:    c.user.ID,
		Author:    c.user.Username,
		Content:   content,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	env, err := shared.NewEnvelope(shared.EventNewMessage, stored.ChatMessage())
	if err != nil {
		return err
	}
	h.hub.BroadcastToRoom(msg.ChannelID, env)
	return nil
}

// ServeWs upgrades the request, authenticates the handshake frame and
// starts the client pumps.
func ServeWs(hub *Hub, auth *Authenticator, events *EventHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			ServerLogger.Error("WebSocket upgrade error", err)
			return
		}

		// Expect handshake as first message
		_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
		var hs shared.Handshake
		if err := conn.ReadJSON(&hs); err != nil {
			rejectConn(conn, "Invalid handshake")
			return
		}
		user, err := auth.Authenticate(strings.TrimSpace(hs.Token))
		if err != nil {
			HTTPLogger.Warn("Rejected websocket handshake", map[string]interface{}{"remote": clientIP(r), "error": err.Error()})
			rejectConn(conn, "Invalid session")
			return
		}
		_ = conn.SetReadDeadline(time.Time{})

		client := newClient(hub, conn, user, events)
		client.logger.Info("Client connected", map[string]interface{}{"remote": clientIP(r)})
		hub.Register(client)

		go client.writePump()
		go client.readPump()
	}
}

func rejectConn(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	conn.Close()
}
