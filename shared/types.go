package shared

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventType names a websocket event. The names are shared with browser
// clients and must not change.
type EventType string

const (
	EventJoinChannel    EventType = "join_channel"
	EventLeaveChannel   EventType = "leave_channel"
	EventSendMessage    EventType = "send_message"
	EventMessageHistory EventType = "message_history"
	EventNewMessage     EventType = "new_message"
	EventStatus         EventType = "status"
)

// TimestampLayout renders message times on a zero padded 12-hour clock.
const TimestampLayout = "03:04 PM"

// FormatTimestamp formats t for display in message payloads
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEnvelope marshals payload into an envelope of the given type
func NewEnvelope(t EventType, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Envelope{Type: t, Data: data}, nil
}

// Decode unmarshals the envelope payload into v
func (e Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// ChannelID identifies a channel. It is encoded as a JSON number but also
// accepts numeric strings, which is what browsers read out of data
// attributes.
type ChannelID int64

// UnmarshalJSON accepts 1, "1" and null
func (id *ChannelID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = 0
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	if s == "" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid channel_id %s: %w", b, err)
	}
	*id = ChannelID(n)
	return nil
}

func (id ChannelID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ChannelRef is the payload of join_channel and leave_channel
type ChannelRef struct {
	ChannelID ChannelID `json:"channel_id"`
}

// SendMessage is the payload of send_message
type SendMessage struct {
	ChannelID ChannelID `json:"channel_id"`
	Content   string    `json:"content"`
}

// ChatMessage is a rendered chat line, used by new_message and inside
// message_history.
type ChatMessage struct {
	Author    string `json:"author"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// MessageHistory is the backlog sent to a client that joined a channel
type MessageHistory struct {
	Messages []ChatMessage `json:"messages"`
}

// Status is an informational line broadcast to a channel
type Status struct {
	Msg string `json:"msg"`
}

// Handshake is sent by the client as the first websocket frame
type Handshake struct {
	Token string `json:"token"`
}

// Credentials is the body of the login and register endpoints
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the session token used for the API and handshake
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Channel is a named chat room
type Channel struct {
	ID   ChannelID `json:"id"`
	Name string    `json:"name"`
}

// CreateChannelRequest is the body of POST /api/channels
type CreateChannelRequest struct {
	ChannelName string `json:"channel_name"`
}

// APIResponse is the generic JSON reply of the REST endpoints
type APIResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
