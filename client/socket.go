package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Cod-e-Codes/chatrooms/shared"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	reconnectWait = 2 * time.Second
)

// Socket is an authenticated websocket connection to the server
type Socket struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writers
}

// websocketURL maps an http(s) server URL to its /ws endpoint
func websocketURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

// DialSocket connects to wsURL and sends the session handshake
func DialSocket(wsURL, token string) (*Socket, error) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, err
	}
	s := &Socket{conn: conn}
	if err := s.write(shared.Handshake{Token: token}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send handshake: %w", err)
	}
	return s, nil
}

func (s *Socket) write(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// Emit sends one event with its payload
func (s *Socket) Emit(event shared.EventType, payload interface{}) error {
	env, err := shared.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	return s.write(env)
}

// Read blocks for the next event from the server
func (s *Socket) Read() (shared.Envelope, error) {
	var env shared.Envelope
	err := s.conn.ReadJSON(&env)
	return env, err
}

func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return s.conn.Close()
}

// Bubble Tea messages produced by the socket commands
type (
	wsConnected struct{ sock *Socket }
	wsEvent     struct {
		sock *Socket
		env  shared.Envelope
	}
	wsError struct {
		sock *Socket
		err  error
	}
	reconnectMsg struct{}
)

func connectCmd(wsURL, token string) tea.Cmd {
	return func() tea.Msg {
		sock, err := DialSocket(wsURL, token)
		if err != nil {
			return wsError{err: err}
		}
		return wsConnected{sock: sock}
	}
}

// listenCmd reads one event; the model re-issues it after each message
func listenCmd(sock *Socket) tea.Cmd {
	return func() tea.Msg {
		env, err := sock.Read()
		if err != nil {
			return wsError{sock: sock, err: err}
		}
		return wsEvent{sock: sock, env: env}
	}
}

func reconnectCmd() tea.Cmd {
	return tea.Tick(reconnectWait, func(time.Time) tea.Msg { return reconnectMsg{} })
}

// rejectionReason returns the close reason when the server refused the
// session, which a reconnect cannot fix.
func rejectionReason(err error) (string, bool) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == websocket.ClosePolicyViolation {
		return closeErr.Text, true
	}
	return "", false
}
