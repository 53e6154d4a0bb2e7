package main

import (
	"errors"
	"testing"
	"time"

	"github.com/Cod-e-Codes/chatrooms/shared"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws", false},
		{"https://chat.example.com/", "wss://chat.example.com/ws", false},
		{"http://example.com/chat", "ws://example.com/chat/ws", false},
		{"ws://localhost:8080", "ws://localhost:8080/ws", false},
		{"ftp://example.com", "", true},
	}
	for _, tt := range tests {
		got, err := websocketURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("websocketURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("websocketURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func readEvent(t *testing.T, sock *Socket) shared.Envelope {
	t.Helper()
	_ = sock.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	env, err := sock.Read()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	return env
}

func TestSocketDrivesController(t *testing.T) {
	srv := startServer(t)
	api := loggedInClient(t, srv)
	channels, err := api.ListChannels()
	if err != nil {
		t.Fatal(err)
	}

	wsURL, _ := websocketURL(srv.URL)
	sock, err := DialSocket(wsURL, api.Token())
	if err != nil {
		t.Fatalf("DialSocket failed: %v", err)
	}
	defer sock.Close()

	ctrl := NewController(channels, zerolog.Nop())
	ctrl.SetEmitter(sock)
	if err := ctrl.OnConnect(); err != nil {
		t.Fatal(err)
	}

	// status to the room, then history to the joiner
	for _, want := range []shared.EventType{shared.EventStatus, shared.EventMessageHistory} {
		env := readEvent(t, sock)
		if env.Type != want {
			t.Fatalf("expected %s, got %s", want, env.Type)
		}
		if err := ctrl.HandleEvent(env); err != nil {
			t.Fatal(err)
		}
	}
	if len(ctrl.Items()) != 0 {
		t.Errorf("empty history should leave no items, got %v", ctrl.Items())
	}

	if rest, err := ctrl.Send("  Tom & Jerry  "); err != nil || rest != "" {
		t.Fatalf("Send = %q, %v", rest, err)
	}
	env := readEvent(t, sock)
	if err := ctrl.HandleEvent(env); err != nil {
		t.Fatal(err)
	}
	msg, ok := ctrl.LastMessage()
	if !ok || msg.Author != "Admin" || msg.Content != "Tom &amp; Jerry" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestDialSocketRejectedSession(t *testing.T) {
	srv := startServer(t)
	wsURL, _ := websocketURL(srv.URL)

	sock, err := DialSocket(wsURL, "bogus")
	if err != nil {
		t.Fatalf("DialSocket failed: %v", err)
	}
	defer sock.Close()

	_ = sock.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = sock.Read()
	reason, ok := rejectionReason(err)
	if !ok || reason != "Invalid session" {
		t.Errorf("expected Invalid session rejection, got %v", err)
	}
}

func TestRejectionReason(t *testing.T) {
	if _, ok := rejectionReason(errors.New("eof")); ok {
		t.Error("plain errors are not rejections")
	}
	if _, ok := rejectionReason(&websocket.CloseError{Code: websocket.CloseGoingAway}); ok {
		t.Error("going away is not a rejection")
	}
	reason, ok := rejectionReason(&websocket.CloseError{Code: websocket.ClosePolicyViolation, Text: "Invalid session"})
	if !ok || reason != "Invalid session" {
		t.Errorf("unexpected %q %v", reason, ok)
	}
}
