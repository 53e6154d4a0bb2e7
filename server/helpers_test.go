package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Cod-e-Codes/chatrooms/config"
	"github.com/Cod-e-Codes/chatrooms/shared"
	"github.com/gorilla/websocket"
)

// backends lists every Database implementation the store tests run
// against. Server backends join when a DSN is exported.
var backends = []string{"sqlite", "pebble"}

var serverDSNs = map[string]string{
	"postgres": os.Getenv("CHATROOMS_TEST_POSTGRES_DSN"),
	"mysql":    os.Getenv("CHATROOMS_TEST_MYSQL_DSN"),
}

func init() {
	for _, backend := range []string{"postgres", "mysql"} {
		if serverDSNs[backend] != "" {
			backends = append(backends, backend)
		}
	}
}

// CreateTestDatabase opens an empty database of the given type
func CreateTestDatabase(t *testing.T, dbType string) Database {
	t.Helper()
	path := ":memory:"
	switch dbType {
	case "pebble":
		path = t.TempDir()
	case "postgres", "mysql":
		path = serverDSNs[dbType]
		dropTables(t, dbType, path)
	}
	db, err := NewDatabase(DatabaseConfig{Type: dbType, FilePath: path})
	if err != nil {
		t.Fatalf("Failed to open %s test database: %v", dbType, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func dropTables(t *testing.T, driver, dsn string) {
	t.Helper()
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		t.Fatalf("open %s: %v", driver, err)
	}
	defer conn.Close()
	for _, table := range []string{"messages", "sessions", "channels", "users"} {
		if _, err := conn.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			t.Fatalf("drop %s: %v", table, err)
		}
	}
}

func testConfig() *config.Config {
	return &config.Config{
		AdminUsername:  "Admin",
		AdminPassword:  "password",
		DefaultChannel: "general",
	}
}

// CreateTestServer runs a seeded app behind an httptest server
func CreateTestServer(t *testing.T) (*App, *httptest.Server) {
	t.Helper()
	db := CreateTestDatabase(t, "sqlite")
	app, err := newAppWithDB(db, testConfig())
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	go app.Hub.Run()

	srv := httptest.NewServer(app.Handler)
	t.Cleanup(func() {
		srv.Close()
		app.Hub.Stop()
	})
	return app, srv
}

func postJSON(t *testing.T, url, token string, body interface{}) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func login(t *testing.T, srv *httptest.Server, username, password string) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/login", "", shared.Credentials{Username: username, Password: password})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	var lr shared.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return lr.Token
}

func registerAndLogin(t *testing.T, srv *httptest.Server, username string) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/register", "", shared.Credentials{Username: username, Password: "secret"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}
	return login(t, srv, username, "secret")
}

func dialWS(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := conn.WriteJSON(shared.Handshake{Token: token}); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event shared.EventType, payload interface{}) {
	t.Helper()
	env, err := shared.NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if err := conn.WriteJSON(env); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func readEnvelope(t *testing.T, conn *websocket.Conn) shared.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env shared.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read envelope: %v", err)
	}
	return env
}

func expectNoEnvelope(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var env shared.Envelope
	if err := conn.ReadJSON(&env); err == nil {
		t.Fatalf("expected no event, got %s %s", env.Type, env.Data)
	}
}

func expectStatus(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	env := readEnvelope(t, conn)
	if env.Type != shared.EventStatus {
		t.Fatalf("expected status event, got %s %s", env.Type, env.Data)
	}
	var st shared.Status
	if err := env.Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Msg != want {
		t.Errorf("expected status %q, got %q", want, st.Msg)
	}
}

func expectHistory(t *testing.T, conn *websocket.Conn) []shared.ChatMessage {
	t.Helper()
	env := readEnvelope(t, conn)
	if env.Type != shared.EventMessageHistory {
		t.Fatalf("expected message_history, got %s %s", env.Type, env.Data)
	}
	var hist shared.MessageHistory
	if err := env.Decode(&hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if hist.Messages == nil {
		t.Error("history messages should encode as an empty list, not null")
	}
	return hist.Messages
}

func expectNewMessage(t *testing.T, conn *websocket.Conn) shared.ChatMessage {
	t.Helper()
	env := readEnvelope(t, conn)
	if env.Type != shared.EventNewMessage {
		t.Fatalf("expected new_message, got %s %s", env.Type, env.Data)
	}
	var msg shared.ChatMessage
	if err := env.Decode(&msg); err != nil {
		t.Fatalf("decode new_message: %v", err)
	}
	return msg
}

// waitFor polls cond until it holds or a second passes
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}
