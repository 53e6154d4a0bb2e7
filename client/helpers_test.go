package main

import (
	"net/http/httptest"
	"testing"

	srvconfig "github.com/Cod-e-Codes/chatrooms/config"
	"github.com/Cod-e-Codes/chatrooms/server"
)

// startServer runs a seeded in-memory chat server
func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	app, err := server.NewApp(&srvconfig.Config{
		DBType:         "sqlite",
		DBPath:         ":memory:",
		AdminUsername:  "Admin",
		AdminPassword:  "password",
		DefaultChannel: "general",
	})
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	go app.Hub.Run()

	srv := httptest.NewServer(app.Handler)
	t.Cleanup(func() {
		srv.Close()
		_ = app.Close()
	})
	return srv
}

func loggedInClient(t *testing.T, srv *httptest.Server) *APIClient {
	t.Helper()
	api := NewAPIClient(srv.URL)
	if _, err := api.Login("Admin", "password"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return api
}
