package main

import (
	"errors"
	"net/http"
	"testing"
)

func TestAPIClientLogin(t *testing.T) {
	srv := startServer(t)
	api := NewAPIClient(srv.URL + "/")

	lr, err := api.Login("Admin", "password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if lr.Username != "Admin" || lr.Token == "" || api.Token() != lr.Token {
		t.Errorf("unexpected login response %+v, token %q", lr, api.Token())
	}

	_, err = NewAPIClient(srv.URL).Login("Admin", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if apiErr.Error() != "Invalid username or password" {
		t.Errorf("unexpected error text %q", apiErr.Error())
	}
}

func TestAPIClientRegister(t *testing.T) {
	srv := startServer(t)
	api := NewAPIClient(srv.URL)

	if err := api.Register("bob", "secret"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	err := api.Register("bob", "secret")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate, got %v", err)
	}
	if _, err := api.Login("bob", "secret"); err != nil {
		t.Errorf("registered user should log in: %v", err)
	}
}

func TestAPIClientChannels(t *testing.T) {
	srv := startServer(t)
	api := loggedInClient(t, srv)

	channels, err := api.ListChannels()
	if err != nil {
		t.Fatalf("ListChannels failed: %v", err)
	}
	if len(channels) != 1 || channels[0].Name != "general" {
		t.Fatalf("expected seeded general channel, got %v", channels)
	}

	channels, err = api.CreateChannel("random")
	if err != nil {
		t.Fatalf("CreateChannel failed: %v", err)
	}
	if len(channels) != 2 || channels[1].Name != "random" {
		t.Errorf("expected refreshed list with random, got %v", channels)
	}

	channels, err = api.CreateChannel("  ")
	if err != nil || len(channels) != 2 {
		t.Errorf("blank name should return the list unchanged, got %v, %v", channels, err)
	}
}

func TestAPIClientRequiresSession(t *testing.T) {
	srv := startServer(t)
	_, err := NewAPIClient(srv.URL).ListChannels()
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Errorf("expected 401 without session, got %v", err)
	}
}

func TestAPIClientLogout(t *testing.T) {
	srv := startServer(t)
	api := loggedInClient(t, srv)
	token := api.Token()

	if err := api.Logout(); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if api.Token() != "" {
		t.Error("token should be cleared")
	}

	stale := NewAPIClient(srv.URL)
	stale.token = token
	if _, err := stale.ListChannels(); err == nil {
		t.Error("revoked token should be rejected")
	}
	if err := api.Logout(); err != nil {
		t.Errorf("logout without session should be a no-op, got %v", err)
	}
}

func TestAPIErrorWithoutMessage(t *testing.T) {
	err := &APIError{Status: http.StatusBadGateway}
	if err.Error() != "server returned 502" {
		t.Errorf("unexpected error text %q", err.Error())
	}
}
