package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Cod-e-Codes/chatrooms/shared"
)

// APIError is a non-success response from the server's JSON API
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

// APIClient calls the account and channel endpoints
type APIClient struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewAPIClient creates a client for the server at baseURL
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Token returns the session token from the last login
func (c *APIClient) Token() string {
	return c.token
}

func (c *APIClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiResp shared.APIResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiResp)
		return &APIError{Status: resp.StatusCode, Message: apiResp.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Register creates an account
func (c *APIClient) Register(username, password string) error {
	return c.do(http.MethodPost, "/api/register", shared.Credentials{Username: username, Password: password}, nil)
}

// Login opens a session; later calls carry its token
func (c *APIClient) Login(username, password string) (shared.LoginResponse, error) {
	var lr shared.LoginResponse
	if err := c.do(http.MethodPost, "/api/login", shared.Credentials{Username: username, Password: password}, &lr); err != nil {
		return shared.LoginResponse{}, err
	}
	c.token = lr.Token
	return lr, nil
}

// Logout revokes the session token
func (c *APIClient) Logout() error {
	if c.token == "" {
		return nil
	}
	err := c.do(http.MethodPost, "/api/logout", struct{}{}, nil)
	c.token = ""
	return err
}

// ListChannels returns every channel ordered by id
func (c *APIClient) ListChannels() ([]shared.Channel, error) {
	var channels []shared.Channel
	if err := c.do(http.MethodGet, "/api/channels", nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// CreateChannel adds a channel and returns the refreshed list
func (c *APIClient) CreateChannel(name string) ([]shared.Channel, error) {
	var channels []shared.Channel
	if err := c.do(http.MethodPost, "/api/channels", shared.CreateChannelRequest{ChannelName: name}, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}
