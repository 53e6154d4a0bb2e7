package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Cod-e-Codes/chatrooms/shared"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const userKey ctxKey = iota

// API serves the JSON endpoints for accounts and channels
type API struct {
	db   Database
	auth *Authenticator
}

// NewRouter builds the server's HTTP routes
func NewRouter(hub *Hub, db Database, auth *Authenticator, events *EventHandler, health *HealthChecker) http.Handler {
	api := &API{db: db, auth: auth}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", health.HealthCheckHandler)
	r.Get("/ws", ServeWs(hub, auth, events))

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", api.register)
		r.Post("/login", api.login)

		r.Group(func(r chi.Router) {
			r.Use(api.requireSession)
			r.Post("/logout", api.logout)
			r.Get("/channels", api.listChannels)
			r.Post("/channels", api.createChannel)
		})
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		HTTPLogger.Debug("request", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
			"remote":   clientIP(r),
		})
	})
}

func (a *API) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.auth.Authenticate(bearerToken(r))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, shared.APIResponse{Error: "Login required"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var creds shared.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, shared.APIResponse{Error: "Invalid request body"})
		return
	}
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		writeJSON(w, http.StatusBadRequest, shared.APIResponse{Error: "Username and password are required"})
		return
	}

	user, err := a.auth.Register(creds.Username, creds.Password)
	switch {
	case errors.Is(err, ErrUserExists):
		writeJSON(w, http.StatusConflict, shared.APIResponse{Error: "Username already exists"})
		return
	case errors.Is(err, ErrInvalidUsername):
		writeJSON(w, http.StatusBadRequest, shared.APIResponse{Error: "Username may not contain <, >, &, quotes or markup"})
		return
	case err != nil:
		HTTPLogger.Error("Registration failed", err)
		writeJSON(w, http.StatusInternalServerError, shared.APIResponse{Error: "Registration failed"})
		return
	}

	HTTPLogger.WithUser(user.Username).Info("User registered")
	writeJSON(w, http.StatusCreated, shared.APIResponse{Message: "Registration successful. You can now log in."})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var creds shared.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, shared.APIResponse{Error: "Invalid request body"})
		return
	}

	token, user, err := a.auth.Login(creds.Username, creds.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, shared.APIResponse{Error: "Invalid username or password"})
		return
	case err != nil:
		HTTPLogger.Error("Login failed", err)
		writeJSON(w, http.StatusInternalServerError, shared.APIResponse{Error: "Login failed"})
		return
	}

	HTTPLogger.WithUser(user.Username).Info("User logged in", map[string]interface{}{"remote": clientIP(r)})
	writeJSON(w, http.StatusOK, shared.LoginResponse{Token: token, Username: user.Username})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Logout(bearerToken(r)); err != nil {
		HTTPLogger.Error("Logout failed", err)
		writeJSON(w, http.StatusInternalServerError, shared.APIResponse{Error: "Logout failed"})
		return
	}
	writeJSON(w, http.StatusOK, shared.APIResponse{Message: "Logged out"})
}

func (a *API) listChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := a.db.ListChannels()
	if err != nil {
		HTTPLogger.Error("List channels failed", err)
		writeJSON(w, http.StatusInternalServerError, shared.APIResponse{Error: "Could not load channels"})
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

// createChannel adds a channel and replies with the full channel list. A
// blank name creates nothing.
func (a *API) createChannel(w http.ResponseWriter, r *http.Request) {
	var req shared.CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, shared.APIResponse{Error: "Invalid request body"})
		return
	}

	status := http.StatusOK
	if name := SanitizeChannelName(req.ChannelName); name != "" {
		channel, err := a.db.CreateChannel(name)
		if err != nil {
			HTTPLogger.Error("Create channel failed", err)
			writeJSON(w, http.StatusInternalServerError, shared.APIResponse{Error: "Could not create channel"})
			return
		}
		user, _ := r.Context().Value(userKey).(User)
		HTTPLogger.WithUser(user.Username).Info("Channel created", map[string]interface{}{"room": RoomName(channel.ID), "name": channel.Name})
		status = http.StatusCreated
	}

	channels, err := a.db.ListChannels()
	if err != nil {
		HTTPLogger.Error("List channels failed", err)
		writeJSON(w, http.StatusInternalServerError, shared.APIResponse{Error: "Could not load channels"})
		return
	}
	writeJSON(w, status, channels)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		HTTPLogger.Error("Failed to encode response", err)
	}
}

// clientIP returns the originating address, preferring proxy headers
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
