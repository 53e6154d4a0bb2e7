package server

import (
	"fmt"
	"net/http"

	"github.com/Cod-e-Codes/chatrooms/config"
	"github.com/Cod-e-Codes/chatrooms/shared"
)

// App wires the database, hub and HTTP routes of a running server
type App struct {
	DB      Database
	Hub     *Hub
	Auth    *Authenticator
	Handler http.Handler
}

// NewApp opens the configured database, seeds it and builds the router.
// The caller starts the hub with go app.Hub.Run() and calls Close when done.
func NewApp(cfg *config.Config) (*App, error) {
	db, err := NewDatabase(DatabaseConfig{Type: cfg.DBType, FilePath: cfg.DBPath})
	if err != nil {
		return nil, err
	}
	return newAppWithDB(db, cfg)
}

func newAppWithDB(db Database, cfg *config.Config) (*App, error) {
	auth := NewAuthenticator(db)
	if err := SeedDefaults(db, auth, cfg.AdminUsername, cfg.AdminPassword, cfg.DefaultChannel); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed database: %w", err)
	}

	hub := NewHub()
	events := NewEventHandler(hub, db, cfg.HistoryLimit)
	health := NewHealthChecker(hub, db, shared.Version)

	return &App{
		DB:      db,
		Hub:     hub,
		Auth:    auth,
		Handler: NewRouter(hub, db, auth, events, health),
	}, nil
}

// Close stops the hub and closes the database
func (a *App) Close() error {
	a.Hub.Stop()
	return a.DB.Close()
}
