package server

import (
	"errors"
	"time"

	"github.com/Cod-e-Codes/chatrooms/shared"
)

var (
	// ErrNotFound is returned when a user, session or channel does not exist
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when registering a taken username
	ErrUserExists = errors.New("username already exists")
)

// Database interface defines the contract for database operations
type Database interface {
	// Connection management
	Open(config DatabaseConfig) error
	Close() error
	Ping() error

	// Schema management
	CreateSchema() error

	// Users
	CreateUser(username, passwordHash string) (User, error)
	GetUserByID(id int64) (User, error)
	GetUserByUsername(username string) (User, error)
	CountUsers() (int, error)

	// Sessions
	CreateSession(token string, userID int64) error
	GetSession(token string) (Session, error)
	DeleteSession(token string) error

	// Channels
	CreateChannel(name string) (shared.Channel, error)
	GetChannel(id shared.ChannelID) (shared.Channel, error)
	ListChannels() ([]shared.Channel, error)

	// Messages
	InsertMessage(msg StoredMessage) (StoredMessage, error)
	// GetChannelMessages returns messages oldest first. A positive limit
	// keeps only the most recent limit messages.
	GetChannelMessages(channelID shared.ChannelID, limit int) ([]StoredMessage, error)

	// Statistics
	GetDatabaseStats() (string, error)
}

// DatabaseConfig holds configuration for database connections
type DatabaseConfig struct {
	Type     string // "sqlite", "pebble", "postgres" or "mysql"
	FilePath string // file, directory or connection string
}

// User is a registered account
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

// Session binds a bearer token to a user
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredMessage is a persisted chat message
type StoredMessage struct {
	ID        int64            `json:"id"`
	ChannelID shared.ChannelID `json:"channel_id"`
	UserID    int64            `json:"user_id"`
	Author    string           `json:"author"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
}

// ChatMessage converts the stored message to its wire form, with the
// timestamp on the UTC clock.
func (m StoredMessage) ChatMessage() shared.ChatMessage {
	return shared.ChatMessage{
		Author:    m.Author,
		Content:   m.Content,
		Timestamp: shared.FormatTimestamp(m.CreatedAt.UTC()),
	}
}
