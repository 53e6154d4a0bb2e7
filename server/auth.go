package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or wrong password
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidUsername is returned when a username contains markup
	ErrInvalidUsername = errors.New("username contains invalid characters")
)

// Authenticator registers users and issues session tokens
type Authenticator struct {
	db   Database
	cost int
}

// NewAuthenticator creates an authenticator using bcrypt's default cost
func NewAuthenticator(db Database) *Authenticator {
	return &Authenticator{db: db, cost: bcrypt.DefaultCost}
}

// Register creates a user with a hashed password
func (a *Authenticator) Register(username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, fmt.Errorf("username and password are required")
	}
	if !ValidUsername(username) {
		return User{}, ErrInvalidUsername
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	return a.db.CreateUser(username, string(hash))
}

// Login checks the password and opens a new session
func (a *Authenticator) Login(username, password string) (string, User, error) {
	user, err := a.db.GetUserByUsername(strings.TrimSpace(username))
	if errors.Is(err, ErrNotFound) {
		return "", User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", User{}, ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := a.db.CreateSession(token, user.ID); err != nil {
		return "", User{}, fmt.Errorf("create session: %w", err)
	}
	return token, user, nil
}

// Authenticate resolves a session token to its user
func (a *Authenticator) Authenticate(token string) (User, error) {
	if token == "" {
		return User{}, ErrNotFound
	}
	sess, err := a.db.GetSession(token)
	if err != nil {
		return User{}, err
	}
	return a.db.GetUserByID(sess.UserID)
}

// Logout revokes a session token
func (a *Authenticator) Logout(token string) error {
	return a.db.DeleteSession(token)
}

// bearerToken extracts the token from an "Authorization: Bearer" header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// SeedDefaults creates the first admin user and default channel on an
// empty database.
func SeedDefaults(db Database, auth *Authenticator, adminUser, adminPassword, defaultChannel string) error {
	users, err := db.CountUsers()
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if users == 0 {
		if _, err := auth.Register(adminUser, adminPassword); err != nil {
			return fmt.Errorf("seed admin user: %w", err)
		}
		DatabaseLogger.Info("Seeded admin user", map[string]interface{}{"username": adminUser})
	}

	channels, err := db.ListChannels()
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	if len(channels) == 0 && defaultChannel != "" {
		if _, err := db.CreateChannel(defaultChannel); err != nil {
			return fmt.Errorf("seed default channel: %w", err)
		}
		DatabaseLogger.Info("Seeded default channel", map[string]interface{}{"channel": defaultChannel})
	}
	return nil
}
