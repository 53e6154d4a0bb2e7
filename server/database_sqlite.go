package server

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Cod-e-Codes/chatrooms/shared"
	_ "modernc.org/sqlite"
)

// SQLiteDB implements the Database interface for SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database instance
func NewSQLiteDB() *SQLiteDB {
	return &SQLiteDB{}
}

// Open establishes a connection to the SQLite database
func (s *SQLiteDB) Open(config DatabaseConfig) error {
	db, err := sql.Open("sqlite", config.FilePath)
	if err != nil {
		return err
	}

	// Every pooled connection to :memory: would get its own database
	if config.FilePath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return fmt.Errorf("failed to enable WAL: %w", err)
	}

	_, _ = db.Exec("PRAGMA synchronous=NORMAL;")
	_, _ = db.Exec("PRAGMA foreign_keys=ON;")
	_, _ = db.Exec("PRAGMA busy_timeout=5000;")

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (s *SQLiteDB) Ping() error {
	return s.db.Ping()
}

// CreateSchema creates the database schema
func (s *SQLiteDB) CreateSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id),
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS channels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id),
		channel_id INTEGER NOT NULL REFERENCES channels(id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_channel_created ON messages(channel_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateUser inserts a new user, failing with ErrUserExists on a taken name
func (s *SQLiteDB) CreateUser(username, passwordHash string) (User, error) {
	if _, err := s.GetUserByUsername(username); err == nil {
		return User{}, ErrUserExists
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	result, err := s.db.Exec(`INSERT INTO users (username, password_hash) VALUES (?, ?)`, username, passwordHash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return User{}, ErrUserExists
		}
		return User{}, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return User{}, err
	}
	return User{ID: id, Username: username, PasswordHash: passwordHash}, nil
}

// GetUserByID looks up a user by primary key
func (s *SQLiteDB) GetUserByID(id int64) (User, error) {
	var u User
	err := s.db.QueryRow(`SELECT id, username, password_hash FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetUserByUsername looks up a user by exact username
func (s *SQLiteDB) GetUserByUsername(username string) (User, error) {
	var u User
	err := s.db.QueryRow(`SELECT id, username, password_hash FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// CountUsers returns the number of registered users
func (s *SQLiteDB) CountUsers() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// CreateSession stores a session token for a user
func (s *SQLiteDB) CreateSession(token string, userID int64) error {
	_, err := s.db.Exec(`INSERT INTO sessions (token, user_id, created_at) VALUES (?, ?, ?)`,
		token, userID, time.Now().UnixNano())
	return err
}

// GetSession resolves a session token
func (s *SQLiteDB) GetSession(token string) (Session, error) {
	var sess Session
	var createdAt int64
	err := s.db.QueryRow(`SELECT token, user_id, created_at FROM sessions WHERE token = ?`, token).
		Scan(&sess.Token, &sess.UserID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	sess.CreatedAt = time.Unix(0, createdAt)
	return sess, nil
}

// DeleteSession revokes a session token
func (s *SQLiteDB) DeleteSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// CreateChannel inserts a new channel
func (s *SQLiteDB) CreateChannel(name string) (shared.Channel, error) {
	result, err := s.db.Exec(`INSERT INTO channels (name) VALUES (?)`, name)
	if err != nil {
		return shared.Channel{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return shared.Channel{}, err
	}
	return shared.Channel{ID: shared.ChannelID(id), Name: name}, nil
}

// GetChannel looks up a channel by id
func (s *SQLiteDB) GetChannel(id shared.ChannelID) (shared.Channel, error) {
	var ch shared.Channel
	err := s.db.QueryRow(`SELECT id, name FROM channels WHERE id = ?`, int64(id)).Scan(&ch.ID, &ch.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return shared.Channel{}, ErrNotFound
	}
	return ch, err
}

// ListChannels returns every channel ordered by id
func (s *SQLiteDB) ListChannels() ([]shared.Channel, error) {
	rows, err := s.db.Query(`SELECT id, name FROM channels ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := []shared.Channel{}
	for rows.Next() {
		var ch shared.Channel
		if err := rows.Scan(&ch.ID, &ch.Name); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// InsertMessage persists a message and returns it with its id set
func (s *SQLiteDB) InsertMessage(msg StoredMessage) (StoredMessage, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	result, err := s.db.Exec(`INSERT INTO messages (content, created_at, user_id, channel_id) VALUES (?, ?, ?, ?)`,
		msg.Content, msg.CreatedAt.UnixNano(), msg.UserID, int64(msg.ChannelID))
	if err != nil {
		return StoredMessage{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return StoredMessage{}, err
	}
	msg.ID = id
	return msg, nil
}

// GetChannelMessages returns a channel's messages oldest first
func (s *SQLiteDB) GetChannelMessages(channelID shared.ChannelID, limit int) ([]StoredMessage, error) {
	query := `
	SELECT m.id, m.channel_id, m.user_id, u.username, m.content, m.created_at
	FROM messages m JOIN users u ON u.id = m.user_id
	WHERE m.channel_id = ?
	ORDER BY m.created_at ASC, m.id ASC`
	args := []interface{}{int64(channelID)}
	if limit > 0 {
		query = `
		SELECT * FROM (
			SELECT m.id, m.channel_id, m.user_id, u.username, m.content, m.created_at
			FROM messages m JOIN users u ON u.id = m.user_id
			WHERE m.channel_id = ?
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT ?
		) ORDER BY created_at ASC, id ASC`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []StoredMessage{}
	for rows.Next() {
		var msg StoredMessage
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.UserID, &msg.Author, &msg.Content, &createdAt); err != nil {
			return nil, err
		}
		msg.CreatedAt = time.Unix(0, createdAt)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// GetDatabaseStats returns database statistics
func (s *SQLiteDB) GetDatabaseStats() (string, error) {
	var userCount, channelCount, messageCount int

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&userCount); err != nil {
		return "", err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM channels`).Scan(&channelCount); err != nil {
		return "", err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&messageCount); err != nil {
		return "", err
	}

	return fmt.Sprintf("Users: %d, Channels: %d, Messages: %d", userCount, channelCount, messageCount), nil
}
