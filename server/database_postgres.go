package server

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Cod-e-Codes/chatrooms/shared"
	"github.com/lib/pq"
)

// PostgresDB implements the Database interface for PostgreSQL
type PostgresDB struct {
	db *sql.DB
}

// NewPostgresDB creates a new PostgreSQL database instance
func NewPostgresDB() *PostgresDB {
	return &PostgresDB{}
}

// Open connects using config.FilePath as a lib/pq connection string,
// either a postgres:// URL or "host=... dbname=..." pairs.
func (p *PostgresDB) Open(config DatabaseConfig) error {
	if config.FilePath == "" {
		return fmt.Errorf("postgres: empty connection string")
	}
	db, err := sql.Open("postgres", config.FilePath)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("postgres: %w", err)
	}

	p.db = db
	return nil
}

// Close closes the database connection
func (p *PostgresDB) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (p *PostgresDB) Ping() error {
	return p.db.Ping()
}

// CreateSchema creates the database schema
func (p *PostgresDB) CreateSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		created_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS channels (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id BIGSERIAL PRIMARY KEY,
		content TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		user_id BIGINT NOT NULL REFERENCES users(id),
		channel_id BIGINT NOT NULL REFERENCES channels(id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_channel_created ON messages(channel_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	`

	_, err := p.db.Exec(schema)
	return err
}

// CreateUser inserts a new user, failing with ErrUserExists on a taken name
func (p *PostgresDB) CreateUser(username, passwordHash string) (User, error) {
	var id int64
	err := p.db.QueryRow(`INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id`,
		username, passwordHash).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return User{}, ErrUserExists
		}
		return User{}, err
	}
	return User{ID: id, Username: username, PasswordHash: passwordHash}, nil
}

// GetUserByID looks up a user by primary key
func (p *PostgresDB) GetUserByID(id int64) (User, error) {
	var u User
	err := p.db.QueryRow(`SELECT id, username, password_hash FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetUserByUsername looks up a user by exact username
func (p *PostgresDB) GetUserByUsername(username string) (User, error) {
	var u User
	err := p.db.QueryRow(`SELECT id, username, password_hash FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// CountUsers returns the number of registered users
func (p *PostgresDB) CountUsers() (int, error) {
	var n int
	err := p.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// CreateSession stores a session token for a user
func (p *PostgresDB) CreateSession(token string, userID int64) error {
	_, err := p.db.Exec(`INSERT INTO sessions (token, user_id, created_at) VALUES ($1, $2, $3)`,
		token, userID, time.Now().UnixNano())
	return err
}

// GetSession resolves a session token
func (p *PostgresDB) GetSession(token string) (Session, error) {
	var sess Session
	var createdAt int64
	err := p.db.QueryRow(`SELECT token, user_id, created_at FROM sessions WHERE token = $1`, token).
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
func (p *PostgresDB) DeleteSession(token string) error {
	_, err := p.db.Exec(`DELETE FROM sessions WHERE token = $1`, token)
	return err
}

// CreateChannel inserts a new channel
func (p *PostgresDB) CreateChannel(name string) (shared.Channel, error) {
	var id int64
	if err := p.db.QueryRow(`INSERT INTO channels (name) VALUES ($1) RETURNING id`, name).Scan(&id); err != nil {
		return shared.Channel{}, err
	}
	return shared.Channel{ID: shared.ChannelID(id), Name: name}, nil
}

// GetChannel looks up a channel by id
func (p *PostgresDB) GetChannel(id shared.ChannelID) (shared.Channel, error) {
	var ch shared.Channel
	err := p.db.QueryRow(`SELECT id, name FROM channels WHERE id = $1`, int64(id)).Scan(&ch.ID, &ch.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return shared.Channel{}, ErrNotFound
	}
	return ch, err
}

// ListChannels returns every channel ordered by id
func (p *PostgresDB) ListChannels() ([]shared.Channel, error) {
	rows, err := p.db.Query(`SELECT id, name FROM channels ORDER BY id ASC`)
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
func (p *PostgresDB) InsertMessage(msg StoredMessage) (StoredMessage, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	err := p.db.QueryRow(`INSERT INTO messages (content, created_at, user_id, channel_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		msg.Content, msg.CreatedAt.UnixNano(), msg.UserID, int64(msg.ChannelID)).Scan(&msg.ID)
	if err != nil {
		return StoredMessage{}, err
	}
	return msg, nil
}

// GetChannelMessages returns a channel's messages oldest first
func (p *PostgresDB) GetChannelMessages(channelID shared.ChannelID, limit int) ([]StoredMessage, error) {
	query := `
	SELECT m.id, m.channel_id, m.user_id, u.username, m.content, m.created_at
	FROM messages m JOIN users u ON u.id = m.user_id
	WHERE m.channel_id = $1
	ORDER BY m.created_at ASC, m.id ASC`
	args := []interface{}{int64(channelID)}
	if limit > 0 {
		query = `
		SELECT * FROM (
			SELECT m.id, m.channel_id, m.user_id, u.username, m.content, m.created_at
			FROM messages m JOIN users u ON u.id = m.user_id
			WHERE m.channel_id = $1
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT $2
		) recent ORDER BY created_at ASC, id ASC`
		args = append(args, limit)
	}

	rows, err := p.db.Query(query, args...)
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
func (p *PostgresDB) GetDatabaseStats() (string, error) {
	var userCount, channelCount, messageCount int
	err := p.db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM channels),
		(SELECT COUNT(*) FROM messages)`).Scan(&userCount, &channelCount, &messageCount)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Users: %d, Channels: %d, Messages: %d", userCount, channelCount, messageCount), nil
}
