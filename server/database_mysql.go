package server

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Cod-e-Codes/chatrooms/shared"
	"github.com/go-sql-driver/mysql"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

// MySQLDB implements the Database interface for MySQL
type MySQLDB struct {
	db *sql.DB
}

// NewMySQLDB creates a new MySQL database instance
func NewMySQLDB() *MySQLDB {
	return &MySQLDB{}
}

// Open connects using config.FilePath as a go-sql-driver DSN such as
// "user:pass@tcp(localhost:3306)/chatrooms".
func (m *MySQLDB) Open(config DatabaseConfig) error {
	cfg, err := mysql.ParseDSN(config.FilePath)
	if err != nil {
		return fmt.Errorf("mysql: %w", err)
	}
	cfg.MultiStatements = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("mysql: %w", err)
	}

	m.db = db
	return nil
}

// Close closes the database connection
func (m *MySQLDB) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Ping tests the database connection
func (m *MySQLDB) Ping() error {
	return m.db.Ping()
}

// CreateSchema creates the database schema
func (m *MySQLDB) CreateSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token VARCHAR(64) PRIMARY KEY,
		user_id BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		INDEX idx_sessions_user (user_id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS channels (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		content TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		channel_id BIGINT NOT NULL,
		INDEX idx_messages_channel_created (channel_id, created_at),
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (channel_id) REFERENCES channels(id)
	);
	`

	_, err := m.db.Exec(schema)
	return err
}

// CreateUser inserts a new user, failing with ErrUserExists on a taken name
func (m *MySQLDB) CreateUser(username, passwordHash string) (User, error) {
	result, err := m.db.Exec(`INSERT INTO users (username, password_hash) VALUES (?, ?)`, username, passwordHash)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
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
func (m *MySQLDB) GetUserByID(id int64) (User, error) {
	var u User
	err := m.db.QueryRow(`SELECT id, username, password_hash FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetUserByUsername looks up a user by exact username. BINARY keeps the
// comparison case-sensitive under the default collation.
func (m *MySQLDB) GetUserByUsername(username string) (User, error) {
	var u User
	err := m.db.QueryRow(`SELECT id, username, password_hash FROM users WHERE username = BINARY ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// CountUsers returns the number of registered users
func (m *MySQLDB) CountUsers() (int, error) {
	var n int
	err := m.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// CreateSession stores a session token for a user
func (m *MySQLDB) CreateSession(token string, userID int64) error {
	_, err := m.db.Exec(`INSERT INTO sessions (token, user_id, created_at) VALUES (?, ?, ?)`,
		token, userID, time.Now().UnixNano())
	return err
}

// GetSession resolves a session token
func (m *MySQLDB) GetSession(token string) (Session, error) {
	var sess Session
	var createdAt int64
	err := m.db.QueryRow(`SELECT token, user_id, created_at FROM sessions WHERE token = ?`, token).
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
func (m *MySQLDB) DeleteSession(token string) error {
	_, err := m.db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// CreateChannel inserts a new channel
func (m *MySQLDB) CreateChannel(name string) (shared.Channel, error) {
	result, err := m.db.Exec(`INSERT INTO channels (name) VALUES (?)`, name)
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
func (m *MySQLDB) GetChannel(id shared.ChannelID) (shared.Channel, error) {
	var ch shared.Channel
	err := m.db.QueryRow(`SELECT id, name FROM channels WHERE id = ?`, int64(id)).Scan(&ch.ID, &ch.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return shared.Channel{}, ErrNotFound
	}
	return ch, err
}

// ListChannels returns every channel ordered by id
func (m *MySQLDB) ListChannels() ([]shared.Channel, error) {
	rows, err := m.db.Query(`SELECT id, name FROM channels ORDER BY id ASC`)
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
func (m *MySQLDB) InsertMessage(msg StoredMessage) (StoredMessage, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	result, err := m.db.Exec(`INSERT INTO messages (content, created_at, user_id, channel_id) VALUES (?, ?, ?, ?)`,
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
func (m *MySQLDB) GetChannelMessages(channelID shared.ChannelID, limit int) ([]StoredMessage, error) {
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
		) AS recent ORDER BY created_at ASC, id ASC`
		args = append(args, limit)
	}

	rows, err := m.db.Query(query, args...)
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
func (m *MySQLDB) GetDatabaseStats() (string, error) {
	var userCount, channelCount, messageCount int
	err := m.db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM channels),
		(SELECT COUNT(*) FROM messages)`).Scan(&userCount, &channelCount, &messageCount)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Users: %d, Channels: %d, Messages: %d", userCount, channelCount, messageCount), nil
}
