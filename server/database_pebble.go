package server

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Cod-e-Codes/chatrooms/shared"
	"github.com/cockroachdb/pebble/v2"
)

// Key layout. Numeric ids are 8-byte big-endian so keys sort by id.
//
//	meta/seq/<kind>          last allocated id
//	user/<id>                User
//	username/<name>          user id
//	session/<token>          Session
//	channel/<id>             shared.Channel
//	msg/<channel id>/<id>    StoredMessage
const (
	prefixSeq      = "meta/seq/"
	prefixUser     = "user/"
	prefixUsername = "username/"
	prefixSession  = "session/"
	prefixChannel  = "channel/"
	prefixMessage  = "msg/"
)

// PebbleDB implements the Database interface on a PebbleDB key-value store
type PebbleDB struct {
	db     *pebble.DB
	mu     sync.Mutex // serializes id allocation and read-modify-write
	closed bool
}

// NewPebbleDB creates a new PebbleDB database instance
func NewPebbleDB() *PebbleDB {
	return &PebbleDB{}
}

// Open opens or creates the store in config.FilePath
func (p *PebbleDB) Open(config DatabaseConfig) error {
	if config.FilePath == "" {
		return fmt.Errorf("pebble: empty database path")
	}
	if err := os.MkdirAll(config.FilePath, 0o755); err != nil {
		return err
	}
	db, err := pebble.Open(filepath.Clean(config.FilePath), &pebble.Options{})
	if err != nil {
		return err
	}
	p.db = db
	return nil
}

// Close closes the store
func (p *PebbleDB) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil || p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

var errPebbleClosed = errors.New("pebble: database closed")

func (p *PebbleDB) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.db == nil || p.closed
}

// Ping reports whether the store is open and readable
func (p *PebbleDB) Ping() error {
	if p.isClosed() {
		return errPebbleClosed
	}
	_, err := p.get([]byte(prefixSeq + "users"))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// CreateSchema is a no-op, the key layout needs no setup
func (p *PebbleDB) CreateSchema() error {
	return nil
}

func idKey(prefix string, id int64) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(id))
	return key
}

func messageKey(channelID shared.ChannelID, id int64) []byte {
	key := idKey(prefixMessage, int64(channelID))
	key = append(key, '/')
	return binary.BigEndian.AppendUint64(key, uint64(id))
}

func messagePrefix(channelID shared.ChannelID) []byte {
	return append(idKey(prefixMessage, int64(channelID)), '/')
}

// prefixUpperBound returns the smallest key greater than every key with prefix
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (p *PebbleDB) get(key []byte) ([]byte, error) {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := append([]byte(nil), value...)
	return out, closer.Close()
}

func (p *PebbleDB) getJSON(key []byte, v interface{}) error {
	data, err := p.get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// nextID reads and bumps the counter for kind inside batch. Callers hold p.mu.
func (p *PebbleDB) nextID(batch *pebble.Batch, kind string) (int64, error) {
	key := []byte(prefixSeq + kind)
	var last uint64
	data, err := p.get(key)
	switch {
	case err == nil && len(data) == 8:
		last = binary.BigEndian.Uint64(data)
	case err != nil && !errors.Is(err, ErrNotFound):
		return 0, err
	}
	next := last + 1
	if err := batch.Set(key, binary.BigEndian.AppendUint64(nil, next), nil); err != nil {
		return 0, err
	}
	return int64(next), nil
}

// CreateUser stores a new user and its username index entry
func (p *PebbleDB) CreateUser(username, passwordHash string) (User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	nameKey := []byte(prefixUsername + username)
	if _, err := p.get(nameKey); err == nil {
		return User{}, ErrUserExists
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	id, err := p.nextID(batch, "users")
	if err != nil {
		return User{}, err
	}
	u := User{ID: id, Username: username, PasswordHash: passwordHash}
	data, err := json.Marshal(u)
	if err != nil {
		return User{}, err
	}
	if err := batch.Set(idKey(prefixUser, id), data, nil); err != nil {
		return User{}, err
	}
	if err := batch.Set(nameKey, binary.BigEndian.AppendUint64(nil, uint64(id)), nil); err != nil {
		return User{}, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUserByID looks up a user by id
func (p *PebbleDB) GetUserByID(id int64) (User, error) {
	var u User
	if err := p.getJSON(idKey(prefixUser, id), &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUserByUsername resolves the username index and loads the user
func (p *PebbleDB) GetUserByUsername(username string) (User, error) {
	data, err := p.get([]byte(prefixUsername + username))
	if err != nil {
		return User{}, err
	}
	if len(data) != 8 {
		return User{}, fmt.Errorf("pebble: corrupt username index for %q", username)
	}
	return p.GetUserByID(int64(binary.BigEndian.Uint64(data)))
}

// CountUsers counts user records
func (p *PebbleDB) CountUsers() (int, error) {
	return p.count([]byte(prefixUser))
}

func (p *PebbleDB) count(prefix []byte) (int, error) {
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return 0, err
	}
	defer func() { _ = it.Close() }()
	n := 0
	for it.First(); it.Valid(); it.Next() {
		n++
	}
	return n, nil
}

// CreateSession stores a session token for a user
func (p *PebbleDB) CreateSession(token string, userID int64) error {
	data, err := json.Marshal(Session{Token: token, UserID: userID, CreatedAt: time.Now()})
	if err != nil {
		return err
	}
	return p.db.Set([]byte(prefixSession+token), data, pebble.Sync)
}

// GetSession resolves a session token
func (p *PebbleDB) GetSession(token string) (Session, error) {
	var sess Session
	if err := p.getJSON([]byte(prefixSession+token), &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// DeleteSession revokes a session token
func (p *PebbleDB) DeleteSession(token string) error {
	return p.db.Delete([]byte(prefixSession+token), pebble.Sync)
}

// CreateChannel stores a new channel
func (p *PebbleDB) CreateChannel(name string) (shared.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	batch := p.db.NewBatch()
	defer batch.Close()

	id, err := p.nextID(batch, "channels")
	if err != nil {
		return shared.Channel{}, err
	}
	ch := shared.Channel{ID: shared.ChannelID(id), Name: name}
	data, err := json.Marshal(ch)
	if err != nil {
		return shared.Channel{}, err
	}
	if err := batch.Set(idKey(prefixChannel, id), data, nil); err != nil {
		return shared.Channel{}, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return shared.Channel{}, err
	}
	return ch, nil
}

// GetChannel looks up a channel by id
func (p *PebbleDB) GetChannel(id shared.ChannelID) (shared.Channel, error) {
	var ch shared.Channel
	if err := p.getJSON(idKey(prefixChannel, int64(id)), &ch); err != nil {
		return shared.Channel{}, err
	}
	return ch, nil
}

// ListChannels returns every channel ordered by id
func (p *PebbleDB) ListChannels() ([]shared.Channel, error) {
	prefix := []byte(prefixChannel)
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	channels := []shared.Channel{}
	for it.First(); it.Valid(); it.Next() {
		var ch shared.Channel
		if err := json.Unmarshal(it.Value(), &ch); err != nil {
			DatabaseLogger.Warn("skipping corrupt channel record", map[string]interface{}{"key": string(it.Key())})
			continue
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// InsertMessage stores a message under its channel
func (p *PebbleDB) InsertMessage(msg StoredMessage) (StoredMessage, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	batch := p.db.NewBatch()
	defer batch.Close()

	id, err := p.nextID(batch, "messages")
	if err != nil {
		return StoredMessage{}, err
	}
	msg.ID = id
	data, err := json.Marshal(msg)
	if err != nil {
		return StoredMessage{}, err
	}
	if err := batch.Set(messageKey(msg.ChannelID, id), data, nil); err != nil {
		return StoredMessage{}, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return StoredMessage{}, err
	}
	return msg, nil
}

// GetChannelMessages returns a channel's messages oldest first. Ids are
// allocated in insertion order, so key order is chronological.
func (p *PebbleDB) GetChannelMessages(channelID shared.ChannelID, limit int) ([]StoredMessage, error) {
	prefix := messagePrefix(channelID)
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	messages := []StoredMessage{}
	if limit > 0 {
		// Walk backwards from the newest entry and reverse afterwards
		for it.Last(); it.Valid() && len(messages) < limit; it.Prev() {
			var msg StoredMessage
			if err := json.Unmarshal(it.Value(), &msg); err == nil {
				messages = append(messages, msg)
			}
		}
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
		return messages, nil
	}

	for it.First(); it.Valid(); it.Next() {
		var msg StoredMessage
		if err := json.Unmarshal(it.Value(), &msg); err == nil {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// GetDatabaseStats returns database statistics
func (p *PebbleDB) GetDatabaseStats() (string, error) {
	if p.isClosed() {
		return "", errPebbleClosed
	}
	users, err := p.count([]byte(prefixUser))
	if err != nil {
		return "", err
	}
	channels, err := p.count([]byte(prefixChannel))
	if err != nil {
		return "", err
	}
	messages, err := p.count([]byte(prefixMessage))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Users: %d, Channels: %d, Messages: %d", users, channels, messages), nil
}
