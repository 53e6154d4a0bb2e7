package server

import (
	"fmt"
	"sync"

	"github.com/Cod-e-Codes/chatrooms/shared"
)

// RoomName is the room a channel's members are joined to
func RoomName(id shared.ChannelID) string {
	return fmt.Sprintf("channel_%d", id)
}

// membership is a register, unregister, join or leave request. Run closes
// done once the change is applied.
type membership struct {
	client  *Client
	channel shared.ChannelID
	done    chan struct{}
}

// delivery targets either a single client or every member of a room
type delivery struct {
	to      *Client
	channel shared.ChannelID
	env     shared.Envelope
}

// Hub owns the connected clients and room membership. All mutation happens
// on the Run goroutine. Register, Unregister, Join and Leave return after
// Run has applied them, so ClientCount and RoomMembers observe the change.
// Deliveries are unbuffered and applied in submission order.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	rooms      map[shared.ChannelID]map[*Client]bool
	register   chan membership
	unregister chan membership
	join       chan membership
	leave      chan membership
	broadcast  chan delivery
	quit       chan struct{}
	stopOnce   sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[shared.ChannelID]map[*Client]bool),
		register:   make(chan membership),
		unregister: make(chan membership),
		join:       make(chan membership),
		leave:      make(chan membership),
		broadcast:  make(chan delivery),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case m := <-h.register:
			h.mu.Lock()
			h.clients[m.client] = true
			h.mu.Unlock()
			close(m.done)
			HubLogger.WithUser(m.client.user.Username).Info("Client registered")
		case m := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[m.client]
			if ok {
				h.dropLocked(m.client)
			}
			h.mu.Unlock()
			close(m.done)
			if ok {
				HubLogger.WithUser(m.client.user.Username).Info("Client unregistered")
			}
		case m := <-h.join:
			h.mu.Lock()
			if h.clients[m.client] {
				members, ok := h.rooms[m.channel]
				if !ok {
					members = make(map[*Client]bool)
					h.rooms[m.channel] = members
				}
				members[m.client] = true
				m.client.rooms[m.channel] = true
			}
			h.mu.Unlock()
			close(m.done)
		case m := <-h.leave:
			h.mu.Lock()
			h.leaveLocked(m.client, m.channel)
			h.mu.Unlock()
			close(m.done)
		case d := <-h.broadcast:
			h.mu.Lock()
			if d.to != nil {
				if h.clients[d.to] {
					h.deliverLocked(d.to, d.env)
				}
			} else {
				for client := range h.rooms[d.channel] {
					h.deliverLocked(client, d.env)
				}
			}
			h.mu.Unlock()
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				h.dropLocked(client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts the hub down and closes every client's send channel
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

func (h *Hub) deliverLocked(client *Client, env shared.Envelope) {
	select {
	case client.send <- env:
	default:
		HubLogger.WithUser(client.user.Username).Warn("Dropping client due to full send channel")
		h.dropLocked(client)
	}
}

func (h *Hub) dropLocked(client *Client) {
	for channel := range client.rooms {
		h.leaveLocked(client, channel)
	}
	delete(h.clients, client)
	close(client.send)
}

func (h *Hub) leaveLocked(client *Client, channel shared.ChannelID) {
	if members, ok := h.rooms[channel]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, channel)
		}
	}
	delete(client.rooms, channel)
}

// apply hands m to Run and waits until it has been applied or the hub stops
func (h *Hub) apply(ops chan<- membership, client *Client, channel shared.ChannelID) {
	m := membership{client: client, channel: channel, done: make(chan struct{})}
	select {
	case ops <- m:
	case <-h.quit:
		return
	}
	select {
	case <-m.done:
	case <-h.quit:
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.apply(h.register, client, 0)
}

// Unregister removes a client from the hub and every room
func (h *Hub) Unregister(client *Client) {
	h.apply(h.unregister, client, 0)
}

// Join adds a client to a channel's room
func (h *Hub) Join(client *Client, channel shared.ChannelID) {
	h.apply(h.join, client, channel)
}

// Leave removes a client from a channel's room
func (h *Hub) Leave(client *Client, channel shared.ChannelID) {
	h.apply(h.leave, client, channel)
}

// BroadcastToRoom queues env for every current member of channel
func (h *Hub) BroadcastToRoom(channel shared.ChannelID, env shared.Envelope) {
	select {
	case h.broadcast <- delivery{channel: channel, env: env}:
	case <-h.quit:
	}
}

// SendTo queues env for a single client
func (h *Hub) SendTo(client *Client, env shared.Envelope) {
	select {
	case h.broadcast <- delivery{to: client, env: env}:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomMembers returns the usernames joined to a channel's room
func (h *Hub) RoomMembers(channel shared.ChannelID) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.rooms[channel]))
	for client := range h.rooms[channel] {
		names = append(names, client.user.Username)
	}
	return names
}
