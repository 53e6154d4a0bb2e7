package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Cod-e-Codes/chatrooms/shared"
	"github.com/rs/zerolog"
)

// Emitter publishes one event to the server
type Emitter interface {
	Emit(event shared.EventType, payload interface{}) error
}

// errNotConnected is returned when an event is emitted with no socket
var errNotConnected = errors.New("not connected")

// ItemKind distinguishes rendered chat entries
type ItemKind int

const (
	ItemMessage ItemKind = iota
	ItemStatus
)

// Item is one rendered line of the chat pane
type Item struct {
	Kind    ItemKind
	Message shared.ChatMessage
	Status  string
}

// Controller binds user actions to socket events and keeps the state the
// view renders. It is driven from the Bubble Tea update loop only.
type Controller struct {
	emitter  Emitter
	log      zerolog.Logger
	channels []shared.Channel

	current    shared.ChannelID
	hasCurrent bool
	header     string

	items            []Item
	scrolledToBottom bool
	modalVisible     bool
}

// NewController creates a controller for the given channel list
func NewController(channels []shared.Channel, log zerolog.Logger) *Controller {
	c := &Controller{log: log}
	c.SetChannels(channels)
	return c
}

// SetEmitter swaps the socket events are sent on. nil means disconnected.
func (c *Controller) SetEmitter(e Emitter) {
	c.emitter = e
}

func (c *Controller) emit(event shared.EventType, payload interface{}) error {
	if c.emitter == nil {
		return errNotConnected
	}
	if err := c.emitter.Emit(event, payload); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// SetChannels replaces the channel list, keeping the current channel
func (c *Controller) SetChannels(channels []shared.Channel) {
	c.channels = append([]shared.Channel(nil), channels...)
	if ch, ok := c.channel(c.current); ok && c.hasCurrent {
		c.header = channelHeader(ch)
	}
}

// Channels returns the channel list in display order
func (c *Controller) Channels() []shared.Channel {
	return c.channels
}

func (c *Controller) channel(id shared.ChannelID) (shared.Channel, bool) {
	for _, ch := range c.channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return shared.Channel{}, false
}

// OnConnect runs after every successful socket handshake. The first
// connect selects the first channel. A reconnect re-joins the current one;
// the server dropped the old membership with the old socket.
func (c *Controller) OnConnect() error {
	if c.hasCurrent {
		return c.emit(shared.EventJoinChannel, shared.ChannelRef{ChannelID: c.current})
	}
	if len(c.channels) == 0 {
		return nil
	}
	return c.SelectChannel(c.channels[0])
}

// SelectChannel leaves the current channel, if any, and joins ch
func (c *Controller) SelectChannel(ch shared.Channel) error {
	if c.hasCurrent {
		if err := c.emit(shared.EventLeaveChannel, shared.ChannelRef{ChannelID: c.current}); err != nil {
			return err
		}
		// the server has left the room even if the join below fails
		c.hasCurrent = false
	}
	if err := c.emit(shared.EventJoinChannel, shared.ChannelRef{ChannelID: ch.ID}); err != nil {
		return err
	}
	c.current = ch.ID
	c.hasCurrent = true
	c.header = channelHeader(ch)
	return nil
}

// SelectOffset moves the selection delta places through the channel
// list, wrapping at either end.
func (c *Controller) SelectOffset(delta int) error {
	n := len(c.channels)
	if n == 0 {
		return nil
	}
	idx := c.ActiveIndex()
	if idx < 0 {
		idx = 0
		if delta > 0 {
			delta--
		}
	}
	next := ((idx+delta)%n + n) % n
	if c.hasCurrent && c.channels[next].ID == c.current {
		return nil
	}
	return c.SelectChannel(c.channels[next])
}

// ActiveIndex returns the index of the current channel, or -1
func (c *Controller) ActiveIndex() int {
	if !c.hasCurrent {
		return -1
	}
	for i, ch := range c.channels {
		if ch.ID == c.current {
			return i
		}
	}
	return -1
}

// Current returns the current channel id and whether one is selected
func (c *Controller) Current() (shared.ChannelID, bool) {
	return c.current, c.hasCurrent
}

// Header is the text shown above the chat pane
func (c *Controller) Header() string {
	return c.header
}

// Send emits the trimmed input to the current channel. It returns what
// the input line should hold afterwards: empty once sent, unchanged when
// nothing was sent.
func (c *Controller) Send(input string) (string, error) {
	content := strings.TrimSpace(input)
	if content == "" || !c.hasCurrent {
		return input, nil
	}
	if err := c.emit(shared.EventSendMessage, shared.SendMessage{ChannelID: c.current, Content: content}); err != nil {
		return input, err
	}
	return "", nil
}

// HandleEvent applies one server event to the rendered items
func (c *Controller) HandleEvent(env shared.Envelope) error {
	switch env.Type {
	case shared.EventMessageHistory:
		var hist shared.MessageHistory
		if err := env.Decode(&hist); err != nil {
			return err
		}
		c.items = c.items[:0]
		for _, msg := range hist.Messages {
			c.items = append(c.items, Item{Kind: ItemMessage, Message: msg})
		}
	case shared.EventNewMessage:
		var msg shared.ChatMessage
		if err := env.Decode(&msg); err != nil {
			return err
		}
		c.items = append(c.items, Item{Kind: ItemMessage, Message: msg})
	case shared.EventStatus:
		var st shared.Status
		if err := env.Decode(&st); err != nil {
			return err
		}
		c.items = append(c.items, Item{Kind: ItemStatus, Status: st.Msg})
	default:
		c.log.Warn().Str("type", string(env.Type)).Msg("ignoring unknown event")
		return nil
	}
	c.scrolledToBottom = true
	return nil
}

// Items returns the rendered chat entries in order
func (c *Controller) Items() []Item {
	return c.items
}

// LastMessage returns the newest chat message, if any
func (c *Controller) LastMessage() (shared.ChatMessage, bool) {
	for i := len(c.items) - 1; i >= 0; i-- {
		if c.items[i].Kind == ItemMessage {
			return c.items[i].Message, true
		}
	}
	return shared.ChatMessage{}, false
}

// TakeScroll reports whether the view should jump to the bottom and
// clears the marker.
func (c *Controller) TakeScroll() bool {
	s := c.scrolledToBottom
	c.scrolledToBottom = false
	return s
}

// ScrolledToBottom reports whether the last event asked to scroll down
func (c *Controller) ScrolledToBottom() bool {
	return c.scrolledToBottom
}

func (c *Controller) OpenModal() {
	c.modalVisible = true
}

func (c *Controller) CloseModal() {
	c.modalVisible = false
}

// BackdropClick closes the modal. Clicks inside the dialog never reach it.
func (c *Controller) BackdropClick() {
	c.modalVisible = false
}

// ModalVisible reports whether the create channel dialog is shown
func (c *Controller) ModalVisible() bool {
	return c.modalVisible
}

// ChannelCreated applies the list returned after submitting the dialog
func (c *Controller) ChannelCreated(channels []shared.Channel) {
	c.SetChannels(channels)
	c.CloseModal()
}

func channelHeader(ch shared.Channel) string {
	return "# " + strings.TrimSpace(ch.Name)
}
