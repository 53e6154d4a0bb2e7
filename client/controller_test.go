package main

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Cod-e-Codes/chatrooms/shared"
	"github.com/rs/zerolog"
)

type emitted struct {
	event   shared.EventType
	payload string
}

// fakeEmitter records events with their JSON payloads
type fakeEmitter struct {
	events []emitted
	err    error
	// failOn fails the call with that 1-based index when err is set
	failOn int
	calls  int
}

func (f *fakeEmitter) Emit(event shared.EventType, payload interface{}) error {
	f.calls++
	if f.err != nil && (f.failOn == 0 || f.failOn == f.calls) {
		return f.err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.events = append(f.events, emitted{event: event, payload: string(data)})
	return nil
}

var testChannels = []shared.Channel{
	{ID: 1, Name: "general"},
	{ID: 2, Name: " random "},
	{ID: 3, Name: "music"},
}

func newTestController(t *testing.T) (*Controller, *fakeEmitter) {
	t.Helper()
	c := NewController(testChannels, zerolog.Nop())
	e := &fakeEmitter{}
	c.SetEmitter(e)
	return c, e
}

func envelope(t *testing.T, event shared.EventType, payload interface{}) shared.Envelope {
	t.Helper()
	env, err := shared.NewEnvelope(event, payload)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func expectEvents(t *testing.T, got []emitted, want ...emitted) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d events %v, got %d %v", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestOnConnectSelectsFirstChannel(t *testing.T) {
	c, e := newTestController(t)
	if err := c.OnConnect(); err != nil {
		t.Fatal(err)
	}
	expectEvents(t, e.events, emitted{shared.EventJoinChannel, `{"channel_id":1}`})
	if id, ok := c.Current(); !ok || id != 1 {
		t.Errorf("expected current channel 1, got %d %v", id, ok)
	}
	if c.Header() != "# general" {
		t.Errorf("unexpected header %q", c.Header())
	}
	if c.ActiveIndex() != 0 {
		t.Errorf("expected first channel active, got %d", c.ActiveIndex())
	}
}

func TestOnConnectWithoutChannels(t *testing.T) {
	c := NewController(nil, zerolog.Nop())
	e := &fakeEmitter{}
	c.SetEmitter(e)
	if err := c.OnConnect(); err != nil {
		t.Fatal(err)
	}
	if len(e.events) != 0 {
		t.Errorf("expected no events, got %v", e.events)
	}
	if _, ok := c.Current(); ok {
		t.Error("no channel should be current")
	}
}

func TestReconnectRejoinsCurrentChannel(t *testing.T) {
	c, e := newTestController(t)
	_ = c.OnConnect()
	_ = c.SelectChannel(testChannels[2])

	fresh := &fakeEmitter{}
	c.SetEmitter(fresh)
	if err := c.OnConnect(); err != nil {
		t.Fatal(err)
	}
	expectEvents(t, fresh.events, emitted{shared.EventJoinChannel, `{"channel_id":3}`})
	if len(e.events) != 3 {
		t.Errorf("old socket should not see reconnect events, got %v", e.events)
	}
}

func TestSelectChannelLeavesPreviousFirst(t *testing.T) {
	c, e := newTestController(t)

	if err := c.SelectChannel(testChannels[0]); err != nil {
		t.Fatal(err)
	}
	if err := c.SelectChannel(testChannels[1]); err != nil {
		t.Fatal(err)
	}

	expectEvents(t, e.events,
		emitted{shared.EventJoinChannel, `{"channel_id":1}`},
		emitted{shared.EventLeaveChannel, `{"channel_id":1}`},
		emitted{shared.EventJoinChannel, `{"channel_id":2}`},
	)
	if c.Header() != "# random" {
		t.Errorf("header should hold the trimmed name, got %q", c.Header())
	}
	if c.ActiveIndex() != 1 {
		t.Errorf("expected second channel active, got %d", c.ActiveIndex())
	}
}

func TestSelectChannelWhileDisconnected(t *testing.T) {
	c := NewController(testChannels, zerolog.Nop())
	if err := c.SelectChannel(testChannels[0]); !errors.Is(err, errNotConnected) {
		t.Errorf("expected errNotConnected, got %v", err)
	}
	if _, ok := c.Current(); ok {
		t.Error("failed select should not change the current channel")
	}
}

func TestSelectOffsetWraps(t *testing.T) {
	c, e := newTestController(t)

	tests := []struct {
		delta int
		want  shared.ChannelID
	}{
		{1, 1},
		{1, 2},
		{1, 3},
		{1, 1},
		{-1, 3},
	}
	for i, tt := range tests {
		if err := c.SelectOffset(tt.delta); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if id, _ := c.Current(); id != tt.want {
			t.Errorf("step %d: expected channel %d, got %d", i, tt.want, id)
		}
	}
	if e.events[0].event != shared.EventJoinChannel {
		t.Errorf("first selection should only join, got %v", e.events[0])
	}
}

func TestSelectOffsetBackwardFromNothing(t *testing.T) {
	c, _ := newTestController(t)
	if err := c.SelectOffset(-1); err != nil {
		t.Fatal(err)
	}
	if id, _ := c.Current(); id != 3 {
		t.Errorf("expected last channel, got %d", id)
	}
}

func TestSendTrimsAndRequiresContent(t *testing.T) {
	c, e := newTestController(t)

	// No current channel yet
	if rest, _ := c.Send("hello"); rest != "hello" {
		t.Errorf("input should be kept without a channel, got %q", rest)
	}
	if len(e.events) != 0 {
		t.Fatalf("expected no events, got %v", e.events)
	}

	_ = c.OnConnect()
	e.events = nil

	for _, input := range []string{"", "   ", "\t\n"} {
		rest, err := c.Send(input)
		if err != nil {
			t.Fatal(err)
		}
		if rest != input {
			t.Errorf("whitespace input %q should be kept, got %q", input, rest)
		}
	}
	if len(e.events) != 0 {
		t.Fatalf("whitespace input emitted %v", e.events)
	}

	rest, err := c.Send("  hi there  ")
	if err != nil {
		t.Fatal(err)
	}
	if rest != "" {
		t.Errorf("input should be cleared after send, got %q", rest)
	}
	expectEvents(t, e.events, emitted{shared.EventSendMessage, `{"channel_id":1,"content":"hi there"}`})
}

func TestSendKeepsInputOnEmitError(t *testing.T) {
	c, e := newTestController(t)
	_ = c.OnConnect()
	e.err = errors.New("broken pipe")

	rest, err := c.Send("hello")
	if err == nil {
		t.Error("expected emit error")
	}
	if rest != "hello" {
		t.Errorf("input should be kept on failure, got %q", rest)
	}
}

func TestMessageHistoryReplacesItems(t *testing.T) {
	c, _ := newTestController(t)

	_ = c.HandleEvent(envelope(t, shared.EventStatus, shared.Status{Msg: "Admin has entered #general."}))
	_ = c.HandleEvent(envelope(t, shared.EventNewMessage, shared.ChatMessage{Author: "Admin", Content: "old", Timestamp: "01:00 PM"}))
	c.TakeScroll()

	hist := shared.MessageHistory{Messages: []shared.ChatMessage{
		{Author: "alice", Content: "one", Timestamp: "02:00 PM"},
		{Author: "bob", Content: "two", Timestamp: "02:01 PM"},
	}}
	if err := c.HandleEvent(envelope(t, shared.EventMessageHistory, hist)); err != nil {
		t.Fatal(err)
	}

	items := c.Items()
	if len(items) != 2 {
		t.Fatalf("expected history to replace items, got %d items", len(items))
	}
	if items[0].Message.Content != "one" || items[1].Message.Content != "two" {
		t.Errorf("history rendered out of order: %+v", items)
	}
	if !c.ScrolledToBottom() {
		t.Error("history should scroll to the bottom")
	}

	_ = c.HandleEvent(envelope(t, shared.EventMessageHistory, shared.MessageHistory{Messages: []shared.ChatMessage{}}))
	if len(c.Items()) != 0 {
		t.Errorf("empty history should clear items, got %v", c.Items())
	}
}

func TestNewMessageAppendsOneItem(t *testing.T) {
	c, _ := newTestController(t)
	_ = c.HandleEvent(envelope(t, shared.EventStatus, shared.Status{Msg: "joined"}))
	c.TakeScroll()

	msg := shared.ChatMessage{Author: "bob", Content: "hey", Timestamp: "03:07 PM"}
	if err := c.HandleEvent(envelope(t, shared.EventNewMessage, msg)); err != nil {
		t.Fatal(err)
	}

	items := c.Items()
	if len(items) != 2 {
		t.Fatalf("expected exactly one appended item, got %d", len(items))
	}
	if items[1].Kind != ItemMessage || items[1].Message != msg {
		t.Errorf("unexpected appended item %+v", items[1])
	}
	if !c.TakeScroll() {
		t.Error("new message should scroll to the bottom")
	}
	if c.ScrolledToBottom() {
		t.Error("TakeScroll should clear the marker")
	}
}

func TestStatusAppendsStatusItem(t *testing.T) {
	c, _ := newTestController(t)
	if err := c.HandleEvent(envelope(t, shared.EventStatus, shared.Status{Msg: "bob has left #general."})); err != nil {
		t.Fatal(err)
	}
	items := c.Items()
	if len(items) != 1 || items[0].Kind != ItemStatus || items[0].Status != "bob has left #general." {
		t.Errorf("unexpected items %+v", items)
	}
	if !c.ScrolledToBottom() {
		t.Error("status should scroll to the bottom")
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	c, _ := newTestController(t)
	if err := c.HandleEvent(envelope(t, shared.EventType("typing"), shared.Status{Msg: "x"})); err != nil {
		t.Errorf("unknown events should be ignored, got %v", err)
	}
	if len(c.Items()) != 0 || c.ScrolledToBottom() {
		t.Error("unknown event should not change the view")
	}
}

func TestModalVisibility(t *testing.T) {
	c, _ := newTestController(t)
	if c.ModalVisible() {
		t.Fatal("modal should start hidden")
	}

	c.OpenModal()
	if !c.ModalVisible() {
		t.Fatal("modal should be visible after open")
	}
	c.CloseModal()
	if c.ModalVisible() {
		t.Error("close button should hide the modal")
	}

	c.OpenModal()
	c.BackdropClick()
	if c.ModalVisible() {
		t.Error("backdrop click should hide the modal")
	}
}

func TestChannelCreatedRefreshesList(t *testing.T) {
	c, _ := newTestController(t)
	_ = c.OnConnect()
	c.OpenModal()

	updated := append(append([]shared.Channel(nil), testChannels...), shared.Channel{ID: 4, Name: "news"})
	c.ChannelCreated(updated)

	if c.ModalVisible() {
		t.Error("modal should close after submit")
	}
	if len(c.Channels()) != 4 || c.Channels()[3].Name != "news" {
		t.Errorf("channel list not refreshed: %v", c.Channels())
	}
	if id, _ := c.Current(); id != 1 || c.Header() != "# general" {
		t.Errorf("current channel should be kept, got %d %q", id, c.Header())
	}
}

func TestLastMessage(t *testing.T) {
	c, _ := newTestController(t)
	if _, ok := c.LastMessage(); ok {
		t.Error("expected no last message")
	}
	_ = c.HandleEvent(envelope(t, shared.EventNewMessage, shared.ChatMessage{Author: "bob", Content: "first"}))
	_ = c.HandleEvent(envelope(t, shared.EventStatus, shared.Status{Msg: "status"}))
	msg, ok := c.LastMessage()
	if !ok || msg.Content != "first" {
		t.Errorf("expected last chat message, got %+v %v", msg, ok)
	}
}

func TestSelectChannelJoinFailureForgetsLeftChannel(t *testing.T) {
	c, e := newTestController(t)
	if err := c.SelectChannel(testChannels[0]); err != nil {
		t.Fatal(err)
	}
	e.events, e.calls = nil, 0

	// leave succeeds, join fails
	e.err, e.failOn = errors.New("broken pipe"), 2
	if err := c.SelectChannel(testChannels[1]); err == nil {
		t.Fatal("expected join error")
	}
	if _, ok := c.Current(); ok {
		t.Error("no channel should be current after the join failed")
	}

	e.events, e.calls, e.err = nil, 0, nil
	if err := c.SelectChannel(testChannels[2]); err != nil {
		t.Fatal(err)
	}
	expectEvents(t, e.events, emitted{shared.EventJoinChannel, `{"channel_id":3}`})
}
