// Package relay is the coordinating state machine of the chat server. One
// dispatch function consumes the inbound event union and fans results out
// to the audience computed from room membership and presence. The engine is
// the sole writer of the message store and the presence registry.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"walkie/internal/content"
	"walkie/internal/models"
	"walkie/internal/presence"
	"walkie/internal/rooms"
	"walkie/internal/storage"

	"github.com/google/uuid"
)

// MessageStore is the durable message log.
type MessageStore interface {
	AppendMessage(message models.Message) error
	ListMessages(room string) ([]models.Message, error)
	DeleteMessage(messageID string) error
	ClearMessages() error
}

// Transport delivers server events to live connections. The engine computes
// audiences itself; the transport only addresses individual connections or
// everyone.
type Transport interface {
	Send(connID string, ev models.ServerEvent)
	SendAll(ev models.ServerEvent)
}

// BellNotifier receives the bell out-of-band (Web Push). Implementations
// must not block.
type BellNotifier interface {
	Ring(from string)
}

type Config struct {
	Store    MessageStore
	Presence *presence.Registry
	Rooms    *rooms.Manager
	Notifier BellNotifier // optional
	Logger   *slog.Logger // optional
}

// Engine dispatches inbound client events. Mutating events are serialized
// under one mutex so store and presence writes never interleave; reads
// (history, snapshots, audience) take the components' own read locks.
type Engine struct {
	store     MessageStore
	presence  *presence.Registry
	rooms     *rooms.Manager
	transport Transport
	notifier  BellNotifier
	log       *slog.Logger

	mu    sync.Mutex
	newID func() string
	now   func() time.Time
}

func NewEngine(cfg Config, transport Transport) *Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:     cfg.Store,
		presence:  cfg.Presence,
		rooms:     cfg.Rooms,
		transport: transport,
		notifier:  cfg.Notifier,
		log:       log,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// Connect registers a new connection, a member of the default room only.
func (e *Engine) Connect(connID string) {
	e.rooms.Register(connID)
}

// Disconnect releases the connection's presence entry and room membership
// and broadcasts the updated presence snapshot.
func (e *Engine) Disconnect(connID string) {
	e.mu.Lock()
	e.presence.OnDisconnect(connID)
	e.rooms.Unregister(connID)
	e.mu.Unlock()

	e.broadcastPresence()
}

// Dispatch handles one inbound event from the connection. Failures never
// escape: validation problems are echoed to the sender only, persistence
// problems are logged, idempotent no-ops are absorbed.
func (e *Engine) Dispatch(connID string, ev models.ClientEvent) {
	var err error
	switch ev.Event {
	case models.EventUserLogin:
		err = e.handleLogin(connID, ev.Data)
	case models.EventJoinRoom:
		err = e.handleJoinRoom(connID, ev.Data)
	case models.EventLeaveRoom:
		err = e.handleLeaveRoom(connID, ev.Data)
	case models.EventNewMessage:
		err = e.handleNewMessage(connID, ev.Data)
	case models.EventDeleteMessage:
		err = e.handleDeleteMessage(connID, ev.Data)
	case models.EventBell:
		e.handleBell(connID)
	default:
		err = &ValidationError{Reason: fmt.Sprintf("unknown event %q", ev.Event)}
	}

	if err == nil {
		return
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		e.log.Debug("event rejected", "conn_id", connID, "event", ev.Event, "reason", vErr.Reason)
		e.transport.Send(connID, models.ServerEvent{
			Event: models.EventSystemMessage,
			Data:  models.SystemNotice{Message: vErr.Reason},
		})
		return
	}

	e.log.Error("event failed", "conn_id", connID, "event", ev.Event, "error", err)
}

func (e *Engine) handleLogin(connID string, data json.RawMessage) error {
	var payload models.LoginPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return &ValidationError{Reason: "malformed userLogin payload"}
	}

	username := content.Strip(payload.Username)
	if username == "" {
		return &ValidationError{Reason: "userLogin requires a username"}
	}
	loginTime := payload.Time
	if loginTime == "" {
		loginTime = e.now().UTC().Format(time.RFC3339)
	}

	e.mu.Lock()
	e.presence.OnLogin(connID, username, loginTime)
	e.mu.Unlock()

	e.broadcastPresence()
	return nil
}

func (e *Engine) handleJoinRoom(connID string, data json.RawMessage) error {
	var payload models.RoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return &ValidationError{Reason: "malformed joinRoom payload"}
	}

	room := content.Strip(payload.Room)
	if room == "" {
		return &ValidationError{Reason: "joinRoom requires a room code"}
	}

	e.rooms.Join(connID, room)

	// The client reloads history for the new room over the HTTP read path
	// after this notice.
	e.transport.Send(connID, models.ServerEvent{
		Event: models.EventSystemMessage,
		Data: models.SystemNotice{
			Message: fmt.Sprintf("You have joined room: %s.", room),
			Room:    room,
		},
	})
	return nil
}

func (e *Engine) handleLeaveRoom(connID string, data json.RawMessage) error {
	var payload models.RoomPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return &ValidationError{Reason: "malformed leaveRoom payload"}
	}

	// Leaving a room the connection is not in is an idempotent no-op.
	if !e.rooms.Leave(connID, payload.Room) {
		return nil
	}

	e.transport.Send(connID, models.ServerEvent{
		Event: models.EventSystemMessage,
		Data: models.SystemNotice{
			Message: fmt.Sprintf("You left room: %s. Now in Global Chat.", payload.Room),
			Room:    models.DefaultRoom,
		},
	})
	return nil
}

func (e *Engine) handleNewMessage(connID string, data json.RawMessage) error {
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return &ValidationError{Reason: "malformed newMessage payload"}
	}

	if msg.Room == "" {
		msg.Room = models.DefaultRoom
	}
	if msg.Username == "" {
		return &ValidationError{Reason: "newMessage requires a username"}
	}
	msg.Text = content.Sanitize(msg.Text)
	if msg.Text == "" && msg.File == nil {
		return &ValidationError{Reason: "newMessage requires text or a file"}
	}

	// Senders may only address the room they actually occupy.
	if !e.rooms.IsMember(connID, msg.Room) {
		return &ValidationError{Reason: fmt.Sprintf("not a member of room %s", msg.Room)}
	}

	_, err := e.relayMessage(msg)
	return err
}

// SubmitFile is the upload collaborator's entry point: the descriptor is
// relayed exactly as a newMessage with a file payload. Identity is the
// session's username, already validated by the HTTP layer.
func (e *Engine) SubmitFile(username, color, room string, file models.FileInfo) (models.Message, error) {
	if username == "" {
		return models.Message{}, &ValidationError{Reason: "upload requires a logged-in user"}
	}
	if room == "" {
		room = models.DefaultRoom
	}

	return e.relayMessage(models.Message{
		Username: username,
		Room:     room,
		Color:    color,
		File:     &file,
	})
}

// relayMessage assigns id and timestamp, persists, and broadcasts to the
// room. The finalized message is returned so callers can echo it back.
// Persistence failure is reported to the caller but never suppresses the
// live broadcast.
func (e *Engine) relayMessage(msg models.Message) (models.Message, error) {
	if msg.MessageID == "" {
		msg.MessageID = e.newID()
	}
	if msg.Time == "" {
		msg.Time = e.now().UTC().Format(time.RFC3339)
	}

	e.mu.Lock()
	err := e.store.AppendMessage(msg)
	e.mu.Unlock()

	if errors.Is(err, storage.ErrDuplicateID) {
		// A replayed id must not produce a second broadcast.
		return msg, &ValidationError{Reason: fmt.Sprintf("duplicate messageId %s", msg.MessageID)}
	}

	e.rooms.Touch(msg.Room)
	e.broadcastToRoom(msg.Room, models.ServerEvent{
		Event: models.EventBroadcastMessage,
		Data:  msg,
	})

	if err != nil {
		return msg, &PersistenceError{Op: "append", Err: err}
	}
	return msg, nil
}

func (e *Engine) handleDeleteMessage(connID string, data json.RawMessage) error {
	var payload models.DeletePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return &ValidationError{Reason: "malformed deleteMessage payload"}
	}
	if payload.MessageID == "" {
		return &ValidationError{Reason: "deleteMessage requires a messageId"}
	}
	if payload.Room == "" {
		payload.Room = models.DefaultRoom
	}
	if !e.rooms.IsMember(connID, payload.Room) {
		return &ValidationError{Reason: fmt.Sprintf("not a member of room %s", payload.Room)}
	}

	e.mu.Lock()
	err := e.store.DeleteMessage(payload.MessageID)
	e.mu.Unlock()

	// Deletion is idempotent and the notice is sent either way; a store
	// failure is logged but the room still hears about the deletion.
	e.broadcastToRoom(payload.Room, models.ServerEvent{
		Event: models.EventDeleteMessage,
		Data:  models.DeletePayload{MessageID: payload.MessageID},
	})

	if err != nil {
		return &PersistenceError{Op: "delete", Err: err}
	}
	return nil
}

// handleBell rings every connected client regardless of room. The bell is
// an attention signal, not room-scoped.
func (e *Engine) handleBell(connID string) {
	e.transport.SendAll(models.ServerEvent{Event: models.EventRingBell})

	if e.notifier != nil {
		from, _ := e.presence.Username(connID)
		e.notifier.Ring(from)
	}
}

// History returns the room's stored messages in insertion order, the read
// path used after a room transition.
func (e *Engine) History(room string) ([]models.Message, error) {
	if room == "" {
		room = models.DefaultRoom
	}
	msgs, err := e.store.ListMessages(room)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return msgs, nil
}

// ClearAll empties the whole message log, every room's history included.
func (e *Engine) ClearAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.ClearMessages(); err != nil {
		return &PersistenceError{Op: "clear", Err: err}
	}
	return nil
}

// Snapshot returns the current presence list.
func (e *Engine) Snapshot() []models.OnlineUser {
	return e.presence.Snapshot()
}

func (e *Engine) broadcastPresence() {
	e.transport.SendAll(models.ServerEvent{
		Event: models.EventUpdateOnlineUsers,
		Data:  e.presence.Snapshot(),
	})
}

func (e *Engine) broadcastToRoom(room string, ev models.ServerEvent) {
	for _, connID := range e.rooms.MembersOf(room) {
		e.transport.Send(connID, ev)
	}
}
