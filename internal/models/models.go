package models

import (
	"encoding/json"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
)

// DefaultRoom is the implicit room every connection starts in and returns
// to after leaving an ad-hoc room.
const DefaultRoom = "public"

// FileInfo describes an uploaded attachment as stored by the upload
// collaborator. Path is the URL path the file is served from.
type FileInfo struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Mimetype string `json:"mimetype"`
}

// Message is a single chat message. Immutable once broadcast: MessageID and
// Room never change, deletion removes the record rather than mutating it.
// Exactly one of Text or File is set.
type Message struct {
	MessageID string    `json:"messageId"`
	Username  string    `json:"username"`
	Room      string    `json:"room"`
	Time      string    `json:"time"` // ISO-8601, origin-assigned
	Color     string    `json:"color,omitempty"`
	Text      string    `json:"text,omitempty"`
	File      *FileInfo `json:"file,omitempty"`
}

// OnlineUser is one entry of the presence snapshot.
type OnlineUser struct {
	Username string `json:"username"`
	Time     string `json:"time"`
}

// Client-originated event names.
const (
	EventUserLogin     = "userLogin"
	EventJoinRoom      = "joinRoom"
	EventLeaveRoom     = "leaveRoom"
	EventNewMessage    = "newMessage"
	EventDeleteMessage = "deleteMessage"
	EventBell          = "bell"
)

// Server-originated event names.
const (
	EventBroadcastMessage  = "broadcastMessage"
	EventSystemMessage     = "systemMessage"
	EventUpdateOnlineUsers = "updateOnlineUsers"
	EventRingBell          = "ringBell"
)

// ClientEvent is the inbound event envelope: one tagged union over all
// client event kinds, decoded per kind by the relay engine.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is the outbound event envelope.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// APIResponse is the generic HTTP API response envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// LoginPayload is the data of a userLogin event.
type LoginPayload struct {
	Username string `json:"username"`
	Time     string `json:"time"`
}

// RoomPayload is the data of joinRoom and leaveRoom events.
type RoomPayload struct {
	Room string `json:"room"`
}

// DeletePayload is the data of a deleteMessage event. The same shape is
// broadcast back as the deletion notice.
type DeletePayload struct {
	MessageID string `json:"messageId"`
	Room      string `json:"room,omitempty"`
}

// SystemNotice is the data of a systemMessage event, sent to a single
// connection on room transitions and rejected events.
type SystemNotice struct {
	Message string `json:"message"`
	Room    string `json:"room,omitempty"`
}
