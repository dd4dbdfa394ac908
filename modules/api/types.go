package api

import (
	domain "github.com/example/roomchat/domain/chat"
)

// Client frame types.
const (
	WSTypeCreate = "create"
	WSTypeJoin   = "join"
	WSTypeSend   = "send"
	WSTypeLeave  = "leave"
	WSTypeCopy   = "copy"
)

// Server frame types.
const (
	WSTypeConnected = "connected"
	WSTypeRoom      = "room"
	WSTypeSnapshot  = "snapshot"
	WSTypeSent      = "sent"
	WSTypeLeft      = "left"
	WSTypeCopied    = "copied"
	WSTypeToast     = "toast"
)

// Toast levels.
const (
	ToastError   = "error"
	ToastSuccess = "success"
)

// Toast texts not produced by the session.
const (
	MsgCodeCopied     = "Room code copied!"
	MsgCopyFailed     = "Failed to copy code"
	MsgInvalidMessage = "Invalid message format"
)

// ClientMessage is a frame sent by the browser.
type ClientMessage struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	RoomCode string `json:"room_code,omitempty"`
	Text     string `json:"text,omitempty"`
}

// ServerMessage is a frame sent to the browser.
type ServerMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	RoomCode  string          `json:"room_code,omitempty"`
	Username  string          `json:"username,omitempty"`
	Message   *domain.Message `json:"message,omitempty"`
	Toast     *Toast          `json:"toast,omitempty"`
}

// SnapshotMessage carries a room's full ordered log. Messages is always
// present, empty for a room without messages.
type SnapshotMessage struct {
	Type     string           `json:"type"`
	RoomCode string           `json:"room_code"`
	Messages []domain.Message `json:"messages"`
}

// Toast is a transient notification.
type Toast struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	TTLMs   int64  `json:"ttl_ms"`
}

// CreateRoomRequest is the API request to create a room.
type CreateRoomRequest struct {
	Username string `json:"username"`
}

// RoomResponse is the API response for a room.
type RoomResponse struct {
	Code      string `json:"code"`
	CreatedBy string `json:"created_by,omitempty"`
	Exists    bool   `json:"exists"`
}

// MessagesResponse is the API response for a room's message log.
type MessagesResponse struct {
	RoomCode string           `json:"room_code"`
	Messages []domain.Message `json:"messages"`
}

// CheckRequest is the API request to moderate a text.
type CheckRequest struct {
	Text string `json:"text"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
