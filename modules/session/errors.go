package session

import (
	"errors"
)

// Kind classifies a failed session action.
type Kind int

// Failure kinds.
const (
	// KindValidation is an empty or out-of-range input, rejected before any I/O.
	KindValidation Kind = iota + 1
	// KindModerationBlocked means the moderation gate rejected the text.
	KindModerationBlocked
	// KindNotFound means the requested room does not exist.
	KindNotFound
	// KindInvalidState means the action is not allowed in the current state.
	KindInvalidState
	// KindStore is a store failure on create, join or send.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindModerationBlocked:
		return "moderation_blocked"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// User-visible messages, one per failed action.
const (
	MsgUsernameRequired        = "Username required"
	MsgInvalidUsername         = "Invalid username"
	MsgCreateFailed            = "Failed to create room"
	MsgUsernameAndCodeRequired = "Username and room code required"
	MsgRoomNotFound            = "Room not found"
	MsgJoinFailed              = "Failed to join room"
	MsgMessageRequired         = "Message required"
	MsgMessageLength           = "Message must be 2-300 characters"
	MsgMessageBlocked          = "Message blocked"
	MsgSendFailed              = "Failed to send message"
	MsgJoinFirst               = "Join a room first"
	MsgLeaveFirst              = "Leave the current room first"
	MsgSessionClosed           = "Session closed"
)

// Error is the outcome of a rejected or failed session action.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of a session error, or 0 for other errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// UserMessage returns the message to show the user for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong"
}
