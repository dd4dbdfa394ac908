package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessageSentEvent is emitted after a message has been stored.
type MessageSentEvent struct {
	MessageID string    `json:"message_id"`
	RoomCode  string    `json:"room_code"`
	Author    string    `json:"author"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomCreatedEvent is emitted when a room is created or overwritten.
type RoomCreatedEvent struct {
	RoomCode  string    `json:"room_code"`
	CreatedBy string    `json:"created_by"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"channel",
		"MessageSent",
		"v1",
	)

	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"room",
		"RoomCreated",
		"v1",
	)
)
