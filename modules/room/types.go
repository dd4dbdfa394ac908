package room

import (
	domain "github.com/example/roomchat/domain/chat"
)

// Service names registered by the room module.
const (
	ServiceCreateRoom = "create"
	ServiceRoomExists = "exists"
)

// CreateRoomRequest creates (or overwrites) a room. An empty code asks the
// module to generate one.
type CreateRoomRequest struct {
	Code      string `json:"code,omitempty"`
	CreatedBy string `json:"created_by"`
}

// CreateRoomResponse carries the created room.
type CreateRoomResponse struct {
	Room *domain.Room `json:"room"`
}

// RoomExistsRequest asks whether a room exists.
type RoomExistsRequest struct {
	Code string `json:"code"`
}

// RoomExistsResponse answers a RoomExistsRequest.
type RoomExistsResponse struct {
	Exists bool `json:"exists"`
}
