package chat

import "time"

// Room represents a chat room addressed by its short join code.
type Room struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// Message represents a chat message posted to a room.
type Message struct {
	ID        string    `json:"id"`
	RoomCode  string    `json:"room_code"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Seq       int64     `json:"seq"`
}

// Snapshot is the full ordered message log of a room at a point in time.
type Snapshot struct {
	RoomCode string    `json:"room_code"`
	Messages []Message `json:"messages"`
	At       time.Time `json:"at"`
}
