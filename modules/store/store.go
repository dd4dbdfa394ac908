package store

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/example/roomchat/domain/chat"
)

// ErrRoomNotFound is returned when a room document does not exist.
var ErrRoomNotFound = errors.New("room not found")

// Store is the document store backing rooms and their message logs.
//
// PutRoom creates or overwrites a room; overwriting keeps the room's
// message log. Timestamps are assigned by the store, never by callers.
type Store interface {
	PutRoom(ctx context.Context, code string) (*domain.Room, error)
	GetRoom(ctx context.Context, code string) (*domain.Room, error)
	RoomExists(ctx context.Context, code string) (bool, error)
	AppendMessage(ctx context.Context, code, author, body string) (*domain.Message, error)
	ListMessages(ctx context.Context, code string) ([]domain.Message, error)
	Ping(ctx context.Context) error
	Close() error
}

// clock hands out strictly increasing UTC timestamps.
type clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func newClock() *clock {
	return &clock{now: time.Now}
}

func (c *clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
