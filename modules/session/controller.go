package session

import (
	"context"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Message length bounds, counted in characters.
const (
	MinMessageLength = 2
	MaxMessageLength = 300
)

// Moderator decides whether text may be published. It never fails:
// moderation service errors are treated as "not blocked".
type Moderator interface {
	IsBlocked(ctx context.Context, text string) bool
}

// RoomManager creates rooms and checks their existence.
type RoomManager interface {
	GenerateCode() string
	CreateRoom(ctx context.Context, code, createdBy string) (*domain.Room, error)
	RoomExists(ctx context.Context, code string) (bool, error)
}

// MessageChannel stores messages and streams room snapshots.
type MessageChannel interface {
	SendMessage(ctx context.Context, code, author, body string) (*domain.Message, error)
	Watch(ctx context.Context, code string, onUpdate func(domain.Snapshot)) (func(), error)
}

// Controller runs user actions against the moderation gate, room manager
// and message channel. It holds no per-user state; that lives in Session.
type Controller struct {
	moderator Moderator
	rooms     RoomManager
	channel   MessageChannel
	logger    types.Logger
}

// NewController creates a session controller.
func NewController(moderator Moderator, rooms RoomManager, channel MessageChannel, logger types.Logger) *Controller {
	return &Controller{
		moderator: moderator,
		rooms:     rooms,
		channel:   channel,
		logger:    logger,
	}
}

// NewSession starts an unauthenticated session. onUpdate receives every
// snapshot of the joined room's log and may be nil.
func (c *Controller) NewSession(onUpdate func(domain.Snapshot)) *Session {
	return &Session{
		id:       uuid.New().String(),
		ctrl:     c,
		onUpdate: onUpdate,
	}
}
