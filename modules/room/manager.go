package room

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/example/roomchat/modules/store"
)

// ErrInvalidCode is returned when a room code is not well formed.
var ErrInvalidCode = errors.New("invalid room code")

// ErrStoreUnavailable is returned when the store has not been opened yet.
var ErrStoreUnavailable = errors.New("store not available")

// StoreProvider hands out the opened store.
type StoreProvider interface {
	Store() store.Store
}

// Manager creates rooms and checks their existence.
//
// Codes are random and never checked for collisions: creating a room
// whose code already exists overwrites it, and the last create wins.
type Manager struct {
	stores   StoreProvider
	generate func() string
}

// NewManager creates a room manager generating codes of codeLength.
func NewManager(stores StoreProvider, codeLength int) (*Manager, error) {
	generate, err := NewCodeGenerator(codeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create code generator: %w", err)
	}
	return &Manager{stores: stores, generate: generate}, nil
}

// GenerateCode returns a fresh random room code.
func (m *Manager) GenerateCode() string {
	return m.generate()
}

// CreateRoom writes the room document, overwriting any existing room with that code.
func (m *Manager) CreateRoom(ctx context.Context, code string) (*domain.Room, error) {
	if !IsValidCode(code) {
		return nil, ErrInvalidCode
	}
	s := m.stores.Store()
	if s == nil {
		return nil, ErrStoreUnavailable
	}
	room, err := s.PutRoom(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return room, nil
}

// RoomExists reports whether a room with the code exists.
// Malformed codes are reported missing without touching the store.
func (m *Manager) RoomExists(ctx context.Context, code string) (bool, error) {
	if !IsValidCode(code) {
		return false, nil
	}
	s := m.stores.Store()
	if s == nil {
		return false, ErrStoreUnavailable
	}
	exists, err := s.RoomExists(ctx, code)
	if err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}
	return exists, nil
}
