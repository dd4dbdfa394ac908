package room

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/roomchat/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RoomPort defines the interface for room identity operations.
type RoomPort interface {
	GenerateCode() string
	CreateRoom(ctx context.Context, code, createdBy string) (*domain.Room, error)
	RoomExists(ctx context.Context, code string) (bool, error)
}

// Adapter implements RoomPort using the service container.
type Adapter struct {
	container mono.ServiceContainer
	generate  func() string
}

// NewAdapter creates a new Adapter generating codes of codeLength.
func NewAdapter(container mono.ServiceContainer, codeLength int) (*Adapter, error) {
	if container == nil {
		return nil, fmt.Errorf("room: ServiceContainer is nil")
	}
	generate, err := NewCodeGenerator(codeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create code generator: %w", err)
	}
	return &Adapter{container: container, generate: generate}, nil
}

// GenerateCode returns a fresh random room code.
func (a *Adapter) GenerateCode() string {
	return a.generate()
}

// CreateRoom creates or overwrites the room with the given code.
func (a *Adapter) CreateRoom(ctx context.Context, code, createdBy string) (*domain.Room, error) {
	req := CreateRoomRequest{Code: code, CreatedBy: createdBy}
	var resp CreateRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceCreateRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return resp.Room, nil
}

// RoomExists reports whether a room exists.
func (a *Adapter) RoomExists(ctx context.Context, code string) (bool, error) {
	req := RoomExistsRequest{Code: code}
	var resp RoomExistsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceRoomExists,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}
	return resp.Exists, nil
}
